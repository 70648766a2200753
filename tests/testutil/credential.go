package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/lostfound/internal/credential"
)

// NewTestCredentials returns a credential store backed by an in-memory
// keyring seeded with the given access and refresh tokens. Empty values
// are left unset.
func NewTestCredentials(t *testing.T, access, refresh string) *credential.Store {
	t.Helper()

	var items []keyring.Item
	if access != "" {
		items = append(items, keyring.Item{Key: credential.KeyAccessToken, Data: []byte(access)})
	}
	if refresh != "" {
		items = append(items, keyring.Item{Key: credential.KeyRefreshToken, Data: []byte(refresh)})
	}

	return credential.NewStore(keyring.NewArrayKeyring(items))
}
