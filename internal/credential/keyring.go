package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "lostfound"

// Keys under which the API credentials are stored.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// ErrNotFound is returned when a credential has not been stored.
var ErrNotFound = errors.New("credential not found")

// Open returns a keyring configured for this application. fileDir is used
// by the encrypted file backend when no OS keychain is available.
func Open(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("lostfound-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store keeps the API access and refresh tokens in a keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an open keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key. Missing keys are ignored.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// AccessToken returns the stored access token.
func (s *Store) AccessToken() (string, error) {
	return s.Get(KeyAccessToken)
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken() (string, error) {
	return s.Get(KeyRefreshToken)
}

// SetTokens replaces both tokens.
func (s *Store) SetTokens(access, refresh string) error {
	if err := s.Set(KeyAccessToken, access); err != nil {
		return err
	}
	return s.Set(KeyRefreshToken, refresh)
}

// Clear removes both tokens.
func (s *Store) Clear() error {
	return errors.Join(s.Delete(KeyAccessToken), s.Delete(KeyRefreshToken))
}
