package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/lostfound/internal/model"
)

// ErrNoIdentity is returned when no usable access token is stored.
var ErrNoIdentity = errors.New("no authenticated user")

// TokenSource yields the current access token.
type TokenSource interface {
	AccessToken() (string, error)
}

// Provider resolves the current user from the claims of the stored access
// token. The signature is not checked here.
type Provider struct {
	tokens        TokenSource
	fallbackEmail string
	parser        *jwt.Parser
}

// NewProvider creates a provider. fallbackEmail is used when the token
// carries no email claim.
func NewProvider(tokens TokenSource, fallbackEmail string) *Provider {
	return &Provider{
		tokens:        tokens,
		fallbackEmail: fallbackEmail,
		parser:        jwt.NewParser(),
	}
}

// CurrentUser returns the user the stored access token was issued to.
func (p *Provider) CurrentUser() (model.User, error) {
	raw, err := p.tokens.AccessToken()
	if err != nil || raw == "" {
		return model.User{}, ErrNoIdentity
	}

	claims := jwt.MapClaims{}
	if _, _, err := p.parser.ParseUnverified(raw, claims); err != nil {
		return model.User{}, fmt.Errorf("parsing access token: %w", err)
	}

	user := model.User{
		ID:    firstString(claims, "_id", "id", "userId", "sub"),
		Email: firstString(claims, "email"),
	}
	if user.ID == "" {
		return model.User{}, fmt.Errorf("access token has no subject: %w", ErrNoIdentity)
	}
	if user.Email == "" {
		user.Email = p.fallbackEmail
	}
	return user, nil
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
