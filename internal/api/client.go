package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// TokenStore holds the bearer credentials. Implemented by credential.Store.
type TokenStore interface {
	AccessToken() (string, error)
	RefreshToken() (string, error)
	SetTokens(access, refresh string) error
	Clear() error
}

// Config configures the backend client.
type Config struct {
	BaseURL string

	// Timeout bounds each HTTP exchange. Zero keeps the transport default.
	Timeout time.Duration

	// AuthScheme prefixes the access token in the Authorization header.
	AuthScheme string

	// RefreshPath is the credential refresh endpoint. A 401 from this
	// path is never retried.
	RefreshPath string
}

// Client is a thin JSON client for the lost-and-found backend.
// It attaches the access token to every request and, on a 401, performs
// exactly one refresh of the credentials followed by one retry.
type Client struct {
	http      *resty.Client
	tokens    TokenStore
	cfg       Config
	log       zerolog.Logger
	refreshMu gosync.Mutex

	hookMu    gosync.Mutex
	onExpired func()
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// NewClient creates a backend client.
func NewClient(cfg Config, tokens TokenStore, logger zerolog.Logger) *Client {
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "JWT"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth/refresh"
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		hc.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:   hc,
		tokens: tokens,
		cfg:    cfg,
		log:    logger.With().Str("component", "api").Logger(),
	}
}

// OnSessionExpired registers fn to run after a failed refresh has cleared
// the stored credentials. It stands in for redirecting to a login screen.
func (c *Client) OnSessionExpired(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onExpired = fn
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// do builds the request, attaches credentials and handles the single
// refresh-and-retry on 401.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	retried := false

	for {
		req := c.http.R().SetContext(ctx)

		if token, err := c.tokens.AccessToken(); err == nil && token != "" {
			req.SetHeader("Authorization", c.cfg.AuthScheme+" "+token)
		}
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s %s: %w", method, path, ErrCanceled)
			}
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		status := resp.StatusCode()
		if status == http.StatusUnauthorized && !retried && !c.isRefreshPath(path) {
			retried = true
			c.log.Debug().Str("path", path).Msg("access token rejected, refreshing")
			if err := c.refresh(ctx); err != nil {
				return err
			}
			continue
		}

		if status < 200 || status >= 300 {
			return &StatusError{
				Method:     method,
				Path:       path,
				StatusCode: status,
				Body:       resp.String(),
			}
		}

		return nil
	}
}

func (c *Client) isRefreshPath(path string) bool {
	return strings.Contains(path, c.cfg.RefreshPath)
}

// refresh exchanges the refresh token for a new token pair. Any failure
// other than cancellation clears the stored tokens and expires the session.
func (c *Client) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	refreshToken, err := c.tokens.RefreshToken()
	if err != nil || refreshToken == "" {
		return c.expire(errors.New("no refresh token available"))
	}

	var pair tokenPair
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"refreshToken": refreshToken}).
		SetResult(&pair).
		Post(c.cfg.RefreshPath)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return fmt.Errorf("refreshing token: %w", ErrCanceled)
		}
		return c.expire(fmt.Errorf("refreshing token: %w", err))
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return c.expire(&StatusError{
			Method:     http.MethodPost,
			Path:       c.cfg.RefreshPath,
			StatusCode: status,
			Body:       resp.String(),
		})
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return c.expire(errors.New("token refresh response invalid"))
	}

	if err := c.tokens.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("storing refreshed tokens: %w", err)
	}

	c.log.Info().Msg("access token refreshed")
	return nil
}

// expire clears credentials, fires the session-expired hook and returns
// ErrSessionExpired wrapping cause.
func (c *Client) expire(cause error) error {
	c.log.Warn().Err(cause).Msg("token refresh failed, clearing credentials")

	if err := c.tokens.Clear(); err != nil {
		c.log.Error().Err(err).Msg("clearing credentials")
	}

	c.hookMu.Lock()
	fn := c.onExpired
	c.hookMu.Unlock()
	if fn != nil {
		fn()
	}

	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}
