// Package schwab implements the OAuth 2.0 client flow against the Schwab
// trader API: authorization URL, code exchange, proactive token refresh, and
// the quote endpoints that need a bearer token.
package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"resty.dev/v3"

	"finmetrics/internal/provider"
	"finmetrics/internal/ratelimit"
	"finmetrics/internal/tokenstore"
)

// Name identifies this provider in classified errors.
const Name = "schwab"

// Config carries the OAuth application settings.
type Config struct {
	AppKey      string
	AppSecret   string
	RedirectURI string
	AuthURL     string
	TokenURL    string
	BaseURL     string
}

// Client talks to the Schwab API on behalf of one OAuth application.
type Client struct {
	cfg     Config
	store   *tokenstore.Store
	http    *resty.Client
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// New creates a Schwab client backed by the given encrypted token store.
func New(cfg Config, store *tokenstore.Store, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:     cfg,
		store:   store,
		http:    httpClient,
		limiter: ratelimit.GetLimiter(),
		now:     time.Now,
	}
}

// AuthorizeURL builds the URL the user visits to start the OAuth flow.
func (c *Client) AuthorizeURL() string {
	params := url.Values{}
	params.Set("client_id", c.cfg.AppKey)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("response_type", "code")
	return c.cfg.AuthURL + "?" + params.Encode()
}

// Exchange trades an authorization code for tokens and persists them.
func (c *Client) Exchange(ctx context.Context, code string) (*tokenstore.Tokens, error) {
	return c.tokenGrant(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": c.cfg.RedirectURI,
	})
}

// Refresh trades the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (*tokenstore.Tokens, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if !tokens.HasRefresh() {
		return nil, provider.NewUnauthorized(Name, "no refresh token available; reconnect to Schwab")
	}
	return c.tokenGrant(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": tokens.RefreshToken,
	})
}

// tokenGrant posts a grant request to the token endpoint. Schwab requires
// HTTP Basic authentication with the app key and secret.
func (c *Client) tokenGrant(ctx context.Context, form map[string]string) (*tokenstore.Tokens, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBasicAuth(c.cfg.AppKey, c.cfg.AppSecret).
		SetFormData(form).
		Post(c.cfg.TokenURL)
	if err != nil {
		return nil, provider.NewUnknown(Name, "token request to Schwab failed", err)
	}
	if resp.StatusCode() != 200 {
		return nil, provider.NewUnauthorized(Name,
			fmt.Sprintf("Schwab token grant failed with status %d", resp.StatusCode()))
	}

	var tokens tokenstore.Tokens
	if err := json.Unmarshal(resp.Bytes(), &tokens); err != nil {
		return nil, provider.NewUnknown(Name, "failed to decode Schwab token response", err)
	}
	if err := c.store.Save(&tokens); err != nil {
		return nil, provider.NewUnknown(Name, "failed to persist Schwab tokens", err)
	}
	return &tokens, nil
}

// ValidAccessToken returns an access token that is good for at least the
// refresh buffer, refreshing proactively when needed.
func (c *Client) ValidAccessToken(ctx context.Context) (string, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if tokens == nil {
		return "", provider.NewUnauthorized(Name, "not connected to Schwab; complete the OAuth flow first")
	}
	if !tokens.AccessExpired(c.now()) {
		return tokens.AccessToken, nil
	}
	if !tokens.HasRefresh() {
		return "", provider.NewUnauthorized(Name, "Schwab session expired; reconnect to Schwab")
	}
	refreshed, err := c.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Status summarizes the stored connection state for the status endpoint.
type Status struct {
	Connected    bool   `json:"connected"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	NeedsRefresh bool   `json:"needs_refresh"`
	Message      string `json:"message"`
}

// ConnectionStatus inspects the token store without touching the network.
func (c *Client) ConnectionStatus() (*Status, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return &Status{Connected: false, Message: "Not connected to Schwab"}, nil
	}

	expired := tokens.AccessExpired(c.now())
	expiresAt := ""
	if !tokens.ExpiresAt.IsZero() {
		expiresAt = tokens.ExpiresAt.Format(time.RFC3339)
	}

	if expired && !tokens.HasRefresh() {
		return &Status{Connected: false, ExpiresAt: expiresAt, Message: "Session expired - please reconnect"}, nil
	}
	msg := "Connected to Schwab"
	if expired {
		msg = "Token will be refreshed automatically"
	}
	return &Status{Connected: true, ExpiresAt: expiresAt, NeedsRefresh: expired, Message: msg}, nil
}

// Disconnect deletes the stored tokens. Schwab has no revocation endpoint,
// so removing the local copy is the whole operation.
func (c *Client) Disconnect() (bool, error) {
	return c.store.Delete()
}

// Quote fetches a real-time quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (map[string]any, error) {
	return c.marketData(ctx, "/marketdata/v1/"+symbol+"/quotes", nil)
}

// Quotes fetches real-time quotes for multiple symbols at once.
func (c *Client) Quotes(ctx context.Context, symbols string) (map[string]any, error) {
	return c.marketData(ctx, "/marketdata/v1/quotes", map[string]string{"symbols": symbols})
}

func (c *Client) marketData(ctx context.Context, path string, query map[string]string) (map[string]any, error) {
	token, err := c.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, ratelimit.APISchwab); err != nil {
		return nil, provider.NewUnknown(Name, "request canceled while waiting for rate limiter", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(c.cfg.BaseURL + path)
	if err != nil {
		return nil, provider.NewUnknown(Name, "request to Schwab failed", err)
	}

	switch code := resp.StatusCode(); {
	case code == 401:
		return nil, provider.NewUnauthorized(Name, "Schwab rejected the access token; reconnect to Schwab")
	case code == 404:
		return nil, provider.NewNotFound(Name, "symbol not found on Schwab")
	case code == 429:
		return nil, provider.NewRateLimited(Name, "Schwab rate limit exceeded; wait before retrying")
	case code != 200:
		return nil, provider.NewUnknown(Name, fmt.Sprintf("Schwab returned status %d", code), nil)
	}

	var out map[string]any
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, provider.NewUnknown(Name, "failed to decode Schwab response", err)
	}
	return out, nil
}
