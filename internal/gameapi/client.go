// Package gameapi talks to the REST plugin running inside the game server.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/EditMySave/HyOS-sub001/internal/cache"
)

const (
	// HealthTTL bounds how often the server health is checked.
	HealthTTL = 30 * time.Second
	// tokenRefreshEarly renews a token this long before it expires.
	tokenRefreshEarly = 60 * time.Second
	healthTimeout     = 5 * time.Second
	requestTimeout    = 15 * time.Second
)

// Config addresses and authenticates against the game server.
type Config struct {
	Host         string
	Port         int
	ClientID     string
	ClientSecret string
}

// BaseURL returns the server's REST root.
func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Plugin is one plugin reported by the server.
type Plugin struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	Authors     []string `json:"authors"`
}

// Plugins is the /server/plugins answer.
type Plugins struct {
	Count   int      `json:"count"`
	Plugins []Plugin `json:"plugins"`
}

// Client is safe for concurrent use. Tokens are fetched lazily and reused
// until shortly before they expire.
type Client struct {
	baseURL string
	tokens  *tokenSource
	plain   *http.Client
	health  *cache.Value[bool]

	mu   sync.Mutex
	auth *http.Client
}

// New creates a client for cfg. A nil hc uses a client with a default timeout.
func New(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL(), "/"),
		plain:   hc,
		health:  cache.NewValue[bool](HealthTTL),
	}
	c.tokens = &tokenSource{url: c.baseURL + "/auth/token", clientID: cfg.ClientID, secret: cfg.ClientSecret, http: hc}
	c.auth = c.newAuthClient()
	return c
}

func (c *Client) newAuthClient() *http.Client {
	return &http.Client{
		Timeout: c.plain.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSourceWithExpiry(nil, c.tokens, tokenRefreshEarly),
			Base:   c.plain.Transport,
		},
	}
}

// Health reports whether the server answers /health. The answer, including a
// failure, is cached for HealthTTL.
func (c *Client) Health(ctx context.Context) bool {
	ok, _ := c.health.GetOrLoad(ctx, func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return false, nil
		}
		resp, err := c.plain.Do(req)
		if err != nil {
			return false, nil
		}
		resp.Body.Close()
		return resp.StatusCode < 300, nil
	})
	return ok
}

// LoadedPlugins lists the plugins the running server has loaded.
func (c *Client) LoadedPlugins(ctx context.Context) (*Plugins, error) {
	var out Plugins
	if err := c.get(ctx, "/server/plugins", &out); err != nil {
		return nil, err
	}
	if out.Plugins == nil {
		out.Plugins = []Plugin{}
	}
	return &out, nil
}

// ClearCache drops the cached token and health state, for use after the
// server restarts or its credentials change.
func (c *Client) ClearCache() {
	c.health.Invalidate()
	c.mu.Lock()
	c.auth = c.newAuthClient()
	c.mu.Unlock()
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	hc := c.auth
	c.mu.Unlock()

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("game server %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("game server %s: status %d: %s", endpoint, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

// tokenSource exchanges client credentials at /auth/token.
type tokenSource struct {
	url      string
	clientID string
	secret   string
	http     *http.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{"clientId": s.clientID, "secret": s.secret})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("authentication failed: %d - %s", resp.StatusCode, text)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("authentication failed: empty token")
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
