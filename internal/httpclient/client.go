package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "HyOS-Server-Manager/1.0 (Go)"

// ErrRateLimited is returned when the limiter cannot grant a request slot
// before the context ends.
var ErrRateLimited = errors.New("rate limit wait")

// Client is an outbound HTTP client with rate limiting and a fixed User-Agent.
// It never caches responses: every call goes to the network.
//
// The overall timeout applies to Get only. Stream bodies are bounded by the
// caller's context, so large downloads are not cut off mid-transfer.
type Client struct {
	http      *http.Client
	stream    *http.Client
	limiter   *rate.Limiter
	rps       float64
	burst     int
	userAgent string
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit sets requests per second. The burst defaults to one
// second's worth of requests.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) { cl.rps = rps }
}

// WithBurst overrides the number of requests allowed at once.
func WithBurst(n int) Option {
	return func(cl *Client) { cl.burst = n }
}

// WithTimeout overrides the overall per-request timeout of Get.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *Client) { cl.http = hc }
}

// New creates a new HTTP client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.rps > 0 {
		burst := c.burst
		if burst <= 0 {
			burst = max(1, int(c.rps))
		}
		c.limiter = rate.NewLimiter(rate.Limit(c.rps), burst)
	}
	c.stream = &http.Client{
		Transport:     c.http.Transport,
		CheckRedirect: c.http.CheckRedirect,
		Jar:           c.http.Jar,
	}
	return c
}

// Response wraps an HTTP response body and metadata.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
}

// StatusError is returned when the upstream answers with a 4xx or 5xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Get performs an HTTP GET and reads the whole body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	resp, err := c.do(ctx, c.http, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{Body: body, StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

// Stream performs an HTTP GET and hands the open body to the caller,
// who must close it. Used for archive downloads.
func (c *Client) Stream(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, c.stream, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, url string, headers map[string]string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP %s %s: %w", method, url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
