// Package transport performs the HTTP requests of every source adapter:
// mandatory per-fetch timeouts, client side rate limiting and an optional
// response cache for idempotent lookups.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRate    = 5
	defaultBurst   = 10

	// error bodies are only kept for logging
	maxErrorBody = 512
)

// Options configures a transport Client
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 uses the default
	RateBurst int
	Cache     Cache
	UserAgent string
}

// Request describes a single fetch
type Request struct {
	URL     string
	Method  string // defaults to GET
	Headers map[string]string
	Body    io.Reader
	// Cache allows the response to be served from / stored in the cache.
	// Never set it for update polling endpoints.
	Cache bool
}

// Client is shared by all adapters of a process
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	cache       Cache
	timeout     time.Duration
	userAgent   string
}

// NewClient creates a transport client with a pooled connection transport
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRate
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		rateLimiter: rate.NewLimiter(rate.Limit(limit), burst),
		cache:       opts.Cache,
		timeout:     timeout,
		userAgent:   opts.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewClientWithHTTP wraps an existing http.Client, mostly for tests
func NewClientWithHTTP(hc *http.Client, opts Options) *Client {
	c := NewClient(opts)
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Get performs the request and returns the full body
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	key := cacheKey(req)
	if req.Cache && c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			return body, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(req.URL, fmt.Errorf("read body: %w", err))
	}

	if req.Cache && c.cache != nil {
		c.cache.Set(ctx, key, body)
	}
	return body, nil
}

// Stream performs the request and hands back the open response for large
// downloads. The caller must close the body. The client wide timeout still
// bounds the whole transfer.
func (c *Client) Stream(ctx context.Context, req Request) (*http.Response, error) {
	return c.do(ctx, req)
}

// PostForm sends url encoded form values and returns the body
func (c *Client) PostForm(ctx context.Context, rawURL string, values url.Values, headers map[string]string) ([]byte, error) {
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Get(ctx, Request{
		URL:     rawURL,
		Method:  http.MethodPost,
		Headers: h,
		Body:    strings.NewReader(values.Encode()),
	})
}

// CloseIdleConnections releases the connection pool
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// do performs one rate limited round trip and maps failures to FetchError
func (c *Client) do(ctx context.Context, req Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, classify(req.URL, fmt.Errorf("rate limiter: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, req.Body)
	if err != nil {
		return nil, &FetchError{URL: req.URL, Err: fmt.Errorf("create request: %w", err)}
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &FetchError{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Transient:  shouldRetry(resp.StatusCode),
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	}
	return resp, nil
}

func cacheKey(req Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + req.URL
}
