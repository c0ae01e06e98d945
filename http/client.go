// Package http provides the outbound HTTP client shared by the video source
// adapters and the summarizer: retries with backoff, per-domain rate
// limiting, a circuit breaker and optional session headers and cookies.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ytfeed/internal/retry"
)

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base           *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	session        *SessionManager
}

// Config holds HTTP client configuration including retry and rate limit settings.
type Config struct {
	// Timeout for individual HTTP requests
	Timeout time.Duration

	// Retry configuration
	Retry retry.Config

	// User agent for HTTP requests
	UserAgent string

	// Rate limiter configuration
	RateLimiter RateLimiterConfig

	// Circuit breaker configuration
	CircuitBreaker CircuitBreakerConfig

	// Connection pool configuration
	Transport TransportConfig

	// MaxBodyBytes caps how much of a response body is read. Zero means 8 MiB.
	MaxBodyBytes int64
}

// TransportConfig configures the HTTP transport (connection pooling).
type TransportConfig struct {
	// MaxIdleConns is the maximum number of idle connections across all hosts.
	MaxIdleConns int
	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int
	// IdleConnTimeout is how long an idle connection may stay open.
	IdleConnTimeout time.Duration
}

const defaultMaxBodyBytes = 8 << 20

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	cbConfig := DefaultCircuitBreakerConfig()
	cbConfig.IsTransientError = IsTransientHTTPError
	return &Config{
		Timeout:        30 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      "ytfeed/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: cbConfig,
		Transport:      DefaultTransportConfig(),
		MaxBodyBytes:   defaultMaxBodyBytes,
	}
}

// DefaultTransportConfig returns sensible defaults for HTTP transport configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		base:           newBaseClient(cfg, nil),
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

func newBaseClient(cfg *Config, jar http.CookieJar) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.Transport.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Response represents an HTTP response with status code and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// PostJSON marshals payload and POSTs it as application/json.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return c.Do(ctx, http.MethodPost, url, body, h)
}

// Do performs an HTTP request with retry logic and rate limit handling.
// The body is sent again on every attempt. The circuit breaker fails fast
// when a domain has been failing.
func (c *Client) Do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	domain := extractDomain(urlStr)

	if err := c.circuitBreaker.Allow(domain); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
		return nil, err
	}

	var result *Response
	err := retry.Do(ctx, c.config.Retry, isRetryableHTTPError, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
		if err != nil {
			return retry.Permanent(err)
		}

		req.Header.Set("User-Agent", c.config.UserAgent)
		if c.session != nil {
			for k, v := range c.session.Headers() {
				req.Header.Set(k, v)
			}
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.base.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			retryAfter := parseRetryAfter(resp.Header)
			if backoff := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter); backoff > retryAfter {
				retryAfter = backoff
			}
			return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
		}

		limit := c.config.MaxBodyBytes
		if limit <= 0 {
			limit = defaultMaxBodyBytes
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: data}
		}

		result = &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
		return nil
	})
	if err != nil {
		c.circuitBreaker.RecordFailure(domain, err)
		return nil, err
	}
	if result == nil {
		c.circuitBreaker.RecordFailure(domain, ErrNoResponse)
		return nil, ErrNoResponse
	}

	c.rateLimiter.RecordSuccess(urlStr)
	c.circuitBreaker.RecordSuccess(domain)
	return result, nil
}

// isRetryableHTTPError retries rate limits, network errors and 5xx responses.
func isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

// parseRetryAfter extracts the Retry-After header value.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// HTTPClient returns the underlying *http.Client, for libraries that issue
// requests themselves. Requests made through it bypass retry, rate limiting
// and the circuit breaker.
func (c *Client) HTTPClient() *http.Client {
	return c.base
}

// RateLimiter returns the client's rate limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// CircuitBreaker returns the client's circuit breaker.
func (c *Client) CircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
