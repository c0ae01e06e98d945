package http

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// SessionConfig configures the headers and cookies sent with every request
// of a session client.
type SessionConfig struct {
	// UserAgent replaces the client's default user agent.
	UserAgent string
	// AcceptLanguage is sent as Accept-Language.
	AcceptLanguage string
	// Headers are added to every request.
	Headers map[string]string
	// Cookies are preloaded into the jar, keyed by the URL they belong to.
	Cookies map[string][]*http.Cookie
}

// DefaultSessionConfig returns a browser-like session. The YouTube consent
// cookie keeps channel pages from redirecting to the consent screen.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.8",
		Headers:        make(map[string]string),
		Cookies: map[string][]*http.Cookie{
			"https://www.youtube.com": {{Name: "CONSENT", Value: "YES+cb", Path: "/", Domain: ".youtube.com"}},
		},
	}
}

// SessionManager holds a cookie jar and the headers for a session.
type SessionManager struct {
	mu     sync.RWMutex
	jar    http.CookieJar
	config SessionConfig
}

// NewSessionManager creates a session with a fresh cookie jar.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	for rawURL, cookies := range cfg.Cookies {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("session cookie url %q: %w", rawURL, err)
		}
		jar.SetCookies(u, cookies)
	}
	return &SessionManager{jar: jar, config: cfg}, nil
}

// Client returns a client that shares this session's jar and headers.
func (sm *SessionManager) Client(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		base:           newBaseClient(cfg, sm.jar),
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
		session:        sm,
	}
}

// AddHeader adds a header to be included in all requests.
func (sm *SessionManager) AddHeader(key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.config.Headers[key] = value
}

// Headers returns a copy of the headers sent with each request.
func (sm *SessionManager) Headers() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	headers := make(map[string]string, len(sm.config.Headers)+2)
	for k, v := range sm.config.Headers {
		headers[k] = v
	}
	if sm.config.UserAgent != "" {
		headers["User-Agent"] = sm.config.UserAgent
	}
	if sm.config.AcceptLanguage != "" {
		headers["Accept-Language"] = sm.config.AcceptLanguage
	}
	return headers
}

// Cookies returns the cookies the jar would send to rawURL.
func (sm *SessionManager) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return sm.jar.Cookies(u)
}
