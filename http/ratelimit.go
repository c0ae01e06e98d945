package http

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff applied after a 429/503 from a domain.
const (
	// InitialRateLimitBackoff is the first backoff after a rate limit response.
	InitialRateLimitBackoff = 1 * time.Second
	// MaxRateLimitBackoff caps the backoff after repeated rate limit responses.
	MaxRateLimitBackoff = 60 * time.Second
	// BackoffCooldownPeriod is how long after the last error a domain's rate is restored.
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor of the dynamic rate reduction.
	MinRPSMultiplier = 0.25
)

// RateLimiterConfig defines rate limiting behavior per domain.
type RateLimiterConfig struct {
	// PageRPS is requests per second for youtube.com channel pages.
	PageRPS float64
	// FeedRPS is requests per second for vimeo.com feeds.
	FeedRPS float64
	// DefaultRPS applies to every other domain. Zero means unlimited.
	DefaultRPS float64
	// CustomRates maps a host name to its RPS and wins over the fields above.
	CustomRates map[string]float64
	// EnableDynamicBackoff reduces a domain's rate after rate limit responses.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PageRPS:              1.0,
		FeedRPS:              2.0,
		DefaultRPS:           5.0,
		CustomRates:          make(map[string]float64),
		EnableDynamicBackoff: true,
	}
}

// BackoffState tracks rate limit backoff for a domain.
type BackoffState struct {
	CurrentBackoff    time.Duration
	LastError         time.Time
	ConsecutiveErrors int
	OriginalRPS       float64
	ReducedRPS        float64
}

// RateLimiter manages per-domain token buckets.
type RateLimiter struct {
	mu           sync.RWMutex
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	config       RateLimiterConfig
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait blocks until the domain of urlStr may issue another request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiter(extractDomain(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiter(domain string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[domain]; ok {
		return l
	}
	rps := rl.rps(domain)
	if rps <= 0 {
		return nil
	}
	l := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[domain] = l
	return l
}

// rps must be called with mu held.
func (rl *RateLimiter) rps(domain string) float64 {
	if rps, ok := rl.config.CustomRates[domain]; ok {
		return rps
	}
	switch domain {
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		return rl.config.PageRPS
	case "vimeo.com", "www.vimeo.com":
		return rl.config.FeedRPS
	default:
		return rl.config.DefaultRPS
	}
}

// extractDomain returns the host of urlStr without its port.
func extractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// SetCustomRate overrides the rate for domain.
func (rl *RateLimiter) SetCustomRate(domain string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.config.CustomRates[domain] = rps
	delete(rl.limiters, domain)
}

// RecordRateLimitError records a 429/503 for the domain of urlStr and
// returns how long to back off before the next request.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialRateLimitBackoff
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[domain]
	if !ok {
		state = &BackoffState{
			CurrentBackoff: InitialRateLimitBackoff,
			OriginalRPS:    rl.rps(domain),
		}
		rl.backoffState[domain] = state
	}
	state.LastError = time.Now()
	state.ConsecutiveErrors++

	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff *= 2
		if state.CurrentBackoff > MaxRateLimitBackoff {
			state.CurrentBackoff = MaxRateLimitBackoff
		}
	}
	if retryAfter > state.CurrentBackoff {
		state.CurrentBackoff = retryAfter
	}

	// 75% after one error, 50% after two, 25% after three or more.
	factor := 1.0 - 0.25*float64(state.ConsecutiveErrors)
	if factor < MinRPSMultiplier {
		factor = MinRPSMultiplier
	}
	state.ReducedRPS = state.OriginalRPS * factor
	if l, ok := rl.limiters[domain]; ok && state.ReducedRPS > 0 {
		l.SetLimit(rate.Limit(state.ReducedRPS))
	}

	return state.CurrentBackoff
}

// RecordSuccess lets a backed-off domain recover its rate.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	domain := extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[domain]
	if !ok {
		return
	}

	if time.Since(state.LastError) > BackoffCooldownPeriod {
		if l, ok := rl.limiters[domain]; ok && state.OriginalRPS > 0 {
			l.SetLimit(rate.Limit(state.OriginalRPS))
		}
		delete(rl.backoffState, domain)
		return
	}

	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--
		if state.ConsecutiveErrors == 0 && state.ReducedRPS < state.OriginalRPS*0.5 {
			state.ReducedRPS = state.OriginalRPS * 0.5
			if l, ok := rl.limiters[domain]; ok && state.ReducedRPS > 0 {
				l.SetLimit(rate.Limit(state.ReducedRPS))
			}
		}
	}
}

// GetBackoffState returns a copy of the backoff state for the domain of
// urlStr, or nil when it is not backed off.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[extractDomain(urlStr)]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// WaitForBackoff waits out the remaining backoff of the domain of urlStr.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}
	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
