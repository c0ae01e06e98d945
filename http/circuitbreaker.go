package http

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal state where requests are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails requests fast.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of probe requests through.
	CircuitHalfOpen
)

// String returns the string representation of a circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the number of consecutive failures to open the circuit.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long the circuit stays open before probing.
	DefaultRecoveryTimeout = 30 * time.Second
	// DefaultHalfOpenMaxRequests is the number of probes allowed in half-open state.
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("http: circuit breaker is open")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int
	// IsTransientError decides whether a failure counts against the circuit.
	// Nil counts every failure.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

type circuit struct {
	state             CircuitState
	consecutiveErrors int
	lastError         time.Time
	lastStateChange   time.Time
	probes            int
}

// CircuitBreaker tracks failures per domain and opens the circuit for a
// domain after too many consecutive failures.
type CircuitBreaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	config   CircuitBreakerConfig
	now      func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	return &CircuitBreaker{
		circuits: make(map[string]*circuit),
		config:   cfg,
		now:      time.Now,
	}
}

// Allow returns ErrCircuitOpen when requests to domain should fail fast.
func (cb *CircuitBreaker) Allow(domain string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	switch c.state {
	case CircuitOpen:
		if cb.now().Sub(c.lastStateChange) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		c.state = CircuitHalfOpen
		c.lastStateChange = cb.now()
		c.probes = 1
		return nil
	case CircuitHalfOpen:
		if c.probes >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		c.probes++
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the circuit for domain.
func (cb *CircuitBreaker) RecordSuccess(domain string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	if c.state != CircuitClosed {
		c.state = CircuitClosed
		c.lastStateChange = cb.now()
		c.probes = 0
	}
	c.consecutiveErrors = 0
}

// RecordFailure counts a failure for domain, opening the circuit once the
// threshold is reached. Failures that are not transient are ignored.
func (cb *CircuitBreaker) RecordFailure(domain string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(domain)
	c.consecutiveErrors++
	c.lastError = cb.now()
	switch c.state {
	case CircuitClosed:
		if c.consecutiveErrors >= cb.config.FailureThreshold {
			c.state = CircuitOpen
			c.lastStateChange = cb.now()
		}
	case CircuitHalfOpen:
		c.state = CircuitOpen
		c.lastStateChange = cb.now()
	}
}

// CircuitStats contains statistics about a circuit's state.
type CircuitStats struct {
	State             CircuitState
	ConsecutiveErrors int
	LastError         time.Time
	LastStateChange   time.Time
}

// GetStats returns statistics for a domain's circuit. An open circuit whose
// recovery timeout has elapsed reports half-open.
func (cb *CircuitBreaker) GetStats(domain string) CircuitStats {
	if cb == nil {
		return CircuitStats{State: CircuitClosed}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[domain]
	if !ok {
		return CircuitStats{State: CircuitClosed}
	}
	state := c.state
	if state == CircuitOpen && cb.now().Sub(c.lastStateChange) >= cb.config.RecoveryTimeout {
		state = CircuitHalfOpen
	}
	return CircuitStats{
		State:             state,
		ConsecutiveErrors: c.consecutiveErrors,
		LastError:         c.lastError,
		LastStateChange:   c.lastStateChange,
	}
}

// GetState returns the current state of the circuit for a domain.
func (cb *CircuitBreaker) GetState(domain string) CircuitState {
	return cb.GetStats(domain).State
}

// Reset closes the circuit for a domain.
func (cb *CircuitBreaker) Reset(domain string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, domain)
}

// get must be called with mu held.
func (cb *CircuitBreaker) get(domain string) *circuit {
	c, ok := cb.circuits[domain]
	if !ok {
		c = &circuit{state: CircuitClosed, lastStateChange: cb.now()}
		cb.circuits[domain] = c
	}
	return c
}

// IsTransientHTTPError reports whether err should count against a circuit:
// network errors, rate limits and 5xx responses do, other 4xx responses
// do not.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	return true
}
