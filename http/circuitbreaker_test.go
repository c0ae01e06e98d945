package http

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:    threshold,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 1,
		IsTransientError:    IsTransientHTTPError,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	testErr := errors.New("connection reset")

	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Fatal("initial state should be closed")
	}
	cb.RecordFailure("vimeo.com", testErr)
	cb.RecordFailure("vimeo.com", testErr)
	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Error("circuit should still be closed after 2 failures")
	}
	cb.RecordFailure("vimeo.com", testErr)
	if cb.GetState("vimeo.com") != CircuitOpen {
		t.Error("circuit should be open after 3 failures")
	}
	if err := cb.Allow("vimeo.com"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
	if err := cb.Allow("www.youtube.com"); err != nil {
		t.Errorf("other domain should be unaffected: %v", err)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2)
	cb.RecordFailure("vimeo.com", errors.New("x"))
	cb.RecordSuccess("vimeo.com")
	cb.RecordFailure("vimeo.com", errors.New("x"))
	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Error("success should reset consecutive failures")
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	cb.RecordFailure("vimeo.com", errors.New("x"))

	*now = now.Add(31 * time.Second)
	if cb.GetState("vimeo.com") != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open after recovery timeout", cb.GetState("vimeo.com"))
	}
	if err := cb.Allow("vimeo.com"); err != nil {
		t.Fatalf("first probe rejected: %v", err)
	}
	if err := cb.Allow("vimeo.com"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess("vimeo.com")
	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Error("successful probe should close the circuit")
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1)
	cb.RecordFailure("vimeo.com", errors.New("x"))
	*now = now.Add(31 * time.Second)
	cb.Allow("vimeo.com")
	cb.RecordFailure("vimeo.com", errors.New("x"))

	stats := cb.GetStats("vimeo.com")
	if stats.State != CircuitOpen {
		t.Errorf("state = %v, want open", stats.State)
	}
	if stats.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", stats.ConsecutiveErrors)
	}
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure("vimeo.com", &HTTPError{StatusCode: 404})
	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Error("404 should not open the circuit")
	}
	cb.RecordFailure("vimeo.com", &HTTPError{StatusCode: 503})
	if cb.GetState("vimeo.com") != CircuitOpen {
		t.Error("503 should open the circuit")
	}
	cb.Reset("vimeo.com")
	if cb.GetState("vimeo.com") != CircuitClosed {
		t.Error("Reset should close the circuit")
	}
}

func TestIsTransientHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 500}, true},
		{"bad request", &HTTPError{StatusCode: 400}, false},
		{"network", errors.New("dial tcp: refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientHTTPError(tt.err); got != tt.want {
				t.Errorf("IsTransientHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitStateString(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half-open",
		CircuitState(9): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
