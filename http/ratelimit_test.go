package http

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterDomainRates(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.CustomRates["api.example.com"] = 7
	rl := NewRateLimiter(cfg)

	tests := []struct {
		domain string
		want   float64
	}{
		{"www.youtube.com", cfg.PageRPS},
		{"youtube.com", cfg.PageRPS},
		{"vimeo.com", cfg.FeedRPS},
		{"api.example.com", 7},
		{"summarizer.local", cfg.DefaultRPS},
	}
	for _, tt := range tests {
		rl.mu.Lock()
		got := rl.rps(tt.domain)
		rl.mu.Unlock()
		if got != tt.want {
			t.Errorf("rps(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

func TestExtractDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/@handle":    "www.youtube.com",
		"http://127.0.0.1:8080/summarize":    "127.0.0.1",
		"https://Vimeo.com/staff/videos/rss": "vimeo.com",
		"not a url":                          "unknown",
	}
	for in, want := range tests {
		if got := extractDomain(in); got != want {
			t.Errorf("extractDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRateLimiterWaitSpacesRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CustomRates: map[string]float64{"example.com": 20}})
	ctx := context.Background()
	url := "https://example.com/feed"

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, url); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	// Burst of one: the 2nd and 3rd request each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("three requests at 20 rps took %v, want >= 80ms", elapsed)
	}
}

func TestRateLimiterUnlimitedDomain(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := rl.Wait(context.Background(), "https://example.org/"); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("unlimited domain waited %v", elapsed)
	}
}

func TestRateLimiterContextCanceled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CustomRates: map[string]float64{"example.com": 0.5}})
	ctx, cancel := context.WithCancel(context.Background())
	url := "https://example.com/feed"

	if err := rl.Wait(ctx, url); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx, url); err == nil {
		t.Fatal("expected context canceled error")
	}
}

func TestRateLimiterBackoffGrowsAndCaps(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	url := "https://www.youtube.com/@handle"

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := rl.RecordRateLimitError(url, 0); got != w {
			t.Errorf("error %d: backoff = %v, want %v", i+1, got, w)
		}
	}
	for i := 0; i < 10; i++ {
		rl.RecordRateLimitError(url, 0)
	}
	if got := rl.GetBackoffState(url).CurrentBackoff; got != MaxRateLimitBackoff {
		t.Errorf("backoff after many errors = %v, want %v", got, MaxRateLimitBackoff)
	}

	state := rl.GetBackoffState(url)
	if state.ReducedRPS != state.OriginalRPS*MinRPSMultiplier {
		t.Errorf("ReducedRPS = %v, want floor %v", state.ReducedRPS, state.OriginalRPS*MinRPSMultiplier)
	}
}

func TestRateLimiterRetryAfterWins(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	if got := rl.RecordRateLimitError("https://vimeo.com/x", 30*time.Second); got != 30*time.Second {
		t.Errorf("backoff = %v, want Retry-After 30s", got)
	}
}

func TestRateLimiterRecordSuccessRecovers(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	url := "https://vimeo.com/staff/videos/rss"

	rl.RecordRateLimitError(url, 0)
	rl.RecordRateLimitError(url, 0)
	rl.RecordSuccess(url)
	rl.RecordSuccess(url)

	state := rl.GetBackoffState(url)
	if state == nil {
		t.Fatal("state should persist until cooldown")
	}
	if state.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", state.ConsecutiveErrors)
	}
	if state.ReducedRPS != state.OriginalRPS*0.5 {
		t.Errorf("ReducedRPS = %v, want half of %v", state.ReducedRPS, state.OriginalRPS)
	}
}

func TestRateLimiterDynamicBackoffDisabled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	if got := rl.RecordRateLimitError("https://example.com", 0); got != InitialRateLimitBackoff {
		t.Errorf("backoff = %v, want %v", got, InitialRateLimitBackoff)
	}
	if rl.GetBackoffState("https://example.com") != nil {
		t.Error("no state should be kept when dynamic backoff is disabled")
	}
}

func TestWaitForBackoffHonorsContext(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	url := "https://www.youtube.com/@handle"
	rl.RecordRateLimitError(url, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.WaitForBackoff(ctx, url); err == nil {
		t.Error("expected deadline error while backed off")
	}
	if err := rl.WaitForBackoff(context.Background(), "https://vimeo.com/"); err != nil {
		t.Errorf("domain without backoff: %v", err)
	}
}
