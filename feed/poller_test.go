package feed

import (
	"context"
	"testing"
	"time"
)

func TestNewPollerClampsInterval(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultPollInterval},
		{time.Minute, MinPollInterval},
		{2 * time.Hour, 2 * time.Hour},
	}
	for _, tt := range tests {
		if got := NewPoller(env.engine, tt.in, nil).Interval(); got != tt.want {
			t.Errorf("NewPoller(%v).Interval() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPollerFirstWait(t *testing.T) {
	env := newTestEnv(t)
	p := NewPoller(env.engine, time.Hour, nil)
	ctx := context.Background()

	if got := p.firstWait(ctx); got != 0 {
		t.Errorf("firstWait() with no reload = %v, want 0", got)
	}
	env.prefs.SetLastReload(ctx, t0.Add(-20*time.Minute))
	if got := p.firstWait(ctx); got != 40*time.Minute {
		t.Errorf("firstWait() = %v, want 40m", got)
	}
	env.prefs.SetLastReload(ctx, t0.Add(-2*time.Hour))
	if got := p.firstWait(ctx); got != 0 {
		t.Errorf("firstWait() after overdue reload = %v, want 0", got)
	}
}

func TestPollerPurgesAndReloads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	day := 24 * time.Hour
	env.yt.addChannel("h1", "UC1", upload("old", 8*day), upload("new", time.Hour))
	env.engine.CreateTopic(ctx, "T", "h1")
	env.yt.setUploads("UC1", upload("new", time.Hour))
	env.clock.advance(time.Hour)

	reloaded := make(chan []TopicView, 1)
	p := NewPoller(env.engine, time.Hour, func(topics []TopicView) {
		select {
		case reloaded <- topics:
		default:
		}
	})
	p.Start()
	defer p.Stop()

	select {
	case topics := <-reloaded:
		if len(topics) != 1 || len(topics[0].Videos) != 1 || topics[0].Videos[0].ID != "new" {
			t.Errorf("reloaded view = %+v", topics)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not reload")
	}
	if n := env.yt.fetchCount("UC1"); n != 2 {
		t.Errorf("fetch count = %d, want 2", n)
	}
}

func TestPollerStopBeforeSweep(t *testing.T) {
	env := newTestEnv(t)
	env.prefs.SetLastReload(context.Background(), t0)
	p := NewPoller(env.engine, time.Hour, func([]TopicView) {
		t.Error("unexpected reload")
	})
	p.Start()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}
	p.Stop()
}
