// Package feed is the sync engine. It keeps the stored video lists of every
// channel fresh under a time-to-live policy, applies topic membership edits
// without losing watched state, and assembles the unread view shown to the
// user.
//
// The engine talks to platforms through a source.Registry and persists
// through a storage.Store. Both are injected:
//
//	engine := feed.New(store, registry, prefs,
//		feed.WithTTL(30*time.Minute),
//		feed.WithRetention(7*24*time.Hour),
//	)
//	topics, err := engine.ReloadAllTopics(ctx)
package feed

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ytfeed/source"
	"ytfeed/storage"
)

// Defaults for the engine options.
const (
	DefaultTTL           = 30 * time.Minute
	DefaultRetention     = source.DefaultRetention
	DefaultHistoryWindow = 3 * 24 * time.Hour
)

// Preferences is the part of the preference store the engine writes: the
// time of the last full reload.
type Preferences interface {
	LastReload(ctx context.Context) (time.Time, error)
	SetLastReload(ctx context.Context, t time.Time) error
}

// Engine is the sync engine. It is safe for concurrent use.
type Engine struct {
	store   storage.Store
	sources *source.Registry
	prefs   Preferences

	ttl           time.Duration
	retention     time.Duration
	historyWindow time.Duration
	concurrency   int
	now           func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand

	// refreshes collapses concurrent fetches of the same channel.
	refreshes singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithTTL sets how long a channel's stored videos count as fresh.
func WithTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.ttl = d
		}
	}
}

// WithRetention sets the age after which videos are purged.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

// WithHistoryWindow sets how far back WatchedHistory looks.
func WithHistoryWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.historyWindow = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithConcurrency sets how many channels a reload sweep refreshes at once.
// Values below 2 keep the sweep sequential.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRand sets the random source used to pick topic colors.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// New creates an engine. prefs may be nil, in which case reload times are
// not recorded.
func New(store storage.Store, sources *source.Registry, prefs Preferences, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		sources:       sources,
		prefs:         prefs,
		ttl:           DefaultTTL,
		retention:     DefaultRetention,
		historyWindow: DefaultHistoryWindow,
		concurrency:   1,
		now:           time.Now,
		rand:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the freshness window.
func (e *Engine) TTL() time.Duration { return e.ttl }

// Retention returns the purge age.
func (e *Engine) Retention() time.Duration { return e.retention }
