package feed

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poll interval bounds.
const (
	MinPollInterval     = 15 * time.Minute
	DefaultPollInterval = 60 * time.Minute
)

// sweepTimeout bounds a single background reload.
const sweepTimeout = 10 * time.Minute

// Poller purges old videos once and then reloads all topics on an interval.
type Poller struct {
	engine   *Engine
	interval time.Duration
	onReload func([]TopicView)

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a background poller. Intervals below MinPollInterval
// are raised to it; zero means DefaultPollInterval. onReload, if not nil,
// receives the unread view after each successful sweep.
func NewPoller(engine *Engine, interval time.Duration, onReload func([]TopicView)) *Poller {
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{
		engine:   engine,
		interval: interval,
		onReload: onReload,
		stopChan: make(chan struct{}),
	}
}

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start begins the polling loop. The first sweep runs once the interval has
// passed since the last recorded reload.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if n, err := p.engine.DeleteOldVideos(ctx); err != nil {
			log.Printf("feed: poller: purge old videos: %v", err)
		} else if n > 0 {
			log.Printf("feed: poller: purged %d old videos", n)
		}
		wait := p.firstWait(ctx)
		cancel()

		for {
			select {
			case <-p.stopChan:
				return
			case <-time.After(wait):
			}
			p.sweep()
			wait = p.interval
		}
	}()
}

func (p *Poller) firstWait(ctx context.Context) time.Duration {
	if p.engine.prefs == nil {
		return 0
	}
	last, err := p.engine.prefs.LastReload(ctx)
	if err != nil || last.IsZero() {
		return 0
	}
	wait := p.interval - p.engine.now().Sub(last)
	if wait < 0 {
		return 0
	}
	return wait
}

func (p *Poller) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("feed: poller: reloading all topics (interval: %s)", p.interval)
	topics, err := p.engine.ReloadAllTopics(ctx)
	if err != nil {
		log.Printf("feed: poller: reload failed: %v", err)
		return
	}
	if p.onReload != nil {
		p.onReload(topics)
	}
}

// Stop stops the poller and waits for an in-flight sweep to end.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}
