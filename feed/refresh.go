package feed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ytfeed/source"
	"ytfeed/storage"
)

// refreshTimeout bounds a shared channel fetch, which outlives the caller
// that started it.
const refreshTimeout = 5 * time.Minute

// RefreshChannel returns the stored videos of a channel, newest first,
// fetching from the channel's platform first when the stored list is stale.
//
// A channel synced less than the TTL ago is served from the store with no
// network call unless force is set. Fetched videos are merged with
// insert-or-ignore, so a video that is already stored keeps its watched
// flag. The last-synced time moves to now only after a successful fetch.
//
// A failed fetch is logged and yields an empty list with a nil error. An
// unknown channel yields storage.ErrNotFound.
//
// Concurrent refreshes of one channel share a single fetch. The fetch is
// detached from the caller that started it, so cancelling one caller
// returns its ctx error without failing the others.
func (e *Engine) RefreshChannel(ctx context.Context, channelID string, force bool) ([]storage.Video, error) {
	ch, err := e.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !force && e.fresh(ch) {
		cv, err := e.store.GetChannelVideos(ctx, channelID)
		if err != nil {
			return nil, err
		}
		return cv.Videos, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := e.refreshes.DoChan(channelID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return e.fetchAndMerge(fctx, ch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]storage.Video), nil
	}
}

func (e *Engine) fresh(ch storage.Channel) bool {
	if ch.LastSynced.IsZero() {
		return false
	}
	return e.now().Sub(ch.LastSynced) < e.ttl
}

func (e *Engine) fetchAndMerge(ctx context.Context, ch storage.Channel) ([]storage.Video, error) {
	adapter := e.sources.ForPlatform(ch.Platform)
	uploads, err := adapter.FetchRecentUploads(ctx, ch.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("feed: fetch %s (%s) failed: %v", ch.ID, ch.Handle, err)
		return []storage.Video{}, nil
	}

	videos := make([]storage.Video, 0, len(uploads))
	for _, u := range uploads {
		videos = append(videos, storage.VideoFromSource(ch.ID, u))
	}
	inserted, err := e.store.InsertVideos(ctx, videos)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", ch.ID, err)
	}
	if err := e.store.TouchChannel(ctx, ch.ID, e.now()); err != nil {
		return nil, fmt.Errorf("touch %s: %w", ch.ID, err)
	}
	if inserted > 0 {
		log.Printf("feed: %s: %d new of %d fetched", ch.ID, inserted, len(videos))
	}

	cv, err := e.store.GetChannelVideos(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	return cv.Videos, nil
}

// ReloadAllTopics refreshes every channel that is stale, records the reload
// time and returns the unread view. One channel failing does not stop the
// sweep; cancelling ctx does.
func (e *Engine) ReloadAllTopics(ctx context.Context) ([]TopicView, error) {
	sweep := uuid.NewString()
	channels, err := e.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("feed: sweep %s: refreshing %d channels", sweep, len(channels))

	var failed atomic.Int64
	refresh := func(ctx context.Context, ch storage.Channel) {
		if _, err := e.RefreshChannel(ctx, ch.ID, false); err != nil && ctx.Err() == nil {
			failed.Add(1)
			log.Printf("feed: sweep %s: refresh %s failed: %v", sweep, ch.ID, err)
		}
	}

	if e.concurrency < 2 {
		for _, ch := range channels {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			refresh(ctx, ch)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for _, ch := range channels {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				refresh(gctx, ch)
				return nil
			})
		}
		g.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topics, err := e.LoadAllTopics(ctx)
	if err != nil {
		return nil, err
	}
	if e.prefs != nil {
		if err := e.prefs.SetLastReload(ctx, e.now()); err != nil {
			log.Printf("feed: sweep %s: record reload time: %v", sweep, err)
		}
	}
	log.Printf("feed: sweep %s: done, %d failed", sweep, failed.Load())
	return topics, nil
}

// SplitHandles splits a comma-separated handle list, trimming whitespace
// and dropping empty entries.
func SplitHandles(handles string) []string {
	var out []string
	for _, h := range strings.Split(handles, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// resolveHandles resolves handles in order. With strict set, the first
// handle no adapter resolves aborts with a *ResolveError; otherwise such
// handles are returned as dropped. Handles resolving to a channel already
// in the list are skipped.
func (e *Engine) resolveHandles(ctx context.Context, handles []string, strict bool) (channels []storage.Channel, dropped []string, err error) {
	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		res, err := e.sources.Resolve(ctx, h)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			if strict {
				return nil, nil, &ResolveError{Handle: h, Err: source.ErrChannelNotFound}
			}
			log.Printf("feed: dropping unresolved handle %q", h)
			dropped = append(dropped, h)
			continue
		}
		if seen[res.ChannelID] {
			continue
		}
		seen[res.ChannelID] = true
		channels = append(channels, storage.Channel{
			ID:       res.ChannelID,
			Handle:   h,
			Platform: res.Platform,
		})
	}
	return channels, dropped, nil
}
