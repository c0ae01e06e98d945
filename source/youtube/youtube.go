// Package youtube implements the YouTube source adapter on top of the
// YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytfeed/internal/retry"
	"ytfeed/source"
)

// DefaultDailyQuota is the Data API quota granted to a project per day.
const DefaultDailyQuota = 10000

// maxPlaylistResults is the page size used for the uploads playlist.
const maxPlaylistResults = 50

var channelIDRegex = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

// Config configures the adapter.
type Config struct {
	// APIKey is the Data API key. Required.
	APIKey string
	// QuotaReserve is the number of quota units kept unused; once the
	// estimate drops below it the adapter stops calling the API.
	QuotaReserve int
	// DailyQuota is the estimated daily quota. Zero means DefaultDailyQuota.
	DailyQuota int
	// Retention and MinDuration bound which uploads are returned.
	// Zero values mean source.DefaultRetention and source.MinDuration.
	Retention   time.Duration
	MinDuration time.Duration
	// Retry configures retries of individual API calls. Nil means retry.DefaultConfig.
	Retry *retry.Config
	// Scraper resolves handles from the public channel page when the API
	// cannot be used. Optional.
	Scraper *Scraper
	// Feed lists recent uploads from the channel feed instead of the
	// uploads playlist, saving two quota units per fetch. Optional.
	Feed *FeedLister
	// ClientOptions are passed to youtube.NewService after the API key.
	ClientOptions []option.ClientOption
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Adapter implements source.Adapter for YouTube.
// It is safe for concurrent use.
type Adapter struct {
	service *youtube.Service
	cfg     Config

	mu             sync.Mutex
	estimatedQuota int
	lastQuotaReset time.Time
	quotaExhausted bool
}

var _ source.Adapter = (*Adapter)(nil)

// New creates a YouTube adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube: api key required")
	}
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = DefaultDailyQuota
	}
	if cfg.Retention <= 0 {
		cfg.Retention = source.DefaultRetention
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = source.MinDuration
	}
	if cfg.Retry == nil {
		def := retry.DefaultConfig()
		cfg.Retry = &def
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	return &Adapter{
		service:        service,
		cfg:            cfg,
		estimatedQuota: cfg.DailyQuota,
		lastQuotaReset: cfg.Now(),
	}, nil
}

// Platform reports source.PlatformYouTube.
func (a *Adapter) Platform() source.Platform { return source.PlatformYouTube }

// ResolveChannelID maps a handle such as "@name" to a channel id using
// channels.list(forHandle). A raw channel id is returned unchanged. When
// the API fails for a reason other than not-found, or the quota is used
// up, the configured scraper is tried.
func (a *Adapter) ResolveChannelID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", &source.AdapterError{Platform: source.PlatformYouTube, Op: "resolve", Target: handle, Err: source.ErrChannelNotFound}
	}
	if channelIDRegex.MatchString(handle) {
		return handle, nil
	}

	var id string
	err := a.checkQuota()
	if err == nil {
		id, err = a.channelIDForHandle(ctx, handle)
	}
	if err == nil {
		return id, nil
	}
	if errors.Is(err, source.ErrChannelNotFound) || ctx.Err() != nil || a.cfg.Scraper == nil {
		return "", &source.AdapterError{Platform: source.PlatformYouTube, Op: "resolve", Target: handle, Err: err}
	}

	log.Printf("youtube: api lookup of %q failed (%v), scraping channel page", handle, err)
	id, scrapeErr := a.cfg.Scraper.ResolveHandle(ctx, handle)
	if scrapeErr != nil {
		return "", &source.AdapterError{Platform: source.PlatformYouTube, Op: "resolve", Target: handle, Err: scrapeErr}
	}
	return id, nil
}

func (a *Adapter) channelIDForHandle(ctx context.Context, handle string) (string, error) {
	var channelID string
	err := retry.Do(ctx, *a.cfg.Retry, a.classify, func(ctx context.Context) error {
		resp, err := a.service.Channels.List([]string{"id"}).
			ForHandle(handle).
			Context(ctx).
			Do()
		if err != nil {
			return a.apiError(err)
		}
		a.trackQuotaUsage(1)

		if len(resp.Items) == 0 {
			return source.ErrChannelNotFound
		}
		channelID = resp.Items[0].Id
		return nil
	})
	return channelID, err
}

// FetchRecentUploads lists the channel's uploads playlist and returns the
// uploads published within the retention window that are longer than the
// minimum duration. Items whose duration or publish time cannot be parsed
// are skipped.
func (a *Adapter) FetchRecentUploads(ctx context.Context, channelID string) ([]source.Video, error) {
	wrap := func(err error) error {
		return &source.AdapterError{Platform: source.PlatformYouTube, Op: "fetch", Target: channelID, Err: err}
	}

	if err := a.checkQuota(); err != nil {
		return nil, wrap(err)
	}

	videoIDs, err := a.recentVideoIDs(ctx, channelID)
	if err != nil {
		return nil, wrap(err)
	}
	if len(videoIDs) == 0 {
		return []source.Video{}, nil
	}

	videos, err := a.videoDetails(ctx, videoIDs)
	if err != nil {
		return nil, wrap(err)
	}

	return source.FilterRecent(videos, a.cfg.Now(), a.cfg.Retention, a.cfg.MinDuration), nil
}

// recentVideoIDs lists the channel's latest upload ids, from the feed when
// one is configured and it covers the retention window, otherwise from
// the uploads playlist.
func (a *Adapter) recentVideoIDs(ctx context.Context, channelID string) ([]string, error) {
	if a.cfg.Feed != nil {
		listing, err := a.cfg.Feed.list(ctx, channelID)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Printf("youtube: feed for %s failed, using uploads playlist: %v", channelID, err)
		case listing.gap(a.cfg.Now().Add(-a.cfg.Retention)):
			log.Printf("youtube: feed for %s does not reach back %s, using uploads playlist", channelID, a.cfg.Retention)
		default:
			return listing.ids, nil
		}
	}

	playlistID, err := a.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return a.playlistVideoIDs(ctx, playlistID)
}

func (a *Adapter) uploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	var playlistID string
	err := retry.Do(ctx, *a.cfg.Retry, a.classify, func(ctx context.Context) error {
		resp, err := a.service.Channels.List([]string{"contentDetails"}).
			Id(channelID).
			Context(ctx).
			Do()
		if err != nil {
			return a.apiError(err)
		}
		a.trackQuotaUsage(1)

		if len(resp.Items) == 0 {
			return source.ErrChannelNotFound
		}
		cd := resp.Items[0].ContentDetails
		if cd == nil || cd.RelatedPlaylists == nil || cd.RelatedPlaylists.Uploads == "" {
			return retry.Permanent(fmt.Errorf("%w: channel %s has no uploads playlist", source.ErrInvalidResponse, channelID))
		}
		playlistID = cd.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, err
}

// playlistVideoIDs reads the first page of the playlist; uploads are listed
// newest first so one page covers the retention window.
func (a *Adapter) playlistVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	err := retry.Do(ctx, *a.cfg.Retry, a.classify, func(ctx context.Context) error {
		resp, err := a.service.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(maxPlaylistResults).
			Context(ctx).
			Do()
		if err != nil {
			return a.apiError(err)
		}
		a.trackQuotaUsage(1)

		ids = ids[:0]
		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		return nil
	})
	return ids, err
}

func (a *Adapter) videoDetails(ctx context.Context, ids []string) ([]source.Video, error) {
	var videos []source.Video
	err := retry.Do(ctx, *a.cfg.Retry, a.classify, func(ctx context.Context) error {
		resp, err := a.service.Videos.List([]string{"snippet", "contentDetails"}).
			Id(ids...).
			Context(ctx).
			Do()
		if err != nil {
			return a.apiError(err)
		}
		a.trackQuotaUsage(1)

		videos = videos[:0]
		for _, item := range resp.Items {
			v, ok := convertVideo(item)
			if !ok {
				continue
			}
			videos = append(videos, v)
		}
		return nil
	})
	return videos, err
}

// convertVideo maps an API video to a source.Video. It reports false when
// the item lacks a parsable duration or publish time.
func convertVideo(item *youtube.Video) (source.Video, bool) {
	if item == nil || item.Snippet == nil || item.ContentDetails == nil {
		return source.Video{}, false
	}
	duration, err := source.ParseISODuration(item.ContentDetails.Duration)
	if err != nil {
		log.Printf("youtube: skipping %s: %v", item.Id, err)
		return source.Video{}, false
	}
	published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		log.Printf("youtube: skipping %s: bad publishedAt %q", item.Id, item.Snippet.PublishedAt)
		return source.Video{}, false
	}

	return source.Video{
		ID:           item.Id,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
		PublishedAt:  published.UTC(),
		Duration:     duration,
		Platform:     source.PlatformYouTube,
	}, true
}

// thumbnailURL prefers the medium thumbnail.
func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Medium, t.High, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// apiError maps Data API errors to source sentinels. A quota error marks
// the quota as exhausted until the next daily reset.
func (a *Adapter) apiError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return retry.Permanent(fmt.Errorf("%w: %v", source.ErrChannelNotFound, gerr))
	case hasReason(gerr, "quotaExceeded", "dailyLimitExceeded"):
		a.mu.Lock()
		if !a.quotaExhausted {
			log.Printf("youtube: quota exhausted by API response")
		}
		a.quotaExhausted = true
		a.mu.Unlock()
		return retry.Permanent(fmt.Errorf("%w: %v", source.ErrQuotaExhausted, gerr))
	case hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded"):
		return err
	case gerr.Code >= 400 && gerr.Code < 500:
		return retry.Permanent(err)
	default:
		return err
	}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

// classify retries everything except not-found, quota and permanent errors.
func (a *Adapter) classify(err error) bool {
	if errors.Is(err, source.ErrChannelNotFound) || errors.Is(err, source.ErrQuotaExhausted) {
		return false
	}
	return retry.IsRetryable(err)
}

// checkQuota returns ErrQuotaExhausted while the estimated quota is below
// the reserve.
func (a *Adapter) checkQuota() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetQuotaIfNewDay()
	if a.quotaExhausted {
		return source.ErrQuotaExhausted
	}
	return nil
}

// resetQuotaIfNewDay must be called with mu held.
func (a *Adapter) resetQuotaIfNewDay() {
	if a.cfg.Now().Sub(a.lastQuotaReset) > 24*time.Hour {
		a.estimatedQuota = a.cfg.DailyQuota
		a.lastQuotaReset = a.cfg.Now()
		if a.quotaExhausted {
			log.Printf("youtube: quota reset (new day)")
		}
		a.quotaExhausted = false
	}
}

// trackQuotaUsage updates the estimated quota and marks it exhausted once
// it falls below the reserve.
func (a *Adapter) trackQuotaUsage(units int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetQuotaIfNewDay()
	a.estimatedQuota -= units
	if a.estimatedQuota < a.cfg.QuotaReserve && !a.quotaExhausted {
		log.Printf("youtube: quota exhausted (remaining: %d, reserve: %d)", a.estimatedQuota, a.cfg.QuotaReserve)
		a.quotaExhausted = true
	}
}

// EstimatedQuota returns the estimated remaining quota units.
func (a *Adapter) EstimatedQuota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimatedQuota
}

// QuotaExhausted reports whether API calls are currently suspended.
func (a *Adapter) QuotaExhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quotaExhausted
}
