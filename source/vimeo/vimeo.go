// Package vimeo implements the Vimeo source adapter. It reads the public
// per-user RSS feed, so it needs no API credentials.
package vimeo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	ythttp "ytfeed/http"
	"ytfeed/source"
)

// DefaultBaseURL is the site the feeds are fetched from.
const DefaultBaseURL = "https://vimeo.com"

// IDPrefix marks channel and video ids that belong to Vimeo.
const IDPrefix = "vimeo:"

var clipIDRegex = regexp.MustCompile(`clip(\d+)`)

// Adapter implements source.Adapter for Vimeo.
type Adapter struct {
	client      *ythttp.Client
	baseURL     string
	retention   time.Duration
	minDuration time.Duration
	now         func() time.Time
}

var _ source.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithWindow sets the retention window and the minimum duration.
func WithWindow(retention, minDuration time.Duration) Option {
	return func(a *Adapter) {
		a.retention = retention
		a.minDuration = minDuration
	}
}

// New creates a Vimeo adapter that fetches feeds through client.
func New(client *ythttp.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:      client,
		baseURL:     DefaultBaseURL,
		retention:   source.DefaultRetention,
		minDuration: source.MinDuration,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Platform reports source.PlatformVimeo.
func (a *Adapter) Platform() source.Platform { return source.PlatformVimeo }

// ResolveChannelID checks that the user's video feed exists and returns
// "vimeo:<user>" as the channel id.
func (a *Adapter) ResolveChannelID(ctx context.Context, handle string) (string, error) {
	user := normalizeUser(handle)
	if user == "" {
		return "", &source.AdapterError{Platform: source.PlatformVimeo, Op: "resolve", Target: handle, Err: source.ErrChannelNotFound}
	}
	if _, err := a.fetchFeed(ctx, user); err != nil {
		return "", &source.AdapterError{Platform: source.PlatformVimeo, Op: "resolve", Target: handle, Err: err}
	}
	return IDPrefix + user, nil
}

// FetchRecentUploads reads the user's feed and returns the uploads within
// the retention window that are longer than the minimum duration.
func (a *Adapter) FetchRecentUploads(ctx context.Context, channelID string) ([]source.Video, error) {
	user := normalizeUser(strings.TrimPrefix(channelID, IDPrefix))
	feed, err := a.fetchFeed(ctx, user)
	if err != nil {
		return nil, &source.AdapterError{Platform: source.PlatformVimeo, Op: "fetch", Target: channelID, Err: err}
	}

	videos := make([]source.Video, 0, len(feed.Items))
	for _, item := range feed.Items {
		v, ok := convertItem(item)
		if !ok {
			continue
		}
		videos = append(videos, v)
	}
	return source.FilterRecent(videos, a.now(), a.retention, a.minDuration), nil
}

func (a *Adapter) feedURL(user string) string {
	return a.baseURL + "/" + url.PathEscape(user) + "/videos/rss"
}

func (a *Adapter) fetchFeed(ctx context.Context, user string) (*gofeed.Feed, error) {
	resp, err := a.client.Get(ctx, a.feedURL(user))
	if err != nil {
		if ythttp.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", source.ErrChannelNotFound, user)
		}
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, fmt.Errorf("%w: %s is not a feed", source.ErrChannelNotFound, user)
		}
		return nil, fmt.Errorf("%w: parse feed: %v", source.ErrInvalidResponse, err)
	}
	return feed, nil
}

// normalizeUser reduces a handle to the bare user name. It accepts "user",
// "@user" and profile URLs such as "vimeo.com/user" or
// "https://www.vimeo.com/user/videos".
func normalizeUser(handle string) string {
	h := strings.TrimSpace(handle)
	for _, scheme := range []string{"https://", "http://"} {
		if len(h) >= len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
			h = h[len(scheme):]
		}
	}
	for _, host := range []string{"www.", "vimeo.com/"} {
		if len(h) >= len(host) && strings.EqualFold(h[:len(host)], host) {
			h = h[len(host):]
		}
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	return strings.TrimPrefix(h, "@")
}

// convertItem maps a feed item to a source.Video. Items without a clip id,
// publish time or duration are skipped.
func convertItem(item *gofeed.Item) (source.Video, bool) {
	id := clipID(item)
	if id == "" {
		log.Printf("vimeo: skipping item %q: no clip id", item.Title)
		return source.Video{}, false
	}
	if item.PublishedParsed == nil {
		log.Printf("vimeo: skipping %s: no publish date", id)
		return source.Video{}, false
	}
	duration, ok := mediaDuration(item.Extensions)
	if !ok {
		log.Printf("vimeo: skipping %s: no duration", id)
		return source.Video{}, false
	}

	return source.Video{
		ID:           IDPrefix + id,
		Title:        strings.TrimSpace(item.Title),
		Description:  plainText(item.Description),
		ThumbnailURL: thumbnail(item),
		PublishedAt:  item.PublishedParsed.UTC(),
		Duration:     duration,
		Platform:     source.PlatformVimeo,
	}, true
}

// clipID takes the numeric id from the item link, falling back to the
// "clip<id>" guid.
func clipID(item *gofeed.Item) string {
	if u, err := url.Parse(item.Link); err == nil {
		last := path.Base(u.Path)
		if _, err := strconv.ParseUint(last, 10, 64); err == nil {
			return last
		}
	}
	if m := clipIDRegex.FindStringSubmatch(item.GUID); m != nil {
		return m[1]
	}
	return ""
}

func mediaExt(exts ext.Extensions, name string) []ext.Extension {
	if exts == nil {
		return nil
	}
	return exts["media"][name]
}

// mediaDuration reads the duration attribute of media:content, in seconds.
func mediaDuration(exts ext.Extensions) (time.Duration, bool) {
	for _, c := range mediaExt(exts, "content") {
		raw := c.Attrs["duration"]
		if raw == "" {
			continue
		}
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}

// thumbnail reads media:thumbnail, either at item level or nested in
// media:content, and falls back to the item image.
func thumbnail(item *gofeed.Item) string {
	for _, t := range mediaExt(item.Extensions, "thumbnail") {
		if u := t.Attrs["url"]; u != "" {
			return u
		}
	}
	for _, c := range mediaExt(item.Extensions, "content") {
		for _, t := range c.Children["thumbnail"] {
			if u := t.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

// plainText strips the HTML Vimeo puts in item descriptions.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
