package youtube

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	ythttp "ytfeed/http"
	"ytfeed/source"
)

// DefaultFeedURL is the channel Atom feed endpoint.
const DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// feedCapacity is the number of entries YouTube keeps in a channel feed.
const feedCapacity = 15

// FeedLister lists a channel's latest uploads from its public Atom feed.
// The feed costs no API quota but holds only the 15 most recent uploads
// and carries no durations, so it replaces the uploads playlist lookup
// and videos.list is still needed for details.
type FeedLister struct {
	client  *ythttp.Client
	feedURL string
}

// NewFeedLister creates a lister fetching feeds through client. An empty
// feedURL means DefaultFeedURL.
func NewFeedLister(client *ythttp.Client, feedURL string) *FeedLister {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &FeedLister{client: client, feedURL: feedURL}
}

// feedListing is the result of one feed read.
type feedListing struct {
	ids    []string
	oldest time.Time
	total  int
}

// gap reports whether uploads published after cutoff may have been pushed
// out of the feed: the feed is full and even its oldest entry is newer
// than cutoff.
func (l feedListing) gap(cutoff time.Time) bool {
	return l.total >= feedCapacity && l.oldest.After(cutoff)
}

func (f *FeedLister) list(ctx context.Context, channelID string) (feedListing, error) {
	u := f.feedURL + "?channel_id=" + url.QueryEscape(channelID)
	resp, err := f.client.Get(ctx, u)
	if err != nil {
		if ythttp.StatusCode(err) == http.StatusNotFound {
			return feedListing{}, source.ErrChannelNotFound
		}
		return feedListing{}, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return feedListing{}, fmt.Errorf("%w: parse channel feed: %v", source.ErrInvalidResponse, err)
	}

	var l feedListing
	for _, item := range feed.Items {
		id := feedVideoID(item)
		if id == "" {
			continue
		}
		l.ids = append(l.ids, id)
		if item.PublishedParsed != nil && (l.oldest.IsZero() || item.PublishedParsed.Before(l.oldest)) {
			l.oldest = *item.PublishedParsed
		}
	}
	l.total = len(feed.Items)
	return l, nil
}

// feedVideoID reads <yt:videoId>, falling back to the "yt:video:<id>" entry id.
func feedVideoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if v := yt["videoId"]; len(v) > 0 && v[0].Value != "" {
			return strings.TrimSpace(v[0].Value)
		}
	}
	if id, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return id
	}
	return ""
}
