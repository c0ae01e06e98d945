package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"

	ythttp "ytfeed/http"
	"ytfeed/internal/retry"
)

type feedEntry struct {
	id        string
	published time.Time
}

func atomFeed(entries ...feedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Test Channel</title>
`)
	for _, e := range entries {
		fmt.Fprintf(&b, ` <entry>
  <id>yt:video:%s</id>
  <yt:videoId>%s</yt:videoId>
  <yt:channelId>%s</yt:channelId>
  <title>title %s</title>
  <published>%s</published>
 </entry>
`, e.id, e.id, testChannelID, e.id, e.published.Format(time.RFC3339))
	}
	b.WriteString("</feed>")
	return b.String()
}

func newFeedAdapter(t *testing.T, f *fakeAPI, feed http.HandlerFunc) *Adapter {
	t.Helper()
	api := httptest.NewServer(f.handler(t))
	t.Cleanup(api.Close)
	feeds := httptest.NewServer(feed)
	t.Cleanup(feeds.Close)

	cfg := ythttp.DefaultConfig()
	cfg.Retry = retry.NoRetry()
	cfg.RateLimiter.DefaultRPS = 0
	client := ythttp.New(cfg)
	t.Cleanup(func() { client.Close() })

	noRetry := retry.NoRetry()
	a, err := New(context.Background(), Config{
		APIKey:        "test-key",
		Retry:         &noRetry,
		Feed:          NewFeedLister(client, feeds.URL+"/feeds/videos.xml"),
		ClientOptions: []option.ClientOption{option.WithEndpoint(api.URL + "/")},
		Now:           func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestFetchUsesChannelFeed(t *testing.T) {
	f := &fakeAPI{videos: strings.Join([]string{
		videoJSON("long1", "2026-03-09T10:00:00Z", "PT12M30S"),
		videoJSON("short1", "2026-03-09T11:00:00Z", "PT45S"),
	}, ",")}
	a := newFeedAdapter(t, f, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") != testChannelID {
			t.Errorf("feed query = %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, atomFeed(
			feedEntry{"short1", testNow.Add(-time.Hour)},
			feedEntry{"long1", testNow.Add(-2 * time.Hour)},
		))
	})

	videos, err := a.FetchRecentUploads(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("FetchRecentUploads() error = %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "long1" {
		t.Errorf("FetchRecentUploads() = %+v, want long1", videos)
	}
	if calls := atomic.LoadInt32(&f.calls); calls != 1 {
		t.Errorf("API calls = %d, want only videos.list", calls)
	}
	if a.EstimatedQuota() != DefaultDailyQuota-1 {
		t.Errorf("EstimatedQuota() = %d", a.EstimatedQuota())
	}
}

func TestFetchFallsBackToPlaylist(t *testing.T) {
	full := make([]feedEntry, feedCapacity)
	for i := range full {
		full[i] = feedEntry{fmt.Sprintf("recent%d", i), testNow.Add(-time.Duration(i) * time.Hour)}
	}

	tests := []struct {
		name string
		feed http.HandlerFunc
	}{
		{"feed error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"feed not found", http.NotFound},
		{"not xml", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>consent</html>")
		}},
		{"full feed inside window", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, atomFeed(full...))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAPI{videos: videoJSON("long1", "2026-03-09T10:00:00Z", "PT12M30S")}
			a := newFeedAdapter(t, f, tt.feed)

			videos, err := a.FetchRecentUploads(context.Background(), testChannelID)
			if err != nil {
				t.Fatalf("FetchRecentUploads() error = %v", err)
			}
			if len(videos) != 1 || videos[0].ID != "long1" {
				t.Errorf("FetchRecentUploads() = %+v", videos)
			}
			if calls := atomic.LoadInt32(&f.calls); calls != 3 {
				t.Errorf("API calls = %d, want channels + playlistItems + videos", calls)
			}
		})
	}
}

func TestFeedListingGap(t *testing.T) {
	cutoff := testNow.Add(-7 * 24 * time.Hour)
	tests := []struct {
		name    string
		listing feedListing
		want    bool
	}{
		{"short feed", feedListing{total: 3, oldest: testNow.Add(-time.Hour)}, false},
		{"full feed reaching past cutoff", feedListing{total: feedCapacity, oldest: cutoff.Add(-time.Hour)}, false},
		{"full feed inside window", feedListing{total: feedCapacity, oldest: cutoff.Add(time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.listing.gap(cutoff); got != tt.want {
				t.Errorf("gap() = %v, want %v", got, tt.want)
			}
		})
	}
}
