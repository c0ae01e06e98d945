package vimeo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ythttp "ytfeed/http"
	"ytfeed/internal/retry"
	"ytfeed/source"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const staffFeed = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Vimeo / Staff's videos</title>
  <link>https://vimeo.com/staff/videos</link>
  <item>
    <title>Long recent clip</title>
    <pubDate>Mon, 09 Mar 2026 10:00:00 +0000</pubDate>
    <link>https://vimeo.com/900001</link>
    <description><![CDATA[<p>A <b>great</b> clip</p>]]></description>
    <guid isPermaLink="false">tag:vimeo,2026-03-09:clip900001</guid>
    <media:content url="https://player.vimeo.com/video/900001" duration="754">
      <media:thumbnail url="https://i.vimeocdn.com/video/900001_640.jpg" width="640" height="360"/>
    </media:content>
  </item>
  <item>
    <title>Short clip</title>
    <pubDate>Mon, 09 Mar 2026 11:00:00 +0000</pubDate>
    <link>https://vimeo.com/900002</link>
    <guid isPermaLink="false">tag:vimeo,2026-03-09:clip900002</guid>
    <media:content url="https://player.vimeo.com/video/900002" duration="60"/>
  </item>
  <item>
    <title>Old clip</title>
    <pubDate>Sun, 01 Feb 2026 10:00:00 +0000</pubDate>
    <link>https://vimeo.com/900003</link>
    <media:content url="https://player.vimeo.com/video/900003" duration="900"/>
  </item>
  <item>
    <title>No duration</title>
    <pubDate>Mon, 09 Mar 2026 09:00:00 +0000</pubDate>
    <link>https://vimeo.com/900004</link>
  </item>
  <item>
    <title>Guid only</title>
    <pubDate>Tue, 10 Mar 2026 08:00:00 +0000</pubDate>
    <link>https://vimeo.com/staff/some-slug</link>
    <guid isPermaLink="false">tag:vimeo,2026-03-10:clip900005</guid>
    <media:content url="https://player.vimeo.com/video/900005" duration="300"/>
    <media:thumbnail url="https://i.vimeocdn.com/video/900005_640.jpg"/>
  </item>
</channel>
</rss>`

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/staff/videos/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, staffFeed)
		case "/notafeed/videos/rss":
			fmt.Fprint(w, "<html><body>hello</body></html>")
		case "/flaky/videos/rss":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := ythttp.DefaultConfig()
	cfg.Retry = retry.NoRetry()
	cfg.RateLimiter.DefaultRPS = 0
	cfg.CircuitBreaker.FailureThreshold = 100
	client := ythttp.New(cfg)
	t.Cleanup(func() { client.Close() })

	return New(client, WithBaseURL(srv.URL), WithClock(func() time.Time { return testNow }))
}

func TestResolveChannelID(t *testing.T) {
	a := newTestAdapter(t)

	tests := []struct {
		handle  string
		want    string
		wantErr error
	}{
		{"staff", "vimeo:staff", nil},
		{"@staff", "vimeo:staff", nil},
		{"  staff ", "vimeo:staff", nil},
		{"vimeo.com/staff", "vimeo:staff", nil},
		{"https://vimeo.com/staff", "vimeo:staff", nil},
		{"nobody", "", source.ErrChannelNotFound},
		{"notafeed", "", source.ErrChannelNotFound},
		{"", "", source.ErrChannelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			got, err := a.ResolveChannelID(context.Background(), tt.handle)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveChannelID(%q) error = %v, want %v", tt.handle, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveChannelID(%q) error = %v", tt.handle, err)
			}
			if got != tt.want {
				t.Errorf("ResolveChannelID(%q) = %q, want %q", tt.handle, got, tt.want)
			}
		})
	}
}

func TestNormalizeUser(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"staffpicks", "staffpicks"},
		{"@staffpicks", "staffpicks"},
		{" vimeo.com/staffpicks ", "staffpicks"},
		{"www.vimeo.com/staffpicks", "staffpicks"},
		{"https://vimeo.com/staffpicks", "staffpicks"},
		{"HTTPS://www.Vimeo.com/staffpicks/videos", "staffpicks"},
		{"http://vimeo.com/@staffpicks?share=copy", "staffpicks"},
		{"vimeo.com/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeUser(tt.in); got != tt.want {
			t.Errorf("normalizeUser(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveServerErrorIsNotNotFound(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ResolveChannelID(context.Background(), "flaky")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, source.ErrChannelNotFound) {
		t.Errorf("5xx should not be reported as not found: %v", err)
	}
}

func TestFetchRecentUploads(t *testing.T) {
	a := newTestAdapter(t)

	videos, err := a.FetchRecentUploads(context.Background(), "vimeo:staff")
	if err != nil {
		t.Fatalf("FetchRecentUploads() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2: %+v", len(videos), videos)
	}

	first := videos[0]
	if first.ID != "vimeo:900001" {
		t.Errorf("ID = %q, want vimeo:900001", first.ID)
	}
	if first.Duration != 754*time.Second {
		t.Errorf("Duration = %v", first.Duration)
	}
	if first.Description != "A great clip" {
		t.Errorf("Description = %q, want plain text", first.Description)
	}
	if first.ThumbnailURL != "https://i.vimeocdn.com/video/900001_640.jpg" {
		t.Errorf("ThumbnailURL = %q", first.ThumbnailURL)
	}
	if first.Platform != source.PlatformVimeo {
		t.Errorf("Platform = %v", first.Platform)
	}

	second := videos[1]
	if second.ID != "vimeo:900005" {
		t.Errorf("guid fallback ID = %q, want vimeo:900005", second.ID)
	}
	if second.ThumbnailURL != "https://i.vimeocdn.com/video/900005_640.jpg" {
		t.Errorf("item-level thumbnail = %q", second.ThumbnailURL)
	}
}

func TestFetchRecentUploadsUnknownUser(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.FetchRecentUploads(context.Background(), "vimeo:nobody")
	var adErr *source.AdapterError
	if !errors.As(err, &adErr) || adErr.Op != "fetch" {
		t.Fatalf("error = %v, want fetch AdapterError", err)
	}
	if !errors.Is(err, source.ErrChannelNotFound) {
		t.Errorf("error = %v, want ErrChannelNotFound", err)
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"plain":                     "plain",
		"  padded  ":                "padded",
		"<p>Hello <i>there</i></p>": "Hello there",
	}
	for in, want := range tests {
		if got := plainText(in); got != want {
			t.Errorf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}
