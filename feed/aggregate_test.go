package feed

import (
	"testing"
	"time"

	"ytfeed/storage"
)

func sv(id string, age time.Duration, watched bool) storage.Video {
	return storage.Video{ID: id, PublishedAt: t0.Add(-age), Watched: watched}
}

func TestBuildUnreadView(t *testing.T) {
	trees := []storage.TopicTree{
		{
			Topic: storage.Topic{ID: 1, Title: "late", Order: 5},
			Channels: []storage.ChannelVideos{
				{Channel: storage.Channel{ID: "c1"}, Videos: []storage.Video{sv("x", time.Hour, false)}},
			},
		},
		{
			Topic: storage.Topic{ID: 2, Title: "all watched", Order: 0},
			Channels: []storage.ChannelVideos{
				{Channel: storage.Channel{ID: "c2"}, Videos: []storage.Video{sv("w1", time.Hour, true), sv("w2", 2*time.Hour, true)}},
			},
		},
		{
			Topic: storage.Topic{ID: 3, Title: "mixed", Order: 1},
			Channels: []storage.ChannelVideos{
				{Channel: storage.Channel{ID: "c3"}, Videos: []storage.Video{sv("m1", 3*time.Hour, false), sv("m2", time.Hour, true)}},
				{Channel: storage.Channel{ID: "c4"}, Videos: []storage.Video{sv("m3", time.Minute, false), sv("m0", 3*time.Hour, false)}},
			},
		},
		{
			Topic:    storage.Topic{ID: 4, Title: "empty", Order: 2},
			Channels: []storage.ChannelVideos{{Channel: storage.Channel{ID: "c5"}}},
		},
	}

	view := BuildUnreadView(trees)
	if len(view) != 2 {
		t.Fatalf("BuildUnreadView() returned %d topics, want 2: %+v", len(view), view)
	}
	if view[0].Title != "mixed" || view[1].Title != "late" {
		t.Errorf("topic order = %s, %s", view[0].Title, view[1].Title)
	}
	if got := videoIDs(view[0].Videos); !equalIDs(got, []string{"m3", "m0", "m1"}) {
		t.Errorf("mixed videos = %v, want [m3 m0 m1]", got)
	}
	for _, tv := range view {
		for _, v := range tv.Videos {
			if v.Watched {
				t.Errorf("watched video %s in unread view", v.ID)
			}
		}
	}
}

func TestBuildSummaries(t *testing.T) {
	topics := []storage.TopicChannels{
		{Topic: storage.Topic{ID: 2, Title: "b", Order: 1}, Channels: []storage.Channel{{ID: "UC2", Handle: "@two"}}},
		{Topic: storage.Topic{ID: 1, Title: "a", Order: 1}, Channels: []storage.Channel{{ID: "UC1", Handle: "@one"}, {ID: "UC3", Handle: "@three"}}},
		{Topic: storage.Topic{ID: 3, Title: "c", Order: 0}},
	}
	got := BuildSummaries(topics)
	if len(got) != 3 || got[0].Title != "c" || got[1].Title != "a" || got[2].Title != "b" {
		t.Fatalf("BuildSummaries() order = %+v", got)
	}
	if !equalIDs(got[1].Handles, []string{"@one", "@three"}) {
		t.Errorf("handles = %v", got[1].Handles)
	}
	if got[0].Handles == nil || got[0].Channels == nil {
		t.Error("topic without channels should have empty, non-nil lists")
	}
}

func TestSortVideosNewestFirst(t *testing.T) {
	videos := []storage.Video{
		sv("b", time.Hour, false),
		sv("c", 2*time.Hour, false),
		sv("a", time.Hour, false),
		sv("d", time.Minute, false),
	}
	SortVideosNewestFirst(videos)
	if got := videoIDs(videos); !equalIDs(got, []string{"d", "a", "b", "c"}) {
		t.Errorf("SortVideosNewestFirst() = %v, want [d a b c]", got)
	}
}
