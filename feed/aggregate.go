package feed

import (
	"sort"

	"ytfeed/storage"
)

// TopicView is a topic with its unread videos across all its channels.
type TopicView struct {
	storage.Topic
	Videos []storage.Video `json:"videos"`
}

// TopicSummary is a topic with its channels, for management screens.
type TopicSummary struct {
	storage.Topic
	Handles  []string          `json:"handles"`
	Channels []storage.Channel `json:"channels"`
}

// BuildUnreadView drops watched videos, drops topics left with no videos,
// sorts each topic's videos newest first and sorts topics by rank.
func BuildUnreadView(trees []storage.TopicTree) []TopicView {
	out := make([]TopicView, 0, len(trees))
	for _, t := range trees {
		var unread []storage.Video
		for _, c := range t.Channels {
			for _, v := range c.Videos {
				if !v.Watched {
					unread = append(unread, v)
				}
			}
		}
		if len(unread) == 0 {
			continue
		}
		SortVideosNewestFirst(unread)
		out = append(out, TopicView{Topic: t.Topic, Videos: unread})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return topicLess(out[i].Topic, out[j].Topic)
	})
	return out
}

// BuildSummaries lists each topic's channels and handles, topics by rank.
func BuildSummaries(topics []storage.TopicChannels) []TopicSummary {
	out := make([]TopicSummary, 0, len(topics))
	for _, t := range topics {
		s := TopicSummary{
			Topic:    t.Topic,
			Handles:  make([]string, 0, len(t.Channels)),
			Channels: make([]storage.Channel, 0, len(t.Channels)),
		}
		for _, c := range t.Channels {
			s.Handles = append(s.Handles, c.Handle)
			s.Channels = append(s.Channels, c)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return topicLess(out[i].Topic, out[j].Topic)
	})
	return out
}

// SortVideosNewestFirst sorts by publish time descending, then ID.
func SortVideosNewestFirst(videos []storage.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		a, b := videos[i], videos[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}

func topicLess(a, b storage.Topic) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.ID < b.ID
}
