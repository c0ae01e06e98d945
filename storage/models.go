package storage

import (
	"time"

	"ytfeed/source"
)

// Topic is a user-defined group of channels.
type Topic struct {
	// ID is assigned by the store on creation.
	ID int64 `json:"id"`
	// Title is the display title.
	Title string `json:"title"`
	// Color is the display color as "#rrggbb".
	Color string `json:"color"`
	// Order is the ordering rank; lower ranks are shown first.
	Order int `json:"order"`
}

// Channel is a platform channel bound to one topic.
type Channel struct {
	// ID is the platform channel id ("UC..." or "vimeo:<user>").
	ID string `json:"id"`
	// Handle is the user-facing name the channel was resolved from.
	Handle string `json:"handle"`
	// TopicID is the owning topic.
	TopicID int64 `json:"topic_id"`
	// LastSynced is the time of the last successful fetch. The zero time
	// means the channel has never been synced.
	LastSynced time.Time `json:"last_synced"`
	// Platform selects the adapter used to fetch the channel.
	Platform source.Platform `json:"platform"`
	// Position is the channel's index in the topic's handle list.
	Position int `json:"position"`
}

// Video is a persisted upload.
type Video struct {
	ID           string          `json:"id"`
	ChannelID    string          `json:"channel_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ThumbnailURL string          `json:"thumbnail_url"`
	PublishedAt  time.Time       `json:"published_at"`
	Duration     time.Duration   `json:"duration"`
	Watched      bool            `json:"watched"`
	Platform     source.Platform `json:"platform"`
}

// VideoFromSource converts an adapter result into a video owned by channelID.
func VideoFromSource(channelID string, v source.Video) Video {
	return Video{
		ID:           v.ID,
		ChannelID:    channelID,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.ThumbnailURL,
		PublishedAt:  v.PublishedAt,
		Duration:     v.Duration,
		Platform:     v.Platform,
	}
}

// Summary is a cached summary of a video in one language.
type Summary struct {
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelVideos is a channel with its videos.
type ChannelVideos struct {
	Channel
	Videos []Video `json:"videos"`
}

// TopicTree is a topic with its channels and their videos.
type TopicTree struct {
	Topic
	Channels []ChannelVideos `json:"channels"`
}

// Videos returns the videos of every channel in the tree.
func (t TopicTree) Videos() []Video {
	var out []Video
	for _, c := range t.Channels {
		out = append(out, c.Videos...)
	}
	return out
}

// TopicChannels is a topic with its channels.
type TopicChannels struct {
	Topic
	Channels []Channel `json:"channels"`
}
