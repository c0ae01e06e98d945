// Package storage provides the persisted store for topics, channels, videos
// and cached summaries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrUnsupportedDriver indicates Open was given an unknown driver name.
	ErrUnsupportedDriver = errors.New("storage: unsupported driver")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("create", "read", "update", "delete").
	Op string
	// Entity is the entity type ("topic", "channel", "video", "summary").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// Store is the persisted store used by the sync engine.
// Implementations must be safe for concurrent use.
type Store interface {
	TopicStore
	ChannelStore
	VideoStore
	SummaryStore

	// SupportsHighConcurrency reports whether many concurrent writers are
	// fine (PostgreSQL) or writes should stay sequential (SQLite).
	SupportsHighConcurrency() bool

	// Close releases any resources held by the store.
	Close() error
}

// TopicStore handles topics and the topic → channel → video tree.
type TopicStore interface {
	// CreateTopic persists topic and its channels in one transaction and
	// returns the topic with its assigned ID. Channels are stored in slice
	// order with their TopicID set to the new topic.
	CreateTopic(ctx context.Context, topic Topic, channels []Channel) (Topic, error)
	// MaxTopicOrder returns the highest ordering rank, or 0 with no topics.
	MaxTopicOrder(ctx context.Context) (int, error)
	// ListTopics returns every topic with its channels, ordered by rank.
	ListTopics(ctx context.Context) ([]TopicChannels, error)
	// LoadTopicTree returns every topic with its channels and all their
	// videos, newest video first.
	LoadTopicTree(ctx context.Context) ([]TopicTree, error)
	// GetTopicTree returns one topic with its channels and videos.
	GetTopicTree(ctx context.Context, topicID int64) (TopicTree, error)
	// ReorderTopics sets the rank of each topic in ranks and deletes the
	// topics in remove, in one transaction.
	ReorderTopics(ctx context.Context, ranks []Topic, remove []int64) error
	// DeleteTopics deletes topics by ID, cascading to channels and videos.
	DeleteTopics(ctx context.Context, ids []int64) error
}

// ChannelStore handles channels.
type ChannelStore interface {
	// GetChannel retrieves a channel by ID.
	GetChannel(ctx context.Context, id string) (Channel, error)
	// GetChannelVideos retrieves a channel with its videos, newest first.
	GetChannelVideos(ctx context.Context, id string) (ChannelVideos, error)
	// ListChannels returns every channel ordered by topic rank then position.
	ListChannels(ctx context.Context) ([]Channel, error)
	// UpsertChannels inserts channels, replacing the handle, topic,
	// platform and last-synced time of channels that already exist.
	UpsertChannels(ctx context.Context, channels []Channel) error
	// ReplaceTopicChannels collects the IDs of watched videos under the
	// topic's current channels, deletes those channels and inserts
	// channels in their place, in one transaction. It returns the watched IDs.
	ReplaceTopicChannels(ctx context.Context, topicID int64, channels []Channel) ([]string, error)
	// TouchChannel sets the channel's last-synced time to at, unless it is
	// already later.
	TouchChannel(ctx context.Context, id string, at time.Time) error
}

// VideoStore handles videos.
type VideoStore interface {
	// InsertVideos inserts videos, leaving existing rows with the same ID
	// untouched. It returns the number of rows inserted.
	InsertVideos(ctx context.Context, videos []Video) (int64, error)
	// GetVideo retrieves a video by ID.
	GetVideo(ctx context.Context, id string) (Video, error)
	// SetWatched writes the watched flag of one video.
	SetWatched(ctx context.Context, id string, watched bool) error
	// MarkVideosWatched sets watched on every listed video that exists and
	// returns how many rows matched.
	MarkVideosWatched(ctx context.Context, ids []string) (int64, error)
	// DeleteVideosPublishedBefore deletes videos published before cutoff,
	// watched or not, and returns the number deleted.
	DeleteVideosPublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// ListWatchedSince returns watched videos published at or after since,
	// newest first.
	ListWatchedSince(ctx context.Context, since time.Time) ([]Video, error)
}

// SummaryStore caches summaries by video and language.
type SummaryStore interface {
	// GetSummary returns ErrNotFound when no summary is cached.
	GetSummary(ctx context.Context, videoID, language string) (Summary, error)
	// SaveSummary stores or replaces a summary.
	SaveSummary(ctx context.Context, summary Summary) error
}
