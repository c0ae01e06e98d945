package feed

import (
	"context"
	"fmt"
	"strings"

	"ytfeed/storage"
)

// LoadAllTopics returns the unread view from the store without touching
// the network.
func (e *Engine) LoadAllTopics(ctx context.Context) ([]TopicView, error) {
	trees, err := e.store.LoadTopicTree(ctx)
	if err != nil {
		return nil, err
	}
	return BuildUnreadView(trees), nil
}

// GetAllTopics returns every topic with its channels and no videos.
func (e *Engine) GetAllTopics(ctx context.Context) ([]TopicSummary, error) {
	topics, err := e.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSummaries(topics), nil
}

// CreateTopic resolves every handle, stores the topic with its channels,
// fetches each channel and returns the topic's videos, newest first.
//
// If any handle fails to resolve, nothing is stored and the error is a
// *ResolveError.
func (e *Engine) CreateTopic(ctx context.Context, title, handles string) ([]storage.Video, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidTopic)
	}
	list := SplitHandles(handles)
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no handles", ErrInvalidTopic)
	}

	channels, _, err := e.resolveHandles(ctx, list, true)
	if err != nil {
		return nil, err
	}

	maxOrder, err := e.store.MaxTopicOrder(ctx)
	if err != nil {
		return nil, err
	}
	topic, err := e.store.CreateTopic(ctx, storage.Topic{
		Title: title,
		Color: e.topicColor(),
		Order: maxOrder + 1,
	}, channels)
	if err != nil {
		return nil, err
	}

	for _, ch := range channels {
		if _, err := e.RefreshChannel(ctx, ch.ID, true); err != nil {
			return nil, err
		}
	}

	tree, err := e.store.GetTopicTree(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	videos := tree.Videos()
	SortVideosNewestFirst(videos)
	return videos, nil
}

// UpdateTopic replaces a topic's channels with the channels the handles
// resolve to. Handles no adapter resolves are dropped and returned rather
// than failing the edit, unlike CreateTopic.
//
// Videos watched under the old channels stay watched when the new channels
// bring back a video with the same ID.
func (e *Engine) UpdateTopic(ctx context.Context, topicID int64, handles string) ([]string, error) {
	if _, err := e.store.GetTopicTree(ctx, topicID); err != nil {
		return nil, err
	}

	channels, dropped, err := e.resolveHandles(ctx, SplitHandles(handles), false)
	if err != nil {
		return nil, err
	}

	carryover, err := e.store.ReplaceTopicChannels(ctx, topicID, channels)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		if _, err := e.RefreshChannel(ctx, ch.ID, true); err != nil {
			return nil, err
		}
	}
	if _, err := e.store.MarkVideosWatched(ctx, carryover); err != nil {
		return nil, err
	}
	return dropped, nil
}

// UpdateTopicsOrder stores the Order of each topic and deletes remove, in
// one transaction. Callers pass dense ranks 0..n-1 in display order.
func (e *Engine) UpdateTopicsOrder(ctx context.Context, topics []storage.Topic, remove []storage.Topic) error {
	return e.store.ReorderTopics(ctx, topics, topicIDs(remove))
}

// DeleteTopics deletes topics with their channels and videos.
func (e *Engine) DeleteTopics(ctx context.Context, topics []storage.Topic) error {
	return e.store.DeleteTopics(ctx, topicIDs(topics))
}

// DeleteOldVideos purges videos published before the retention window,
// watched or not, and returns how many were removed.
func (e *Engine) DeleteOldVideos(ctx context.Context) (int64, error) {
	return e.store.DeleteVideosPublishedBefore(ctx, e.now().Add(-e.retention))
}

// MarkVideoWatched marks the video with video.ID as watched. The flag only
// moves from false to true; video.Watched is ignored.
func (e *Engine) MarkVideoWatched(ctx context.Context, video storage.Video) error {
	return e.store.SetWatched(ctx, video.ID, true)
}

// GetVideo returns a stored video by ID.
func (e *Engine) GetVideo(ctx context.Context, id string) (storage.Video, error) {
	return e.store.GetVideo(ctx, id)
}

// WatchedHistory returns watched videos published within the history
// window, newest first.
func (e *Engine) WatchedHistory(ctx context.Context) ([]storage.Video, error) {
	return e.store.ListWatchedSince(ctx, e.now().Add(-e.historyWindow))
}

// TopicChangeRequest is one of AddTopicRequest, UpdateTopicRequest or
// DeleteTopicRequest.
type TopicChangeRequest interface {
	topicChange()
}

// AddTopicRequest creates a topic.
type AddTopicRequest struct {
	Title   string
	Handles string
}

// UpdateTopicRequest replaces a topic's channels.
type UpdateTopicRequest struct {
	TopicID int64
	Handles string
}

// DeleteTopicRequest deletes a topic.
type DeleteTopicRequest struct {
	TopicID int64
}

func (AddTopicRequest) topicChange()    {}
func (UpdateTopicRequest) topicChange() {}
func (DeleteTopicRequest) topicChange() {}

// ManageTopic applies a topic change request.
func (e *Engine) ManageTopic(ctx context.Context, req TopicChangeRequest) error {
	switch r := req.(type) {
	case AddTopicRequest:
		_, err := e.CreateTopic(ctx, r.Title, r.Handles)
		return err
	case UpdateTopicRequest:
		_, err := e.UpdateTopic(ctx, r.TopicID, r.Handles)
		return err
	case DeleteTopicRequest:
		return e.store.DeleteTopics(ctx, []int64{r.TopicID})
	default:
		return fmt.Errorf("%w: unsupported request %T", ErrInvalidTopic, req)
	}
}

func topicIDs(topics []storage.Topic) []int64 {
	ids := make([]int64, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	return ids
}
