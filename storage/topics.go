package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateTopic inserts topic and its channels in one transaction.
func (s *SQLStore) CreateTopic(ctx context.Context, topic Topic, channels []Channel) (Topic, error) {
	if strings.TrimSpace(topic.Title) == "" {
		return Topic{}, &StorageError{Op: "create", Entity: "topic", Err: fmt.Errorf("%w: empty title", ErrInvalidInput)}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			s.rebind("INSERT INTO topics (title, color, sort_order) VALUES (?, ?, ?) RETURNING id"),
			topic.Title, topic.Color, topic.Order).Scan(&id)
		if err != nil {
			return err
		}
		topic.ID = id
		for i := range channels {
			channels[i].TopicID = id
			channels[i].Position = i
		}
		return s.upsertChannels(ctx, tx, channels)
	})
	if err != nil {
		return Topic{}, &StorageError{Op: "create", Entity: "topic", Err: err}
	}
	return topic, nil
}

// MaxTopicOrder returns the highest topic rank, or 0 when there are no topics.
func (s *SQLStore) MaxTopicOrder(ctx context.Context) (int, error) {
	var maxOrder sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(sort_order) FROM topics").Scan(&maxOrder); err != nil {
		return 0, &StorageError{Op: "read", Entity: "topic", Err: err}
	}
	return int(maxOrder.Int64), nil
}

// ListTopics returns every topic with its channels.
func (s *SQLStore) ListTopics(ctx context.Context) ([]TopicChannels, error) {
	topics, err := s.queryTopics(ctx, s.db, "")
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "topic", Err: err}
	}
	channels, err := s.queryChannels(ctx, s.db, "", nil)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel", Err: err}
	}

	out := make([]TopicChannels, len(topics))
	idx := make(map[int64]int, len(topics))
	for i, t := range topics {
		out[i] = TopicChannels{Topic: t, Channels: []Channel{}}
		idx[t.ID] = i
	}
	for _, c := range channels {
		if i, ok := idx[c.TopicID]; ok {
			out[i].Channels = append(out[i].Channels, c)
		}
	}
	return out, nil
}

// LoadTopicTree returns every topic with its channels and videos.
func (s *SQLStore) LoadTopicTree(ctx context.Context) ([]TopicTree, error) {
	topics, err := s.queryTopics(ctx, s.db, "")
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "topic", Err: err}
	}
	return s.buildTrees(ctx, topics, "", nil)
}

// GetTopicTree returns one topic with its channels and videos.
func (s *SQLStore) GetTopicTree(ctx context.Context, topicID int64) (TopicTree, error) {
	topics, err := s.queryTopics(ctx, s.db, "WHERE id = ?", topicID)
	if err != nil {
		return TopicTree{}, &StorageError{Op: "read", Entity: "topic", ID: itoa(topicID), Err: err}
	}
	if len(topics) == 0 {
		return TopicTree{}, &StorageError{Op: "read", Entity: "topic", ID: itoa(topicID), Err: ErrNotFound}
	}
	trees, err := s.buildTrees(ctx, topics, "WHERE topic_id = ?", []any{topicID})
	if err != nil {
		return TopicTree{}, err
	}
	return trees[0], nil
}

// buildTrees attaches channels matching channelWhere, and their videos, to
// topics. Rows are read one query at a time so a single SQLite connection
// is never held by two result sets.
func (s *SQLStore) buildTrees(ctx context.Context, topics []Topic, channelWhere string, args []any) ([]TopicTree, error) {
	channels, err := s.queryChannels(ctx, s.db, channelWhere, args)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel", Err: err}
	}

	videoWhere := ""
	if channelWhere != "" {
		videoWhere = "WHERE channel_id IN (SELECT id FROM channels " + channelWhere + ")"
	}
	videos, err := s.queryVideos(ctx, s.db, videoWhere, args...)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "video", Err: err}
	}

	byChannel := make(map[string][]Video)
	for _, v := range videos {
		byChannel[v.ChannelID] = append(byChannel[v.ChannelID], v)
	}

	out := make([]TopicTree, len(topics))
	idx := make(map[int64]int, len(topics))
	for i, t := range topics {
		out[i] = TopicTree{Topic: t, Channels: []ChannelVideos{}}
		idx[t.ID] = i
	}
	for _, c := range channels {
		i, ok := idx[c.TopicID]
		if !ok {
			continue
		}
		vs := byChannel[c.ID]
		if vs == nil {
			vs = []Video{}
		}
		out[i].Channels = append(out[i].Channels, ChannelVideos{Channel: c, Videos: vs})
	}
	return out, nil
}

// ReorderTopics writes each topic's rank and deletes the removed topics in
// one transaction.
func (s *SQLStore) ReorderTopics(ctx context.Context, ranks []Topic, remove []int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range ranks {
			if _, err := tx.ExecContext(ctx, s.rebind("UPDATE topics SET sort_order = ? WHERE id = ?"), t.Order, t.ID); err != nil {
				return err
			}
		}
		return s.deleteTopics(ctx, tx, remove)
	})
	if err != nil {
		return &StorageError{Op: "update", Entity: "topic", Err: err}
	}
	return nil
}

// DeleteTopics deletes topics; channels and videos go with them.
func (s *SQLStore) DeleteTopics(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteTopics(ctx, tx, ids)
	})
	if err != nil {
		return &StorageError{Op: "delete", Entity: "topic", Err: err}
	}
	return nil
}

func (s *SQLStore) deleteTopics(ctx context.Context, q querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := q.ExecContext(ctx, s.rebind("DELETE FROM topics WHERE id IN ("+placeholders(len(ids))+")"), args...)
	return err
}

func (s *SQLStore) queryTopics(ctx context.Context, q querier, where string, args ...any) ([]Topic, error) {
	query := "SELECT id, title, color, sort_order FROM topics " + where + " ORDER BY sort_order ASC, id ASC"
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Title, &t.Color, &t.Order); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
