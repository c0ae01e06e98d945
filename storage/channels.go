package storage

import (
	"context"
	"database/sql"
	"time"

	"ytfeed/source"
)

const channelColumns = "id, handle, topic_id, last_synced, platform, position"

// GetChannel retrieves a channel by ID.
func (s *SQLStore) GetChannel(ctx context.Context, id string) (Channel, error) {
	channels, err := s.queryChannels(ctx, s.db, "WHERE id = ?", []any{id})
	if err != nil {
		return Channel{}, &StorageError{Op: "read", Entity: "channel", ID: id, Err: err}
	}
	if len(channels) == 0 {
		return Channel{}, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	return channels[0], nil
}

// GetChannelVideos retrieves a channel with its videos, newest first.
func (s *SQLStore) GetChannelVideos(ctx context.Context, id string) (ChannelVideos, error) {
	c, err := s.GetChannel(ctx, id)
	if err != nil {
		return ChannelVideos{}, err
	}
	videos, err := s.queryVideos(ctx, s.db, "WHERE channel_id = ?", id)
	if err != nil {
		return ChannelVideos{}, &StorageError{Op: "read", Entity: "video", ID: id, Err: err}
	}
	if videos == nil {
		videos = []Video{}
	}
	return ChannelVideos{Channel: c, Videos: videos}, nil
}

// ListChannels returns every channel ordered by topic rank then position.
func (s *SQLStore) ListChannels(ctx context.Context) ([]Channel, error) {
	query := "SELECT c.id, c.handle, c.topic_id, c.last_synced, c.platform, c.position " +
		"FROM channels c JOIN topics t ON t.id = c.topic_id " +
		"ORDER BY t.sort_order ASC, t.id ASC, c.position ASC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel", Err: err}
	}
	defer rows.Close()
	channels, err := scanChannels(rows)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel", Err: err}
	}
	return channels, nil
}

// UpsertChannels inserts or replaces channels.
func (s *SQLStore) UpsertChannels(ctx context.Context, channels []Channel) error {
	if len(channels) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.upsertChannels(ctx, tx, channels)
	})
	if err != nil {
		return &StorageError{Op: "update", Entity: "channel", Err: err}
	}
	return nil
}

func (s *SQLStore) upsertChannels(ctx context.Context, q querier, channels []Channel) error {
	query := s.rebind(`INSERT INTO channels (id, handle, topic_id, last_synced, platform, position)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handle = excluded.handle,
			topic_id = excluded.topic_id,
			last_synced = excluded.last_synced,
			platform = excluded.platform,
			position = excluded.position`)
	for _, c := range channels {
		if c.ID == "" {
			return ErrInvalidInput
		}
		_, err := q.ExecContext(ctx, query,
			c.ID, c.Handle, c.TopicID, toMillis(c.LastSynced), platformTag(c.Platform), c.Position)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceTopicChannels swaps the topic's channels for channels and returns
// the IDs of videos that were watched under the old channels.
func (s *SQLStore) ReplaceTopicChannels(ctx context.Context, topicID int64, channels []Channel) ([]string, error) {
	var watched []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.rebind(
			"SELECT v.id FROM videos v JOIN channels c ON c.id = v.channel_id "+
				"WHERE c.topic_id = ? AND v.watched = 1 ORDER BY v.id"), topicID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			watched = append(watched, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM channels WHERE topic_id = ?"), topicID); err != nil {
			return err
		}
		for i := range channels {
			channels[i].TopicID = topicID
			channels[i].Position = i
		}
		return s.upsertChannels(ctx, tx, channels)
	})
	if err != nil {
		return nil, &StorageError{Op: "update", Entity: "topic", ID: itoa(topicID), Err: err}
	}
	return watched, nil
}

// TouchChannel moves the channel's last-synced time forward to at.
// An earlier at leaves the row unchanged.
func (s *SQLStore) TouchChannel(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE channels SET last_synced = ? WHERE id = ? AND last_synced < ?"),
		toMillis(at), id, toMillis(at))
	if err != nil {
		return &StorageError{Op: "update", Entity: "channel", ID: id, Err: err}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetChannel(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *SQLStore) queryChannels(ctx context.Context, q querier, where string, args []any) ([]Channel, error) {
	query := "SELECT " + channelColumns + " FROM channels " + where + " ORDER BY topic_id ASC, position ASC"
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func scanChannels(rows *sql.Rows) ([]Channel, error) {
	var channels []Channel
	for rows.Next() {
		var (
			c        Channel
			synced   int64
			platform string
		)
		if err := rows.Scan(&c.ID, &c.Handle, &c.TopicID, &synced, &platform, &c.Position); err != nil {
			return nil, err
		}
		c.LastSynced = fromMillis(synced)
		c.Platform = source.ParsePlatform(platform)
		channels = append(channels, c)
	}
	return channels, rows.Err()
}
