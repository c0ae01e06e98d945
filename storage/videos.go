package storage

import (
	"context"
	"database/sql"
	"time"

	"ytfeed/source"
)

const videoColumns = "id, channel_id, title, description, thumbnail_url, published_at, duration_ms, watched, platform"

// InsertVideos inserts videos whose IDs are not stored yet. Existing rows,
// including their watched flag, are left as they are.
func (s *SQLStore) InsertVideos(ctx context.Context, videos []Video) (int64, error) {
	if len(videos) == 0 {
		return 0, nil
	}
	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind("INSERT INTO videos (" + videoColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING")
		for _, v := range videos {
			if v.ID == "" || v.ChannelID == "" {
				return ErrInvalidInput
			}
			res, err := tx.ExecContext(ctx, query,
				v.ID, v.ChannelID, v.Title, v.Description, v.ThumbnailURL,
				toMillis(v.PublishedAt), v.Duration.Milliseconds(), boolToInt(v.Watched), platformTag(v.Platform))
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "create", Entity: "video", Err: err}
	}
	return inserted, nil
}

// GetVideo retrieves a video by ID.
func (s *SQLStore) GetVideo(ctx context.Context, id string) (Video, error) {
	videos, err := s.queryVideos(ctx, s.db, "WHERE id = ?", id)
	if err != nil {
		return Video{}, &StorageError{Op: "read", Entity: "video", ID: id, Err: err}
	}
	if len(videos) == 0 {
		return Video{}, &StorageError{Op: "read", Entity: "video", ID: id, Err: ErrNotFound}
	}
	return videos[0], nil
}

// SetWatched writes the watched flag of one video.
func (s *SQLStore) SetWatched(ctx context.Context, id string, watched bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE videos SET watched = ? WHERE id = ?"), boolToInt(watched), id)
	if err != nil {
		return &StorageError{Op: "update", Entity: "video", ID: id, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "update", Entity: "video", ID: id, Err: ErrNotFound}
	}
	return nil
}

// MarkVideosWatched sets watched on each listed video that exists.
func (s *SQLStore) MarkVideosWatched(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE videos SET watched = 1 WHERE id IN ("+placeholders(len(ids))+")"), args...)
	if err != nil {
		return 0, &StorageError{Op: "update", Entity: "video", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteVideosPublishedBefore removes videos published before cutoff.
func (s *SQLStore) DeleteVideosPublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM videos WHERE published_at < ?"), toMillis(cutoff))
	if err != nil {
		return 0, &StorageError{Op: "delete", Entity: "video", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListWatchedSince returns watched videos published at or after since.
func (s *SQLStore) ListWatchedSince(ctx context.Context, since time.Time) ([]Video, error) {
	videos, err := s.queryVideos(ctx, s.db, "WHERE watched = 1 AND published_at >= ?", toMillis(since))
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "video", Err: err}
	}
	if videos == nil {
		videos = []Video{}
	}
	return videos, nil
}

func (s *SQLStore) queryVideos(ctx context.Context, q querier, where string, args ...any) ([]Video, error) {
	query := "SELECT " + videoColumns + " FROM videos " + where + " ORDER BY published_at DESC, id ASC"
	rows, err := q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var (
			v          Video
			published  int64
			durationMS int64
			watched    int64
			tag        string
		)
		err := rows.Scan(&v.ID, &v.ChannelID, &v.Title, &v.Description, &v.ThumbnailURL,
			&published, &durationMS, &watched, &tag)
		if err != nil {
			return nil, err
		}
		v.PublishedAt = fromMillis(published)
		v.Duration = time.Duration(durationMS) * time.Millisecond
		v.Watched = watched != 0
		v.Platform = source.ParsePlatform(tag)
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
