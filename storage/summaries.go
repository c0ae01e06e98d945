package storage

import (
	"context"
	"strings"
)

// GetSummary returns the cached summary for videoID in language.
func (s *SQLStore) GetSummary(ctx context.Context, videoID, language string) (Summary, error) {
	var (
		sum     Summary
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT video_id, language, text, created_at FROM summaries WHERE video_id = ? AND language = ?"),
		videoID, language).Scan(&sum.VideoID, &sum.Language, &sum.Text, &created)
	if isNoRows(err) {
		return Summary{}, &StorageError{Op: "read", Entity: "summary", ID: videoID, Err: ErrNotFound}
	}
	if err != nil {
		return Summary{}, &StorageError{Op: "read", Entity: "summary", ID: videoID, Err: err}
	}
	sum.CreatedAt = fromMillis(created)
	return sum, nil
}

// SaveSummary stores a summary, replacing any cached one for the same
// video and language.
func (s *SQLStore) SaveSummary(ctx context.Context, sum Summary) error {
	if sum.VideoID == "" || strings.TrimSpace(sum.Language) == "" {
		return &StorageError{Op: "create", Entity: "summary", ID: sum.VideoID, Err: ErrInvalidInput}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO summaries (video_id, language, text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id, language) DO UPDATE SET text = excluded.text, created_at = excluded.created_at`),
		sum.VideoID, sum.Language, sum.Text, toMillis(sum.CreatedAt))
	if err != nil {
		return &StorageError{Op: "create", Entity: "summary", ID: sum.VideoID, Err: err}
	}
	return nil
}
