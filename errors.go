package ytfeed

import (
	"ytfeed/feed"
	"ytfeed/internal/retry"
	"ytfeed/prefs"
	"ytfeed/source"
	"ytfeed/storage"
	"ytfeed/summary"
)

// Type aliases for convenient error handling.
type (
	// AdapterError wraps platform adapter failures.
	AdapterError = source.AdapterError
	// ResolveError reports a handle no adapter could resolve.
	ResolveError = feed.ResolveError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrChannelNotFound indicates the platform has no channel for a handle.
	ErrChannelNotFound = source.ErrChannelNotFound
	// ErrQuotaExhausted indicates the YouTube API quota is used up.
	ErrQuotaExhausted = source.ErrQuotaExhausted
	// ErrHandleNotResolved indicates a topic handle matched no channel.
	ErrHandleNotResolved = feed.ErrHandleNotResolved
	// ErrInvalidTopic indicates a topic request without a title or channels.
	ErrInvalidTopic = feed.ErrInvalidTopic

	// Storage errors
	// ErrNotFound indicates an entity was not found in storage.
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = storage.ErrInvalidInput

	// ErrLockTimeout indicates a timeout acquiring the preference file lock.
	ErrLockTimeout = prefs.ErrLockTimeout

	// ErrSummaryBusy indicates another summarization is still running.
	ErrSummaryBusy = summary.ErrBusy
	// ErrSummaryFailed indicates the summarizer produced no summary.
	ErrSummaryFailed = summary.ErrFailed
)

// IsRetryable determines if an error should be retried.
// Context errors and errors marked permanent are not retried.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
