package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrHandleNotResolved means no registered adapter could resolve a handle
	// to a channel.
	ErrHandleNotResolved = errors.New("feed: handle not resolved")
	// ErrInvalidTopic means a topic request is missing its title or handles.
	ErrInvalidTopic = errors.New("feed: invalid topic")
)

// ResolveError reports the handle that failed to resolve.
//
//	var resErr *feed.ResolveError
//	if errors.As(err, &resErr) {
//		fmt.Printf("no channel for %s\n", resErr.Handle)
//	}
type ResolveError struct {
	// Handle is the handle as the user typed it, trimmed.
	Handle string
	// Err is the last adapter error, usually source.ErrChannelNotFound.
	Err error
}

// Error returns a string representation of the resolve error.
func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed: handle %q not resolved: %v", e.Handle, e.Err)
	}
	return fmt.Sprintf("feed: handle %q not resolved", e.Handle)
}

// Is matches ErrHandleNotResolved.
func (e *ResolveError) Is(target error) bool {
	return target == ErrHandleNotResolved
}

// Unwrap returns the underlying adapter error.
func (e *ResolveError) Unwrap() error { return e.Err }
