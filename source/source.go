// Package source defines the video source adapter contract and the helpers
// shared by the per-platform adapters.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for adapter operations.
var (
	// ErrChannelNotFound means the platform has no channel for the handle.
	// It is a normal outcome of ResolveChannelID, not a failure.
	ErrChannelNotFound = errors.New("source: channel not found")
	// ErrQuotaExhausted means the platform API quota is used up for the day.
	ErrQuotaExhausted = errors.New("source: api quota exhausted")
	// ErrInvalidResponse means the platform answered with data that could not be used.
	ErrInvalidResponse = errors.New("source: invalid response")
)

// Platform identifies a video platform. The set is closed: adapters are
// registered per Platform and records carry the Platform they came from.
type Platform int

const (
	// PlatformUnknown marks records whose platform tag is not recognized.
	PlatformUnknown Platform = iota
	// PlatformYouTube is youtube.com.
	PlatformYouTube
	// PlatformVimeo is vimeo.com.
	PlatformVimeo
)

// String returns the persisted tag of the platform.
func (p Platform) String() string {
	switch p {
	case PlatformYouTube:
		return "YOUTUBE"
	case PlatformVimeo:
		return "VIMEO"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the platform as its persisted tag.
func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a persisted tag; unknown tags become PlatformUnknown.
func (p *Platform) UnmarshalText(text []byte) error {
	*p = ParsePlatform(string(text))
	return nil
}

// ParsePlatform maps a persisted tag back to a Platform. Unrecognized tags
// yield PlatformUnknown.
func ParsePlatform(tag string) Platform {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "YOUTUBE":
		return PlatformYouTube
	case "VIMEO":
		return PlatformVimeo
	default:
		return PlatformUnknown
	}
}

// Video is an upload as reported by a platform.
type Video struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string
	PublishedAt  time.Time
	Duration     time.Duration
	Platform     Platform
}

// Adapter encapsulates one platform's API behind the two operations the
// sync engine needs. Implementations must be safe for concurrent use.
type Adapter interface {
	// Platform reports which platform this adapter serves.
	Platform() Platform

	// ResolveChannelID maps a user-facing handle to the platform channel id.
	// It returns ErrChannelNotFound when the platform has no such channel.
	ResolveChannelID(ctx context.Context, handle string) (string, error)

	// FetchRecentUploads returns the channel's uploads published within the
	// retention window that are longer than MinDuration. A nil error with an
	// empty slice means the channel has no qualifying uploads; a non-nil
	// error means the fetch itself failed.
	FetchRecentUploads(ctx context.Context, channelID string) ([]Video, error)
}

// AdapterError wraps adapter failures with context about what failed.
//
//	var adErr *source.AdapterError
//	if errors.As(err, &adErr) {
//		fmt.Printf("%s %s failed for %s: %v\n", adErr.Platform, adErr.Op, adErr.Target, adErr.Err)
//	}
type AdapterError struct {
	// Platform is the platform whose adapter failed.
	Platform Platform
	// Op is the operation ("resolve" or "fetch").
	Op string
	// Target is the handle or channel id the operation ran against.
	Target string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the adapter error.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("source: %s %s %s: %v", strings.ToLower(e.Platform.String()), e.Op, e.Target, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *AdapterError) Unwrap() error { return e.Err }

// WatchURL returns the public page of a video, the address summarizers are
// given.
func WatchURL(p Platform, videoID string) string {
	switch p {
	case PlatformVimeo:
		return "https://vimeo.com/" + strings.TrimPrefix(videoID, "vimeo:")
	default:
		return "https://www.youtube.com/watch?v=" + videoID
	}
}
