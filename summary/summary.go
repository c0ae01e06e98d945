// Package summary caches summaries of videos produced by an external
// summarization service, keyed by video and language.
package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"ytfeed/source"
	"ytfeed/storage"
)

var (
	// ErrBusy means another summarization is still running.
	ErrBusy = errors.New("summary: previous summarization still running")
	// ErrFailed means the summarizer produced no summary.
	ErrFailed = errors.New("summary: summarization failed")
)

// Summarizer turns a video page URL into a summary in the given language.
type Summarizer interface {
	Summarize(ctx context.Context, videoURL, language string) (string, error)
}

// Cache is the part of the store the service needs.
type Cache interface {
	GetSummary(ctx context.Context, videoID, language string) (storage.Summary, error)
	SaveSummary(ctx context.Context, summary storage.Summary) error
}

// Service returns cached summaries and asks the summarizer for missing
// ones, one at a time.
type Service struct {
	cache      Cache
	summarizer Summarizer
	now        func() time.Time

	// running is held while the summarizer is called.
	running sync.Mutex
}

// NewService creates a summary service.
func NewService(cache Cache, summarizer Summarizer) *Service {
	return &Service{cache: cache, summarizer: summarizer, now: time.Now}
}

// Summarize returns the summary of video in language. A cached summary is
// returned without calling the summarizer. While another call is waiting
// on the summarizer, Summarize returns ErrBusy instead of queueing.
func (s *Service) Summarize(ctx context.Context, video storage.Video, language string) (storage.Summary, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return storage.Summary{}, fmt.Errorf("%w: empty language", storage.ErrInvalidInput)
	}

	cached, err := s.cache.GetSummary(ctx, video.ID, language)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Summary{}, err
	}

	if !s.running.TryLock() {
		return storage.Summary{}, ErrBusy
	}
	defer s.running.Unlock()

	url := source.WatchURL(video.Platform, video.ID)
	text, err := s.summarizer.Summarize(ctx, url, language)
	if err != nil {
		log.Printf("summary: %s: %v", url, err)
		return storage.Summary{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return storage.Summary{}, fmt.Errorf("%w: empty summary", ErrFailed)
	}

	sum := storage.Summary{
		VideoID:   video.ID,
		Language:  language,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.cache.SaveSummary(ctx, sum); err != nil {
		return storage.Summary{}, err
	}
	return sum, nil
}

// RenderHTML renders summary markdown as HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}
