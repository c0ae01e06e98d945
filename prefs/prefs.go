// Package prefs stores user preferences in a small JSON file: the time of
// the last full reload and the display language.
//
// Writes take a cross-process file lock, re-read the file, apply the change
// and replace the file atomically, so two processes sharing the file never
// lose each other's updates. Reads also go to the file under the lock, so a
// value written by another process is seen on the next read.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const lockTimeout = 5 * time.Second

var (
	// ErrLockTimeout indicates the preference file lock could not be acquired.
	ErrLockTimeout = errors.New("prefs: lock timeout")
	// ErrCorrupt indicates the preference file is not valid JSON.
	ErrCorrupt = errors.New("prefs: file corrupt")
	// ErrUnknownLanguage indicates a language code other than en or ru.
	ErrUnknownLanguage = errors.New("prefs: unknown language")
)

// Language is a display and summary language code.
type Language string

const (
	English Language = "en"
	Russian Language = "ru"
)

// DefaultLanguage is used until the user picks one.
const DefaultLanguage = English

// ParseLanguage validates a language code.
func ParseLanguage(code string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(code))); l {
	case English, Russian:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
}

// fileData is the on-disk layout. LastReload is Unix milliseconds; 0 means
// no full reload has happened yet.
type fileData struct {
	LastReload int64    `json:"last_reload"`
	Language   Language `json:"language,omitempty"`
}

// Store is a JSON-file preference store. It is safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open checks the preference file at path, creating it when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs: empty path")
	}
	s := &Store{path: path}

	lock := newFileLock(path)
	if err := lock.lock(lockTimeout); err != nil {
		return nil, err
	}
	defer lock.unlock()

	_, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		if err := s.write(fileData{}); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the preference file path.
func (s *Store) Path() string {
	return s.path
}

// LastReload returns the time of the last full reload, or the zero time if
// there has been none.
func (s *Store) LastReload(ctx context.Context) (time.Time, error) {
	data, err := s.load()
	if err != nil {
		return time.Time{}, err
	}
	if data.LastReload == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(data.LastReload).UTC(), nil
}

// SetLastReload records t as the time of the last full reload.
func (s *Store) SetLastReload(ctx context.Context, t time.Time) error {
	return s.update(func(d *fileData) {
		if t.IsZero() {
			d.LastReload = 0
			return
		}
		d.LastReload = t.UnixMilli()
	})
}

// Language returns the selected language, or DefaultLanguage.
func (s *Store) Language(ctx context.Context) (Language, error) {
	data, err := s.load()
	if err != nil {
		return "", err
	}
	if data.Language == "" {
		return DefaultLanguage, nil
	}
	return data.Language, nil
}

// SetLanguage stores the selected language.
func (s *Store) SetLanguage(ctx context.Context, lang Language) error {
	l, err := ParseLanguage(string(lang))
	if err != nil {
		return err
	}
	return s.update(func(d *fileData) { d.Language = l })
}

// load re-reads the file under the file lock. A missing file reads as
// empty preferences.
func (s *Store) load() (fileData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := newFileLock(s.path)
	if err := lock.lock(lockTimeout); err != nil {
		return fileData{}, err
	}
	defer lock.unlock()

	data, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		data, err = fileData{}, nil
	}
	if err != nil {
		return fileData{}, err
	}
	return data, nil
}

// update applies fn to the latest file contents under the file lock.
func (s *Store) update(fn func(*fileData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := newFileLock(s.path)
	if err := lock.lock(lockTimeout); err != nil {
		return err
	}
	defer lock.unlock()

	data, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fn(&data)
	return s.write(data)
}

func (s *Store) read() (fileData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fileData{}, err
	}
	var data fileData
	if len(strings.TrimSpace(string(raw))) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fileData{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if data.Language != "" {
		if _, err := ParseLanguage(string(data.Language)); err != nil {
			data.Language = ""
		}
	}
	return data, nil
}

func (s *Store) write(data fileData) error {
	w, err := newAtomicWriter(s.path)
	if err != nil {
		return fmt.Errorf("prefs: write %s: %w", s.path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		w.abort()
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := w.commit(); err != nil {
		return fmt.Errorf("prefs: write %s: %w", s.path, err)
	}
	return nil
}
