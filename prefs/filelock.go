package prefs

import (
	"fmt"
	"os"
	"time"
)

// fileLock is an advisory cross-process lock on path + ".lock".
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock"}
}

// lock polls for the lock until timeout elapses, then returns ErrLockTimeout.
func (l *fileLock) lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("prefs: open lock %s: %w", l.path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := lockFile(f); err == nil {
			l.file = f
			return nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()
	return ErrLockTimeout
}

func (l *fileLock) unlock() error {
	if l.file == nil {
		return nil
	}
	unlockFile(l.file)
	err := l.file.Close()
	l.file = nil
	return err
}
