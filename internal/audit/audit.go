package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultMaxBytes = int64(8 * 1024 * 1024)
	DefaultMaxAge   = 30 * 24 * time.Hour
)

// Logger appends one JSON object per line to a rotating audit file. Callers
// treat write failures as warnings only: the pipeline result never depends on
// audit I/O.
type Logger struct {
	path     string
	maxBytes int64
	maxAge   time.Duration

	mu sync.Mutex
}

func NewLogger(path string, maxBytes int64, maxAge time.Duration) *Logger {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Logger{path: path, maxBytes: maxBytes, maxAge: maxAge}
}

// Write serializes the record and appends it as a single line, rotating the
// file first when it is too large or too old.
func (l *Logger) Write(record any) error {
	if l == nil || l.path == "" {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeededLocked(int64(len(raw)) + 1); err != nil {
		return err
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (l *Logger) rotateIfNeededLocked(incoming int64) error {
	info, err := os.Stat(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	tooBig := info.Size()+incoming > l.maxBytes
	tooOld := info.Size() > 0 && time.Since(info.ModTime()) > l.maxAge
	if !tooBig && !tooOld {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	return nil
}
