package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const DefaultTTL = 24 * time.Hour

// Entry is one cached search response keyed by the exact query text.
type Entry struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is a durable query cache backed by a single JSON document. It is a
// performance optimization only: deleting the file is always safe.
type Store struct {
	path string
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]Entry
}

// Open loads the cache file at path. A missing file yields an empty cache. A
// corrupt file also yields a usable empty cache, plus the parse error so the
// caller can decide to warn and continue.
func Open(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := &Store{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return store, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return store, fmt.Errorf("read cache file %s: %w", path, err)
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return store, fmt.Errorf("parse cache file %s: %w", path, err)
	}
	store.entries = entries
	return store, nil
}

// Get returns the cached payload for an exact, case-sensitive query match.
// Expired entries are treated as absent.
func (s *Store) Get(query string) (json.RawMessage, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[query]
	if !ok {
		return nil, false
	}
	if time.Since(entry.FetchedAt) > s.ttl {
		delete(s.entries, query)
		return nil, false
	}
	return entry.Payload, true
}

// Put stores a payload under the query text and persists the whole document.
// The write happens outside any network call path; the lock is held only for
// the in-memory update and the file write.
func (s *Store) Put(query string, payload json.RawMessage) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[query] = Entry{FetchedAt: time.Now().UTC(), Payload: payload}
	return s.persistLocked()
}

// Len reports the number of live entries, expired ones included until their
// next Get.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
