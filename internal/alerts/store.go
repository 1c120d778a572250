package alerts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentryvision/internal/model"
)

// Store holds raised alerts newest-first and mirrors them to a single JSON
// document on every append. The write is a whole-file replace via temp file
// and rename, so a crash leaves either the previous or the new complete
// document, never a partial one. Safe for one process only.
type Store struct {
	mu     sync.RWMutex
	path   string
	buf    []model.Alert
	limit  int
	logger *slog.Logger
}

// NewStore loads the persisted document if present. A missing or corrupt
// file starts the store empty rather than failing startup.
func NewStore(path string, limit int, logger *slog.Logger) (*Store, error) {
	if limit <= 0 {
		limit = 1000
	}
	s := &Store{path: path, limit: limit, logger: logger}
	if path == "" {
		return s, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && logger != nil {
			logger.Warn("alert store unreadable, starting empty", "path", path, "err", err)
		}
		return s, nil
	}
	var loaded []model.Alert
	if err := json.Unmarshal(data, &loaded); err != nil {
		if logger != nil {
			logger.Warn("alert store corrupt, starting empty", "path", path, "err", err)
		}
		return s, nil
	}
	if len(loaded) > limit {
		loaded = loaded[:limit]
	}
	s.buf = loaded
	return s, nil
}

// Append prepends the alert and synchronously rewrites the document. The
// alert is durable before Append returns.
func (s *Store) Append(alert model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.Alert, 0, len(s.buf)+1)
	next = append(next, alert)
	next = append(next, s.buf...)
	if len(next) > s.limit {
		next = next[:s.limit]
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.buf = next
	return nil
}

// List returns alerts newest first. limit <= 0 means all.
func (s *Store) List(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Alert, limit)
	copy(out, s.buf[:limit])
	return out
}

func (s *Store) Since(ts time.Time) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0)
	for _, a := range s.buf {
		if !a.Timestamp.Before(ts) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist([]model.Alert{}); err != nil {
		return err
	}
	s.buf = nil
	return nil
}

func (s *Store) persist(list []model.Alert) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", s.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
