// Package registry is a durable key-value store for button records.
//
// The whole registry is one JSON document rewritten atomically (temp file,
// fsync, rename) on every mutation, so a crash can never leave a partially
// written file behind: either the previous document or the new one survives.
// On restart the persisted document is ground truth and runtime state is
// re-derived from it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotFound is returned when a requested key does not exist in the store.
var ErrNotFound = errors.New("not found")

const documentVersion = 1

type document[T any] struct {
	Version int                             `json:"version"`
	Records *orderedmap.OrderedMap[string, T] `json:"records"`
}

// Store is a file-backed ordered key-value store. The in-memory map keeps
// insertion order so the on-disk document and every iteration are
// deterministic. Safe for concurrent use.
type Store[T any] struct {
	path   string
	logger *logrus.Logger

	mu   sync.RWMutex
	recs *orderedmap.OrderedMap[string, T]
}

// Open loads the store at path, creating an empty one if no file exists yet.
func Open[T any](path string, logger *logrus.Logger) (*Store[T], error) {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Store[T]{
		path:   path,
		logger: logger,
		recs:   orderedmap.New[string, T](),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var doc document[T]
	doc.Records = s.recs
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("registry %s: unsupported version %d", path, doc.Version)
	}
	if doc.Records != nil {
		s.recs = doc.Records
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"records": s.recs.Len(),
	}).Debug("Registry loaded")
	return s, nil
}

// Reset discards all records and removes the backing file. Used when a
// manager is created without restoring previous state.
func (s *Store[T]) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs = orderedmap.New[string, T]()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove registry %s: %w", s.path, err)
	}
	return nil
}

// Upsert stores v under key and persists the document.
func (s *Store[T]) Upsert(key string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs.Set(key, v)
	return s.flush()
}

// Delete removes key and persists the document. Returns ErrNotFound if the
// key was absent; the store is unchanged in that case.
func (s *Store[T]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs.Get(key); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.recs.Delete(key)
	return s.flush()
}

// Get returns the record stored under key.
func (s *Store[T]) Get(key string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.recs.Get(key)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Len returns the number of stored records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recs.Len()
}

// Range calls fn for every record in insertion order until fn returns false.
func (s *Store[T]) Range(fn func(key string, v T) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for pair := s.recs.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Path returns the backing file path.
func (s *Store[T]) Path() string {
	return s.path
}

// flush rewrites the whole document atomically. Callers hold s.mu.
func (s *Store[T]) flush() error {
	doc := document[T]{Version: documentVersion, Records: s.recs}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create registry temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry temp file: %w", werr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit registry %s: %w", s.path, err)
	}
	return nil
}
