// Package memstore is an in-process document.Store for development and tests.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"reading_program_bot/internal/domain/document"
)

// Store keeps documents and append-only collections in maps guarded by one mutex,
// which serializes every AtomicUpdate.
type Store struct {
	mu      sync.Mutex
	docs    map[string][]byte
	appends map[string]map[string][]byte
}

func New() *Store {
	return &Store{
		docs:    map[string][]byte{},
		appends: map[string]map[string][]byte{},
	}
}

func (s *Store) Read(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[path]
	if !ok {
		return nil, document.ErrNotFound
	}
	return slices.Clone(body), nil
}

func (s *Store) ReadMany(_ context.Context, paths []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if body, ok := s.docs[p]; ok {
			out[p] = slices.Clone(body)
		}
	}
	return out, nil
}

func (s *Store) AtomicUpdate(_ context.Context, path string, fn document.Mutator) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[path]
	if ok {
		current = slices.Clone(current)
	}
	next, err := fn(current)
	if errors.Is(err, document.ErrUnchanged) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	s.docs[path] = slices.Clone(next)
	return next, nil
}

func (s *Store) Append(_ context.Context, collection, key string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		key = uuid.NewString()
	}
	records, ok := s.appends[collection]
	if !ok {
		records = map[string][]byte{}
		s.appends[collection] = records
	}
	if _, exists := records[key]; exists {
		return key, document.ErrAlreadyExists
	}
	records[key] = slices.Clone(body)
	return key, nil
}

func (s *Store) List(_ context.Context, collection string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.appends[collection]
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, slices.Clone(records[k]))
	}
	return out, nil
}
