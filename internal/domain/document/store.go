// Package document defines the persistence collaborator the reading program runs on:
// a store of JSON documents addressed by slash-separated paths, with single-document
// atomic updates and append-only collections.
package document

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	// ErrUnchanged is returned by a Mutator to abort the write without failing the update.
	// AtomicUpdate then returns the current content and a nil error.
	ErrUnchanged = errors.New("document unchanged")
	// ErrConflict means the store gave up after repeated concurrent modifications.
	ErrConflict = errors.New("document modified concurrently")
)

// Mutator receives the current content (nil when the document does not exist) and returns
// the content to persist. Returning an error aborts the update and nothing is written.
// Stores with optimistic concurrency may call a Mutator more than once, so it must not
// have side effects outside its return values.
type Mutator func(current []byte) ([]byte, error)

// Store is implemented by the Postgres, Redis and in-memory backends.
type Store interface {
	// Read returns ErrNotFound when nothing is stored at path.
	Read(ctx context.Context, path string) ([]byte, error)
	// AtomicUpdate applies fn to the current content of path with no other write to the
	// same path interleaved, and returns what was persisted.
	AtomicUpdate(ctx context.Context, path string, fn Mutator) ([]byte, error)
	// Append adds an immutable record to collection. An empty key gets a generated id;
	// a key that was already appended yields ErrAlreadyExists and leaves the first record.
	Append(ctx context.Context, collection, key string, body []byte) (string, error)
	// List returns every record appended to collection, ordered by key.
	List(ctx context.Context, collection string) ([][]byte, error)
}

// BatchReader is an optional fast path for reading many documents in one round trip.
// Missing paths are absent from the returned map.
type BatchReader interface {
	ReadMany(ctx context.Context, paths []string) (map[string][]byte, error)
}

// ReadMany uses the store's BatchReader when it has one and falls back to one Read per path.
func ReadMany(ctx context.Context, s Store, paths []string) (map[string][]byte, error) {
	if br, ok := s.(BatchReader); ok {
		return br.ReadMany(ctx, paths)
	}
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		body, err := s.Read(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[p] = body
	}
	return out, nil
}
