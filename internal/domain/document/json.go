package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Get reads path and decodes it into a T.
func Get[T any](ctx context.Context, s Store, path string) (*T, error) {
	body, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return Decode[T](path, body)
}

// Update runs fn against the decoded document at path inside a single AtomicUpdate.
// cur is nil when the document does not exist yet. fn may return ErrUnchanged to keep
// the stored value, in which case Update returns the stored value and a nil error.
func Update[T any](ctx context.Context, s Store, path string, fn func(cur *T) (*T, error)) (*T, error) {
	body, err := s.AtomicUpdate(ctx, path, func(current []byte) ([]byte, error) {
		var cur *T
		if current != nil {
			decoded, err := Decode[T](path, current)
			if err != nil {
				return nil, err
			}
			cur = decoded
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrUnchanged
		}
		return json.Marshal(next)
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return Decode[T](path, body)
}

// AppendJSON encodes v and appends it to collection under key.
func AppendJSON(ctx context.Context, s Store, collection, key string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}
	return s.Append(ctx, collection, key, body)
}

// ListJSON decodes every record of collection into a T.
func ListJSON[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	bodies, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(bodies))
	for _, b := range bodies {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Decode unmarshals the document body read from path.
func Decode[T any](path string, body []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &v, nil
}

// IsNotFound is shorthand used by callers that treat a missing document as a normal case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
