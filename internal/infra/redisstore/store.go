// Package redisstore implements document.Store on Redis. Documents are plain string keys
// updated with WATCH/MULTI; append-only collections are hashes written with HSETNX.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reading_program_bot/internal/domain/document"
)

const defaultMaxRetries = 16

type Store struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// Connect parses url, pings the server and returns a Store using keyPrefix.
func Connect(ctx context.Context, url, keyPrefix string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return New(client, keyPrefix), nil
}

func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix, maxRetries: defaultMaxRetries}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) docKey(path string) string       { return s.prefix + "doc:" + path }
func (s *Store) logKey(collection string) string { return s.prefix + "log:" + collection }

func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	body, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}
	return body, nil
}

func (s *Store) ReadMany(ctx context.Context, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = s.docKey(p)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[paths[i]] = []byte(str)
		}
	}
	return out, nil
}

// AtomicUpdate retries when another client writes the key between WATCH and EXEC, so fn
// can run more than once.
func (s *Store) AtomicUpdate(ctx context.Context, path string, fn document.Mutator) ([]byte, error) {
	key := s.docKey(path)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var result []byte
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				current = nil
			} else if err != nil {
				return err
			}
			next, err := fn(current)
			if errors.Is(err, document.ErrUnchanged) {
				result = current
				return nil
			}
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			if err == nil {
				result = next
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", document.ErrConflict, path, s.maxRetries)
}

func (s *Store) Append(ctx context.Context, collection, key string, body []byte) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	ok, err := s.client.HSetNX(ctx, s.logKey(collection), key, body).Result()
	if err != nil {
		return "", fmt.Errorf("redis hsetnx %s: %w", collection, err)
	}
	if !ok {
		return key, document.ErrAlreadyExists
	}
	return key, nil
}

func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	records, err := s.client.HGetAll(ctx, s.logKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", collection, err)
	}
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, []byte(records[k]))
	}
	return out, nil
}
