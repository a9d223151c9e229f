package redisstore

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/domain/document"
)

type counter struct {
	N int `json:"n"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "test:"), mr
}

func TestReadMissingDocument(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read(context.Background(), "students/none")
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestAtomicUpdateCreatesAndUpdates(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := document.Update(ctx, s, "counters/a", func(cur *counter) (*counter, error) {
			if cur == nil {
				cur = &counter{}
			}
			cur.N++
			return cur, nil
		})
		require.NoError(t, err)
	}
	got, err := document.Get[counter](ctx, s, "counters/a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.N)

	raw, err := mr.Get("test:doc:counters/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, raw)
}

func TestAtomicUpdateUnderContention(t *testing.T) {
	s, _ := newTestStore(t)
	s.maxRetries = 200
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := document.Update(ctx, s, "counters/b", func(cur *counter) (*counter, error) {
				if cur == nil {
					cur = &counter{}
				}
				cur.N++
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := document.Get[counter](ctx, s, "counters/b")
	require.NoError(t, err)
	assert.Equal(t, 10, got.N)
}

func TestUnchangedSkipsWrite(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("test:doc:p", `{"n":5}`))

	body, err := s.AtomicUpdate(ctx, "p", func([]byte) ([]byte, error) { return nil, document.ErrUnchanged })
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":5}`, string(body))
}

func TestAppendAndList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "releases", "t1:2024-25", []byte(`{"bookCount":16}`))
	require.NoError(t, err)
	_, err = s.Append(ctx, "releases", "t1:2024-25", []byte(`{"bookCount":99}`))
	require.ErrorIs(t, err, document.ErrAlreadyExists)

	records, err := s.List(ctx, "releases")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"bookCount":16}`, string(records[0]))
}

func TestReadMany(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("test:doc:students/1", `{"id":"1"}`))

	got, err := s.ReadMany(context.Background(), []string{"students/1", "students/2"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.JSONEq(t, `{"id":"1"}`, string(got["students/1"]))
}
