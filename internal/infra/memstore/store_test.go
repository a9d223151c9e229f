package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/teacher"
	idb "reading_program_bot/internal/infra/database"
)

type counter struct {
	N int `json:"n"`
}

func TestAtomicUpdateSerializesConcurrentWriters(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := document.Update(ctx, s, "c", func(cur *counter) (*counter, error) {
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

	got, err := document.Get[counter](ctx, s, "c")
	require.NoError(t, err)
	assert.Equal(t, 50, got.N)
}

func TestMutatorErrorLeavesDocumentUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.AtomicUpdate(ctx, "p", func([]byte) ([]byte, error) { return []byte(`{"n":1}`), nil })
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	_, err = s.AtomicUpdate(ctx, "p", func([]byte) ([]byte, error) { return []byte(`{"n":2}`), boom })
	require.ErrorIs(t, err, boom)

	body, err := s.AtomicUpdate(ctx, "p", func([]byte) ([]byte, error) { return nil, document.ErrUnchanged })
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(body))

	_, err = s.Read(ctx, "missing")
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestAppendRejectsDuplicateKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.Append(ctx, "log", "k1", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, "k1", id)

	_, err = s.Append(ctx, "log", "k1", []byte(`{"v":2}`))
	require.ErrorIs(t, err, document.ErrAlreadyExists)

	generated, err := s.Append(ctx, "log", "", []byte(`{"v":3}`))
	require.NoError(t, err)
	assert.NotEmpty(t, generated)

	records, err := s.List(ctx, "log")
	require.NoError(t, err)
	require.Len(t, records, 2)
	var first map[string]int
	for _, r := range records {
		require.NoError(t, json.Unmarshal(r, &first))
		if first["v"] == 2 {
			t.Fatal("duplicate append overwrote the first record")
		}
	}
}

func TestReadManyFallsBackAndSkipsMissing(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.AtomicUpdate(ctx, "a", func([]byte) ([]byte, error) { return []byte(`1`), nil })
	require.NoError(t, err)

	got, err := document.ReadMany(ctx, s, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []byte(`1`), got["a"])
}

func TestTeacherRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTeacherRepository()

	ben := &teacher.Teacher{TelegramID: 11, FirstName: "Ben", IsActive: true}
	ada := &teacher.Teacher{TelegramID: 12, FirstName: "Ada", IsActive: true}
	require.NoError(t, repo.Create(ctx, ben))
	require.NoError(t, repo.Create(ctx, ada))
	require.ErrorIs(t, repo.Create(ctx, &teacher.Teacher{TelegramID: 11}), idb.ErrDuplicateTelegramID)

	got, err := repo.GetByTelegramID(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	_, err = repo.GetByID(ctx, 99)
	require.ErrorIs(t, err, idb.ErrTeacherNotFound)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Ada", active[0].FirstName)

	ben.IsActive = false
	require.NoError(t, repo.Update(ctx, ben))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	some, err := repo.ListByIDs(ctx, []int64{ben.ID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.False(t, some[0].IsActive)
}
