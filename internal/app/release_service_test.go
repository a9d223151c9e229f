package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
)

func TestReleaseSixteenBooksOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 16)

	for i := 1; i <= 16; i++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(i))
		require.NoError(t, err)
	}
	_, err := env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)

	cfg, err := env.releases.Release(ctx, "t1", thisYear)
	require.NoError(t, err)
	assert.Equal(t, configuration.StatusReleased, cfg.Status)
	assert.Equal(t, []int{4, 8, 12, 16, 80}, counts(cfg.AchievementTiers))
	assert.True(t, cfg.AchievementTiers[4].MultiYear)
	require.NotNil(t, cfg.Release)
	assert.Equal(t, 16, cfg.Release.BookCount)

	again, err := env.releases.Release(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrAlreadyReleased)
	assert.Equal(t, cfg.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, cfg.Release.ID, again.Release.ID)

	records, err := env.releases.ListReleases(ctx, thisYear)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, cfg.Release.ID, records[0].ID)
	assert.Equal(t, []string{"t1"}, env.notifier.released)
}

func TestReleaseRequiresSaved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 2)

	_, err := env.releases.Release(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrNotSaved)

	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	_, err = env.releases.Release(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrNotSaved)

	_, err = env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)
	// an edit after saving needs another save
	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(2))
	require.NoError(t, err)
	_, err = env.releases.Release(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrNotSaved)

	records, err := env.releases.ListReleases(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReleaseAllowedInLaterPhases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 1)
	_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	_, err = env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)

	env.phases[thisYear] = program.PhaseVoting
	_, err = env.releases.Release(ctx, "t1", thisYear)
	require.NoError(t, err)

	_, err = env.releases.Release(ctx, "t1", nextYear)
	require.ErrorIs(t, err, program.ErrPhaseMismatch)
}

func TestConcurrentReleaseProducesOneRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 3)
	for i := 1; i <= 3; i++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(i))
		require.NoError(t, err)
	}
	_, err := env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)

	const callers = 12
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.releases.Release(ctx, "t1", thisYear)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, configuration.ErrAlreadyReleased):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, already)

	records, err := document.ListJSON[configuration.ReleaseRecord](ctx, env.store, configuration.ReleasesCollection)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRetriedReleaseRepairsMissingRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 1)
	_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	_, err = env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)

	// status flipped but the process died before appending
	_, err = document.Update(ctx, env.store, configuration.Path("t1", thisYear), func(cur *configuration.TeacherConfiguration) (*configuration.TeacherConfiguration, error) {
		_, err := cur.MarkReleased("rec-1", env.releases.now())
		return cur, err
	})
	require.NoError(t, err)

	_, err = env.releases.Release(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrAlreadyReleased)

	records, err := env.releases.ListReleases(ctx, thisYear)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
}
