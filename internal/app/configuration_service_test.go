package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/tier"
)

func TestSelectBookCreatesDraftWithDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.publishBooks(t, thisYear, 2)

	cfg, err := env.configs.SelectBook(context.Background(), "t1", thisYear, bookID(1))
	require.NoError(t, err)
	assert.Equal(t, configuration.StatusDraft, cfg.Status)
	assert.Equal(t, defaultCeiling, cfg.Ceiling)
	assert.Equal(t, []string{bookID(1)}, cfg.SelectedBookIDs)
	assert.Equal(t, []configuration.Method{configuration.MethodQuiz}, cfg.EnabledMethods())
	require.Len(t, cfg.AchievementTiers, 2)
	assert.Equal(t, 1, cfg.AchievementTiers[0].BookCount)
	assert.Equal(t, 25, cfg.AchievementTiers[1].BookCount)
}

func TestSelectBookRejectsUnknownBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.configs.SelectBook(ctx, "t1", thisYear, "not-a-nominee")
	require.ErrorIs(t, err, catalog.ErrUnknownBook)

	_, err = env.store.Read(ctx, configuration.Path("t1", thisYear))
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestSelectBeyondCeilingLeavesSelectionUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 4)
	env.configs.defaultCeiling = 3

	for i := 1; i <= 3; i++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(i))
		require.NoError(t, err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(4))
		require.ErrorIs(t, err, configuration.ErrCapacityExceeded)
	}

	cfg, err := env.configs.GetConfiguration(ctx, "t1", thisYear)
	require.NoError(t, err)
	assert.Equal(t, []string{bookID(1), bookID(2), bookID(3)}, cfg.SelectedBookIDs)

	// reselecting a member is a no-op, not a capacity failure
	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(2))
	require.NoError(t, err)
}

func TestEditsRequireTeacherSelectionPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 1)
	env.phases[thisYear] = program.PhaseActive

	_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.ErrorIs(t, err, program.ErrPhaseMismatch)
	_, err = env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodReview, true)
	require.ErrorIs(t, err, program.ErrPhaseMismatch)
	_, err = env.configs.Save(ctx, "t1", thisYear)
	require.ErrorIs(t, err, program.ErrPhaseMismatch)

	_, err = env.configs.GetConfiguration(ctx, "t1", thisYear)
	assert.ErrorIs(t, err, ErrConfigurationNotFound)
}

func TestCeilingCarriesOverFromPreviousYear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prev := configuration.New("t1", thisYear.Prev(), 12, env.configs.now())
	_, err := document.Update(ctx, env.store, configuration.Path("t1", thisYear.Prev()), func(*configuration.TeacherConfiguration) (*configuration.TeacherConfiguration, error) {
		return prev, nil
	})
	require.NoError(t, err)

	cfg, err := env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodDiscussion, true)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Ceiling)
}

func TestSetCompletionOption(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodQuiz, false)
	require.ErrorIs(t, err, configuration.ErrInvalidOption)
	_, err = env.configs.SetCompletionOption(ctx, "t1", thisYear, "interpretiveDance", true)
	require.ErrorIs(t, err, configuration.ErrInvalidOption)

	cfg, err := env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodReview, true)
	require.NoError(t, err)
	assert.True(t, cfg.MethodEnabled(configuration.MethodReview))
	assert.True(t, cfg.MethodEnabled(configuration.MethodQuiz))

	cfg, err = env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodReview, false)
	require.NoError(t, err)
	assert.False(t, cfg.MethodEnabled(configuration.MethodReview))
	assert.True(t, cfg.MethodEnabled(configuration.MethodQuiz))
}

func TestDeselectOnMissingConfigurationStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg, err := env.configs.DeselectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	assert.Empty(t, cfg.SelectedBookIDs)

	_, err = env.store.Read(ctx, configuration.Path("t1", thisYear))
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestTierRewardDroppedWithItsKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 9)

	for i := 1; i <= 8; i++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(i))
		require.NoError(t, err)
	}
	// tiers for 8 books: 2, 4, 6, 8, 40
	_, err := env.configs.SetTierReward(ctx, "t1", thisYear, 2, "Pizza party")
	require.NoError(t, err)
	_, err = env.configs.SetTierReward(ctx, "t1", thisYear, 8, "Field trip")
	require.NoError(t, err)
	_, err = env.configs.SetTierReward(ctx, "t1", thisYear, 7, "Nothing")
	require.ErrorIs(t, err, configuration.ErrUnknownTier)

	// 9 books: 3, 5, 7, 9, 45. Keys 2 and 8 no longer exist.
	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(9))
	require.NoError(t, err)
	tiers := mustTiers(t, env, "t1")
	assert.Equal(t, []int{3, 5, 7, 9, 45}, counts(tiers))

	_, err = env.configs.SetTierReward(ctx, "t1", thisYear, 5, "Extra recess")
	require.NoError(t, err)
	// Back to 8 books. Keys 2 and 8 come back with default text, key 5 is gone.
	_, err = env.configs.DeselectBook(ctx, "t1", thisYear, bookID(9))
	require.NoError(t, err)
	tiers = mustTiers(t, env, "t1")
	assert.Equal(t, []int{2, 4, 6, 8, 40}, counts(tiers))
	for _, tr := range tiers {
		assert.Equal(t, tier.DefaultReward(tr.Kind), tr.Reward)
	}
}

func TestTierRewardPreservedWhenKeySurvives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 5)

	for i := 1; i <= 4; i++ {
		_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(i))
		require.NoError(t, err)
	}
	// 4 books: 1, 2, 3, 4, 25
	_, err := env.configs.SetTierReward(ctx, "t1", thisYear, 25, "Hall of fame")
	require.NoError(t, err)
	_, err = env.configs.SetTierReward(ctx, "t1", thisYear, 2, "Sticker")
	require.NoError(t, err)

	// 5 books: 2, 3, 4, 5, 25
	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(5))
	require.NoError(t, err)
	byCount := map[int]string{}
	for _, tr := range mustTiers(t, env, "t1") {
		byCount[tr.BookCount] = tr.Reward
	}
	assert.Equal(t, "Hall of fame", byCount[25])
	assert.Equal(t, "Sticker", byCount[2])
}

func TestSaveAndEditAfterSave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 2)

	_, err := env.configs.Save(ctx, "t1", thisYear)
	require.ErrorIs(t, err, configuration.ErrEmptySelection)

	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	cfg, err := env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)
	assert.Equal(t, configuration.StatusSaved, cfg.Status)

	again, err := env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)
	assert.Equal(t, cfg.UpdatedAt, again.UpdatedAt)

	cfg, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(2))
	require.NoError(t, err)
	assert.Equal(t, configuration.StatusDraft, cfg.Status)
}

func TestReleasedConfigurationIsLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publishBooks(t, thisYear, 2)

	_, err := env.configs.SelectBook(ctx, "t1", thisYear, bookID(1))
	require.NoError(t, err)
	_, err = env.configs.Save(ctx, "t1", thisYear)
	require.NoError(t, err)
	_, err = env.releases.Release(ctx, "t1", thisYear)
	require.NoError(t, err)

	_, err = env.configs.SelectBook(ctx, "t1", thisYear, bookID(2))
	require.ErrorIs(t, err, configuration.ErrLocked)
	_, err = env.configs.SetCompletionOption(ctx, "t1", thisYear, configuration.MethodReview, true)
	require.ErrorIs(t, err, configuration.ErrLocked)
}

func TestInvalidReferencesAreRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.configs.Save(ctx, "", thisYear)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.configs.Save(ctx, "t1", "2024")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.configs.SetTierReward(ctx, "t1", thisYear, 0, "x")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func mustTiers(t *testing.T, env *testEnv, teacherID string) []tier.Tier {
	t.Helper()
	tiers, err := env.configs.GetTiers(context.Background(), teacherID, thisYear)
	require.NoError(t, err)
	return tiers
}

func counts(tiers []tier.Tier) []int {
	out := make([]int, len(tiers))
	for i, tr := range tiers {
		out[i] = tr.BookCount
	}
	return out
}
