package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/submission"
	"reading_program_bot/internal/domain/teacher"
	"reading_program_bot/internal/infra/memstore"
)

const (
	testAdminID    int64 = 1
	thisYear             = program.AcademicYear("2024-25")
	nextYear             = program.AcademicYear("2025-26")
	defaultCeiling       = 20
)

// testClock hands out strictly increasing instants.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recordingNotifier struct {
	mu        sync.Mutex
	released  []string
	submitted []string
	decisions []submission.Status
}

func (n *recordingNotifier) NotifyReleased(_ context.Context, cfg *configuration.TeacherConfiguration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.released = append(n.released, cfg.TeacherID)
	return nil
}

func (n *recordingNotifier) NotifySubmitted(_ context.Context, _ *submission.Student, sub *submission.Submission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, sub.BookID)
	return nil
}

func (n *recordingNotifier) NotifyDecision(_ context.Context, _ *submission.Student, sub *submission.Submission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions = append(n.decisions, sub.Status)
	return nil
}

type testEnv struct {
	store    *memstore.Store
	phases   program.Fixed
	repo     *memstore.TeacherRepository
	notifier *recordingNotifier

	configs  *ConfigurationService
	releases *ReleaseService
	subs     *SubmissionService
	rollover *RolloverService
	catalog  *CatalogService
	admin    *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	clock := &testClock{t: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)}
	env := &testEnv{
		store:    memstore.New(),
		phases:   program.Fixed{thisYear: program.PhaseTeacherSelection},
		repo:     memstore.NewTeacherRepository(),
		notifier: &recordingNotifier{},
	}
	env.configs = NewConfigurationService(env.store, env.phases, defaultCeiling, log)
	env.configs.now = clock.Now
	env.releases = NewReleaseService(env.store, env.phases, env.notifier, log)
	env.releases.now = clock.Now
	env.subs = NewSubmissionService(env.store, env.phases, env.notifier, log)
	env.subs.now = clock.Now
	env.rollover = NewRolloverService(env.store, env.phases, env.repo, defaultCeiling, log)
	env.rollover.now = clock.Now
	env.catalog = NewCatalogService(env.store, log)
	env.catalog.now = clock.Now
	env.admin = NewAdminService(env.repo, env.store, testAdminID, log)
	env.admin.now = clock.Now
	return env
}

func bookID(i int) string { return fmt.Sprintf("book-%02d", i) }

// publishBooks puts n nominees into the catalog of year.
func (e *testEnv) publishBooks(t *testing.T, year program.AcademicYear, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := e.catalog.Publish(context.Background(), catalog.NomineeBook{
			ID:      bookID(i),
			Title:   fmt.Sprintf("Nominee %d", i),
			Authors: []string{"A. Author"},
			Pages:   180,
			Year:    year,
		})
		require.NoError(t, err)
	}
}

// addTeacher creates an active roster teacher and returns it.
func (e *testEnv) addTeacher(t *testing.T, telegramID int64, name string) *teacher.Teacher {
	t.Helper()
	tc, err := e.admin.AddTeacher(context.Background(), testAdminID, telegramID, name, "")
	require.NoError(t, err)
	return tc
}

// releasedSetup leaves teacherID with a released configuration of books 1..n for
// thisYear and the year in ACTIVE.
func (e *testEnv) releasedSetup(t *testing.T, teacherID string, n int, options ...configuration.Method) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, err := e.configs.SelectBook(ctx, teacherID, thisYear, bookID(i))
		require.NoError(t, err)
	}
	for _, m := range options {
		_, err := e.configs.SetCompletionOption(ctx, teacherID, thisYear, m, true)
		require.NoError(t, err)
	}
	_, err := e.configs.Save(ctx, teacherID, thisYear)
	require.NoError(t, err)
	_, err = e.releases.Release(ctx, teacherID, thisYear)
	require.NoError(t, err)
	e.phases[thisYear] = program.PhaseActive
}

// enroll adds a student for the teacher with the given Telegram id.
func (e *testEnv) enroll(t *testing.T, teacherTelegramID int64, studentID, name string) {
	t.Helper()
	_, err := e.admin.EnrollStudent(context.Background(), testAdminID, teacherTelegramID, studentID, name, "5", 0)
	require.NoError(t, err)
}

// pending moves bookID of studentID to pending_approval through the review method.
func (e *testEnv) pending(t *testing.T, studentID, book string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.subs.AddToShelf(ctx, studentID, thisYear, book)
	require.NoError(t, err)
	_, err = e.subs.Submit(ctx, studentID, book, configuration.MethodReview, 100)
	require.NoError(t, err)
}
