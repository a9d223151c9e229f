package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/program"
)

type fakeRoller struct {
	years []program.AcademicYear
	sum   app.RolloverSummary
	err   error
}

func (f *fakeRoller) RolloverActive(_ context.Context, year program.AcademicYear) (app.RolloverSummary, error) {
	f.years = append(f.years, year)
	return f.sum, f.err
}

type fixedYear program.AcademicYear

func (y fixedYear) CurrentYear() program.AcademicYear { return program.AcademicYear(y) }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRunOnceRollsCurrentYear(t *testing.T) {
	roller := &fakeRoller{sum: app.RolloverSummary{Created: 2}}
	s := NewRolloverScheduler(roller, fixedYear("2025-26"), quietLogger(), "0 6 * * *")

	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []program.AcademicYear{"2025-26", "2025-26"}, roller.years)
}

func TestRunOnceOutsideSelectionIsQuiet(t *testing.T) {
	roller := &fakeRoller{err: &program.PhaseMismatchError{Op: program.OpRollover, Year: "2025-26", Phase: program.PhaseActive}}
	s := NewRolloverScheduler(roller, fixedYear("2025-26"), quietLogger(), "0 6 * * *")

	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestRunOnceReportsStoreFailure(t *testing.T) {
	boom := errors.New("roster unavailable")
	s := NewRolloverScheduler(&fakeRoller{err: boom}, fixedYear("2025-26"), quietLogger(), "0 6 * * *")

	assert.ErrorIs(t, s.RunOnce(context.Background()), boom)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewRolloverScheduler(&fakeRoller{}, fixedYear("2025-26"), quietLogger(), "not a cron spec")
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := NewRolloverScheduler(&fakeRoller{}, fixedYear("2025-26"), quietLogger(), "@every 1h")
	require.NoError(t, s.Start())
	s.Stop()
}
