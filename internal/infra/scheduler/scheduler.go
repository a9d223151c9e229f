package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/program"
)

// Roller is the part of app.RolloverService the scheduler drives.
type Roller interface {
	RolloverActive(ctx context.Context, newYear program.AcademicYear) (app.RolloverSummary, error)
}

// YearClock reports the academic year in effect now (program.Calendar).
type YearClock interface {
	CurrentYear() program.AcademicYear
}

// RolloverScheduler opens the new academic year for every active teacher once the
// calendar enters TEACHER_SELECTION. The job runs daily; runs after the first one
// find the configurations already in place and change nothing.
type RolloverScheduler struct {
	cronEngine *cron.Cron
	roller     Roller
	clock      YearClock
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration
}

func NewRolloverScheduler(roller Roller, clock YearClock, logger *logrus.Entry, cronSpec string) *RolloverScheduler {
	return &RolloverScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		roller:     roller,
		clock:      clock,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec, // e.g., "0 6 * * *" (6:00 AM daily)
		timeout:    5 * time.Minute,
	}
}

// Start registers the rollover job and starts the cron engine.
func (s *RolloverScheduler) Start() error {
	s.logger.Info("Starting rollover scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for year rollover.")
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Error during year rollover")
		}
	})
	if err != nil {
		return fmt.Errorf("could not add rollover cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Rollover scheduler started.")
	return nil
}

// RunOnce performs one rollover check. Being outside TEACHER_SELECTION is not an error.
func (s *RolloverScheduler) RunOnce(ctx context.Context) error {
	year := s.clock.CurrentYear()
	sum, err := s.roller.RolloverActive(ctx, year)
	if errors.Is(err, program.ErrPhaseMismatch) {
		s.logger.WithField("year", year).Debug("Not in teacher selection, skipping rollover.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollover to %s: %w", year, err)
	}
	if sum.Failed > 0 {
		s.logger.WithFields(logrus.Fields{"year": year, "failed": sum.Failed}).Warn("Rollover finished with failures.")
	}
	return nil
}

func (s *RolloverScheduler) Stop() {
	s.logger.Info("Stopping rollover scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Rollover scheduler gracefully stopped.")
}
