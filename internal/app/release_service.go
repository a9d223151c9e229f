package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
)

// ReleaseService publishes saved configurations to students.
type ReleaseService struct {
	store    document.Store
	phases   program.PhaseSource
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func NewReleaseService(store document.Store, phases program.PhaseSource, notifier Notifier, log *logrus.Entry) *ReleaseService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReleaseService{
		store:    store,
		phases:   phases,
		notifier: notifier,
		log:      log.WithField("component", "release"),
		now:      time.Now,
	}
}

// Release marks the configuration released and appends its ReleaseRecord. The status
// change is decided inside one atomic update of the configuration document, so
// concurrent or retried calls release once. A repeat call returns the stored
// configuration together with configuration.ErrAlreadyReleased.
func (s *ReleaseService) Release(ctx context.Context, teacherID string, year program.AcademicYear) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year})
	if err := checkRef(teacherID, year); err != nil {
		return nil, err
	}
	if err := program.Check(ctx, s.phases, year, program.OpReleaseConfiguration); err != nil {
		log.WithError(err).Warn("Release rejected")
		return nil, err
	}

	now := s.now()
	recordID := uuid.NewString()
	var released bool
	cfg, err := document.Update(ctx, s.store, configuration.Path(teacherID, year), func(cur *configuration.TeacherConfiguration) (*configuration.TeacherConfiguration, error) {
		released = false
		if cur == nil {
			return nil, configuration.ErrNotSaved
		}
		_, err := cur.MarkReleased(recordID, now)
		if errors.Is(err, configuration.ErrAlreadyReleased) {
			return nil, document.ErrUnchanged
		}
		if err != nil {
			return nil, err
		}
		released = true
		return cur, nil
	})
	if err != nil {
		log.WithError(err).Warn("Release rejected")
		return nil, err
	}

	// The log entry is keyed by (teacher, year), so re-appending after a partial
	// failure is a no-op.
	if err := s.appendRecord(ctx, cfg); err != nil {
		log.WithError(err).Error("Failed to append release record")
		return nil, err
	}

	if !released {
		log.Info("Configuration already released")
		return cfg, configuration.ErrAlreadyReleased
	}

	log.WithFields(logrus.Fields{"books": cfg.Release.BookCount, "release_id": cfg.Release.ID}).Info("Configuration released")
	if err := s.notifier.NotifyReleased(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to send release notification")
	}
	return cfg, nil
}

// ListReleases returns the release log, optionally filtered to one year.
func (s *ReleaseService) ListReleases(ctx context.Context, year program.AcademicYear) ([]configuration.ReleaseRecord, error) {
	records, err := document.ListJSON[configuration.ReleaseRecord](ctx, s.store, configuration.ReleasesCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	if year == "" {
		return records, nil
	}
	out := make([]configuration.ReleaseRecord, 0, len(records))
	for _, r := range records {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ReleaseService) appendRecord(ctx context.Context, cfg *configuration.TeacherConfiguration) error {
	if cfg.Release == nil {
		return fmt.Errorf("released configuration %s/%s has no release record", cfg.TeacherID, cfg.Year)
	}
	_, err := document.AppendJSON(ctx, s.store, configuration.ReleasesCollection, configuration.ReleaseKey(cfg.TeacherID, cfg.Year), cfg.Release)
	if err != nil && !errors.Is(err, document.ErrAlreadyExists) {
		return fmt.Errorf("failed to append release record: %w", err)
	}
	return nil
}
