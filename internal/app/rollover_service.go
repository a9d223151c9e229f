package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/teacher"
)

// RolloverService opens the next academic year for teachers.
type RolloverService struct {
	store          document.Store
	phases         program.PhaseSource
	teacherRepo    teacher.Repository
	defaultCeiling int
	log            *logrus.Entry
	now            func() time.Time
}

func NewRolloverService(store document.Store, phases program.PhaseSource, tr teacher.Repository, defaultCeiling int, log *logrus.Entry) *RolloverService {
	return &RolloverService{
		store:          store,
		phases:         phases,
		teacherRepo:    tr,
		defaultCeiling: defaultCeiling,
		log:            log.WithField("component", "rollover"),
		now:            time.Now,
	}
}

// RolloverSummary counts the outcomes of RolloverActive.
type RolloverSummary struct {
	Created  int
	Existing int
	Failed   int
}

// Rollover creates the empty newYear draft for teacherID with the ceiling carried over
// from oldYear. If the draft already exists it is returned with created=false and no
// error, so a retried trigger is harmless.
func (s *RolloverService) Rollover(ctx context.Context, teacherID string, oldYear, newYear program.AcademicYear) (*configuration.TeacherConfiguration, bool, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "old_year": oldYear, "year": newYear})
	if err := checkRef(teacherID, newYear); err != nil {
		return nil, false, err
	}
	if err := oldYear.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if oldYear.Next() != newYear {
		return nil, false, fmt.Errorf("%w: %s does not follow %s", ErrInvalidInput, newYear, oldYear)
	}
	if err := program.Check(ctx, s.phases, newYear, program.OpRollover); err != nil {
		log.WithError(err).Warn("Rollover rejected")
		return nil, false, err
	}
	ceiling, err := ceilingFor(ctx, s.store, teacherID, newYear, s.defaultCeiling)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	var created bool
	cfg, err := document.Update(ctx, s.store, configuration.Path(teacherID, newYear), func(cur *configuration.TeacherConfiguration) (*configuration.TeacherConfiguration, error) {
		created = false
		if cur != nil {
			return nil, document.ErrUnchanged
		}
		created = true
		return configuration.New(teacherID, newYear, ceiling, now), nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to roll over configuration")
		return nil, false, err
	}
	if !created {
		log.Info("Configuration for the new year already exists")
		return cfg, false, nil
	}
	log.WithField("ceiling", cfg.Ceiling).Info("Rolled over to the new year")
	return cfg, true, nil
}

// RolloverActive rolls every active roster teacher into newYear. It returns
// program.ErrPhaseMismatch without touching anything unless newYear is in
// TEACHER_SELECTION. Per-teacher failures are logged and counted.
func (s *RolloverService) RolloverActive(ctx context.Context, newYear program.AcademicYear) (RolloverSummary, error) {
	var sum RolloverSummary
	if err := program.Check(ctx, s.phases, newYear, program.OpRollover); err != nil {
		return sum, err
	}
	teachers, err := s.teacherRepo.ListActive(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list active teachers: %w", err)
	}
	for _, t := range teachers {
		_, created, err := s.Rollover(ctx, t.Key(), newYear.Prev(), newYear)
		switch {
		case err != nil:
			sum.Failed++
			if errors.Is(err, context.Canceled) {
				return sum, err
			}
		case created:
			sum.Created++
		default:
			sum.Existing++
		}
	}
	s.log.WithFields(logrus.Fields{
		"year":     newYear,
		"created":  sum.Created,
		"existing": sum.Existing,
		"failed":   sum.Failed,
	}).Info("Rollover run finished")
	return sum, nil
}
