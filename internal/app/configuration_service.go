package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/tier"
)

// ConfigurationService edits a teacher's configuration during TEACHER_SELECTION.
type ConfigurationService struct {
	store          document.Store
	phases         program.PhaseSource
	defaultCeiling int
	log            *logrus.Entry
	now            func() time.Time
}

func NewConfigurationService(store document.Store, phases program.PhaseSource, defaultCeiling int, log *logrus.Entry) *ConfigurationService {
	return &ConfigurationService{
		store:          store,
		phases:         phases,
		defaultCeiling: defaultCeiling,
		log:            log.WithField("component", "configuration"),
		now:            time.Now,
	}
}

type bookRef struct {
	BookID string `validate:"required,max=64"`
}

type rewardInput struct {
	BookCount int    `validate:"gte=1"`
	Reward    string `validate:"required,max=200"`
}

// editFunc changes cfg in place and reports whether anything changed.
type editFunc func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error)

// edit runs fn against the configuration in one atomic update. A configuration that does
// not exist yet starts as an empty draft; it is only persisted if fn changes it.
func (s *ConfigurationService) edit(ctx context.Context, teacherID string, year program.AcademicYear, fn editFunc) (*configuration.TeacherConfiguration, bool, error) {
	if err := checkRef(teacherID, year); err != nil {
		return nil, false, err
	}
	if err := program.Check(ctx, s.phases, year, program.OpEditConfiguration); err != nil {
		return nil, false, err
	}
	ceiling, err := ceilingFor(ctx, s.store, teacherID, year, s.defaultCeiling)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	var draft *configuration.TeacherConfiguration
	var changed bool
	cfg, err := document.Update(ctx, s.store, configuration.Path(teacherID, year), func(cur *configuration.TeacherConfiguration) (*configuration.TeacherConfiguration, error) {
		draft, changed = nil, false
		if cur == nil {
			cur = configuration.New(teacherID, year, ceiling, now)
			draft = cur
		}
		ok, err := fn(cur, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, document.ErrUnchanged
		}
		changed = true
		return cur, nil
	})
	if err != nil {
		return nil, false, err
	}
	if cfg == nil {
		// nothing stored and nothing to store
		return draft, false, nil
	}
	return cfg, changed, nil
}

// SelectBook adds a nominee of year to the teacher's selection.
func (s *ConfigurationService) SelectBook(ctx context.Context, teacherID string, year program.AcademicYear, bookID string) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year, "book_id": bookID})
	if err := checkInput(bookRef{BookID: bookID}); err != nil {
		return nil, err
	}
	if err := s.requireNominee(ctx, year, bookID); err != nil {
		log.WithError(err).Warn("Book selection rejected")
		return nil, err
	}

	cfg, changed, err := s.edit(ctx, teacherID, year, func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error) {
		return cfg.SelectBook(bookID, now)
	})
	if err != nil {
		s.logEditError(log, "select book", err)
		return nil, err
	}
	if changed {
		log.WithField("selected", len(cfg.SelectedBookIDs)).Info("Book selected")
	}
	return cfg, nil
}

// DeselectBook removes a book from the teacher's selection.
func (s *ConfigurationService) DeselectBook(ctx context.Context, teacherID string, year program.AcademicYear, bookID string) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year, "book_id": bookID})
	if err := checkInput(bookRef{BookID: bookID}); err != nil {
		return nil, err
	}
	cfg, changed, err := s.edit(ctx, teacherID, year, func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error) {
		return cfg.DeselectBook(bookID, now)
	})
	if err != nil {
		s.logEditError(log, "deselect book", err)
		return nil, err
	}
	if changed {
		log.WithField("selected", len(cfg.SelectedBookIDs)).Info("Book deselected")
	}
	return cfg, nil
}

// SetCompletionOption enables or disables a toggleable completion method.
func (s *ConfigurationService) SetCompletionOption(ctx context.Context, teacherID string, year program.AcademicYear, option configuration.Method, enabled bool) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year, "option": option, "enabled": enabled})
	cfg, changed, err := s.edit(ctx, teacherID, year, func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error) {
		return cfg.SetOption(option, enabled, now)
	})
	if err != nil {
		s.logEditError(log, "set completion option", err)
		return nil, err
	}
	if changed {
		log.Info("Completion option updated")
	}
	return cfg, nil
}

// SetTierReward replaces the reward text of the tier with the given book count.
func (s *ConfigurationService) SetTierReward(ctx context.Context, teacherID string, year program.AcademicYear, bookCount int, reward string) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year, "book_count": bookCount})
	if err := checkInput(rewardInput{BookCount: bookCount, Reward: reward}); err != nil {
		return nil, err
	}
	cfg, changed, err := s.edit(ctx, teacherID, year, func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error) {
		return cfg.SetTierReward(bookCount, reward, now)
	})
	if err != nil {
		s.logEditError(log, "set tier reward", err)
		return nil, err
	}
	if changed {
		log.Info("Tier reward updated")
	}
	return cfg, nil
}

// Save moves the configuration from draft to saved.
func (s *ConfigurationService) Save(ctx context.Context, teacherID string, year program.AcademicYear) (*configuration.TeacherConfiguration, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "year": year})
	cfg, changed, err := s.edit(ctx, teacherID, year, func(cfg *configuration.TeacherConfiguration, now time.Time) (bool, error) {
		return cfg.Save(now)
	})
	if err != nil {
		s.logEditError(log, "save", err)
		return nil, err
	}
	if changed {
		log.WithField("books", len(cfg.SelectedBookIDs)).Info("Configuration saved")
	}
	return cfg, nil
}

// GetConfiguration returns the stored configuration or ErrConfigurationNotFound.
func (s *ConfigurationService) GetConfiguration(ctx context.Context, teacherID string, year program.AcademicYear) (*configuration.TeacherConfiguration, error) {
	if err := checkRef(teacherID, year); err != nil {
		return nil, err
	}
	return getConfiguration(ctx, s.store, teacherID, year)
}

// GetTiers returns the achievement tiers of the configuration.
func (s *ConfigurationService) GetTiers(ctx context.Context, teacherID string, year program.AcademicYear) ([]tier.Tier, error) {
	cfg, err := s.GetConfiguration(ctx, teacherID, year)
	if err != nil {
		return nil, err
	}
	return cfg.AchievementTiers, nil
}

func (s *ConfigurationService) requireNominee(ctx context.Context, year program.AcademicYear, bookID string) error {
	if err := year.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	_, err := s.store.Read(ctx, catalog.Path(year, bookID))
	if document.IsNotFound(err) {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownBook, bookID)
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	return nil
}

func (s *ConfigurationService) logEditError(log *logrus.Entry, op string, err error) {
	switch {
	case errors.Is(err, program.ErrPhaseMismatch),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, configuration.ErrCapacityExceeded),
		errors.Is(err, configuration.ErrEmptySelection),
		errors.Is(err, configuration.ErrInvalidOption),
		errors.Is(err, configuration.ErrUnknownTier),
		errors.Is(err, configuration.ErrLocked):
		log.WithError(err).Warnf("Rejected %s", op)
	default:
		log.WithError(err).Errorf("Failed to %s", op)
	}
}
