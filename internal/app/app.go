package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/submission"
)

// Application-level errors. Domain rule violations keep their own sentinels
// (configuration.ErrCapacityExceeded, submission.ErrInvalidTransition, ...).
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrStudentNotFound       = errors.New("student not found")
	ErrNotAssigned           = errors.New("student is not assigned to this teacher")
	ErrBookNotReleased       = errors.New("book is not in the teacher's released selection")
	ErrMethodNotEnabled      = errors.New("completion method is not enabled for this teacher")
)

// MaxNoteLength is the longest teacher note accepted, in characters.
const MaxNoteLength = 500

// Notifier delivers workflow events to people. Failures are logged by the caller and
// never undo the operation that produced the event.
type Notifier interface {
	NotifyReleased(ctx context.Context, cfg *configuration.TeacherConfiguration) error
	NotifySubmitted(ctx context.Context, student *submission.Student, sub *submission.Submission) error
	NotifyDecision(ctx context.Context, student *submission.Student, sub *submission.Submission) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) NotifyReleased(context.Context, *configuration.TeacherConfiguration) error {
	return nil
}
func (NopNotifier) NotifySubmitted(context.Context, *submission.Student, *submission.Submission) error {
	return nil
}
func (NopNotifier) NotifyDecision(context.Context, *submission.Student, *submission.Submission) error {
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// configRef addresses one configuration document.
type configRef struct {
	TeacherID string               `validate:"required,max=64"`
	Year      program.AcademicYear `validate:"required"`
}

func checkInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func checkRef(teacherID string, year program.AcademicYear) error {
	if err := checkInput(configRef{TeacherID: teacherID, Year: year}); err != nil {
		return err
	}
	if err := year.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// ceilingLookback bounds how many earlier years ceilingFor searches.
const ceilingLookback = 10

// ceilingFor returns the ceiling a new configuration for year gets: the teacher's own
// ceiling from their most recent earlier configuration, or def for first-time teachers.
// Years the teacher sat out are skipped.
func ceilingFor(ctx context.Context, store document.Store, teacherID string, year program.AcademicYear, def int) (int, error) {
	paths := make([]string, 0, ceilingLookback)
	for y, i := year.Prev(), 0; i < ceilingLookback; y, i = y.Prev(), i+1 {
		paths = append(paths, configuration.Path(teacherID, y))
	}
	bodies, err := document.ReadMany(ctx, store, paths)
	if err != nil {
		return 0, fmt.Errorf("failed to read previous configurations: %w", err)
	}
	for _, p := range paths {
		body, ok := bodies[p]
		if !ok {
			continue
		}
		prev, err := document.Decode[configuration.TeacherConfiguration](p, body)
		if err != nil {
			return 0, err
		}
		return prev.Ceiling, nil
	}
	return def, nil
}

func getConfiguration(ctx context.Context, store document.Store, teacherID string, year program.AcademicYear) (*configuration.TeacherConfiguration, error) {
	cfg, err := document.Get[configuration.TeacherConfiguration](ctx, store, configuration.Path(teacherID, year))
	if document.IsNotFound(err) {
		return nil, fmt.Errorf("%w: teacher %s, year %s", ErrConfigurationNotFound, teacherID, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return cfg, nil
}

func getStudent(ctx context.Context, store document.Store, studentID string) (*submission.Student, error) {
	st, err := document.Get[submission.Student](ctx, store, submission.StudentPath(studentID))
	if document.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read student: %w", err)
	}
	return st, nil
}
