package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/submission"
	"reading_program_bot/internal/domain/teacher"
	idb "reading_program_bot/internal/infra/database" // roster errors
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrTeacherAlreadyExists = fmt.Errorf("teacher with this Telegram ID already exists")
var ErrTeacherAlreadyInactive = fmt.Errorf("teacher is already inactive")
var ErrTeacherInactive = fmt.Errorf("teacher is inactive")

// AdminService manages the roster: teachers and the students assigned to them.
type AdminService struct {
	teacherRepo     teacher.Repository
	store           document.Store
	adminTelegramID int64
	log             *logrus.Entry
	now             func() time.Time
}

func NewAdminService(tr teacher.Repository, store document.Store, adminID int64, log *logrus.Entry) *AdminService {
	return &AdminService{
		teacherRepo:     tr,
		store:           store,
		adminTelegramID: adminID,
		log:             log.WithField("component", "admin"),
		now:             time.Now,
	}
}

type enrollInput struct {
	StudentID  string `validate:"required,max=64"`
	Name       string `validate:"required,max=120"`
	Grade      string `validate:"required,max=16"`
	TelegramID int64  `validate:"gte=0"`
}

// IsAdmin reports whether telegramID is the configured administrator.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return telegramID == s.adminTelegramID
}

// AddTeacher handles the business logic for adding a new teacher.
func (s *AdminService) AddTeacher(ctx context.Context, performingAdminID int64, newTeacherTelegramID int64, firstName string, lastNameValue string) (*teacher.Teacher, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	// Check if teacher already exists by Telegram ID
	_, err := s.teacherRepo.GetByTelegramID(ctx, newTeacherTelegramID)
	if err == nil {
		return nil, ErrTeacherAlreadyExists
	}
	if !errors.Is(err, idb.ErrTeacherNotFound) {
		return nil, fmt.Errorf("failed to check existing teacher: %w", err)
	}

	var lastName sql.NullString
	if lastNameValue != "" {
		lastName.String = lastNameValue
		lastName.Valid = true
	}

	newTeacher := &teacher.Teacher{
		TelegramID: newTeacherTelegramID,
		FirstName:  firstName,
		LastName:   lastName,
		IsActive:   true, // New teachers are active by default
	}

	err = s.teacherRepo.Create(ctx, newTeacher)
	if err != nil {
		if errors.Is(err, idb.ErrDuplicateTelegramID) { // lost a race with a concurrent add
			return nil, ErrTeacherAlreadyExists
		}
		return nil, fmt.Errorf("failed to create teacher in repository: %w", err)
	}

	s.log.WithFields(logrus.Fields{"teacher_id": newTeacher.Key(), "telegram_id": newTeacher.TelegramID}).Info("Teacher added")
	return newTeacher, nil
}

// RemoveTeacher deactivates a teacher. Their configurations and students are kept.
func (s *AdminService) RemoveTeacher(ctx context.Context, performingAdminID int64, teacherTelegramIDToRemove int64) (*teacher.Teacher, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	targetTeacher, err := s.teacherRepo.GetByTelegramID(ctx, teacherTelegramIDToRemove)
	if err != nil {
		if errors.Is(err, idb.ErrTeacherNotFound) {
			return nil, idb.ErrTeacherNotFound
		}
		return nil, fmt.Errorf("failed to get teacher by Telegram ID for removal: %w", err)
	}

	if !targetTeacher.IsActive {
		return targetTeacher, ErrTeacherAlreadyInactive
	}

	targetTeacher.IsActive = false
	err = s.teacherRepo.Update(ctx, targetTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to update teacher to inactive in repository: %w", err)
	}

	s.log.WithField("teacher_id", targetTeacher.Key()).Info("Teacher deactivated")
	return targetTeacher, nil
}

// ListTeachers returns the active roster, or every teacher when all is set.
func (s *AdminService) ListTeachers(ctx context.Context, performingAdminID int64, all bool) ([]*teacher.Teacher, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	if all {
		return s.teacherRepo.ListAll(ctx)
	}
	return s.teacherRepo.ListActive(ctx)
}

// TeacherByTelegramID resolves the roster entry of an active teacher.
func (s *AdminService) TeacherByTelegramID(ctx context.Context, telegramID int64) (*teacher.Teacher, error) {
	t, err := s.teacherRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTeacherInactive
	}
	return t, nil
}

// EnrollStudent creates the student record, or updates name and grade and moves an
// existing student to teacherTelegramID. Shelf and counters are never reset here.
func (s *AdminService) EnrollStudent(ctx context.Context, performingAdminID int64, teacherTelegramID int64, studentID, name, grade string, studentTelegramID int64) (*submission.Student, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	if err := checkInput(enrollInput{StudentID: studentID, Name: name, Grade: grade, TelegramID: studentTelegramID}); err != nil {
		return nil, err
	}
	t, err := s.TeacherByTelegramID(ctx, teacherTelegramID)
	if err != nil {
		return nil, err
	}
	teacherID := t.Key()
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "student_id": studentID})

	now := s.now()
	var stale []string
	st, err := document.Update(ctx, s.store, submission.StudentPath(studentID), func(cur *submission.Student) (*submission.Student, error) {
		stale = nil
		if cur == nil {
			return &submission.Student{
				ID:         studentID,
				Name:       name,
				Grade:      grade,
				TeacherID:  teacherID,
				TelegramID: studentTelegramID,
				Shelf:      map[string]*submission.Submission{},
				CreatedAt:  now,
				UpdatedAt:  now,
			}, nil
		}
		moved := cur.TeacherID != teacherID
		if moved {
			cur.StaleTeacherIDs = addStale(cur.StaleTeacherIDs, cur.TeacherID)
		}
		cur.StaleTeacherIDs = slices.DeleteFunc(cur.StaleTeacherIDs, func(id string) bool { return id == teacherID })
		stale = slices.Clone(cur.StaleTeacherIDs)
		if !moved && cur.Name == name && cur.Grade == grade && (studentTelegramID == 0 || cur.TelegramID == studentTelegramID) {
			return nil, document.ErrUnchanged
		}
		cur.TeacherID = teacherID
		cur.Name = name
		cur.Grade = grade
		if studentTelegramID != 0 {
			cur.TelegramID = studentTelegramID
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to store student")
		return nil, err
	}

	if err := s.linkStudent(ctx, teacherID, studentID, true); err != nil {
		log.WithError(err).Error("Failed to link student to teacher")
		return nil, err
	}
	if len(stale) == 0 {
		log.Info("Student enrolled")
		return st, nil
	}
	// The stale list stays on the student until every unlink went through, so a retried
	// enrolment finishes the move.
	for _, prev := range stale {
		if err := s.linkStudent(ctx, prev, studentID, false); err != nil {
			log.WithError(err).WithField("previous_teacher_id", prev).Error("Failed to unlink student from previous teacher")
			return nil, err
		}
	}
	st, err = document.Update(ctx, s.store, submission.StudentPath(studentID), func(cur *submission.Student) (*submission.Student, error) {
		if cur == nil {
			return nil, document.ErrUnchanged
		}
		n := len(cur.StaleTeacherIDs)
		cur.StaleTeacherIDs = slices.DeleteFunc(cur.StaleTeacherIDs, func(id string) bool { return slices.Contains(stale, id) })
		if len(cur.StaleTeacherIDs) == n {
			return nil, document.ErrUnchanged
		}
		if len(cur.StaleTeacherIDs) == 0 {
			cur.StaleTeacherIDs = nil
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to clear previous teacher links")
		return nil, err
	}
	log.WithField("previous_teacher_ids", stale).Info("Student moved to another teacher")
	return st, nil
}

func addStale(ids []string, id string) []string {
	if id == "" || slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func (s *AdminService) linkStudent(ctx context.Context, teacherID, studentID string, link bool) error {
	now := s.now()
	_, err := document.Update(ctx, s.store, teacher.ProfilePath(teacherID), func(cur *teacher.Profile) (*teacher.Profile, error) {
		if cur == nil {
			if !link {
				return nil, document.ErrUnchanged
			}
			cur = &teacher.Profile{TeacherID: teacherID, StudentIDs: []string{}}
		}
		var changed bool
		if link {
			changed = cur.AddStudent(studentID, now)
		} else {
			changed = cur.RemoveStudent(studentID, now)
		}
		if !changed {
			return nil, document.ErrUnchanged
		}
		return cur, nil
	})
	return err
}
