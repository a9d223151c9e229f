package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/submission"
	"reading_program_bot/internal/domain/teacher"
)

// SubmissionService drives the per-book workflow: students add, submit and take quizzes,
// the assigned teacher approves or asks for a revision.
type SubmissionService struct {
	store    document.Store
	phases   program.PhaseSource
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func NewSubmissionService(store document.Store, phases program.PhaseSource, notifier Notifier, log *logrus.Entry) *SubmissionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SubmissionService{
		store:    store,
		phases:   phases,
		notifier: notifier,
		log:      log.WithField("component", "submission"),
		now:      time.Now,
	}
}

type reviewInput struct {
	TeacherID string `validate:"required,max=64"`
	StudentID string `validate:"required,max=64"`
	BookID    string `validate:"required,max=64"`
	Note      string `validate:"max=500"`
}

type teacherRef struct {
	TeacherID string `validate:"required,max=64"`
}

type shelfInput struct {
	StudentID string `validate:"required,max=64"`
	BookID    string `validate:"required,max=64"`
}

type submitInput struct {
	StudentID string               `validate:"required,max=64"`
	BookID    string               `validate:"required,max=64"`
	Method    configuration.Method `validate:"required"`
	Progress  int                  `validate:"gte=0"`
}

// PendingSubmission is one entry of a teacher's review queue.
type PendingSubmission struct {
	StudentID   string
	StudentName string
	Grade       string
	Submission  submission.Submission
}

// Approve completes a pending submission. Approving a completed submission is a no-op
// that returns it unchanged; the counters move once.
func (s *SubmissionService) Approve(ctx context.Context, teacherID, studentID, bookID, note string) (*submission.Submission, error) {
	return s.review(ctx, teacherID, studentID, bookID, note, submission.EventApprove)
}

// RequestRevision sends a pending submission back to the student with note.
func (s *SubmissionService) RequestRevision(ctx context.Context, teacherID, studentID, bookID, note string) (*submission.Submission, error) {
	return s.review(ctx, teacherID, studentID, bookID, note, submission.EventRequestRevision)
}

func (s *SubmissionService) review(ctx context.Context, teacherID, studentID, bookID, note string, ev submission.Event) (*submission.Submission, error) {
	log := s.log.WithFields(logrus.Fields{"teacher_id": teacherID, "student_id": studentID, "book_id": bookID, "event": ev})
	if err := checkInput(reviewInput{TeacherID: teacherID, StudentID: studentID, BookID: bookID, Note: note}); err != nil {
		log.WithError(err).Warn("Review rejected")
		return nil, err
	}

	st, err := getStudent(ctx, s.store, studentID)
	if err != nil {
		return nil, err
	}
	if st.TeacherID != teacherID {
		log.Warn("Review by a teacher the student is not assigned to")
		return nil, ErrNotAssigned
	}
	sub, ok := st.Submission(bookID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", submission.ErrNotOnShelf, bookID)
	}
	if err := program.Check(ctx, s.phases, sub.Year, program.OpReviewSubmission); err != nil {
		log.WithError(err).Warn("Review rejected")
		return nil, err
	}

	st, out, err := s.apply(ctx, studentID, bookID, submission.Change{Event: ev, Note: note}, func(cur *submission.Student) error {
		if cur.TeacherID != teacherID {
			return ErrNotAssigned
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, submission.ErrInvalidTransition) || errors.Is(err, ErrNotAssigned) {
			log.WithError(err).Warn("Review rejected")
		} else {
			log.WithError(err).Error("Failed to store review")
		}
		return nil, err
	}
	sub, _ = st.Submission(bookID)

	// Covers the first approval and retries of it, in case the profile write
	// did not happen the first time.
	if out.To == submission.StatusCompleted {
		if err := s.creditTeacher(ctx, teacherID, st, sub); err != nil {
			log.WithError(err).Error("Failed to credit teacher profile")
			return nil, err
		}
	}

	if out.Noop {
		log.Info("Submission already completed")
		return sub, nil
	}
	log.WithField("status", out.To).Info("Submission reviewed")
	if err := s.notifier.NotifyDecision(ctx, st, sub); err != nil {
		log.WithError(err).Warn("Failed to send decision notification")
	}
	return sub, nil
}

// AddToShelf puts a released book of year on the student's shelf.
func (s *SubmissionService) AddToShelf(ctx context.Context, studentID string, year program.AcademicYear, bookID string) (*submission.Submission, error) {
	log := s.log.WithFields(logrus.Fields{"student_id": studentID, "book_id": bookID, "year": year})
	if err := checkInput(shelfInput{StudentID: studentID, BookID: bookID}); err != nil {
		return nil, err
	}
	if err := program.Check(ctx, s.phases, year, program.OpStudentReading); err != nil {
		return nil, err
	}
	st, err := getStudent(ctx, s.store, studentID)
	if err != nil {
		return nil, err
	}
	cfg, err := getConfiguration(ctx, s.store, st.TeacherID, year)
	if errors.Is(err, ErrConfigurationNotFound) {
		return nil, ErrBookNotReleased
	}
	if err != nil {
		return nil, err
	}
	if cfg.Status != configuration.StatusReleased || !cfg.HasBook(bookID) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotReleased, bookID)
	}

	st, out, err := s.apply(ctx, studentID, bookID, submission.Change{Event: submission.EventAddToShelf, Year: year}, nil)
	if err != nil {
		log.WithError(err).Error("Failed to add book to shelf")
		return nil, err
	}
	if !out.Noop {
		log.Info("Book added to shelf")
	}
	sub, _ := st.Submission(bookID)
	return sub, nil
}

// Submit hands an in-progress or revised book to the teacher for approval.
func (s *SubmissionService) Submit(ctx context.Context, studentID, bookID string, method configuration.Method, progress int) (*submission.Submission, error) {
	log := s.log.WithFields(logrus.Fields{"student_id": studentID, "book_id": bookID, "method": method})
	if err := checkInput(submitInput{StudentID: studentID, BookID: bookID, Method: method, Progress: progress}); err != nil {
		return nil, err
	}
	if method == configuration.MethodQuiz {
		return nil, submission.ErrQuizNotSubmittable
	}
	st, sub, err := s.shelfEntry(ctx, studentID, bookID)
	if err != nil {
		return nil, err
	}
	if err := program.Check(ctx, s.phases, sub.Year, program.OpStudentReading); err != nil {
		return nil, err
	}
	cfg, err := getConfiguration(ctx, s.store, st.TeacherID, sub.Year)
	if err != nil {
		return nil, err
	}
	if !cfg.MethodEnabled(method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotEnabled, method)
	}

	st, out, err := s.apply(ctx, studentID, bookID, submission.Change{Event: submission.EventSubmit, Method: method, Progress: progress}, nil)
	if err != nil {
		log.WithError(err).Warn("Submission rejected")
		return nil, err
	}
	sub, _ = st.Submission(bookID)
	log.WithField("from", out.From).Info("Book submitted for approval")
	if err := s.notifier.NotifySubmitted(ctx, st, sub); err != nil {
		log.WithError(err).Warn("Failed to send submission notification")
	}
	return sub, nil
}

// RecordQuizResult completes the book on a pass and moves it to quiz_failed otherwise.
// score is stored as the progress value.
func (s *SubmissionService) RecordQuizResult(ctx context.Context, studentID, bookID string, passed bool, score int) (*submission.Submission, error) {
	log := s.log.WithFields(logrus.Fields{"student_id": studentID, "book_id": bookID, "passed": passed})
	if err := checkInput(shelfInput{StudentID: studentID, BookID: bookID}); err != nil {
		return nil, err
	}
	_, sub, err := s.shelfEntry(ctx, studentID, bookID)
	if err != nil {
		return nil, err
	}
	if err := program.Check(ctx, s.phases, sub.Year, program.OpStudentReading); err != nil {
		return nil, err
	}

	ev := submission.EventQuizFailed
	if passed {
		ev = submission.EventQuizPassed
	}
	st, out, err := s.apply(ctx, studentID, bookID, submission.Change{Event: ev, Progress: score}, nil)
	if err != nil {
		log.WithError(err).Warn("Quiz result rejected")
		return nil, err
	}
	sub, _ = st.Submission(bookID)
	if out.Credited {
		if err := s.creditTeacher(ctx, st.TeacherID, st, sub); err != nil {
			log.WithError(err).Error("Failed to credit teacher profile")
			return nil, err
		}
	}
	log.WithField("status", out.To).Info("Quiz result recorded")
	return sub, nil
}

// GetPendingSubmissions lists the teacher's pending_approval submissions, most recently
// submitted first, ties broken by student id then book id.
func (s *SubmissionService) GetPendingSubmissions(ctx context.Context, teacherID string) ([]PendingSubmission, error) {
	if err := checkInput(teacherRef{TeacherID: teacherID}); err != nil {
		return nil, err
	}
	profile, err := document.Get[teacher.Profile](ctx, s.store, teacher.ProfilePath(teacherID))
	if document.IsNotFound(err) {
		return []PendingSubmission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read teacher profile: %w", err)
	}

	paths := make([]string, 0, len(profile.StudentIDs))
	for _, id := range profile.StudentIDs {
		paths = append(paths, submission.StudentPath(id))
	}
	bodies, err := document.ReadMany(ctx, s.store, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to read students: %w", err)
	}

	pending := make([]PendingSubmission, 0)
	for _, path := range paths {
		body, ok := bodies[path]
		if !ok {
			continue
		}
		st, err := document.Decode[submission.Student](path, body)
		if err != nil {
			return nil, err
		}
		if st.TeacherID != teacherID {
			continue
		}
		for _, sub := range st.Shelf {
			if sub.Status != submission.StatusPendingApproval {
				continue
			}
			pending = append(pending, PendingSubmission{StudentID: st.ID, StudentName: st.Name, Grade: st.Grade, Submission: *sub})
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		ta, tb := submittedAt(a.Submission), submittedAt(b.Submission)
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.Submission.BookID < b.Submission.BookID
	})
	return pending, nil
}

// GetStudent returns the student document.
func (s *SubmissionService) GetStudent(ctx context.Context, studentID string) (*submission.Student, error) {
	return getStudent(ctx, s.store, studentID)
}

func submittedAt(sub submission.Submission) time.Time {
	if sub.SubmittedAt == nil {
		return time.Time{}
	}
	return *sub.SubmittedAt
}

func (s *SubmissionService) shelfEntry(ctx context.Context, studentID, bookID string) (*submission.Student, *submission.Submission, error) {
	st, err := getStudent(ctx, s.store, studentID)
	if err != nil {
		return nil, nil, err
	}
	sub, ok := st.Submission(bookID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", submission.ErrNotOnShelf, bookID)
	}
	return st, sub, nil
}

// apply runs one workflow change against the student document. guard, when set, is
// re-checked against the stored student inside the update.
func (s *SubmissionService) apply(ctx context.Context, studentID, bookID string, ch submission.Change, guard func(*submission.Student) error) (*submission.Student, submission.Outcome, error) {
	now := s.now()
	var out submission.Outcome
	st, err := document.Update(ctx, s.store, submission.StudentPath(studentID), func(cur *submission.Student) (*submission.Student, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
		}
		if guard != nil {
			if err := guard(cur); err != nil {
				return nil, err
			}
		}
		var err error
		out, err = cur.Apply(bookID, ch, now)
		if err != nil {
			return nil, err
		}
		if out.Noop {
			return nil, document.ErrUnchanged
		}
		return cur, nil
	})
	if err != nil {
		return nil, submission.Outcome{}, err
	}
	return st, out, nil
}

// creditTeacher adds a completion to the teacher profile once per (student, book, year).
func (s *SubmissionService) creditTeacher(ctx context.Context, teacherID string, st *submission.Student, sub *submission.Submission) error {
	key := teacher.CreditKey(st.ID, sub.BookID, sub.Year)
	now := s.now()
	_, err := document.Update(ctx, s.store, teacher.ProfilePath(teacherID), func(cur *teacher.Profile) (*teacher.Profile, error) {
		if cur == nil {
			cur = &teacher.Profile{TeacherID: teacherID, StudentIDs: []string{}}
		}
		if !cur.Credit(key, sub.Year, now) {
			return nil, document.ErrUnchanged
		}
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("failed to credit teacher %s: %w", teacherID, err)
	}
	return nil
}
