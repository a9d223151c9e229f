package submission

import (
	"errors"
	"fmt"
	"time"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/program"
)

var (
	ErrNotOnShelf         = errors.New("book is not on the student's shelf")
	ErrQuizNotSubmittable = errors.New("quiz completions are recorded through quiz results")
)

// Submission is one book on a student's shelf.
type Submission struct {
	BookID              string               `json:"bookId"`
	Year                program.AcademicYear `json:"year"`
	Status              Status               `json:"status"`
	SubmissionType      configuration.Method `json:"submissionType,omitempty"`
	ProgressValue       int                  `json:"progressValue"`
	TeacherNotes        string               `json:"teacherNotes,omitempty"`
	QuizAttempts        int                  `json:"quizAttempts,omitempty"`
	AddedAt             time.Time            `json:"addedAt"`
	SubmittedAt         *time.Time           `json:"submittedAt,omitempty"`
	ApprovedAt          *time.Time           `json:"approvedAt,omitempty"`
	RevisionRequestedAt *time.Time           `json:"revisionRequestedAt,omitempty"`
	CompletedAt         *time.Time           `json:"completedAt,omitempty"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// Student is the document a student's whole shelf and counters live in, so every
// transition together with its counter update is a single-document write.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Grade      string `json:"grade"`
	TeacherID  string `json:"teacherId"`
	TelegramID int64  `json:"telegramId,omitempty"`
	// StaleTeacherIDs are former teachers whose profiles still list the student.
	StaleTeacherIDs   []string               `json:"staleTeacherIds,omitempty"`
	YearlyCompleted   int                    `json:"yearlyCompleted"`
	CounterYear       program.AcademicYear   `json:"counterYear,omitempty"`
	LifetimeCompleted int                    `json:"lifetimeCompleted"`
	Shelf             map[string]*Submission `json:"shelf"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// StudentPath is the document path of a student.
func StudentPath(studentID string) string { return "students/" + studentID }

// Change is the input to Apply. Only the fields relevant to Event are read.
type Change struct {
	Event    Event
	Year     program.AcademicYear
	Method   configuration.Method
	Progress int
	Note     string
}

// Outcome reports what Apply did.
type Outcome struct {
	From, To Status
	// Noop is set for repeats that are accepted without change: adding a book that is
	// already on the shelf, or approving a completed submission.
	Noop bool
	// Credited is set when this transition completed the book and counted it.
	Credited bool
}

// Submission returns the shelf entry for bookID.
func (s *Student) Submission(bookID string) (*Submission, bool) {
	sub, ok := s.Shelf[bookID]
	return sub, ok
}

// YearlyCompletedIn returns the completed count for year; other years read as zero.
func (s *Student) YearlyCompletedIn(year program.AcademicYear) int {
	if s.CounterYear != year {
		return 0
	}
	return s.YearlyCompleted
}

// Apply runs ch against the shelf entry for bookID. Counters move only on the
// transition into completed.
func (s *Student) Apply(bookID string, ch Change, now time.Time) (Outcome, error) {
	sub, ok := s.Shelf[bookID]
	from := StatusNone
	if ok {
		from = sub.Status
	}

	switch {
	case ch.Event == EventAddToShelf && ok:
		return Outcome{From: from, To: from, Noop: true}, nil
	case ch.Event == EventApprove && from == StatusCompleted:
		return Outcome{From: from, To: from, Noop: true}, nil
	case ch.Event != EventAddToShelf && !ok:
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotOnShelf, bookID)
	case ch.Event == EventSubmit && ch.Method == configuration.MethodQuiz:
		return Outcome{}, ErrQuizNotSubmittable
	}

	to, err := Transition(from, ch.Event)
	if err != nil {
		return Outcome{}, err
	}

	switch ch.Event {
	case EventAddToShelf:
		if s.Shelf == nil {
			s.Shelf = map[string]*Submission{}
		}
		sub = &Submission{BookID: bookID, Year: ch.Year, AddedAt: now}
		s.Shelf[bookID] = sub
	case EventSubmit:
		sub.SubmissionType = ch.Method
		sub.ProgressValue = ch.Progress
		sub.SubmittedAt = &now
	case EventApprove:
		sub.ApprovedAt = &now
		sub.TeacherNotes = ch.Note
	case EventRequestRevision:
		sub.RevisionRequestedAt = &now
		sub.TeacherNotes = ch.Note
	case EventQuizPassed, EventQuizFailed:
		sub.SubmissionType = configuration.MethodQuiz
		sub.QuizAttempts++
		sub.ProgressValue = ch.Progress
		sub.SubmittedAt = &now
	}
	sub.Status = to
	sub.UpdatedAt = now
	s.UpdatedAt = now

	out := Outcome{From: from, To: to}
	if to == StatusCompleted && from != StatusCompleted {
		sub.CompletedAt = &now
		s.credit(sub.Year)
		out.Credited = true
	}
	return out, nil
}

func (s *Student) credit(year program.AcademicYear) {
	s.LifetimeCompleted++
	switch {
	case s.CounterYear == year:
		s.YearlyCompleted++
	case s.CounterYear == "" || s.CounterYear.Before(year):
		s.CounterYear = year
		s.YearlyCompleted = 1
	}
}
