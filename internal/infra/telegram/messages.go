package telegram

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/submission"
	idb "reading_program_bot/internal/infra/database"
)

const (
	approveUnique   = "approve"
	errUnauthorized = "Error: you are not allowed to run this command."
	errInternal     = "Something went wrong. Please try again later."
)

// approveBtn is the endpoint for the inline Approve button under pending submissions.
var approveBtn = (&telebot.ReplyMarkup{}).Data("Approve", approveUnique)

// describeError turns a service error into the text shown to the user. The second
// result is false for errors that are not the user's fault.
func describeError(err error) (string, bool) {
	var mismatch *program.PhaseMismatchError
	switch {
	case errors.As(err, &mismatch):
		phase := string(mismatch.Phase)
		if phase == "" {
			phase = "not started"
		}
		return fmt.Sprintf("Not possible right now: %s is in phase %s.", mismatch.Year, phase), true
	case errors.Is(err, app.ErrInvalidInput):
		return "Invalid input: " + err.Error(), true
	case errors.Is(err, configuration.ErrCapacityExceeded):
		return "You have reached your book limit for this year.", true
	case errors.Is(err, configuration.ErrEmptySelection):
		return "Select at least one book first.", true
	case errors.Is(err, configuration.ErrInvalidOption):
		return fmt.Sprintf("Unknown option. Toggleable options: %s. The quiz is always on.", joinMethods(configuration.ToggleableMethods)), true
	case errors.Is(err, configuration.ErrUnknownTier):
		return "There is no tier with that book count. See /config.", true
	case errors.Is(err, configuration.ErrNotSaved):
		return "Save the configuration with /save before releasing it.", true
	case errors.Is(err, configuration.ErrAlreadyReleased):
		return "This configuration was already released.", true
	case errors.Is(err, configuration.ErrLocked):
		return "The configuration is released and can no longer be changed.", true
	case errors.Is(err, catalog.ErrUnknownBook):
		return "That book is not on this year's nominee list. See /books.", true
	case errors.Is(err, submission.ErrInvalidTransition):
		return "That submission is not waiting for review.", true
	case errors.Is(err, submission.ErrNotOnShelf):
		return "The student does not have that book on their shelf.", true
	case errors.Is(err, app.ErrNotAssigned):
		return "That student is not assigned to you.", true
	case errors.Is(err, app.ErrStudentNotFound):
		return "No such student.", true
	case errors.Is(err, app.ErrConfigurationNotFound):
		return "You have no configuration for this year yet. Start with /select.", true
	case errors.Is(err, app.ErrAdminNotAuthorized):
		return errUnauthorized, true
	case errors.Is(err, app.ErrTeacherInactive):
		return "That teacher account is inactive.", true
	case errors.Is(err, idb.ErrTeacherNotFound):
		return "No teacher with that Telegram ID.", true
	case errors.Is(err, document.ErrAlreadyExists):
		return "That already exists.", true
	default:
		return errInternal, false
	}
}

func joinMethods(ms []configuration.Method) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

func formatConfiguration(cfg *configuration.TeacherConfiguration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration %s: %s\n", cfg.Year, cfg.Status)
	fmt.Fprintf(&b, "Books (%d/%d):\n", len(cfg.SelectedBookIDs), cfg.Ceiling)
	if len(cfg.SelectedBookIDs) == 0 {
		b.WriteString("  none\n")
	}
	for _, id := range cfg.SelectedBookIDs {
		fmt.Fprintf(&b, "  - %s\n", id)
	}
	fmt.Fprintf(&b, "Completion methods: %s\n", joinMethods(cfg.EnabledMethods()))
	if len(cfg.AchievementTiers) > 0 {
		b.WriteString("Tiers:\n")
		for _, t := range cfg.AchievementTiers {
			suffix := ""
			if t.MultiYear {
				suffix = " (multi-year)"
			}
			fmt.Fprintf(&b, "  %d books: %s%s\n", t.BookCount, t.Reward, suffix)
		}
	}
	if cfg.Release != nil {
		fmt.Fprintf(&b, "Released %s\n", cfg.Release.ReleasedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPending(p app.PendingSubmission) string {
	sub := p.Submission
	at := ""
	if sub.SubmittedAt != nil {
		at = sub.SubmittedAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s (%s, grade %s) submitted %s via %s, progress %d, at %s",
		p.StudentName, p.StudentID, p.Grade, sub.BookID, sub.SubmissionType, sub.ProgressValue, at)
}

func formatDecision(sub *submission.Submission) string {
	switch sub.Status {
	case submission.StatusCompleted:
		msg := fmt.Sprintf("Your submission for %s was approved. Well done!", sub.BookID)
		if sub.TeacherNotes != "" {
			msg += "\nTeacher note: " + sub.TeacherNotes
		}
		return msg
	case submission.StatusRevisionRequested:
		msg := fmt.Sprintf("Your teacher asked for a revision of %s.", sub.BookID)
		if sub.TeacherNotes != "" {
			msg += "\nTeacher note: " + sub.TeacherNotes
		}
		return msg
	default:
		return fmt.Sprintf("Your submission for %s is now %s.", sub.BookID, sub.Status)
	}
}

// approveMarkup builds the inline keyboard shown under one pending submission.
func approveMarkup(studentID, bookID string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	btn := markup.Data(approveBtn.Text, approveUnique, studentID, bookID)
	markup.Inline(markup.Row(btn))
	return markup
}

// restText returns the arguments from index from joined back into free text.
func restText(args []string, from int) string {
	if from >= len(args) {
		return ""
	}
	return strings.Join(args[from:], " ")
}
