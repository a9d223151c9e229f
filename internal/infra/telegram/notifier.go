package telegram

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/submission"
	"reading_program_bot/internal/domain/teacher"
	domainTelegram "reading_program_bot/internal/domain/telegram"
)

// Notifier implements app.Notifier over a chat client. Teachers are reached through
// their roster entry, students through the Telegram id on their record.
type Notifier struct {
	client   domainTelegram.Client
	teachers teacher.Repository
	logger   *logrus.Entry
}

var _ app.Notifier = (*Notifier)(nil)

func NewNotifier(client domainTelegram.Client, teachers teacher.Repository, logger *logrus.Entry) *Notifier {
	return &Notifier{client: client, teachers: teachers, logger: logger.WithField("component", "notifier")}
}

func (n *Notifier) NotifyReleased(ctx context.Context, cfg *configuration.TeacherConfiguration) error {
	chatID, err := n.teacherChat(ctx, cfg.TeacherID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Your %d books for %s are released. Students can now add them to their shelves.", len(cfg.SelectedBookIDs), cfg.Year)
	return n.client.SendMessage(chatID, text, nil)
}

func (n *Notifier) NotifySubmitted(ctx context.Context, student *submission.Student, sub *submission.Submission) error {
	chatID, err := n.teacherChat(ctx, student.TeacherID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("%s (%s) submitted %s via %s.\nApprove below, or /revise %s %s <note>.",
		student.Name, student.ID, sub.BookID, sub.SubmissionType, student.ID, sub.BookID)
	return n.client.SendMessage(chatID, text, &telebot.SendOptions{ReplyMarkup: approveMarkup(student.ID, sub.BookID)})
}

func (n *Notifier) NotifyDecision(_ context.Context, student *submission.Student, sub *submission.Submission) error {
	if student.TelegramID == 0 {
		n.logger.WithField("student_id", student.ID).Debug("Student has no Telegram account, skipping decision message")
		return nil
	}
	return n.client.SendMessage(student.TelegramID, formatDecision(sub), nil)
}

func (n *Notifier) teacherChat(ctx context.Context, teacherID string) (int64, error) {
	id, err := teacher.ParseKey(teacherID)
	if err != nil {
		return 0, fmt.Errorf("teacher id %q is not a roster id: %w", teacherID, err)
	}
	t, err := n.teachers.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up teacher %s: %w", teacherID, err)
	}
	return t.TelegramID, nil
}
