// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/teacher"
	idb "reading_program_bot/internal/infra/database" // For ErrTeacherNotFound
)

// YearClock reports the academic year in effect now.
type YearClock interface {
	CurrentYear() program.AcademicYear
}

// Services is what the handlers call into.
type Services struct {
	Admin         *app.AdminService
	Configuration *app.ConfigurationService
	Release       *app.ReleaseService
	Submission    *app.SubmissionService
	Catalog       *app.CatalogService
	Phases        program.PhaseSource
	Clock         YearClock
}

func RegisterBotCommands(ctx context.Context, b *telebot.Bot, svc *Services, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if svc.Admin.IsAdmin(senderID) {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, administrator %s! Use /help for the list of commands.", c.Sender().FirstName))
		}

		t, err := svc.Admin.TeacherByTelegramID(ctx, senderID)
		switch {
		case err == nil:
			logCtx.WithField("teacher_id", t.Key()).Info("User identified as Active Teacher")
			return c.Send(fmt.Sprintf("Hello, %s! Pick this year's books with /books and /select, then /save and /release. Use /help for more.", t.FirstName))
		case errors.Is(err, app.ErrTeacherInactive):
			logCtx.Info("User identified as Inactive Teacher")
			return c.Send("Your teacher account is inactive. Please contact the administrator.")
		case !errors.Is(err, idb.ErrTeacherNotFound):
			logCtx.WithError(err).Error("Error checking teacher status for /start command")
			return c.Send(errInternal)
		}

		logCtx.Info("User is unknown")
		return c.Send("Hello! I run the reading program for teachers. If you are a teacher, ask the administrator to add you.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if svc.Admin.IsAdmin(senderID) {
			return c.Send(adminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		_, err := svc.Admin.TeacherByTelegramID(ctx, senderID)
		switch {
		case err == nil:
			return c.Send(teacherHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		case errors.Is(err, app.ErrTeacherInactive):
			return c.Send("Your teacher account is inactive. Please contact the administrator.")
		case !errors.Is(err, idb.ErrTeacherNotFound):
			logCtx.WithError(err).Error("Error checking teacher status for /help command")
			return c.Send(errInternal)
		}
		return c.Send("There are no commands for you. If you are a teacher, ask the administrator to add you.")
	})
}

func adminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Administrator commands:\n\n")
	helpText.WriteString("`/add_teacher <TelegramID> <FirstName> [LastName]`\n - Add a teacher.\n\n")
	helpText.WriteString("`/remove_teacher <TelegramID>`\n - Deactivate a teacher.\n\n")
	helpText.WriteString("`/list_teachers [active|all]`\n - List teachers, active ones by default.\n\n")
	helpText.WriteString("`/enroll <TeacherTelegramID> <StudentID> <Grade> <StudentTelegramID|-> <Name>`\n - Enroll or move a student.\n\n")
	helpText.WriteString("`/add_book <BookID> <Pages> <Title> | <Author>[, <Author>]`\n - Publish a nominee for the current year.\n\n")
	helpText.WriteString("`/phase`\n - Show the current year and phase.\n\n")
	helpText.WriteString("`/releases`\n - List this year's releases.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}

func teacherHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Teacher commands:\n\n")
	helpText.WriteString("`/books` - this year's nominees\n")
	helpText.WriteString("`/config` - your configuration and tiers\n")
	helpText.WriteString("`/select <BookID>` / `/deselect <BookID>`\n")
	helpText.WriteString("`/option <method> on|off` - toggle a completion method\n")
	helpText.WriteString("`/reward <BookCount> <text>` - set a tier reward\n")
	helpText.WriteString("`/save` then `/release` - publish to your students\n")
	helpText.WriteString("`/pending` - submissions waiting for you\n")
	helpText.WriteString("`/approve <StudentID> <BookID> [note]`\n")
	helpText.WriteString("`/revise <StudentID> <BookID> <note>`")
	return helpText.String()
}

// replyError logs err at the level it deserves and sends the user-facing text.
func replyError(c telebot.Context, logger *logrus.Entry, err error) error {
	msg, userFault := describeError(err)
	if userFault {
		logger.WithError(err).Warn("Command rejected")
	} else {
		logger.WithError(err).Error("Command failed")
	}
	return c.Send(msg)
}

// senderTeacher resolves the sender to an active teacher or answers the user itself.
func senderTeacher(ctx context.Context, c telebot.Context, svc *Services, logger *logrus.Entry) (*teacher.Teacher, bool) {
	t, err := svc.Admin.TeacherByTelegramID(ctx, c.Sender().ID)
	if err == nil {
		return t, true
	}
	if errors.Is(err, idb.ErrTeacherNotFound) || errors.Is(err, app.ErrTeacherInactive) {
		logger.Warn("Command from a non-teacher")
		_ = c.Send(errUnauthorized)
		return nil, false
	}
	_ = replyError(c, logger, err)
	return nil, false
}
