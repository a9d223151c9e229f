package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/teacher"
)

// teacherCommand is a handler body for a command sent by an active teacher.
type teacherCommand func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error

// RegisterTeacherHandlers registers the configuration and review commands.
func RegisterTeacherHandlers(ctx context.Context, b *telebot.Bot, svc *Services, baseLogger *logrus.Entry) {
	handle := func(command string, fn teacherCommand) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			t, ok := senderTeacher(ctx, c, svc, handlerLogger)
			if !ok {
				return nil
			}
			return fn(c, t, handlerLogger.WithField("teacher_id", t.Key()))
		})
	}

	handle("/books", func(c telebot.Context, _ *teacher.Teacher, logger *logrus.Entry) error {
		year := svc.Clock.CurrentYear()
		books, err := svc.Catalog.List(ctx, year)
		if err != nil {
			return replyError(c, logger, err)
		}
		if len(books) == 0 {
			return c.Send(fmt.Sprintf("No nominees published for %s yet.", year))
		}
		var response strings.Builder
		fmt.Fprintf(&response, "--- Nominees %s ---\n", year)
		for _, bk := range books {
			fmt.Fprintf(&response, "%s: %s by %s\n", bk.ID, bk.Title, strings.Join(bk.Authors, ", "))
		}
		return c.Send(response.String())
	})

	handle("/config", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		cfg, err := svc.Configuration.GetConfiguration(ctx, t.Key(), svc.Clock.CurrentYear())
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send(formatConfiguration(cfg))
	})

	bookEdit := func(usage string, op func(teacherID string, bookID string) (*configuration.TeacherConfiguration, error)) teacherCommand {
		return func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
			args := c.Args()
			if len(args) != 1 {
				return c.Send("Invalid command format. Use: " + usage)
			}
			cfg, err := op(t.Key(), args[0])
			if err != nil {
				return replyError(c, logger.WithField("book_id", args[0]), err)
			}
			return c.Send(formatConfiguration(cfg))
		}
	}
	handle("/select", bookEdit("/select <BookID>", func(teacherID, bookID string) (*configuration.TeacherConfiguration, error) {
		return svc.Configuration.SelectBook(ctx, teacherID, svc.Clock.CurrentYear(), bookID)
	}))
	handle("/deselect", bookEdit("/deselect <BookID>", func(teacherID, bookID string) (*configuration.TeacherConfiguration, error) {
		return svc.Configuration.DeselectBook(ctx, teacherID, svc.Clock.CurrentYear(), bookID)
	}))

	handle("/option", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		args := c.Args()
		if len(args) != 2 {
			return c.Send("Invalid command format. Use: /option <method> on|off")
		}
		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on":
			enabled = true
		case "off":
		default:
			return c.Send("The second argument must be 'on' or 'off'.")
		}
		cfg, err := svc.Configuration.SetCompletionOption(ctx, t.Key(), svc.Clock.CurrentYear(), configuration.Method(args[0]), enabled)
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send(formatConfiguration(cfg))
	})

	handle("/reward", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send("Invalid command format. Use: /reward <BookCount> <text>")
		}
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return c.Send("Error: the book count must be a number.")
		}
		cfg, err := svc.Configuration.SetTierReward(ctx, t.Key(), svc.Clock.CurrentYear(), count, restText(args, 1))
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send(formatConfiguration(cfg))
	})

	handle("/save", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		cfg, err := svc.Configuration.Save(ctx, t.Key(), svc.Clock.CurrentYear())
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send("Saved. Release it to your students with /release.\n\n" + formatConfiguration(cfg))
	})

	handle("/release", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		cfg, err := svc.Release.Release(ctx, t.Key(), svc.Clock.CurrentYear())
		if errors.Is(err, configuration.ErrAlreadyReleased) {
			msg, _ := describeError(err)
			return c.Send(msg + "\n\n" + formatConfiguration(cfg))
		}
		if err != nil {
			return replyError(c, logger, err)
		}
		// The release notification tells the teacher the rest.
		return c.Send("Done.")
	})

	handle("/pending", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		queue, err := svc.Submission.GetPendingSubmissions(ctx, t.Key())
		if err != nil {
			return replyError(c, logger, err)
		}
		if len(queue) == 0 {
			return c.Send("Nothing is waiting for your review.")
		}
		logger.WithField("pending_count", len(queue)).Info("Sending review queue")
		for _, p := range queue {
			if err := c.Send(formatPending(p), &telebot.SendOptions{ReplyMarkup: approveMarkup(p.StudentID, p.Submission.BookID)}); err != nil {
				return err
			}
		}
		return nil
	})

	handle("/approve", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send("Invalid command format. Use: /approve <StudentID> <BookID> [note]")
		}
		sub, err := svc.Submission.Approve(ctx, t.Key(), args[0], args[1], restText(args, 2))
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send(fmt.Sprintf("%s for %s is %s.", sub.BookID, args[0], sub.Status))
	})

	handle("/revise", func(c telebot.Context, t *teacher.Teacher, logger *logrus.Entry) error {
		args := c.Args()
		if len(args) < 3 {
			return c.Send("Invalid command format. Use: /revise <StudentID> <BookID> <note>")
		}
		sub, err := svc.Submission.RequestRevision(ctx, t.Key(), args[0], args[1], restText(args, 2))
		if err != nil {
			return replyError(c, logger, err)
		}
		return c.Send(fmt.Sprintf("Revision requested for %s from %s.", sub.BookID, args[0]))
	})

	b.Handle(&approveBtn, func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "approve_button",
			"sender_id": c.Sender().ID,
		})
		args := c.Args() // student id, book id
		if len(args) != 2 {
			handlerLogger.WithField("data", c.Callback().Data).Warn("Invalid callback data")
			return c.Respond(&telebot.CallbackResponse{Text: "Invalid button."})
		}
		t, err := svc.Admin.TeacherByTelegramID(ctx, c.Sender().ID)
		if err != nil {
			msg, _ := describeError(err)
			return c.Respond(&telebot.CallbackResponse{Text: msg})
		}
		sub, err := svc.Submission.Approve(ctx, t.Key(), args[0], args[1], "")
		if err != nil {
			msg, userFault := describeError(err)
			if !userFault {
				handlerLogger.WithError(err).Error("Approve button failed")
			}
			return c.Respond(&telebot.CallbackResponse{Text: msg})
		}
		if err := c.Edit(fmt.Sprintf("Approved: %s for %s.", sub.BookID, args[0])); err != nil {
			handlerLogger.WithError(err).Warn("Could not edit pending message")
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Approved"})
	})
}
