package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/program"
	idb "reading_program_bot/internal/infra/database"
)

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, svc *Services, baseLogger *logrus.Entry) {
	adminService := svc.Admin

	handle := func(command string, fn func(c telebot.Context, logger *logrus.Entry) error) {
		b.Handle(command, func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")
			if !adminService.IsAdmin(c.Sender().ID) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(errUnauthorized)
			}
			return fn(c, handlerLogger)
		})
	}

	handle("/add_teacher", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		// Expected format: /add_teacher <TelegramID> <FirstName> [LastName]
		if len(args) < 2 || len(args) > 3 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid command format. Use: /add_teacher <TelegramID> <FirstName> [LastName]")
		}

		teacherTelegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: the Telegram ID must be a number.")
		}

		firstName := args[1]
		if strings.TrimSpace(firstName) == "" {
			return c.Send("Error: the first name cannot be empty.")
		}

		var lastName string
		if len(args) == 3 {
			lastName = args[2]
		}

		handlerLogger = handlerLogger.WithField("teacher_telegram_id", teacherTelegramID)

		newTeacher, err := adminService.AddTeacher(ctx, c.Sender().ID, teacherTelegramID, firstName, lastName)
		if err != nil {
			if errors.Is(err, app.ErrTeacherAlreadyExists) {
				handlerLogger.WithError(err).Warn("Teacher already exists")
				return c.Send(fmt.Sprintf("Error: a teacher with Telegram ID %d already exists.", teacherTelegramID))
			}
			return replyError(c, handlerLogger, err)
		}

		handlerLogger.WithField("new_teacher_id", newTeacher.ID).Info("Teacher added successfully")
		return c.Send(fmt.Sprintf("Teacher %s (ID: %d) added.", newTeacher.FullName(), newTeacher.TelegramID))
	})

	handle("/remove_teacher", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid command format. Use: /remove_teacher <TelegramID>")
		}

		teacherTelegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			handlerLogger.WithField("arg", args[0]).Warn("Invalid Telegram ID format")
			return c.Send("Error: the Telegram ID must be a number.")
		}
		handlerLogger = handlerLogger.WithField("teacher_telegram_id", teacherTelegramID)

		removedTeacher, err := adminService.RemoveTeacher(ctx, c.Sender().ID, teacherTelegramID)
		if err != nil {
			switch {
			case errors.Is(err, idb.ErrTeacherNotFound):
				handlerLogger.WithError(err).Warn("Teacher to remove not found")
				return c.Send(fmt.Sprintf("No teacher with Telegram ID %d.", teacherTelegramID))
			case errors.Is(err, app.ErrTeacherAlreadyInactive):
				handlerLogger.WithError(err).Warn("Teacher already inactive")
				return c.Send(fmt.Sprintf("Teacher %s (ID: %d) was already deactivated.", removedTeacher.FullName(), removedTeacher.TelegramID))
			default:
				return replyError(c, handlerLogger, err)
			}
		}

		handlerLogger.WithField("removed_teacher_id", removedTeacher.ID).Info("Teacher removed (deactivated) successfully")
		return c.Send(fmt.Sprintf("Teacher %s (ID: %d) deactivated.", removedTeacher.FullName(), removedTeacher.TelegramID))
	})

	handle("/list_teachers", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		listType := "active" // Default to active
		if len(args) > 0 {
			listType = strings.ToLower(args[0])
		}
		if listType != "active" && listType != "all" {
			handlerLogger.Warn("Invalid list type argument")
			return c.Send("Invalid argument. Use 'active' or 'all', or nothing for active teachers.")
		}
		handlerLogger = handlerLogger.WithField("list_type", listType)

		teachersList, err := adminService.ListTeachers(ctx, c.Sender().ID, listType == "all")
		if err != nil {
			return replyError(c, handlerLogger, err)
		}
		if len(teachersList) == 0 {
			return c.Send("No teachers found.")
		}

		handlerLogger.WithField("teachers_count", len(teachersList)).Info("Successfully retrieved teacher list")

		var response strings.Builder
		fmt.Fprintf(&response, "--- %s teachers ---\n", strings.ToUpper(listType[:1])+listType[1:])
		for _, t := range teachersList {
			status := "inactive"
			if t.IsActive {
				status = "active"
			}
			fmt.Fprintf(&response, "ID: %d, Telegram ID: %d, Name: %s, Status: %s\n", t.ID, t.TelegramID, t.FullName(), status)
		}
		return c.Send(response.String())
	})

	handle("/enroll", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		const usage = "Invalid command format. Use: /enroll <TeacherTelegramID> <StudentID> <Grade> <StudentTelegramID|-> <Name>"
		if len(args) < 5 {
			return c.Send(usage)
		}
		teacherTelegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send(usage)
		}
		var studentTelegramID int64
		if args[3] != "-" {
			if studentTelegramID, err = strconv.ParseInt(args[3], 10, 64); err != nil {
				return c.Send(usage)
			}
		}
		st, err := adminService.EnrollStudent(ctx, c.Sender().ID, teacherTelegramID, args[1], restText(args, 4), args[2], studentTelegramID)
		if err != nil {
			return replyError(c, handlerLogger.WithField("student_id", args[1]), err)
		}
		return c.Send(fmt.Sprintf("Student %s (%s, grade %s) enrolled. Lifetime books: %d.", st.Name, st.ID, st.Grade, st.LifetimeCompleted))
	})

	handle("/add_book", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		book, ok := parseBook(c.Args(), svc.Clock.CurrentYear())
		if !ok {
			return c.Send("Invalid command format. Use: /add_book <BookID> <Pages> <Title> | <Author>[, <Author>]")
		}
		published, err := svc.Catalog.Publish(ctx, book)
		if err != nil {
			return replyError(c, handlerLogger.WithField("book_id", book.ID), err)
		}
		return c.Send(fmt.Sprintf("Published %s: %s (%s).", published.ID, published.Title, published.Year))
	})

	handle("/phase", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		year := svc.Clock.CurrentYear()
		var response strings.Builder
		for _, y := range []program.AcademicYear{year, year.Next()} {
			phase, err := svc.Phases.CurrentPhase(ctx, y)
			if err != nil {
				return replyError(c, handlerLogger, err)
			}
			if phase == program.PhaseNone {
				fmt.Fprintf(&response, "%s: not started\n", y)
				continue
			}
			fmt.Fprintf(&response, "%s: %s\n", y, phase)
		}
		return c.Send(response.String())
	})

	handle("/releases", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		year := svc.Clock.CurrentYear()
		records, err := svc.Release.ListReleases(ctx, year)
		if err != nil {
			return replyError(c, handlerLogger, err)
		}
		if len(records) == 0 {
			return c.Send(fmt.Sprintf("No releases for %s yet.", year))
		}
		var response strings.Builder
		fmt.Fprintf(&response, "--- Releases %s ---\n", year)
		for _, r := range records {
			fmt.Fprintf(&response, "Teacher %s: %d books at %s\n", r.TeacherID, r.BookCount, r.ReleasedAt.Format("2006-01-02 15:04"))
		}
		return c.Send(response.String())
	})
}

// parseBook reads "<BookID> <Pages> <Title words> | <Author>, <Author>".
func parseBook(args []string, year program.AcademicYear) (catalog.NomineeBook, bool) {
	if len(args) < 3 {
		return catalog.NomineeBook{}, false
	}
	pages, err := strconv.Atoi(args[1])
	if err != nil {
		return catalog.NomineeBook{}, false
	}
	title, authorList, found := strings.Cut(restText(args, 2), "|")
	if !found {
		return catalog.NomineeBook{}, false
	}
	var authors []string
	for _, a := range strings.Split(authorList, ",") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return catalog.NomineeBook{
		ID:      args[0],
		Title:   strings.TrimSpace(title),
		Authors: authors,
		Pages:   pages,
		Year:    year,
	}, true
}
