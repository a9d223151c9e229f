package telegram

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/configuration"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/submission"
	"reading_program_bot/internal/domain/teacher"
	idb "reading_program_bot/internal/infra/database"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *telebot.SendOptions
}

type fakeClient struct {
	sent []sentMessage
}

func (f *fakeClient) SendMessage(chatID int64, text string, opts *telebot.SendOptions) error {
	f.sent = append(f.sent, sentMessage{chatID, text, opts})
	return nil
}

// fakeRoster only answers GetByID.
type fakeRoster struct {
	teacher.Repository
	byID map[int64]*teacher.Teacher
}

func (f *fakeRoster) GetByID(_ context.Context, id int64) (*teacher.Teacher, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, idb.ErrTeacherNotFound
	}
	return t, nil
}

func newTestNotifier() (*Notifier, *fakeClient) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	client := &fakeClient{}
	roster := &fakeRoster{byID: map[int64]*teacher.Teacher{7: {ID: 7, TelegramID: 7007, FirstName: "Ana", IsActive: true}}}
	return NewNotifier(client, roster, logrus.NewEntry(l)), client
}

func TestNotifySubmittedCarriesApproveButton(t *testing.T) {
	n, client := newTestNotifier()
	st := &submission.Student{ID: "s1", Name: "Sam", TeacherID: "7"}
	sub := &submission.Submission{BookID: "wonder", SubmissionType: configuration.MethodReview}

	require.NoError(t, n.NotifySubmitted(context.Background(), st, sub))
	require.Len(t, client.sent, 1)
	msg := client.sent[0]
	assert.Equal(t, int64(7007), msg.chatID)
	assert.Contains(t, msg.text, "Sam (s1) submitted wonder")

	require.NotNil(t, msg.opts)
	markup := msg.opts.ReplyMarkup
	require.Len(t, markup.InlineKeyboard, 1)
	btn := markup.InlineKeyboard[0][0]
	assert.Equal(t, "approve", btn.Unique)
	assert.Equal(t, "s1|wonder", btn.Data)
}

func TestNotifyReleasedAndUnknownTeacher(t *testing.T) {
	n, client := newTestNotifier()
	cfg := &configuration.TeacherConfiguration{TeacherID: "7", Year: "2024-25", SelectedBookIDs: []string{"a", "b"}}

	require.NoError(t, n.NotifyReleased(context.Background(), cfg))
	require.Len(t, client.sent, 1)
	assert.Contains(t, client.sent[0].text, "2 books for 2024-25")

	cfg.TeacherID = "8"
	assert.ErrorIs(t, n.NotifyReleased(context.Background(), cfg), idb.ErrTeacherNotFound)
	cfg.TeacherID = "not-a-number"
	assert.Error(t, n.NotifyReleased(context.Background(), cfg))
}

func TestNotifyDecision(t *testing.T) {
	n, client := newTestNotifier()
	sub := &submission.Submission{BookID: "wonder", Status: submission.StatusRevisionRequested, TeacherNotes: "needs more detail"}

	require.NoError(t, n.NotifyDecision(context.Background(), &submission.Student{ID: "s1"}, sub))
	assert.Empty(t, client.sent)

	require.NoError(t, n.NotifyDecision(context.Background(), &submission.Student{ID: "s1", TelegramID: 55}, sub))
	require.Len(t, client.sent, 1)
	assert.Equal(t, int64(55), client.sent[0].chatID)
	assert.Contains(t, client.sent[0].text, "needs more detail")
}

func TestDescribeError(t *testing.T) {
	mismatch := &program.PhaseMismatchError{Op: program.OpEditConfiguration, Year: "2024-25", Phase: program.PhaseActive}
	cases := []struct {
		err       error
		contains  string
		userFault bool
	}{
		{fmt.Errorf("wrapped: %w", mismatch), "phase ACTIVE", true},
		{configuration.ErrCapacityExceeded, "book limit", true},
		{configuration.ErrInvalidOption, "quiz is always on", true},
		{configuration.ErrAlreadyReleased, "already released", true},
		{submission.ErrInvalidTransition, "not waiting for review", true},
		{app.ErrNotAssigned, "not assigned", true},
		{fmt.Errorf("%w: note too long", app.ErrInvalidInput), "note too long", true},
		{fmt.Errorf("dial tcp: refused"), "Something went wrong", false},
	}
	for _, tc := range cases {
		msg, userFault := describeError(tc.err)
		assert.Contains(t, msg, tc.contains, tc.err.Error())
		assert.Equal(t, tc.userFault, userFault, tc.err.Error())
	}
}

func TestFormatConfiguration(t *testing.T) {
	cfg := configuration.New("7", "2024-25", 20, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	_, err := cfg.SelectBook("wonder", time.Now())
	require.NoError(t, err)

	out := formatConfiguration(cfg)
	assert.Contains(t, out, "Configuration 2024-25: draft")
	assert.Contains(t, out, "Books (1/20):")
	assert.Contains(t, out, "- wonder")
	assert.Contains(t, out, "Completion methods: quiz")
	assert.Contains(t, out, "25 books: Lifetime reader medal (multi-year)")
}

func TestParseBook(t *testing.T) {
	book, ok := parseBook([]string{"wonder", "310", "Wonder", "|", "R.", "J.", "Palacio,", "Someone"}, "2024-25")
	require.True(t, ok)
	assert.Equal(t, "wonder", book.ID)
	assert.Equal(t, 310, book.Pages)
	assert.Equal(t, "Wonder", book.Title)
	assert.Equal(t, []string{"R. J. Palacio", "Someone"}, book.Authors)
	assert.Equal(t, program.AcademicYear("2024-25"), book.Year)

	_, ok = parseBook([]string{"wonder", "x", "Wonder", "|", "A"}, "2024-25")
	assert.False(t, ok)
	_, ok = parseBook([]string{"wonder", "10", "No", "authors"}, "2024-25")
	assert.False(t, ok)
}
