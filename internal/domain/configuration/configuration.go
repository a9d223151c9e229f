// Package configuration models one teacher's book setup for one academic year.
package configuration

import (
	"fmt"
	"slices"
	"time"

	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/tier"
)

// Status of a TeacherConfiguration.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSaved    Status = "saved"
	StatusReleased Status = "released"
)

// Method is a way a student can complete a book.
type Method string

const (
	MethodQuiz         Method = "quiz"
	MethodReview       Method = "submitReview"
	MethodPresentation Method = "presentation"
	MethodDiscussion   Method = "discussion"
	MethodReadingLog   Method = "readingLog"
)

// AlwaysEnabledMethods cannot be switched off by a teacher.
var AlwaysEnabledMethods = []Method{MethodQuiz}

// ToggleableMethods can be enabled per teacher.
var ToggleableMethods = []Method{MethodReview, MethodPresentation, MethodDiscussion, MethodReadingLog}

// ReleasesCollection is the append-only log of ReleaseRecords.
const ReleasesCollection = "releases"

// ReleaseRecord is the one-time fact that a configuration was published to students.
type ReleaseRecord struct {
	ID         string               `json:"id"`
	TeacherID  string               `json:"teacherId"`
	Year       program.AcademicYear `json:"year"`
	ReleasedAt time.Time            `json:"releasedAt"`
	BookCount  int                  `json:"bookCount"`
	BookIDs    []string             `json:"bookIds"`
}

// TeacherConfiguration is stored as one document per (teacher, year). The embedded Release
// is authoritative: it exists exactly when Status is released.
type TeacherConfiguration struct {
	TeacherID            string               `json:"teacherId"`
	Year                 program.AcademicYear `json:"year"`
	Ceiling              int                  `json:"ceiling"`
	SelectedBookIDs      []string             `json:"selectedBookIds"`
	AlwaysEnabledMethods []Method             `json:"alwaysEnabledMethods"`
	CompletionOptions    []Method             `json:"completionOptions"`
	AchievementTiers     []tier.Tier          `json:"achievementTiers"`
	Status               Status               `json:"status"`
	Release              *ReleaseRecord       `json:"release,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
	SavedAt              *time.Time           `json:"savedAt,omitempty"`
}

// Path is the document path of the configuration.
func Path(teacherID string, year program.AcademicYear) string {
	return fmt.Sprintf("teachers/%s/configurations/%s", teacherID, year)
}

// ReleaseKey is the idempotency key of the ReleaseRecord for (teacher, year).
func ReleaseKey(teacherID string, year program.AcademicYear) string {
	return teacherID + ":" + string(year)
}

// New returns an empty draft with only the always-on methods enabled.
func New(teacherID string, year program.AcademicYear, ceiling int, now time.Time) *TeacherConfiguration {
	return &TeacherConfiguration{
		TeacherID:            teacherID,
		Year:                 year,
		Ceiling:              ceiling,
		SelectedBookIDs:      []string{},
		AlwaysEnabledMethods: slices.Clone(AlwaysEnabledMethods),
		CompletionOptions:    []Method{},
		AchievementTiers:     []tier.Tier{},
		Status:               StatusDraft,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (c *TeacherConfiguration) HasBook(bookID string) bool {
	return slices.Contains(c.SelectedBookIDs, bookID)
}

// MethodEnabled reports whether students of this teacher may use m.
func (c *TeacherConfiguration) MethodEnabled(m Method) bool {
	return slices.Contains(c.AlwaysEnabledMethods, m) || slices.Contains(c.CompletionOptions, m)
}

// EnabledMethods lists always-on methods followed by the enabled toggleable ones.
func (c *TeacherConfiguration) EnabledMethods() []Method {
	out := slices.Clone(c.AlwaysEnabledMethods)
	return append(out, c.CompletionOptions...)
}

// SelectBook adds bookID. It reports false when the book was already selected.
func (c *TeacherConfiguration) SelectBook(bookID string, now time.Time) (bool, error) {
	if err := c.editable(); err != nil {
		return false, err
	}
	if c.HasBook(bookID) {
		return false, nil
	}
	if len(c.SelectedBookIDs)+1 > c.Ceiling {
		return false, fmt.Errorf("%w: ceiling is %d", ErrCapacityExceeded, c.Ceiling)
	}
	c.SelectedBookIDs = append(c.SelectedBookIDs, bookID)
	slices.Sort(c.SelectedBookIDs)
	c.changed(now)
	return true, nil
}

// DeselectBook removes bookID. It reports false when the book was not selected.
func (c *TeacherConfiguration) DeselectBook(bookID string, now time.Time) (bool, error) {
	if err := c.editable(); err != nil {
		return false, err
	}
	i := slices.Index(c.SelectedBookIDs, bookID)
	if i < 0 {
		return false, nil
	}
	c.SelectedBookIDs = slices.Delete(c.SelectedBookIDs, i, i+1)
	c.changed(now)
	return true, nil
}

// SetOption enables or disables a toggleable completion method.
func (c *TeacherConfiguration) SetOption(m Method, enabled bool, now time.Time) (bool, error) {
	if !slices.Contains(ToggleableMethods, m) {
		return false, fmt.Errorf("%w: %q", ErrInvalidOption, m)
	}
	if err := c.editable(); err != nil {
		return false, err
	}
	has := slices.Contains(c.CompletionOptions, m)
	switch {
	case enabled && !has:
		c.CompletionOptions = append(c.CompletionOptions, m)
		slices.Sort(c.CompletionOptions)
	case !enabled && has:
		c.CompletionOptions = slices.DeleteFunc(c.CompletionOptions, func(x Method) bool { return x == m })
	default:
		return false, nil
	}
	c.touch(now)
	return true, nil
}

// SetTierReward replaces the reward text of the tier keyed by bookCount.
func (c *TeacherConfiguration) SetTierReward(bookCount int, reward string, now time.Time) (bool, error) {
	if err := c.editable(); err != nil {
		return false, err
	}
	for i := range c.AchievementTiers {
		if c.AchievementTiers[i].BookCount != bookCount {
			continue
		}
		if c.AchievementTiers[i].Reward == reward {
			return false, nil
		}
		c.AchievementTiers[i].Reward = reward
		c.touch(now)
		return true, nil
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownTier, bookCount)
}

// Save moves a draft to saved. Saving a saved configuration is a no-op.
func (c *TeacherConfiguration) Save(now time.Time) (bool, error) {
	if err := c.editable(); err != nil {
		return false, err
	}
	if len(c.SelectedBookIDs) == 0 {
		return false, ErrEmptySelection
	}
	if c.Status == StatusSaved {
		return false, nil
	}
	c.Status = StatusSaved
	c.SavedAt = &now
	c.UpdatedAt = now
	return true, nil
}

// MarkReleased publishes a saved configuration and returns the new ReleaseRecord.
func (c *TeacherConfiguration) MarkReleased(recordID string, now time.Time) (*ReleaseRecord, error) {
	if c.Status == StatusReleased || c.Release != nil {
		return nil, ErrAlreadyReleased
	}
	if c.Status != StatusSaved {
		return nil, ErrNotSaved
	}
	if len(c.SelectedBookIDs) == 0 {
		return nil, ErrEmptySelection
	}
	rec := &ReleaseRecord{
		ID:         recordID,
		TeacherID:  c.TeacherID,
		Year:       c.Year,
		ReleasedAt: now,
		BookCount:  len(c.SelectedBookIDs),
		BookIDs:    slices.Clone(c.SelectedBookIDs),
	}
	c.Status = StatusReleased
	c.Release = rec
	c.UpdatedAt = now
	return rec, nil
}

func (c *TeacherConfiguration) editable() error {
	if c.Status == StatusReleased {
		return ErrLocked
	}
	return nil
}

// changed re-derives tiers after a selection change.
func (c *TeacherConfiguration) changed(now time.Time) {
	c.AchievementTiers = tier.Reconcile(c.AchievementTiers, len(c.SelectedBookIDs))
	if c.AchievementTiers == nil {
		c.AchievementTiers = []tier.Tier{}
	}
	c.touch(now)
}

// touch records an edit; a saved configuration goes back to draft.
func (c *TeacherConfiguration) touch(now time.Time) {
	if c.Status == StatusSaved {
		c.Status = StatusDraft
		c.SavedAt = nil
	}
	c.UpdatedAt = now
}
