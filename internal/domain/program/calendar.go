package program

import (
	"context"
	"fmt"
	"time"
)

// MonthDay is a recurring calendar date such as June 1st.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day) }

func (md MonthDay) key() int { return int(md.Month)*100 + md.Day }

// Calendar derives the current year and phase from the date. Each academic year starts on
// its TEACHER_SELECTION date; the remaining phase starts follow it and may fall in the
// next calendar year.
type Calendar struct {
	starts   [4]MonthDay
	location *time.Location
	now      func() time.Time
}

// NewCalendar validates that the phase starts are strictly ordered within one year.
// starts are given in the order of Phases.
func NewCalendar(starts [4]MonthDay, loc *time.Location, now func() time.Time) (*Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	c := &Calendar{starts: starts, location: loc, now: now}
	prev := -1
	for i, md := range starts {
		if md.Month < time.January || md.Month > time.December || md.Day < 1 || md.Day > 31 {
			return nil, fmt.Errorf("phase %s start %s is not a date", Phases[i], md)
		}
		ord := c.ordinal(md)
		if ord <= prev {
			return nil, fmt.Errorf("phase %s start %s is not after the previous phase", Phases[i], md)
		}
		prev = ord
	}
	return c, nil
}

// ordinal places md on a scale that starts at the TEACHER_SELECTION date.
func (c *Calendar) ordinal(md MonthDay) int {
	k := md.key()
	if k < c.starts[0].key() {
		k += 1300
	}
	return k
}

func (c *Calendar) boundary(year AcademicYear, md MonthDay) time.Time {
	calYear := year.StartYear()
	if md.key() < c.starts[0].key() {
		calYear++
	}
	return time.Date(calYear, md.Month, md.Day, 0, 0, 0, 0, c.location)
}

// YearAt returns the academic year t falls in.
func (c *Calendar) YearAt(t time.Time) AcademicYear {
	return YearFor(t.In(c.location), c.starts[0])
}

// YearFor returns the academic year containing t when years start on start.
func YearFor(t time.Time, start MonthDay) AcademicYear {
	first := time.Date(t.Year(), start.Month, start.Day, 0, 0, 0, 0, t.Location())
	if t.Before(first) {
		return NewAcademicYear(t.Year() - 1)
	}
	return NewAcademicYear(t.Year())
}

// PhaseAt returns the phase the program is in at t.
func (c *Calendar) PhaseAt(t time.Time) ProgramPhase {
	year := c.YearAt(t)
	for i := len(Phases) - 1; i > 0; i-- {
		if !t.Before(c.boundary(year, c.starts[i])) {
			return Phases[i]
		}
	}
	return PhaseTeacherSelection
}

// CurrentYear is YearAt(now).
func (c *Calendar) CurrentYear() AcademicYear { return c.YearAt(c.now()) }

// CurrentPhase reports the live phase for the current year, RESULTS for past years and
// PhaseNone for years that have not begun.
func (c *Calendar) CurrentPhase(_ context.Context, year AcademicYear) (ProgramPhase, error) {
	if err := year.Validate(); err != nil {
		return PhaseNone, err
	}
	now := c.now()
	current := c.YearAt(now)
	switch {
	case year == current:
		return c.PhaseAt(now), nil
	case year.Before(current):
		return PhaseResults, nil
	default:
		return PhaseNone, nil
	}
}
