// Package program models the annual reading-program calendar: academic years and the
// phases each year moves through.
package program

import (
	"fmt"
	"regexp"
	"strconv"
)

// AcademicYear is a "YYYY-YY" label, e.g. "2024-25".
type AcademicYear string

var yearPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// NewAcademicYear builds the label for the year starting in startYear.
func NewAcademicYear(startYear int) AcademicYear {
	return AcademicYear(fmt.Sprintf("%04d-%02d", startYear, (startYear+1)%100))
}

// ParseAcademicYear validates the label shape and that the second half follows the first.
func ParseAcademicYear(s string) (AcademicYear, error) {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q is not YYYY-YY", ErrInvalidYear, s)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return "", fmt.Errorf("%w: %q does not span consecutive years", ErrInvalidYear, s)
	}
	return AcademicYear(s), nil
}

// Validate reports whether y is a well-formed label.
func (y AcademicYear) Validate() error {
	_, err := ParseAcademicYear(string(y))
	return err
}

// StartYear returns the calendar year the academic year begins in. Invalid labels return 0.
func (y AcademicYear) StartYear() int {
	m := yearPattern.FindStringSubmatch(string(y))
	if m == nil {
		return 0
	}
	start, _ := strconv.Atoi(m[1])
	return start
}

func (y AcademicYear) Next() AcademicYear { return NewAcademicYear(y.StartYear() + 1) }
func (y AcademicYear) Prev() AcademicYear { return NewAcademicYear(y.StartYear() - 1) }

// Before orders years by start year.
func (y AcademicYear) Before(other AcademicYear) bool {
	return y.StartYear() < other.StartYear()
}

func (y AcademicYear) String() string { return string(y) }
