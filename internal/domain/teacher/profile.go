package teacher

import (
	"slices"
	"time"

	"reading_program_bot/internal/domain/program"
)

// Profile is the teacher's document in the store: the students assigned to them and the
// teacher-wide completion counters.
type Profile struct {
	TeacherID         string               `json:"teacherId"`
	StudentIDs        []string             `json:"studentIds"`
	LifetimeCompleted int                  `json:"lifetimeCompleted"`
	YearlyCompleted   int                  `json:"yearlyCompleted"`
	CreditYear        program.AcademicYear `json:"creditYear,omitempty"`
	// CreditedKeys holds every completion already counted.
	CreditedKeys []string  `json:"creditedKeys,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProfilePath is the document path of a teacher profile.
func ProfilePath(teacherID string) string { return "teachers/" + teacherID }

// CreditKey identifies one completion for idempotent crediting.
func CreditKey(studentID, bookID string, year program.AcademicYear) string {
	return studentID + "/" + bookID + "/" + string(year)
}

// AddStudent links a student. It reports false if already linked.
func (p *Profile) AddStudent(studentID string, now time.Time) bool {
	if slices.Contains(p.StudentIDs, studentID) {
		return false
	}
	p.StudentIDs = append(p.StudentIDs, studentID)
	slices.Sort(p.StudentIDs)
	p.UpdatedAt = now
	return true
}

// Credit counts a completion once per key. The yearly counter follows the newest year
// credited; a late completion from an older year only adds to the lifetime count.
func (p *Profile) Credit(key string, year program.AcademicYear, now time.Time) bool {
	if slices.Contains(p.CreditedKeys, key) {
		return false
	}
	p.CreditedKeys = append(p.CreditedKeys, key)
	p.LifetimeCompleted++
	switch {
	case p.CreditYear == year:
		p.YearlyCompleted++
	case p.CreditYear == "" || p.CreditYear.Before(year):
		p.CreditYear = year
		p.YearlyCompleted = 1
	}
	p.UpdatedAt = now
	return true
}

// YearlyCompletedIn returns the yearly count for year; other years read as zero.
func (p *Profile) YearlyCompletedIn(year program.AcademicYear) int {
	if p.CreditYear != year {
		return 0
	}
	return p.YearlyCompleted
}

// RemoveStudent unlinks a student. It reports false if the student was not linked.
func (p *Profile) RemoveStudent(studentID string, now time.Time) bool {
	i := slices.Index(p.StudentIDs, studentID)
	if i < 0 {
		return false
	}
	p.StudentIDs = slices.Delete(p.StudentIDs, i, i+1)
	p.UpdatedAt = now
	return true
}
