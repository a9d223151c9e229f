package program

import (
	"errors"
	"fmt"
	"slices"
)

// ProgramPhase is the lifecycle stage of an academic year.
type ProgramPhase string

const (
	// PhaseNone is reported for years that have not started yet.
	PhaseNone             ProgramPhase = ""
	PhaseTeacherSelection ProgramPhase = "TEACHER_SELECTION"
	PhaseActive           ProgramPhase = "ACTIVE"
	PhaseVoting           ProgramPhase = "VOTING"
	PhaseResults          ProgramPhase = "RESULTS"
)

// Phases lists the phases of one year in order.
var Phases = []ProgramPhase{PhaseTeacherSelection, PhaseActive, PhaseVoting, PhaseResults}

// ParsePhase accepts the upper-case tag.
func ParsePhase(s string) (ProgramPhase, error) {
	p := ProgramPhase(s)
	if !slices.Contains(Phases, p) {
		return PhaseNone, fmt.Errorf("unknown program phase %q", s)
	}
	return p, nil
}

// Next returns the phase that follows p; RESULTS cycles back to TEACHER_SELECTION of the next year.
func (p ProgramPhase) Next() ProgramPhase {
	switch p {
	case PhaseTeacherSelection:
		return PhaseActive
	case PhaseActive:
		return PhaseVoting
	case PhaseVoting:
		return PhaseResults
	default:
		return PhaseTeacherSelection
	}
}

// Operation names a phase-gated write.
type Operation string

const (
	OpEditConfiguration    Operation = "edit_configuration"
	OpReleaseConfiguration Operation = "release_configuration"
	OpReviewSubmission     Operation = "review_submission"
	OpStudentReading       Operation = "student_reading"
	OpRollover             Operation = "rollover"
)

var legalPhases = map[Operation][]ProgramPhase{
	OpEditConfiguration:    {PhaseTeacherSelection},
	OpReleaseConfiguration: {PhaseTeacherSelection, PhaseActive, PhaseVoting, PhaseResults},
	OpReviewSubmission:     {PhaseActive, PhaseVoting, PhaseResults},
	OpStudentReading:       {PhaseActive, PhaseVoting, PhaseResults},
	OpRollover:             {PhaseTeacherSelection},
}

// Allows reports whether op may run while the program is in phase.
func Allows(op Operation, phase ProgramPhase) bool {
	return slices.Contains(legalPhases[op], phase)
}

var (
	ErrPhaseMismatch = errors.New("operation not allowed in current program phase")
	ErrInvalidYear   = errors.New("invalid academic year")
)

// PhaseMismatchError describes a rejected operation. It matches ErrPhaseMismatch.
type PhaseMismatchError struct {
	Op    Operation
	Year  AcademicYear
	Phase ProgramPhase
}

func (e *PhaseMismatchError) Error() string {
	phase := string(e.Phase)
	if phase == "" {
		phase = "not started"
	}
	return fmt.Sprintf("%s is not allowed for %s while phase is %s", e.Op, e.Year, phase)
}

func (e *PhaseMismatchError) Is(target error) bool { return target == ErrPhaseMismatch }
