package program

import (
	"context"
	"fmt"
)

// PhaseSource reports the phase a given academic year is in right now.
type PhaseSource interface {
	CurrentPhase(ctx context.Context, year AcademicYear) (ProgramPhase, error)
}

// Check consults src and fails with a *PhaseMismatchError when op is illegal for year.
func Check(ctx context.Context, src PhaseSource, year AcademicYear, op Operation) error {
	if err := year.Validate(); err != nil {
		return err
	}
	phase, err := src.CurrentPhase(ctx, year)
	if err != nil {
		return fmt.Errorf("resolve phase for %s: %w", year, err)
	}
	if !Allows(op, phase) {
		return &PhaseMismatchError{Op: op, Year: year, Phase: phase}
	}
	return nil
}

// Fixed maps years to phases. Years not in the map report PhaseNone.
type Fixed map[AcademicYear]ProgramPhase

func (f Fixed) CurrentPhase(_ context.Context, year AcademicYear) (ProgramPhase, error) {
	return f[year], nil
}

// Override forces Phase for Year and defers to Source for every other year.
type Override struct {
	Source PhaseSource
	Year   AcademicYear
	Phase  ProgramPhase
}

func (o Override) CurrentPhase(ctx context.Context, year AcademicYear) (ProgramPhase, error) {
	if year == o.Year {
		return o.Phase, nil
	}
	return o.Source.CurrentPhase(ctx, year)
}
