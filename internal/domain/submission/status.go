// Package submission holds the per (student, book) approval state machine and the student
// record that owns the submissions and completion counters.
package submission

import (
	"errors"
	"fmt"
)

// Status of a StudentSubmission.
type Status string

const (
	StatusNone              Status = ""
	StatusInProgress        Status = "in_progress"
	StatusPendingApproval   Status = "pending_approval"
	StatusCompleted         Status = "completed"
	StatusRevisionRequested Status = "revision_requested"
	StatusQuizFailed        Status = "quiz_failed"
)

// Event drives a transition.
type Event string

const (
	EventAddToShelf      Event = "add_to_shelf"
	EventSubmit          Event = "submit"
	EventApprove         Event = "approve"
	EventRequestRevision Event = "request_revision"
	EventQuizPassed      Event = "quiz_passed"
	EventQuizFailed      Event = "quiz_failed"
)

var ErrInvalidTransition = errors.New("invalid submission transition")

var transitions = map[Status]map[Event]Status{
	StatusNone: {
		EventAddToShelf: StatusInProgress,
	},
	StatusInProgress: {
		EventSubmit:     StatusPendingApproval,
		EventQuizPassed: StatusCompleted,
		EventQuizFailed: StatusQuizFailed,
	},
	StatusPendingApproval: {
		EventApprove:         StatusCompleted,
		EventRequestRevision: StatusRevisionRequested,
	},
	StatusRevisionRequested: {
		EventSubmit: StatusPendingApproval,
	},
	StatusQuizFailed: {
		EventQuizPassed: StatusCompleted,
		EventQuizFailed: StatusQuizFailed,
	},
	StatusCompleted: {},
}

// Transition is the single place that decides whether ev is legal from from.
func Transition(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	name := string(from)
	if name == "" {
		name = "not on shelf"
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, name)
}
