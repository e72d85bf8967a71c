package model

import "fmt"

// Status is the lifecycle state of a Command.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// Command lifecycle: pending → in_progress → {completed, failed}.
// in_progress → pending is legal only when an expired claim is reclaimed,
// and pending → terminal covers a result arriving for a command whose
// claim response was lost in flight.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	StatusInProgress: {
		StatusPending:   true,
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// IsTerminal reports whether s admits no further transition.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// ValidateTransition checks a single lifecycle step.
func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition: %q → %q", from, to)
	}
	return nil
}

// ParseResultStatus accepts the two statuses an agent may report.
func ParseResultStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("result status must be %q or %q, got %q", StatusCompleted, StatusFailed, s)
	}
}
