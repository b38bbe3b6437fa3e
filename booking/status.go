package booking

import "fmt"

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("booking: unknown status: %s", s)
	}
}

// The lifecycle is strictly forward with no skipping: a booking cannot jump
// from pending straight to completed, and completed is terminal.
var allowedTransitions = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// Successor returns the single legal next status, or false for terminal states.
func Successor(from Status) (Status, bool) {
	next, ok := allowedTransitions[from]
	return next, ok
}

// CanTransition reports whether to is the legal successor of from.
func CanTransition(from, to Status) bool {
	next, ok := Successor(from)
	return ok && next == to
}
