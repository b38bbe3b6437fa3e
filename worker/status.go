package worker

import "fmt"

// Status is the worker directory vetting state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is an admin review verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("worker: unknown status: %s", s)
	}
}

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("worker: unknown decision: %s", s)
	}
}

// Target returns the status a decision moves a worker into.
func (d Decision) Target() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// All transitions are admin-triggered; no state is terminal, so a rejected
// worker can be re-approved and an approved one revoked. Self-transitions are
// not listed: a repeat verdict is refused rather than silently replayed.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true},
	StatusApproved: {StatusRejected: true},
	StatusRejected: {StatusApproved: true},
}

func CanTransition(from, to Status) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}
