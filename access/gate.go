// Package access decides, per action, whether a resolved principal may
// proceed. Decisions are pure functions of the principal: nothing is cached,
// so a revoked approval takes effect on the very next resolution.
package access

import (
	"errors"
	"fmt"

	"garageflow/identity"
)

// Action names a privileged operation guarded by the gate.
type Action string

const (
	ActionCreateBooking  Action = "create_booking"
	ActionViewBookings   Action = "view_bookings"
	ActionAdvanceBooking Action = "advance_booking"
	ActionAssignWorker   Action = "assign_worker"
	ActionReviewWorker   Action = "review_worker"
	ActionRegisterWorker Action = "register_worker"
)

// Reason tags every denial so callers can render or log precisely why,
// never a bare boolean.
type Reason string

const (
	ReasonRoleNotPermitted  Reason = "role_not_permitted"
	ReasonNotOwner          Reason = "not_owner"
	ReasonWorkerNotApproved Reason = "worker_not_approved"
)

// ErrUnauthorized is the sentinel every denial wraps.
var ErrUnauthorized = errors.New("access: unauthorized")

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err returns nil for an allow, or a reason-tagged error wrapping
// ErrUnauthorized for a deny.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, d.Reason)
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Denied builds a reason-tagged unauthorized error directly, for checks that
// live outside the role matrix (ownership, unassigned bookings).
func Denied(r Reason) error { return deny(r).Err() }

// Authorize evaluates the role matrix for the principal and action. Ownership
// scoping (own bookings, assigned-to-self) is enforced by the owning service;
// the gate answers only whether the role and vetting state permit the action
// at all.
func Authorize(p identity.Principal, action Action) Decision {
	switch action {
	case ActionCreateBooking:
		switch p.Role {
		case identity.RoleCustomer, identity.RoleAdmin:
			return allow()
		case identity.RoleWorker:
			return deny(ReasonRoleNotPermitted)
		}

	case ActionViewBookings:
		switch p.Role {
		case identity.RoleCustomer, identity.RoleAdmin:
			return allow()
		case identity.RoleWorker:
			if p.IsApprovedWorker() {
				return allow()
			}
			return deny(ReasonWorkerNotApproved)
		}

	case ActionAdvanceBooking:
		switch p.Role {
		case identity.RoleAdmin:
			return allow()
		case identity.RoleWorker:
			if p.IsApprovedWorker() {
				return allow()
			}
			return deny(ReasonWorkerNotApproved)
		case identity.RoleCustomer:
			return deny(ReasonRoleNotPermitted)
		}

	case ActionAssignWorker, ActionReviewWorker:
		if p.Role == identity.RoleAdmin {
			return allow()
		}
		return deny(ReasonRoleNotPermitted)

	case ActionRegisterWorker:
		if p.Role == identity.RoleCustomer {
			return allow()
		}
		return deny(ReasonRoleNotPermitted)
	}

	return deny(ReasonRoleNotPermitted)
}
