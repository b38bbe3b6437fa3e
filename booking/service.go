package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"garageflow/access"
	"garageflow/identity"
)

var (
	// ErrIllegalTransition signals a status change the lifecycle forbids:
	// skipping ahead, moving backward, or leaving the terminal state.
	ErrIllegalTransition = errors.New("booking: illegal transition")
	// ErrInvalidInput signals a malformed request; retrying without changing
	// it will never succeed.
	ErrInvalidInput = errors.New("booking: invalid input")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service owns the booking lifecycle: creation and forward-only status
// transitions, with authorization decided per call from a fresh principal.
type Service struct {
	pool TxBeginner
	repo Repository
}

// NewService creates a booking lifecycle service.
func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{pool: pool, repo: repo}
}

// Create records a customer appointment request. The booking always starts
// pending and unassigned.
func (s *Service) Create(ctx context.Context, params CreateParams, actor identity.Principal) (Booking, error) {
	if err := access.Authorize(actor, access.ActionCreateBooking).Err(); err != nil {
		return Booking{}, err
	}
	if !ValidServiceKind(params.ServiceKind) {
		return Booking{}, fmt.Errorf("%w: unknown service kind %q", ErrInvalidInput, params.ServiceKind)
	}
	if strings.TrimSpace(params.CustomerName) == "" || strings.TrimSpace(params.VehicleModel) == "" {
		return Booking{}, fmt.Errorf("%w: customer_name and vehicle_model are required", ErrInvalidInput)
	}
	if params.Date.IsZero() || strings.TrimSpace(params.Time) == "" {
		return Booking{}, fmt.Errorf("%w: date and time are required", ErrInvalidInput)
	}

	return s.repo.Insert(ctx, InsertParams{
		CreateParams:    params,
		CreatedByUserID: actor.ID,
	})
}

// Advance moves a booking to the next lifecycle status. The target must be
// the single legal successor of the current status, and the actor must be an
// admin or the approved worker the booking is assigned to. The read,
// validation, conditional write, and event append share one transaction
// under a row lock.
func (s *Service) Advance(ctx context.Context, bookingID string, target Status, actor identity.Principal) (Booking, error) {
	if err := access.Authorize(actor, access.ActionAdvanceBooking).Err(); err != nil {
		return Booking{}, err
	}
	if _, err := ParseStatus(string(target)); err != nil {
		return Booking{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		return Booking{}, err
	}

	if !CanTransition(b.Status, target) {
		return Booking{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, b.Status, target)
	}

	// A booking nobody is assigned to can only be advanced by an admin; a
	// worker may advance exclusively their own assignments.
	if !actor.IsAdmin() {
		if b.AssignedWorker == nil || *b.AssignedWorker != actor.Email {
			return Booking{}, access.Denied(access.ReasonNotOwner)
		}
	}

	if err := s.repo.UpdateStatus(ctx, tx, b.ID, b.Status, target); err != nil {
		return Booking{}, err
	}

	payload := map[string]any{
		"previous_status": string(b.Status),
		"next_status":     string(target),
	}
	if err := s.repo.AppendEvent(ctx, tx, b.ID, "BOOKING_STATUS_CHANGED", actor.ID, payload); err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, fmt.Errorf("booking: commit advance: %w", err)
	}

	b.Status = target
	return b, nil
}

// Get fetches a single booking with its event history. Visibility follows the
// same ownership scope as List: customers see bookings they created, workers
// see their assignments, admins see everything.
func (s *Service) Get(ctx context.Context, bookingID string, actor identity.Principal) (Booking, []Event, error) {
	if err := access.Authorize(actor, access.ActionViewBookings).Err(); err != nil {
		return Booking{}, nil, err
	}

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return Booking{}, nil, err
	}

	switch actor.Role {
	case identity.RoleCustomer:
		if b.CreatedByUserID != actor.ID {
			return Booking{}, nil, access.Denied(access.ReasonNotOwner)
		}
	case identity.RoleWorker:
		if b.AssignedWorker == nil || *b.AssignedWorker != actor.Email {
			return Booking{}, nil, access.Denied(access.ReasonNotOwner)
		}
	case identity.RoleAdmin:
		// unrestricted
	}

	events, err := s.repo.ListEvents(ctx, bookingID)
	if err != nil {
		return Booking{}, nil, err
	}

	return b, events, nil
}

// List returns bookings visible to the actor: customers see their own,
// approved workers see their assignments, admins see everything. The
// ownership scope comes from the principal, never from the caller's filter.
func (s *Service) List(ctx context.Context, filter ListFilter, actor identity.Principal) ([]Booking, error) {
	if err := access.Authorize(actor, access.ActionViewBookings).Err(); err != nil {
		return nil, err
	}

	switch actor.Role {
	case identity.RoleCustomer:
		filter.CreatedByUserID = actor.ID
		filter.AssignedWorker = ""
	case identity.RoleWorker:
		filter.AssignedWorker = actor.Email
		filter.CreatedByUserID = ""
	case identity.RoleAdmin:
		// unrestricted
	}

	return s.repo.List(ctx, filter)
}
