// Package assignment couples the booking lifecycle to the worker directory:
// it is the only writer of a booking's assigned worker.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"garageflow/access"
	"garageflow/booking"
	"garageflow/identity"
	"garageflow/worker"
)

var (
	// ErrWorkerNotEligible signals the target worker's directory status is not
	// approved at the moment of the call.
	ErrWorkerNotEligible = errors.New("assignment: worker not eligible")
	// ErrInvalidInput signals a malformed request; retrying without changing
	// it will never succeed.
	ErrInvalidInput = errors.New("assignment: invalid input")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BookingStore is the slice of the booking repository the engine needs.
type BookingStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (booking.Booking, error)
	SetAssignedWorker(ctx context.Context, tx pgx.Tx, id, workerEmail string) error
	AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType, actorID string, payload map[string]any) error
}

// WorkerStore is the slice of the worker directory the engine consults for
// eligibility. The directory is the single source of truth; eligibility is
// never read from a denormalized copy.
type WorkerStore interface {
	GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (worker.Worker, error)
}

// Engine assigns approved workers to unassigned bookings.
type Engine struct {
	pool     TxBeginner
	bookings BookingStore
	workers  WorkerStore
}

// NewEngine wires an assignment engine over the two domain stores.
func NewEngine(pool TxBeginner, bookings BookingStore, workers WorkerStore) *Engine {
	return &Engine{pool: pool, bookings: bookings, workers: workers}
}

// Assign sets booking.AssignedWorker exactly once. Both rows are locked in
// the same transaction: the booking so a concurrent assign cannot double-book
// it, the worker so a concurrent rejection cannot race past the eligibility
// check. A status change after the commit does not retroactively unassign.
func (e *Engine) Assign(ctx context.Context, bookingID, workerEmail string, actor identity.Principal) (booking.Booking, error) {
	if err := access.Authorize(actor, access.ActionAssignWorker).Err(); err != nil {
		return booking.Booking{}, err
	}
	if bookingID == "" || workerEmail == "" {
		return booking.Booking{}, fmt.Errorf("%w: booking id and worker email are required", ErrInvalidInput)
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("assignment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := e.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.AssignedWorker != nil {
		return booking.Booking{}, fmt.Errorf("%w: booking %s", booking.ErrAlreadyAssigned, b.ID)
	}

	w, err := e.workers.GetByEmailForUpdate(ctx, tx, workerEmail)
	if err != nil {
		return booking.Booking{}, err
	}
	if w.Status != worker.StatusApproved {
		return booking.Booking{}, fmt.Errorf("%w: %s is %s", ErrWorkerNotEligible, w.Email, w.Status)
	}

	if err := e.bookings.SetAssignedWorker(ctx, tx, b.ID, w.Email); err != nil {
		return booking.Booking{}, err
	}

	payload := map[string]any{
		"worker_email": w.Email,
		"worker_id":    w.ID,
	}
	if err := e.bookings.AppendEvent(ctx, tx, b.ID, "WORKER_ASSIGNED", actor.ID, payload); err != nil {
		return booking.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Booking{}, fmt.Errorf("assignment: commit: %w", err)
	}

	email := w.Email
	b.AssignedWorker = &email
	return b, nil
}
