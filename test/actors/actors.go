// Package actors contains the concurrent workloads used by the stress test.
// Each actor loops a single operation against the real services until the
// stop channel closes; expected contention errors are swallowed, anything
// else aborts the run.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"garageflow/access"
	"garageflow/assignment"
	"garageflow/booking"
	"garageflow/identity"
	"garageflow/worker"
)

func tolerable(err error) bool {
	return errors.Is(err, booking.ErrIllegalTransition) ||
		errors.Is(err, booking.ErrAlreadyAssigned) ||
		errors.Is(err, booking.ErrConflictingUpdate) ||
		errors.Is(err, worker.ErrIllegalTransition) ||
		errors.Is(err, worker.ErrConflictingUpdate) ||
		errors.Is(err, assignment.ErrWorkerNotEligible) ||
		errors.Is(err, access.ErrUnauthorized)
}

// Booker creates fresh appointments as a customer. New bookings widen the
// data set the oracles sweep over.
func Booker(ctx context.Context, svc *booking.Service, customer identity.Principal, stop <-chan struct{}) error {
	models := []string{"Civic", "Corolla", "Model 3", "Golf"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		kind := booking.ServiceCarWash
		if rand.Intn(2) == 0 {
			kind = booking.ServiceCarRepair
		}
		_, err := svc.Create(ctx, booking.CreateParams{
			ServiceKind:  kind,
			CustomerName: "Stress Customer",
			VehicleModel: models[rand.Intn(len(models))],
			Date:         time.Now().AddDate(0, 0, 1+rand.Intn(14)),
			Time:         fmt.Sprintf("%02d:00", 8+rand.Intn(9)),
		}, customer)
		if err != nil && !tolerable(err) {
			return fmt.Errorf("booker create: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Assigner races other assigners to couple the same worker to the same
// booking. Exactly one call may win; the rest must observe the
// already-assigned conflict.
func Assigner(ctx context.Context, engine *assignment.Engine, admin identity.Principal, bookingID, workerEmail string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := engine.Assign(ctx, bookingID, workerEmail, admin)
		if err != nil && !tolerable(err) {
			return fmt.Errorf("assigner: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Advancer pushes the contended booking forward as its assigned worker.
// It blindly tries both hops every cycle; the losing hop surfaces an
// illegal-transition or lost-update conflict, which is the point.
func Advancer(ctx context.Context, svc *booking.Service, assignedWorker identity.Principal, bookingID string, stop <-chan struct{}) error {
	targets := []booking.Status{booking.StatusInProgress, booking.StatusCompleted}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		target := targets[rand.Intn(len(targets))]
		_, err := svc.Advance(ctx, bookingID, target, assignedWorker)
		if err != nil && !tolerable(err) {
			return fmt.Errorf("advancer to %s: %w", target, err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Reviewer flip-flops a spare worker between approved and rejected so the
// eligibility check in the assignment engine races a moving target.
func Reviewer(ctx context.Context, svc *worker.Service, admin identity.Principal, workerID string, stop <-chan struct{}) error {
	decisions := []worker.Decision{worker.DecisionApprove, worker.DecisionReject}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Review(ctx, workerID, decisions[rand.Intn(len(decisions))], admin)
		if err != nil && !tolerable(err) {
			return fmt.Errorf("reviewer: %w", err)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}
