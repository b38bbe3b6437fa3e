package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"garageflow/access"
	"garageflow/identity"
)

// ErrIllegalTransition signals a review verdict the state machine forbids,
// including a verdict equal to the current status.
var ErrIllegalTransition = errors.New("worker: illegal transition")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service owns the worker vetting lifecycle. It is the single source of truth
// the assignment engine consults for eligibility.
type Service struct {
	pool TxBeginner
	repo Repository
}

// NewService creates a worker directory service.
func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{pool: pool, repo: repo}
}

// Review applies an admin verdict to a worker. The read, the transition
// validation, the conditional status write, and the event append happen in
// one transaction under a row lock, so two concurrent admins cannot both
// win the same review.
func (s *Service) Review(ctx context.Context, workerID string, decision Decision, actor identity.Principal) (Worker, error) {
	if err := access.Authorize(actor, access.ActionReviewWorker).Err(); err != nil {
		return Worker{}, err
	}
	if _, err := ParseDecision(string(decision)); err != nil {
		return Worker{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Worker{}, fmt.Errorf("worker: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.repo.GetForUpdate(ctx, tx, workerID)
	if err != nil {
		return Worker{}, err
	}

	target := decision.Target()
	if !CanTransition(w.Status, target) {
		return Worker{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, w.Status, target)
	}

	if err := s.repo.UpdateStatus(ctx, tx, w.ID, w.Status, target); err != nil {
		return Worker{}, err
	}

	payload := map[string]any{
		"previous_status": string(w.Status),
		"next_status":     string(target),
		"decision":        string(decision),
	}
	if err := s.repo.AppendReviewEvent(ctx, tx, w.ID, "WORKER_REVIEWED", actor.ID, payload); err != nil {
		return Worker{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Worker{}, fmt.Errorf("worker: commit review: %w", err)
	}

	w.Status = target
	return w, nil
}

// Get fetches a single directory entry with its review history. Like List,
// it is restricted to admins.
func (s *Service) Get(ctx context.Context, workerID string, actor identity.Principal) (Worker, []ReviewEvent, error) {
	if err := access.Authorize(actor, access.ActionReviewWorker).Err(); err != nil {
		return Worker{}, nil, err
	}

	w, err := s.repo.GetByID(ctx, workerID)
	if err != nil {
		return Worker{}, nil, err
	}

	events, err := s.repo.ListReviewEvents(ctx, workerID)
	if err != nil {
		return Worker{}, nil, err
	}

	return w, events, nil
}

// List returns directory entries for the admin dashboard.
func (s *Service) List(ctx context.Context, filter ListFilter, actor identity.Principal) ([]Worker, error) {
	if err := access.Authorize(actor, access.ActionReviewWorker).Err(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}
