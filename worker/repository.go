package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested worker does not exist.
	ErrNotFound = errors.New("worker: not found")
	// ErrConflictingUpdate signals a conditional write lost a race; the caller
	// should refetch before deciding whether to retry.
	ErrConflictingUpdate = errors.New("worker: conflicting update")
)

// Repository handles data access for the worker directory.
type Repository interface {
	GetByID(ctx context.Context, id string) (Worker, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Worker, error)
	GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (Worker, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) error
	AppendReviewEvent(ctx context.Context, tx pgx.Tx, workerID, eventType, actorID string, payload map[string]any) error
	ListReviewEvents(ctx context.Context, workerID string) ([]ReviewEvent, error)
	List(ctx context.Context, filter ListFilter) ([]Worker, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed directory repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const workerColumns = `id, user_id, email, full_name, status, specialties, created_at, updated_at`

// GetByID fetches a worker by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Worker, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM workers WHERE id = $1`, workerColumns)

	w, err := scanWorker(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrNotFound
		}
		return Worker{}, fmt.Errorf("worker: get by id: %w", err)
	}
	return w, nil
}

// GetForUpdate fetches a worker inside the caller's transaction with a row
// lock, so the vetting status cannot move underneath a review.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Worker, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM workers WHERE id = $1 FOR UPDATE`, workerColumns)

	w, err := scanWorker(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrNotFound
		}
		return Worker{}, fmt.Errorf("worker: get for update: %w", err)
	}
	return w, nil
}

// GetByEmailForUpdate locks the worker row by email. The assignment engine
// holds this lock while it couples eligibility to the booking write, so an
// approval revoked concurrently cannot slip past the check.
func (r *PGRepository) GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (Worker, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM workers WHERE email = $1 FOR UPDATE`, workerColumns)

	w, err := scanWorker(tx.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrNotFound
		}
		return Worker{}, fmt.Errorf("worker: get by email for update: %w", err)
	}
	return w, nil
}

// UpdateStatus applies a vetting transition as a conditional write. The
// predicate on the prior status turns a lost race into ErrConflictingUpdate
// instead of a silent overwrite.
func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE workers
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("worker: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflictingUpdate
	}
	return nil
}

// AppendReviewEvent records the review verdict in the append-only event log.
func (r *PGRepository) AppendReviewEvent(ctx context.Context, tx pgx.Tx, workerID, eventType, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("worker: marshal review payload: %w", err)
	}
	var actor any
	if actorID != "" {
		actor = actorID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO worker_events (worker_id, type, payload, actor_id)
		VALUES ($1, $2, $3::jsonb, $4::uuid)
	`, workerID, eventType, body, actor); err != nil {
		return fmt.Errorf("worker: insert review event: %w", err)
	}
	return nil
}

// ListReviewEvents fetches a worker's review history in append order.
func (r *PGRepository) ListReviewEvents(ctx context.Context, workerID string) ([]ReviewEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, worker_id, type, actor_id, payload, created_at
		FROM worker_events
		WHERE worker_id = $1
		ORDER BY id ASC
	`, workerID)
	if err != nil {
		return nil, fmt.Errorf("worker: list review events: %w", err)
	}
	defer rows.Close()

	events := []ReviewEvent{}
	for rows.Next() {
		var e ReviewEvent
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.Type, &e.ActorID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("worker: scan review event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("worker: iterate review events: %w", err)
	}

	return events, nil
}

// List fetches directory entries, optionally narrowed to one status.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Worker, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM workers`, workerColumns)
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("worker: list: %w", err)
	}
	defer rows.Close()

	workers := make([]Worker, 0, limit)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("worker: scan: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("worker: iterate: %w", err)
	}

	return workers, nil
}

func scanWorker(row pgx.Row) (Worker, error) {
	var w Worker
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Email,
		&w.FullName,
		&w.Status,
		&w.Specialties,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return Worker{}, err
	}
	return w, nil
}
