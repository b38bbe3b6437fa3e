package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested booking does not exist.
	ErrNotFound = errors.New("booking: not found")
	// ErrAlreadyAssigned signals the booking already has a worker; assignment
	// happens at most once and reassignment is not supported.
	ErrAlreadyAssigned = errors.New("booking: already assigned")
	// ErrConflictingUpdate signals a conditional write lost a race; the caller
	// should refetch and decide from fresh state, not blindly resubmit.
	ErrConflictingUpdate = errors.New("booking: conflicting update")
)

// Repository handles data access for bookings.
type Repository interface {
	Insert(ctx context.Context, params InsertParams) (Booking, error)
	GetByID(ctx context.Context, id string) (Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) error
	SetAssignedWorker(ctx context.Context, tx pgx.Tx, id, workerEmail string) error
	AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType, actorID string, payload map[string]any) error
	ListEvents(ctx context.Context, bookingID string) ([]Event, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, error)
}

// InsertParams contains write parameters for creating bookings.
type InsertParams struct {
	CreateParams
	CreatedByUserID string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed booking repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const bookingColumns = `id, service_kind, customer_name, vehicle_model, scheduled_date, scheduled_time, status, assigned_worker, created_by_user_id, created_at, updated_at`

// Insert creates a pending, unassigned booking.
func (r *PGRepository) Insert(ctx context.Context, params InsertParams) (Booking, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO bookings (service_kind, customer_name, vehicle_model, scheduled_date, scheduled_time, status, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING %s
	`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, insertSQL,
		params.ServiceKind,
		params.CustomerName,
		params.VehicleModel,
		params.Date,
		params.Time,
		params.CreatedByUserID,
	))
	if err != nil {
		return Booking{}, fmt.Errorf("booking: insert: %w", err)
	}
	return b, nil
}

// GetByID fetches a booking by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Booking, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: get by id: %w", err)
	}
	return b, nil
}

// GetForUpdate fetches a booking inside the caller's transaction with a row
// lock, so status and assignment cannot move underneath a guarded mutation.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Booking, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1 FOR UPDATE`, bookingColumns)

	b, err := scanBooking(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: get for update: %w", err)
	}
	return b, nil
}

// UpdateStatus advances the lifecycle as a conditional write keyed on the
// expected predecessor, so a double-advance lost race surfaces as
// ErrConflictingUpdate rather than a silent overwrite.
func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflictingUpdate
	}
	return nil
}

// SetAssignedWorker writes the one-shot assignment. The IS NULL predicate
// means the write succeeds only while no worker has ever been assigned.
func (r *PGRepository) SetAssignedWorker(ctx context.Context, tx pgx.Tx, id, workerEmail string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET assigned_worker = $1, updated_at = now()
		WHERE id = $2 AND assigned_worker IS NULL
	`, workerEmail, id)
	if err != nil {
		return fmt.Errorf("booking: set assigned worker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyAssigned
	}
	return nil
}

// AppendEvent records a booking mutation in the append-only event log.
func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("booking: marshal event payload: %w", err)
	}
	var actor any
	if actorID != "" {
		actor = actorID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_events (booking_id, type, payload, actor_id)
		VALUES ($1, $2, $3::jsonb, $4::uuid)
	`, bookingID, eventType, body, actor); err != nil {
		return fmt.Errorf("booking: insert event: %w", err)
	}
	return nil
}

// ListEvents fetches a booking's history in append order.
func (r *PGRepository) ListEvents(ctx context.Context, bookingID string) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, type, actor_id, payload, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY id ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("booking: list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Type, &e.ActorID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate events: %w", err)
	}

	return events, nil
}

// List fetches bookings matching the filter, soonest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.AssignedWorker != "" {
		add("assigned_worker = $%d", filter.AssignedWorker)
	}
	if filter.CreatedByUserID != "" {
		add("created_by_user_id = $%d", filter.CreatedByUserID)
	}

	query := fmt.Sprintf(`SELECT %s FROM bookings`, bookingColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY scheduled_date ASC, scheduled_time ASC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: list: %w", err)
	}
	defer rows.Close()

	bookings := make([]Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate: %w", err)
	}

	return bookings, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.ServiceKind,
		&b.CustomerName,
		&b.VehicleModel,
		&b.Date,
		&b.Time,
		&b.Status,
		&b.AssignedWorker,
		&b.CreatedByUserID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}
