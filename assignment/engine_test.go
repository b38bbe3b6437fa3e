package assignment

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"garageflow/access"
	"garageflow/booking"
	"garageflow/identity"
	"garageflow/worker"
)

var adminActor = identity.Principal{ID: "admin-1", Email: "root@example.com", Role: identity.RoleAdmin}

func TestAssign_ApprovedWorker(t *testing.T) {
	pool := &fakePool{}
	bookings := newFakeBookings(booking.Booking{ID: "b1", Status: booking.StatusPending})
	workers := newFakeWorkers(worker.Worker{ID: "w1", Email: "wanda@example.com", Status: worker.StatusApproved})
	eng := NewEngine(pool, bookings, workers)

	b, err := eng.Assign(context.Background(), "b1", "wanda@example.com", adminActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if b.AssignedWorker == nil || *b.AssignedWorker != "wanda@example.com" {
		t.Fatalf("expected assignment to wanda, got %v", b.AssignedWorker)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(bookings.events) != 1 || bookings.events[0] != "WORKER_ASSIGNED" {
		t.Fatalf("expected one WORKER_ASSIGNED event, got %v", bookings.events)
	}
}

func TestAssign_RejectsBlankInputs(t *testing.T) {
	eng := NewEngine(&fakePool{}, newFakeBookings(), newFakeWorkers())
	ctx := context.Background()

	if _, err := eng.Assign(ctx, "", "wanda@example.com", adminActor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank booking id: expected ErrInvalidInput, got %v", err)
	}
	if _, err := eng.Assign(ctx, "b1", "", adminActor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank worker email: expected ErrInvalidInput, got %v", err)
	}
}

func TestAssign_EligibilityByStatus(t *testing.T) {
	for _, status := range []worker.Status{worker.StatusPending, worker.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			pool := &fakePool{}
			bookings := newFakeBookings(booking.Booking{ID: "b1", Status: booking.StatusPending})
			workers := newFakeWorkers(worker.Worker{ID: "w1", Email: "pete@example.com", Status: status})
			eng := NewEngine(pool, bookings, workers)

			_, err := eng.Assign(context.Background(), "b1", "pete@example.com", adminActor)
			if !errors.Is(err, ErrWorkerNotEligible) {
				t.Fatalf("expected ErrWorkerNotEligible, got %v", err)
			}
			if pool.tx.committed {
				t.Error("expected no commit for ineligible worker")
			}
			if got := bookings.bookings["b1"].AssignedWorker; got != nil {
				t.Fatalf("expected booking to stay unassigned, got %v", *got)
			}
		})
	}
}

func TestAssign_AtMostOnce(t *testing.T) {
	pool := &fakePool{}
	bookings := newFakeBookings(booking.Booking{ID: "b1", Status: booking.StatusPending})
	workers := newFakeWorkers(
		worker.Worker{ID: "w1", Email: "wanda@example.com", Status: worker.StatusApproved},
		worker.Worker{ID: "w2", Email: "omar@example.com", Status: worker.StatusApproved},
	)
	eng := NewEngine(pool, bookings, workers)
	ctx := context.Background()

	if _, err := eng.Assign(ctx, "b1", "wanda@example.com", adminActor); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	// Any later assign fails, regardless of the second worker.
	for _, email := range []string{"omar@example.com", "wanda@example.com"} {
		if _, err := eng.Assign(ctx, "b1", email, adminActor); !errors.Is(err, booking.ErrAlreadyAssigned) {
			t.Fatalf("reassign to %s: expected ErrAlreadyAssigned, got %v", email, err)
		}
	}
	if got := bookings.bookings["b1"].AssignedWorker; got == nil || *got != "wanda@example.com" {
		t.Fatalf("expected assignment to stay with wanda, got %v", got)
	}
}

func TestAssign_RequiresAdmin(t *testing.T) {
	pool := &fakePool{}
	eng := NewEngine(pool, newFakeBookings(), newFakeWorkers())

	actors := []identity.Principal{
		{ID: "cust-1", Role: identity.RoleCustomer},
		{ID: "wrk-1", Email: "wanda@example.com", Role: identity.RoleWorker, WorkerStatus: identity.WorkerApproved},
	}
	for _, actor := range actors {
		if _, err := eng.Assign(context.Background(), "b1", "wanda@example.com", actor); !errors.Is(err, access.ErrUnauthorized) {
			t.Fatalf("actor %s: expected ErrUnauthorized, got %v", actor.Role, err)
		}
	}
	if pool.tx != nil {
		t.Error("expected no transaction for unauthorized assign")
	}
}

func TestAssign_UnknownBookingOrWorker(t *testing.T) {
	bookings := newFakeBookings(booking.Booking{ID: "b1", Status: booking.StatusPending})
	workers := newFakeWorkers()
	eng := NewEngine(&fakePool{}, bookings, workers)
	ctx := context.Background()

	if _, err := eng.Assign(ctx, "missing", "wanda@example.com", adminActor); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected booking.ErrNotFound, got %v", err)
	}
	if _, err := eng.Assign(ctx, "b1", "ghost@example.com", adminActor); !errors.Is(err, worker.ErrNotFound) {
		t.Fatalf("expected worker.ErrNotFound, got %v", err)
	}
}

// Scenario: a worker registers (pending), an admin approves them, and the
// assignment of a pending unassigned booking then succeeds.
func TestAssign_AfterApproval(t *testing.T) {
	bookings := newFakeBookings(booking.Booking{ID: "b1", Status: booking.StatusPending})
	workers := newFakeWorkers(worker.Worker{ID: "w1", Email: "wanda@example.com", Status: worker.StatusPending})
	eng := NewEngine(&fakePool{}, bookings, workers)
	ctx := context.Background()

	if _, err := eng.Assign(ctx, "b1", "wanda@example.com", adminActor); !errors.Is(err, ErrWorkerNotEligible) {
		t.Fatalf("pre-approval: expected ErrWorkerNotEligible, got %v", err)
	}

	w := workers.workers["wanda@example.com"]
	w.Status = worker.StatusApproved
	workers.workers["wanda@example.com"] = w

	b, err := eng.Assign(ctx, "b1", "wanda@example.com", adminActor)
	if err != nil {
		t.Fatalf("post-approval assign: %v", err)
	}
	if b.AssignedWorker == nil || *b.AssignedWorker != "wanda@example.com" {
		t.Fatalf("expected assignment to wanda, got %v", b.AssignedWorker)
	}
}

type fakeBookings struct {
	bookings map[string]booking.Booking
	events   []string
}

func newFakeBookings(seed ...booking.Booking) *fakeBookings {
	f := &fakeBookings{bookings: make(map[string]booking.Booking)}
	for _, b := range seed {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *fakeBookings) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (booking.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) SetAssignedWorker(ctx context.Context, tx pgx.Tx, id, workerEmail string) error {
	b, ok := f.bookings[id]
	if !ok || b.AssignedWorker != nil {
		return booking.ErrAlreadyAssigned
	}
	b.AssignedWorker = &workerEmail
	f.bookings[id] = b
	return nil
}

func (f *fakeBookings) AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType, actorID string, payload map[string]any) error {
	f.events = append(f.events, eventType)
	return nil
}

type fakeWorkers struct {
	workers map[string]worker.Worker
}

func newFakeWorkers(seed ...worker.Worker) *fakeWorkers {
	f := &fakeWorkers{workers: make(map[string]worker.Worker)}
	for _, w := range seed {
		f.workers[w.Email] = w
	}
	return f
}

func (f *fakeWorkers) GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (worker.Worker, error) {
	w, ok := f.workers[email]
	if !ok {
		return worker.Worker{}, worker.ErrNotFound
	}
	return w, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
