// Package oracles holds the invariant sweeps the stress test runs against the
// live database. Each oracle is a query that must return zero rows; any row
// is a counterexample.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_assignment_at_most_once",
			SQL: `SELECT booking_id, COUNT(*) FROM booking_events
                  WHERE type = 'WORKER_ASSIGNED'
                  GROUP BY booking_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_booking_forward_only",
			SQL: `SELECT id, booking_id, payload FROM booking_events
                  WHERE type = 'BOOKING_STATUS_CHANGED'
                    AND (payload->>'previous_status', payload->>'next_status')
                        NOT IN (('pending', 'in-progress'), ('in-progress', 'completed'))`,
		},
		{
			Name: "O3_progress_implies_assignment",
			SQL: `SELECT id, status FROM bookings
                  WHERE status <> 'pending' AND assigned_worker IS NULL`,
		},
		{
			Name: "O4_review_transitions_legal",
			SQL: `SELECT id, worker_id, payload FROM worker_events
                  WHERE type = 'WORKER_REVIEWED'
                    AND (payload->>'previous_status', payload->>'next_status')
                        NOT IN (('pending', 'approved'), ('pending', 'rejected'),
                                ('approved', 'rejected'), ('rejected', 'approved'))`,
		},
		{
			Name: "O5_status_event_parity",
			SQL: `SELECT b.id, b.status, COUNT(e.id) AS transitions
                  FROM bookings b
                  LEFT JOIN booking_events e
                    ON e.booking_id = b.id AND e.type = 'BOOKING_STATUS_CHANGED'
                  GROUP BY b.id, b.status
                  HAVING COUNT(e.id) <> CASE b.status
                      WHEN 'pending' THEN 0
                      WHEN 'in-progress' THEN 1
                      WHEN 'completed' THEN 2
                  END`,
		},
		{
			Name: "O6_assignment_event_matches_row",
			SQL: `SELECT b.id, b.assigned_worker, e.payload->>'worker_email' AS event_email
                  FROM bookings b
                  JOIN booking_events e
                    ON e.booking_id = b.id AND e.type = 'WORKER_ASSIGNED'
                  WHERE b.assigned_worker IS DISTINCT FROM e.payload->>'worker_email'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text), or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
