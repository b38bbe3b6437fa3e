// Package chaos injects connection-level faults while the stress actors run,
// so the lifecycle invariants are checked under reconnects and aborted
// transactions, not just under contention.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Killer periodically terminates a random backend of the stress database.
// A killed backend aborts whatever booking or review transaction it was
// running; the invariant sweeps must still come up clean afterwards.
type Killer struct {
	// Interval is how often a kill is considered.
	Interval time.Duration
	// Probability is the chance, per tick, that a backend actually dies.
	Probability float64
}

// DefaultKiller considers a kill every two seconds and fires one in five.
func DefaultKiller() Killer {
	return Killer{Interval: 2 * time.Second, Probability: 0.2}
}

// Run blocks until ctx is done or stop closes.
func (k Killer) Run(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(k.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Float64() >= k.Probability {
				continue
			}
			// Any active backend of this database except our own.
			_, _ = pool.Exec(ctx, `
				SELECT pg_terminate_backend(pid)
				FROM pg_stat_activity
				WHERE datname = current_database() AND pid <> pg_backend_pid()
				ORDER BY random()
				LIMIT 1
			`)
		}
	}
}
