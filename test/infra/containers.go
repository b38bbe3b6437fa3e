package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// defaultImage matches the Postgres major the migrations are written for.
const defaultImage = "postgres:16"

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres brings up a throwaway Postgres container and returns its DSN.
// When overrideDSN or GARAGEFLOW_TEST_PG_DSN points at an existing database,
// no container is started and that database is used instead; the image can be
// pinned with GARAGEFLOW_TEST_PG_IMAGE.
func StartPostgres(ctx context.Context, overrideDSN string) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv("GARAGEFLOW_TEST_PG_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	image := os.Getenv("GARAGEFLOW_TEST_PG_IMAGE")
	if image == "" {
		image = defaultImage
	}

	pgC, err := postgres.Run(ctx,
		image,
		postgres.WithDatabase("garageflow"),
		postgres.WithUsername("garageflow"),
		postgres.WithPassword("garageflow"),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

// Terminate is a no-op when the run reused an external database.
func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
