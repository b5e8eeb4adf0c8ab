package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupLobbyDB starts a throwaway Postgres container, applies the lobby
// migrations and returns a connected pool. Grounded on the teacher's
// internal/testutil.SetupTestDB.
func setupLobbyDB(tb testing.TB) *pgxpool.Pool {
	tb.Helper()
	return setupDB(tb, RunLobbyMigrations)
}

// setupWorldDB is the same as setupLobbyDB but for the world schema.
func setupWorldDB(tb testing.TB) *pgxpool.Pool {
	tb.Helper()
	return setupDB(tb, RunWorldMigrations)
}

func setupDB(tb testing.TB, migrate func(ctx context.Context, dsn string) error) *pgxpool.Pool {
	tb.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		tb.Fatalf("starting postgres container: %v", err)
	}
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			tb.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tb.Fatalf("getting connection string: %v", err)
	}

	if err := migrate(ctx, dsn); err != nil {
		tb.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		tb.Fatalf("connecting to test db: %v", err)
	}
	tb.Cleanup(pool.Close)

	return pool
}
