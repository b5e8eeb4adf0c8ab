package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nexusmmo/core/internal/db/migrations"
)

var gooseOnce sync.Once

func setDialect() error {
	var err error
	gooseOnce.Do(func() { err = goose.SetDialect("postgres") })
	return err
}

// RunLobbyMigrations applies the lobby database's embedded migrations
// (spec §6 "lobby database holds Accounts") to dsn.
func RunLobbyMigrations(ctx context.Context, dsn string) error {
	return runMigrations(ctx, dsn, migrations.LobbyFS)
}

// RunWorldMigrations applies the world database's embedded migrations
// (spec §6 "world database holds Characters and all derived persistent
// rows") to dsn.
func RunWorldMigrations(ctx context.Context, dsn string) error {
	return runMigrations(ctx, dsn, migrations.WorldFS)
}

func runMigrations(ctx context.Context, dsn string, fs embed.FS) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	if err := setDialect(); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	goose.SetBaseFS(fs)
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
