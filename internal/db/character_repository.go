package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CharacterRow is a persisted character (spec §6 "Persisted state:
// Characters"). The runtime world-cid is never stored here: it is
// reallocated by the in-memory CharacterRegistry every time a character
// logs back in.
type CharacterRow struct {
	UUID         string
	AccountLogin string
	Name         string
	LoginPoints  int64
	ClanID       *int32
}

// CharacterRepository persists characters to the world database.
type CharacterRepository struct {
	pool *pgxpool.Pool
}

// NewCharacterRepository builds a repository backed by pool.
func NewCharacterRepository(pool *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{pool: pool}
}

// Create inserts a new character row owned by accountLogin.
func (r *CharacterRepository) Create(ctx context.Context, uuid, accountLogin, name string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO characters (uuid, account_login, name) VALUES ($1, $2, $3)`,
		uuid, accountLogin, name,
	)
	if err != nil {
		return fmt.Errorf("creating character %q: %w", name, err)
	}
	return nil
}

// CreateNew mints a fresh persistent uuid for a new character and inserts
// it, returning the uuid the caller must hand to
// registry.CharacterRegistry.Register on first login.
func (r *CharacterRepository) CreateNew(ctx context.Context, accountLogin, name string) (string, error) {
	id := uuid.New().String()
	if err := r.Create(ctx, id, accountLogin, name); err != nil {
		return "", err
	}
	return id, nil
}

// ByUUID returns the character row for uuid, or (nil, nil) if none exists.
func (r *CharacterRepository) ByUUID(ctx context.Context, uuid string) (*CharacterRow, error) {
	var row CharacterRow
	err := r.pool.QueryRow(ctx,
		`SELECT uuid, account_login, name, login_points, clan_id
		 FROM characters WHERE uuid = $1`, uuid,
	).Scan(&row.UUID, &row.AccountLogin, &row.Name, &row.LoginPoints, &row.ClanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying character %q: %w", uuid, err)
	}
	return &row, nil
}

// ByAccount returns every character owned by accountLogin, for the lobby's
// character-select listing.
func (r *CharacterRepository) ByAccount(ctx context.Context, accountLogin string) ([]CharacterRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT uuid, account_login, name, login_points, clan_id
		 FROM characters WHERE account_login = $1 ORDER BY created_at`, accountLogin)
	if err != nil {
		return nil, fmt.Errorf("querying characters for account %q: %w", accountLogin, err)
	}
	defer rows.Close()

	var result []CharacterRow
	for rows.Next() {
		var row CharacterRow
		if err := rows.Scan(&row.UUID, &row.AccountLogin, &row.Name, &row.LoginPoints, &row.ClanID); err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// NameTaken reports whether a character already holds name.
func (r *CharacterRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM characters WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking character name %q: %w", name, err)
	}
	return exists, nil
}

// AddLoginPoints adds delta (may be negative) to a character's accumulated
// login points, the figure internal/group's clan-level recompute sums
// across members (spec §4.10).
func (r *CharacterRepository) AddLoginPoints(ctx context.Context, uuid string, delta int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE characters SET login_points = login_points + $1 WHERE uuid = $2`, delta, uuid,
	)
	if err != nil {
		return fmt.Errorf("adding login points to %q: %w", uuid, err)
	}
	return nil
}
