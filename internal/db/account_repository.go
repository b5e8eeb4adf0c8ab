package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Account is a persisted login row (spec §6 "Persisted state: Accounts").
type Account struct {
	Login        string
	PasswordHash string
	AccessLevel  int
	LastServer   int8
	LastIP       string
	LastActive   time.Time
}

// HashPassword hashes a password for storage. bcrypt replaces the teacher's
// legacy SHA-1 scheme: this is a new account store, not one migrating an
// existing player base, so there is no compatibility reason to keep a
// broken hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AccountRepository persists accounts to the lobby database.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository builds a repository backed by pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetAccount returns the account for login, or (nil, nil) if none exists.
func (r *AccountRepository) GetAccount(ctx context.Context, login string) (*Account, error) {
	login = strings.ToLower(login)
	var acc Account
	err := r.pool.QueryRow(ctx,
		`SELECT login, password_hash, access_level, last_server, last_ip, last_active
		 FROM accounts WHERE login = $1`, login,
	).Scan(&acc.Login, &acc.PasswordHash, &acc.AccessLevel, &acc.LastServer, &acc.LastIP, &acc.LastActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account %q: %w", login, err)
	}
	return &acc, nil
}

// CreateAccount inserts a new account row.
func (r *AccountRepository) CreateAccount(ctx context.Context, login, passwordHash, ip string) error {
	login = strings.ToLower(login)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (login, password_hash, access_level, last_server, last_ip, last_active)
		 VALUES ($1, $2, 0, 0, $3, now())`,
		login, passwordHash, ip,
	)
	if err != nil {
		return fmt.Errorf("creating account %q: %w", login, err)
	}
	return nil
}

// UpdateLastLogin stamps last_active/last_ip/last_server on a successful
// lobby login (spec §4.8 AccountRegistry transition to lobby state).
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, login, ip string, lastServer int8) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET last_active = now(), last_ip = $1, last_server = $2 WHERE login = $3`,
		ip, lastServer, strings.ToLower(login),
	)
	if err != nil {
		return fmt.Errorf("updating last login for %q: %w", login, err)
	}
	return nil
}
