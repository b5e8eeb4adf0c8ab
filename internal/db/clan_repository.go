package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmmo/core/internal/group"
)

// NewClanUUID mints a fresh persistent clan identifier, the uuid
// group.ClanManager.Form needs a caller to supply.
func NewClanUUID() string {
	return uuid.New().String()
}

// CIDResolver maps a runtime world-cid to the persistent character uuid it
// is currently bound to. World-cids are allocated fresh by the in-memory
// CharacterRegistry on every process start (spec §3 "World-CID"), so
// ClanRepository never stores one: it resolves cid to uuid at the moment of
// the call and persists by uuid, the only identifier stable across restarts.
type CIDResolver func(cid int32) (uuid string, ok bool)

// ClanRepository persists group.Clan state to the world database, grounded
// on the teacher's ClanRepository/SaveClanBatch transactional pattern.
type ClanRepository struct {
	pool    *pgxpool.Pool
	resolve CIDResolver
}

// NewClanRepository builds a group.ClanStore backed by pool. resolve
// translates a live world-cid to the character uuid it belongs to.
func NewClanRepository(pool *pgxpool.Pool, resolve CIDResolver) *ClanRepository {
	return &ClanRepository{pool: pool, resolve: resolve}
}

var _ group.ClanStore = (*ClanRepository)(nil)

func (r *ClanRepository) uuidFor(cid int32) (string, error) {
	uuid, ok := r.resolve(cid)
	if !ok {
		return "", fmt.Errorf("no character registered for cid %d", cid)
	}
	return uuid, nil
}

// CreateClan inserts the clan row and its founding MASTER member.
func (r *ClanRepository) CreateClan(ctx context.Context, clanID int32, uuid, name string, baseZone int32, masterCID int32) error {
	masterUUID, err := r.uuidFor(masterCID)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO clans (clan_id, uuid, name, base_zone, level) VALUES ($1,$2,$3,$4,1)`,
		clanID, uuid, name, baseZone,
	); err != nil {
		return fmt.Errorf("insert clan %d: %w", clanID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO clan_members (clan_id, character_uuid, rank, login_points)
		 VALUES ($1,$2,$3,0)`,
		clanID, masterUUID, int(group.RankMaster),
	); err != nil {
		return fmt.Errorf("insert founding master for clan %d: %w", clanID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE characters SET clan_id = $1 WHERE uuid = $2`, clanID, masterUUID,
	); err != nil {
		return fmt.Errorf("stamp clan_id on founding master %s: %w", masterUUID, err)
	}

	return tx.Commit(ctx)
}

// NameTaken reports whether a clan by this name already exists.
func (r *ClanRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clans WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking clan name %q: %w", name, err)
	}
	return exists, nil
}

// SaveMember inserts or updates a clan_members row and stamps clan_id onto
// the character row so the character's membership survives relogin.
func (r *ClanRepository) SaveMember(ctx context.Context, clanID int32, member group.ClanMember) error {
	uuid, err := r.uuidFor(member.CID)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO clan_members (clan_id, character_uuid, rank, login_points)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (clan_id, character_uuid) DO UPDATE SET rank = $3, login_points = $4`,
		clanID, uuid, int(member.Rank), member.LoginPoints,
	); err != nil {
		return fmt.Errorf("save clan member %s: %w", uuid, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE characters SET clan_id = $1 WHERE uuid = $2`, clanID, uuid,
	); err != nil {
		return fmt.Errorf("stamp clan_id on member %s: %w", uuid, err)
	}

	return tx.Commit(ctx)
}

// DeleteMember removes a member row and clears the character's clan_id.
func (r *ClanRepository) DeleteMember(ctx context.Context, clanID int32, cid int32) error {
	uuid, err := r.uuidFor(cid)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM clan_members WHERE clan_id = $1 AND character_uuid = $2`, clanID, uuid,
	); err != nil {
		return fmt.Errorf("delete clan member %s: %w", uuid, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE characters SET clan_id = NULL WHERE uuid = $1`, uuid,
	); err != nil {
		return fmt.Errorf("clear clan_id on %s: %w", uuid, err)
	}

	return tx.Commit(ctx)
}

// Disband removes the clan and every member row in one transaction (spec
// §8 S3: a rejected transaction must leave nothing observable).
func (r *ClanRepository) Disband(ctx context.Context, clanID int32, memberCIDs []int32) error {
	uuids := make([]string, 0, len(memberCIDs))
	for _, cid := range memberCIDs {
		uuid, err := r.uuidFor(cid)
		if err != nil {
			return err
		}
		uuids = append(uuids, uuid)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if len(uuids) > 0 {
		batch := &pgx.Batch{}
		for _, uuid := range uuids {
			batch.Queue(`UPDATE characters SET clan_id = NULL WHERE uuid = $1`, uuid)
		}
		br := tx.SendBatch(ctx, batch)
		for range uuids {
			if _, err := br.Exec(); err != nil {
				br.Close() //nolint:errcheck
				return fmt.Errorf("clear clan_id batch for clan %d: %w", clanID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close clan_id batch for clan %d: %w", clanID, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM clan_members WHERE clan_id = $1`, clanID); err != nil {
		return fmt.Errorf("delete members of clan %d: %w", clanID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM clans WHERE clan_id = $1`, clanID); err != nil {
		return fmt.Errorf("delete clan %d: %w", clanID, err)
	}

	return tx.Commit(ctx)
}

// MaxClanID returns the highest clan_id currently stored, for resuming the
// in-memory id allocator across a restart. Zero if no clan exists yet.
func (r *ClanRepository) MaxClanID(ctx context.Context) (int32, error) {
	var maxID *int32
	if err := r.pool.QueryRow(ctx, `SELECT MAX(clan_id) FROM clans`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max clan_id: %w", err)
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}
