package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/jackbot/db"
)

// PostgresRepository stores records in the users table; list-valued fields
// are JSONB columns.
type PostgresRepository struct {
	DB  *sql.DB
	now func() time.Time
}

// NewPostgresRepository wraps an open, migrated connection.
func NewPostgresRepository(database *sql.DB) *PostgresRepository {
	return &PostgresRepository{DB: database, now: time.Now}
}

const selectUsers = `SELECT username, twitch_id, admin, wallet_ids, owned_nfts, raw, updated_at FROM users`

// LoadAll returns every record ordered by username.
func (p *PostgresRepository) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := p.DB.QueryContext(ctx, selectUsers+` ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record for username or ErrNotFound.
func (p *PostgresRepository) Get(ctx context.Context, username string) (Record, error) {
	row := p.DB.QueryRowContext(ctx, selectUsers+` WHERE username = $1`, Key(username))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Upsert replaces the row for rec.Username.
func (p *PostgresRepository) Upsert(ctx context.Context, rec Record) error {
	rec = normalize(rec, p.now())
	wallets, err := json.Marshal(rec.WalletIDs)
	if err != nil {
		return fmt.Errorf("encode wallets: %w", err)
	}
	nfts, err := json.Marshal(rec.OwnedNFTs)
	if err != nil {
		return fmt.Errorf("encode nfts: %w", err)
	}
	var raw []byte
	if rec.Raw != nil {
		if raw, err = json.Marshal(rec.Raw); err != nil {
			return fmt.Errorf("encode raw: %w", err)
		}
	}
	q := `INSERT INTO users(username, twitch_id, admin, wallet_ids, owned_nfts, raw, updated_at)
		  VALUES($1,$2,$3,$4,$5,$6,$7)
		  ON CONFLICT(username) DO UPDATE SET
		    twitch_id=EXCLUDED.twitch_id,
		    admin=EXCLUDED.admin,
		    wallet_ids=EXCLUDED.wallet_ids,
		    owned_nfts=EXCLUDED.owned_nfts,
		    raw=EXCLUDED.raw,
		    updated_at=EXCLUDED.updated_at`
	if _, err := p.DB.ExecContext(ctx, q, rec.Username, rec.TwitchID, rec.Admin, string(wallets), string(nfts), nullableJSON(raw), rec.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user %s: %w", rec.Username, err)
	}
	return nil
}

// Ping checks database connectivity.
func (p *PostgresRepository) Ping(ctx context.Context) error {
	return db.Ping(ctx, p.DB)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec           Record
		wallets, nfts []byte
		raw           []byte
	)
	if err := s.Scan(&rec.Username, &rec.TwitchID, &rec.Admin, &wallets, &nfts, &raw, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(wallets, &rec.WalletIDs); err != nil {
		return Record{}, fmt.Errorf("decode wallets for %s: %w", rec.Username, err)
	}
	if err := json.Unmarshal(nfts, &rec.OwnedNFTs); err != nil {
		return Record{}, fmt.Errorf("decode nfts for %s: %w", rec.Username, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Raw); err != nil {
			return Record{}, fmt.Errorf("decode raw for %s: %w", rec.Username, err)
		}
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
