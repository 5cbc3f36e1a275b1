// Package users keeps per-user records keyed by streaming-platform username:
// the platform id, admin flag, linked ledger wallets and the NFTs last
// correlated to them.
package users

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/onnwee/jackbot/ledger"
)

// ErrNotFound is returned by Get when no record exists for a username.
var ErrNotFound = errors.New("users: not found")

// Record is one user's stored state.
type Record struct {
	Username  string         `json:"username"`
	TwitchID  string         `json:"twitch_id,omitempty"`
	Admin     bool           `json:"admin"`
	WalletIDs []string       `json:"wallet_ids"`
	OwnedNFTs []ledger.NFT   `json:"owned_nfts"`
	Raw       map[string]any `json:"raw,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// Clone returns a deep copy of r (Raw is copied one level deep).
func (r Record) Clone() Record {
	r.WalletIDs = slices.Clone(r.WalletIDs)
	r.OwnedNFTs = slices.Clone(r.OwnedNFTs)
	if r.Raw != nil {
		r.Raw = maps.Clone(r.Raw)
	}
	return r
}

// Key normalizes a username for lookups. Platform logins are case-insensitive.
func Key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Repository persists Records. Upsert replaces the whole record stored under
// Key(rec.Username); the last write wins.
type Repository interface {
	LoadAll(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, username string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
	Ping(ctx context.Context) error
}

// SeedAdmins makes sure every name in admins has a record with Admin set.
// Existing records keep their other fields.
func SeedAdmins(ctx context.Context, repo Repository, admins []string) error {
	for _, name := range admins {
		if Key(name) == "" {
			continue
		}
		rec, err := repo.Get(ctx, name)
		switch {
		case errors.Is(err, ErrNotFound):
			rec = Record{Username: Key(name)}
		case err != nil:
			return err
		case rec.Admin:
			continue
		}
		rec.Admin = true
		if err := repo.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func normalize(rec Record, now time.Time) Record {
	rec = rec.Clone()
	rec.Username = Key(rec.Username)
	if rec.WalletIDs == nil {
		rec.WalletIDs = []string{}
	}
	if rec.OwnedNFTs == nil {
		rec.OwnedNFTs = []ledger.NFT{}
	}
	rec.UpdatedAt = now.UTC()
	return rec
}
