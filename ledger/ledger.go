// Package ledger defines the narrow read-only view of an external NFT ledger
// used to correlate streaming-platform users with the NFTs their wallets own.
package ledger

import (
	"context"
	"errors"
)

// ErrNotFound reports that the ledger has no record for the requested key.
var ErrNotFound = errors.New("ledger: not found")

// Account links a platform username to the ledger wallets it controls.
type Account struct {
	Username  string   `json:"username"`
	WalletIDs []string `json:"wallet_ids"`
}

// Template describes an NFT series.
type Template struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TotalSupply int    `json:"total_supply"`
}

// Instance is one minted edition of a Template.
type Instance struct {
	ID            string `json:"id"`
	TemplateID    string `json:"template_id"`
	OwnerWalletID string `json:"owner_wallet_id"`
	Edition       int    `json:"edition"`
}

// NFT is an Instance attributed to a user's wallet.
type NFT struct {
	TemplateID    string `json:"template_id"`
	TemplateTitle string `json:"template_title"`
	InstanceID    string `json:"instance_id"`
	WalletID      string `json:"wallet_id"`
	Edition       int    `json:"edition"`
}

// AccountFetcher resolves a username to its wallets. Implementations return
// ErrNotFound when the ledger has no account for username.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, username string) (Account, error)
}

// TemplateFetcher returns template metadata.
type TemplateFetcher interface {
	FetchTemplate(ctx context.Context, id string) (Template, error)
}

// InstanceFetcher lists every minted instance of a template.
type InstanceFetcher interface {
	FetchInstances(ctx context.Context, templateID string) ([]Instance, error)
}

// Ledger is the full read surface the correlator needs.
type Ledger interface {
	AccountFetcher
	TemplateFetcher
	InstanceFetcher
}

// Owned returns the instances held by any wallet in wallets, attributed to
// template t, in the order they appear in instances.
func Owned(t Template, instances []Instance, wallets []string) []NFT {
	set := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		set[w] = struct{}{}
	}
	var out []NFT
	for _, in := range instances {
		if _, ok := set[in.OwnerWalletID]; !ok {
			continue
		}
		out = append(out, NFT{
			TemplateID:    t.ID,
			TemplateTitle: t.Title,
			InstanceID:    in.ID,
			WalletID:      in.OwnerWalletID,
			Edition:       in.Edition,
		})
	}
	return out
}
