// Package ownership correlates a user's ledger wallets with the instances of a
// configured set of NFT templates and writes the result through to the user
// store.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/jackbot/ledger"
	"github.com/onnwee/jackbot/telemetry"
	"github.com/onnwee/jackbot/users"
)

// Result is the outcome of one correlation.
type Result struct {
	User users.Record `json:"user"`
	// Skipped lists template ids whose metadata or instances could not be
	// fetched this time; their NFTs are absent from User.OwnedNFTs.
	Skipped []string `json:"skipped_templates"`
}

// Correlator scans every configured template on each call; nothing is cached.
type Correlator struct {
	ledger    ledger.Ledger
	repo      users.Repository
	templates []string
	timeout   time.Duration
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithTemplateTimeout bounds the template and instance fetches for a single
// template. Zero leaves the caller's context in charge.
func WithTemplateTimeout(d time.Duration) Option {
	return func(c *Correlator) { c.timeout = d }
}

// New returns a Correlator scanning templateIDs in the given order.
func New(l ledger.Ledger, repo users.Repository, templateIDs []string, opts ...Option) *Correlator {
	c := &Correlator{ledger: l, repo: repo, templates: slices.Clone(templateIDs)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Templates returns the configured template ids.
func (c *Correlator) Templates() []string { return slices.Clone(c.templates) }

// Correlate resolves rec.Username's wallets, recomputes OwnedNFTs from a full
// scan and persists the record before returning. An account lookup failure
// other than ledger.ErrNotFound aborts without writing anything.
func (c *Correlator) Correlate(ctx context.Context, rec users.Record) (Result, error) {
	rec = rec.Clone()
	rec.Username = users.Key(rec.Username)
	if rec.Username == "" {
		return Result{}, errors.New("username required")
	}

	ctx, span := telemetry.StartSpan(ctx, "ownership", "ownership.correlate", telemetry.UsernameAttr(rec.Username))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "ownership"), slog.String("username", rec.Username))

	acct, err := c.ledger.FetchAccount(ctx, rec.Username)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		acct = ledger.Account{Username: rec.Username}
	case err != nil:
		telemetry.RecordError(span, err)
		telemetry.RecordCorrelation("error", 0)
		return Result{}, fmt.Errorf("fetch ledger account for %s: %w", rec.Username, err)
	}
	rec.WalletIDs = slices.Clone(acct.WalletIDs)
	if rec.WalletIDs == nil {
		rec.WalletIDs = []string{}
	}

	res := Result{Skipped: []string{}}
	owned := []ledger.NFT{}
	if len(rec.WalletIDs) > 0 {
		for _, id := range c.templates {
			nfts, err := c.scanTemplate(ctx, id, rec.WalletIDs)
			if err != nil {
				logger.Warn("skipping template", slog.String("template_id", id), slog.Any("err", err))
				res.Skipped = append(res.Skipped, id)
				continue
			}
			owned = append(owned, nfts...)
		}
	}
	rec.OwnedNFTs = owned

	if err := c.repo.Upsert(ctx, rec); err != nil {
		telemetry.RecordError(span, err)
		telemetry.RecordCorrelation("error", len(res.Skipped))
		return Result{}, fmt.Errorf("persist user %s: %w", rec.Username, err)
	}
	stored, err := c.repo.Get(ctx, rec.Username)
	if err != nil {
		stored = rec
	}
	res.User = stored

	result := "ok"
	if len(rec.WalletIDs) == 0 {
		result = "no_wallets"
	}
	telemetry.RecordCorrelation(result, len(res.Skipped))
	span.SetAttributes(
		attribute.Int("ownership.wallets", len(rec.WalletIDs)),
		attribute.Int("ownership.nfts", len(owned)),
		attribute.StringSlice("ownership.skipped", res.Skipped),
	)
	telemetry.SetSpanSuccess(span)
	logger.Info("ownership correlated",
		slog.Int("wallets", len(rec.WalletIDs)),
		slog.Int("nfts", len(owned)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (c *Correlator) scanTemplate(ctx context.Context, id string, wallets []string) ([]ledger.NFT, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	tmpl, err := c.ledger.FetchTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	instances, err := c.ledger.FetchInstances(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("instances: %w", err)
	}
	return ledger.Owned(tmpl, instances, wallets), nil
}
