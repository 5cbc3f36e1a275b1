// Package rally implements ledger.Ledger against the Rally network REST API.
package rally

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/jackbot/ledger"
	"github.com/onnwee/jackbot/telemetry"
)

// DefaultBaseURL is the public Rally API root.
const DefaultBaseURL = "https://api.rally.io"

// Client is a read-only Rally API client. The zero value is not usable; use New.
type Client struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New returns a Client authenticating with a static bearer token. An empty
// token yields an unauthenticated client.
func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := &http.Client{}
	if token != "" {
		ctx := context.Background()
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout, HTTPClient: hc}
}

var _ ledger.Ledger = (*Client)(nil)

// FetchAccount returns the wallets linked to username. A 404 maps to
// ledger.ErrNotFound.
func (c *Client) FetchAccount(ctx context.Context, username string) (ledger.Account, error) {
	if username == "" {
		return ledger.Account{}, fmt.Errorf("username empty")
	}
	var body struct {
		Username  string   `json:"username"`
		WalletIDs []string `json:"walletIds"`
	}
	if err := c.get(ctx, "account", "/v1/users/"+url.PathEscape(username)+"/wallets", &body); err != nil {
		return ledger.Account{}, err
	}
	if body.Username == "" {
		body.Username = username
	}
	return ledger.Account{Username: body.Username, WalletIDs: body.WalletIDs}, nil
}

// FetchTemplate returns metadata for template id.
func (c *Client) FetchTemplate(ctx context.Context, id string) (ledger.Template, error) {
	var body struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		TotalSupply int    `json:"totalSupply"`
	}
	if err := c.get(ctx, "template", "/v1/nft-templates/"+url.PathEscape(id), &body); err != nil {
		return ledger.Template{}, err
	}
	if body.ID == "" {
		body.ID = id
	}
	return ledger.Template{ID: body.ID, Title: body.Title, TotalSupply: body.TotalSupply}, nil
}

// FetchInstances lists every minted instance of templateID.
func (c *Client) FetchInstances(ctx context.Context, templateID string) ([]ledger.Instance, error) {
	var body []struct {
		ID            string `json:"id"`
		TemplateID    string `json:"nftTemplateId"`
		OwnerWalletID string `json:"ownerWalletId"`
		Edition       int    `json:"editionNumber"`
	}
	if err := c.get(ctx, "instances", "/v1/nft-templates/"+url.PathEscape(templateID)+"/nfts", &body); err != nil {
		return nil, err
	}
	out := make([]ledger.Instance, 0, len(body))
	for _, b := range body {
		tid := b.TemplateID
		if tid == "" {
			tid = templateID
		}
		out = append(out, ledger.Instance{ID: b.ID, TemplateID: tid, OwnerWalletID: b.OwnerWalletID, Edition: b.Edition})
	}
	return out, nil
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() { telemetry.ObserveLedger(op, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("rally %s: %w", op, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err), slog.String("component", "rally"))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("rally %s %s: %w", op, path, ledger.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rally %s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rally %s: %w", op, err)
	}
	return nil
}
