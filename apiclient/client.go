// Package apiclient talks to the jackbot HTTP API on behalf of the Twitch bot
// and the operator CLI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/status"
	"github.com/onnwee/jackbot/telemetry"
)

// StatusError is returned for any non-2xx API response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s %s: %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client is a thin JSON client for the API. The zero HTTPClient means
// http.DefaultClient. AdminToken, when set, is sent as X-Admin-Token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	AdminToken string
}

// New returns a Client for baseURL with a per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Ping checks that the API answers its root route.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil)
}

// Status fetches the current bot status.
func (c *Client) Status(ctx context.Context) (status.BotStatus, error) {
	var s status.BotStatus
	if err := c.do(ctx, http.MethodGet, "/twitch/status", nil, &s); err != nil {
		return status.BotStatus{}, err
	}
	return s, nil
}

// SetStatus replaces the bot status.
func (c *Client) SetStatus(ctx context.Context, s status.BotStatus) error {
	return c.do(ctx, http.MethodPatch, "/twitch/status", s, nil)
}

// PostMessage submits a chat event and returns the receipt time assigned by
// the API.
func (c *Client) PostMessage(ctx context.Context, ev chat.Event) (time.Time, error) {
	var resp struct {
		ReceiptTime time.Time `json:"receipt_time"`
	}
	if err := c.do(ctx, http.MethodPost, "/twitch/message", ev, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.ReceiptTime, nil
}

// Messages reads stored events received within the last seconds (0 for all),
// restricted to channels when any are given.
func (c *Client) Messages(ctx context.Context, seconds int, channels []string) ([]chat.Display, error) {
	q := url.Values{}
	if seconds > 0 {
		q.Set("seconds_history", strconv.Itoa(seconds))
	}
	for _, ch := range channels {
		q.Add("channel_names", ch)
	}
	path := "/twitch/get_messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []chat.Display
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminToken != "" {
		req.Header.Set("X-Admin-Token", c.AdminToken)
	}
	if corr := telemetry.GetCorrelation(ctx); corr != "" {
		req.Header.Set("X-Correlation-ID", corr)
	}

	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
