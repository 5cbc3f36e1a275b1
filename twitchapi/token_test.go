package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, expiresIn int, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("client_id") != "test-client" || r.Form.Get("client_secret") != "test-secret" {
			t.Errorf("credentials not sent in body: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token-123",
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTokenSource_GetCached(t *testing.T) {
	var calls int32
	server := tokenServer(t, 3600, &calls)

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     server.URL + "/oauth2/token",
	}

	ctx := context.Background()

	// First call should fetch token
	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-123" {
		t.Errorf("Get() = %s, want test-token-123", token1)
	}

	// Second call should use cached token
	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token = %s, want %s", token2, token1)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 token request (cached), got %d", n)
	}
}

func TestTokenSource_GetRefreshExpired(t *testing.T) {
	var calls int32
	// Expires inside the refresh buffer, so every Get refetches.
	server := tokenServer(t, 1, &calls)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}

	for i := 0; i < 2; i++ {
		if _, err := ts.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 token requests for short-lived token, got %d", n)
	}
}

func TestTokenSource_GetMissingCredentials(t *testing.T) {
	ts := &TokenSource{ClientID: "only-id"}
	_, err := ts.Get(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing client id/secret") {
		t.Errorf("Get() error = %v, want missing credentials", err)
	}
}

func TestTokenSource_GetServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":400,"message":"invalid client secret"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "test-client", ClientSecret: "bad", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("expected error for 400 token response")
	}
}

func TestTokenSource_CustomHTTPClient(t *testing.T) {
	var calls int32
	server := tokenServer(t, 3600, &calls)

	var used int32
	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     "https://id.twitch.tv/oauth2/token",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&used, 1)
			return (&rewriteTransport{Transport: http.DefaultTransport, host: server.URL}).RoundTrip(req)
		})},
	}
	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if atomic.LoadInt32(&used) != 1 {
		t.Error("configured HTTP client was not used for the token request")
	}
}

func TestTokenSource_ConcurrentAccess(t *testing.T) {
	var calls int32
	server := tokenServer(t, 3600, &calls)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, err := ts.Get(context.Background()); err != nil || tok != "test-token-123" {
				t.Errorf("Get() = %q, %v", tok, err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single token request under concurrency, got %d", n)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
