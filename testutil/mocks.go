package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/onnwee/jackbot/ledger"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockUserResponse adds a handler for /helix/users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": []map[string]string{
				{"id": userID, "login": login},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockRallyServer serves an in-memory ledger over the Rally REST shape and
// counts requests per endpoint kind ("account", "template", "instances").
type MockRallyServer struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string][]string
	templates map[string]ledger.Template
	instances map[string][]ledger.Instance
	failures  map[string]int
	calls     map[string]int
	authz     []string
}

// NewMockRallyServer starts an empty mock ledger.
func NewMockRallyServer(t *testing.T) *MockRallyServer {
	t.Helper()
	m := &MockRallyServer{
		accounts:  map[string][]string{},
		templates: map[string]ledger.Template{},
		instances: map[string][]ledger.Instance{},
		failures:  map[string]int{},
		calls:     map[string]int{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// AddAccount links username to wallets.
func (m *MockRallyServer) AddAccount(username string, wallets ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[username] = wallets
}

// AddTemplate registers a template and its minted instances.
func (m *MockRallyServer) AddTemplate(t ledger.Template, instances ...ledger.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	m.instances[t.ID] = instances
}

// Fail makes requests to path answer with status.
func (m *MockRallyServer) Fail(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = status
}

// Calls reports how many requests of kind were served.
func (m *MockRallyServer) Calls(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

// Authorizations returns the Authorization headers seen so far.
func (m *MockRallyServer) Authorizations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authz...)
}

func (m *MockRallyServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authz = append(m.authz, r.Header.Get("Authorization"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var kind string
	switch {
	case len(parts) == 4 && parts[1] == "users" && parts[3] == "wallets":
		kind = "account"
	case len(parts) == 3 && parts[1] == "nft-templates":
		kind = "template"
	case len(parts) == 4 && parts[1] == "nft-templates" && parts[3] == "nfts":
		kind = "instances"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	m.calls[kind]++

	if status, ok := m.failures[r.URL.Path]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch kind {
	case "account":
		wallets, ok := m.accounts[parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"username": parts[2], "walletIds": wallets}) //nolint:errcheck // test mock response
	case "template":
		t, ok := m.templates[parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": t.ID, "title": t.Title, "totalSupply": t.TotalSupply}) //nolint:errcheck // test mock response
	case "instances":
		if _, ok := m.templates[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		out := make([]map[string]any, 0, len(m.instances[parts[2]]))
		for _, in := range m.instances[parts[2]] {
			out = append(out, map[string]any{
				"id":            in.ID,
				"nftTemplateId": in.TemplateID,
				"ownerWalletId": in.OwnerWalletID,
				"editionNumber": in.Edition,
			})
		}
		_ = json.NewEncoder(w).Encode(out) //nolint:errcheck // test mock response
	}
}
