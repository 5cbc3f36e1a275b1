package users

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/jackbot/ledger"
	"github.com/onnwee/jackbot/testutil"
)

func newFileRepo(t *testing.T) *FileRepository {
	t.Helper()
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "nested", "users.json"))
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	return repo
}

func TestFileRepositoryEmpty(t *testing.T) {
	repo := newFileRepo(t)
	all, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty store, got %+v", all)
	}
	if _, err := repo.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestFileRepositoryUpsertReplacesWholeRecord(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	first := Record{
		Username:  "Viewer",
		TwitchID:  "42",
		WalletIDs: []string{"w1"},
		OwnedNFTs: []ledger.NFT{{TemplateID: "t", InstanceID: "i", WalletID: "w1", Edition: 1}},
		Raw:       map[string]any{"rally_auth_token": "abc"},
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, Record{Username: "viewer", TwitchID: "42"}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "VIEWER")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Username != "viewer" {
		t.Errorf("username = %q, want normalized viewer", got.Username)
	}
	if len(got.WalletIDs) != 0 || len(got.OwnedNFTs) != 0 || got.Raw != nil {
		t.Errorf("last write should win wholesale, got %+v", got)
	}
	if got.WalletIDs == nil || got.OwnedNFTs == nil {
		t.Error("empty lists should be stored as [] not null")
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}

	all, _ := repo.LoadAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 record after re-upsert, got %d", len(all))
	}
}

func TestFileRepositoryDocumentShape(t *testing.T) {
	repo := newFileRepo(t)
	repo.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	if err := repo.Upsert(context.Background(), Record{Username: "a", Admin: true}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(repo.path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string][]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("file is not the expected document: %v\n%s", err, data)
	}
	users := doc["users"]
	if len(users) != 1 || users[0]["username"] != "a" || users[0]["admin"] != true {
		t.Errorf("unexpected document %s", data)
	}
	if users[0]["updated_at"] != "2024-01-02T03:04:05Z" {
		t.Errorf("updated_at = %v", users[0]["updated_at"])
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(repo.path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(context.Background(), Record{Username: "x", WalletIDs: []string{"w"}}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Get(context.Background(), "x")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if len(got.WalletIDs) != 1 || got.WalletIDs[0] != "w" {
		t.Errorf("wallets = %v", got.WalletIDs)
	}
}

func TestFileRepositoryMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.LoadAll(context.Background()); err == nil {
		t.Error("expected decode error for malformed store")
	}
	if err := repo.Upsert(context.Background(), Record{Username: "x"}); err == nil {
		t.Error("Upsert must not overwrite a store it cannot read")
	}
}

func TestFileRepositoryConcurrentUpserts(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			if err := repo.Upsert(ctx, Record{Username: n}); err != nil {
				t.Errorf("Upsert(%s) error = %v", n, err)
			}
		}(n)
	}
	wg.Wait()
	all, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(names) {
		t.Errorf("got %d records, want %d", len(all), len(names))
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	rec := Record{Username: "a", WalletIDs: []string{"w"}, Raw: map[string]any{"k": "v"}}
	c := rec.Clone()
	c.WalletIDs[0] = "changed"
	c.Raw["k"] = "changed"
	if rec.WalletIDs[0] != "w" || rec.Raw["k"] != "v" {
		t.Errorf("Clone shares storage: %+v", rec)
	}
}

func TestSeedAdmins(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	if err := repo.Upsert(ctx, Record{Username: "existing", WalletIDs: []string{"w"}}); err != nil {
		t.Fatal(err)
	}

	if err := SeedAdmins(ctx, repo, []string{"Boss", "existing", " "}); err != nil {
		t.Fatalf("SeedAdmins() error = %v", err)
	}

	boss, err := repo.Get(ctx, "boss")
	if err != nil || !boss.Admin {
		t.Errorf("boss = %+v, err = %v; want admin record", boss, err)
	}
	existing, err := repo.Get(ctx, "existing")
	if err != nil || !existing.Admin || len(existing.WalletIDs) != 1 {
		t.Errorf("existing = %+v, err = %v; want promoted with wallets kept", existing, err)
	}

	all, _ := repo.LoadAll(ctx)
	if len(all) != 2 {
		t.Errorf("blank admin names must be ignored, got %d records", len(all))
	}

	// Idempotent.
	if err := SeedAdmins(ctx, repo, []string{"boss"}); err != nil {
		t.Fatal(err)
	}
	if all, _ := repo.LoadAll(ctx); len(all) != 2 {
		t.Errorf("re-seeding added records: %d", len(all))
	}
}

func TestPostgresRepository(t *testing.T) {
	database := testutil.SetupTestDB(t)
	repo := NewPostgresRepository(database)
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	rec := Record{
		Username:  "Viewer",
		TwitchID:  "42",
		WalletIDs: []string{"w1", "w2"},
		OwnedNFTs: []ledger.NFT{{TemplateID: "t", TemplateTitle: "T", InstanceID: "i", WalletID: "w2", Edition: 7}},
		Raw:       map[string]any{"note": "hi"},
	}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := repo.Get(ctx, "viewer")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TwitchID != "42" || len(got.WalletIDs) != 2 || len(got.OwnedNFTs) != 1 || got.OwnedNFTs[0].Edition != 7 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Raw["note"] != "hi" {
		t.Errorf("raw = %v", got.Raw)
	}

	if err := repo.Upsert(ctx, Record{Username: "viewer", Admin: true}); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.Get(ctx, "viewer")
	if !got.Admin || len(got.WalletIDs) != 0 || got.Raw != nil {
		t.Errorf("second upsert should replace record: %+v", got)
	}

	all, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("LoadAll() returned %d records", len(all))
	}
}
