package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
)

func cleanDatabase(t *testing.T, ctx context.Context, database *sql.DB) {
	t.Helper()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS users CASCADE`,
		`DROP TABLE IF EXISTS schema_migrations CASCADE`,
	} {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("clean database: %v", err)
		}
	}
}

func tableExists(t *testing.T, database *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := database.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

func TestRunMigrations(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	cleanDatabase(t, ctx, database)

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if !tableExists(t, database, "users") {
		t.Error("table users does not exist after migration")
	}

	version, dirty, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if dirty {
		t.Errorf("migration version is dirty")
	}
	if version < 1 {
		t.Errorf("migration version = %d, want >= 1", version)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	cleanDatabase(t, ctx, database)

	if err := RunMigrations(database); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	v1, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if err := RunMigrations(database); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	v2, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Errorf("version changed on re-run: %d -> %d", v1, v2)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	cleanDatabase(t, ctx, database)

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	before, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(database); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	after, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if after != before-1 {
		t.Errorf("version after rollback = %d, want %d", after, before-1)
	}
	if err := RunMigrations(database); err != nil {
		t.Fatalf("re-apply error = %v", err)
	}
	if !tableExists(t, database, "users") {
		t.Error("users table missing after re-apply")
	}
}

func TestMigrateCommandUnknownAction(t *testing.T) {
	var out bytes.Buffer
	err := MigrateCommand(nil, "sideways", &out)
	if err == nil || !strings.Contains(err.Error(), "unknown migrate action") {
		t.Fatalf("err = %v, want unknown action", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestMigrateCommand(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	cleanDatabase(t, ctx, database)

	var out bytes.Buffer
	if err := MigrateCommand(database, MigrateActionVersion, &out); err != nil {
		t.Fatalf("version on empty schema: %v", err)
	}
	if got := out.String(); got != "version=0 dirty=false\n" {
		t.Errorf("empty schema output = %q", got)
	}

	out.Reset()
	if err := MigrateCommand(database, MigrateActionUp, &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	up, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("version=%d dirty=false\n", up); out.String() != want {
		t.Errorf("up output = %q, want %q", out.String(), want)
	}

	out.Reset()
	if err := MigrateCommand(database, MigrateActionDown, &out); err != nil {
		t.Fatalf("down: %v", err)
	}
	if want := fmt.Sprintf("version=%d dirty=false\n", up-1); out.String() != want {
		t.Errorf("down output = %q, want %q", out.String(), want)
	}

	if err := RunMigrations(database); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
}
