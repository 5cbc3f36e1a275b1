package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/jackbot/db"
)

// SetupTestDB creates a test database connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
// The users table is emptied before the test starts.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := database.ExecContext(context.Background(), `TRUNCATE users`); err != nil {
		database.Close()
		t.Fatalf("failed to truncate users: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
