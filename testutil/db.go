package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/meme-machine/db"
)

// SetupSQLiteDB returns a migrated in-memory SQLite database closed at test cleanup.
func SetupSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	return setup(t, db.DialectSQLite, ":memory:")
}

// SetupTestDB creates a Postgres connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	return setup(t, db.DialectPostgres, dsn)
}

func setup(t *testing.T, d db.Dialect, dsn string) *sql.DB {
	t.Helper()
	database, err := db.Connect(d, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database, d); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
