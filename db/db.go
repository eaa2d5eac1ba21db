// Package db provides database connection helpers and idempotent schema setup for the SQL record store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
	_ "modernc.org/sqlite"             // pure-go sqlite driver registered as 'sqlite'
)

// Dialect selects the SQL flavour used by the record store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

// Rebind rewrites postgres style $N placeholders for the dialect.
// SQLite accepts ?N numbered parameters, so queries keep their argument order.
func (d Dialect) Rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	return strings.ReplaceAll(query, "$", "?")
}

// Connect opens a connection pool for the dialect. For SQLite the dsn is a file path
// (or ":memory:") and a busy timeout is added so concurrent handlers wait instead of failing.
func Connect(d Dialect, dsn string) (*sql.DB, error) {
	if d == DialectSQLite && dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	database, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == DialectSQLite && dsn == ":memory:" {
		// Each new connection would see its own empty in-memory database.
		database.SetMaxOpenConns(1)
	}
	return database, nil
}

// Migrate applies idempotent schema statements for the records table and its indices.
// Statements only ever create what is missing; there is no versioned migration history.
func Migrate(ctx context.Context, database *sql.DB, d Dialect) error {
	tsType := "TIMESTAMPTZ"
	if d == DialectSQLite {
		tsType = "DATETIME"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT 'discord',
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at ` + tsType + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind_created ON records(kind, created_at, id)`,
	}
	for i, s := range stmts {
		if _, err := database.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("%s migrate step %d failed: %w", d, i, err)
		}
	}
	return nil
}
