package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/onnwee/meme-machine/db"
)

// SQLStore keeps all collections in one records table, keyed by kind.
type SQLStore struct {
	DB      *sql.DB
	Dialect db.Dialect
	// Intn overrides the random offset source; nil uses math/rand/v2.
	Intn Intn
}

// NewSQLStore wraps an open database. The schema must already exist (see db.Migrate).
func NewSQLStore(database *sql.DB, dialect db.Dialect) *SQLStore {
	return &SQLStore{DB: database, Dialect: dialect}
}

func (s *SQLStore) intn() Intn {
	if s.Intn != nil {
		return s.Intn
	}
	return defaultIntn
}

// Add inserts a record, assigning a UUID and creation time when missing.
func (s *SQLStore) Add(ctx context.Context, r Record) (Record, error) {
	r, err := prepare(r, uuid.NewString)
	if err != nil {
		return Record{}, err
	}
	q := s.Dialect.Rebind(`INSERT INTO records (id, kind, platform, author_id, author_name, content, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`)
	if _, err := s.DB.ExecContext(ctx, q, r.ID, string(r.Kind), r.Platform, r.AuthorID, r.AuthorName, r.Content, r.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	return r, nil
}

// Count returns the number of records of a kind.
func (s *SQLStore) Count(ctx context.Context, kind Kind) (int64, error) {
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	var n int64
	if err := s.DB.QueryRowContext(ctx, s.Dialect.Rebind(`SELECT COUNT(*) FROM records WHERE kind=$1`), string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Random counts the collection, then skips a random number of rows in insertion order.
func (s *SQLStore) Random(ctx context.Context, kind Kind) (Record, error) {
	count, err := s.Count(ctx, kind)
	if err != nil {
		return Record{}, err
	}
	if count == 0 {
		return Record{}, ErrEmpty
	}
	off := pickOffset(s.intn(), count)
	q := s.Dialect.Rebind(`SELECT id, kind, platform, author_id, author_name, content, created_at
		FROM records WHERE kind=$1 ORDER BY created_at, id LIMIT 1 OFFSET $2`)
	var r Record
	var k string
	err = s.DB.QueryRowContext(ctx, q, string(kind), off).Scan(&r.ID, &k, &r.Platform, &r.AuthorID, &r.AuthorName, &r.Content, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Rows were deleted between count and fetch.
		return Record{}, ErrEmpty
	}
	if err != nil {
		return Record{}, fmt.Errorf("random %s: %w", kind, err)
	}
	r.Kind = Kind(k)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// Delete removes one record by id. It returns ErrNotFound when nothing matched.
func (s *SQLStore) Delete(ctx context.Context, kind Kind, id string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	res, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(`DELETE FROM records WHERE kind=$1 AND id=$2`), string(kind), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Close closes the underlying pool.
func (s *SQLStore) Close(context.Context) error { return s.DB.Close() }
