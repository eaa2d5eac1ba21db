// Package records stores the memes and quotes users submit through chat commands.
//
// Collections are append-only from the bot's point of view: records are added,
// picked at random with a "count then skip N" lookup, and deleted by id by admins.
// Two backends implement Store: SQLStore (Postgres or SQLite) and MongoStore.
package records

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Kind names a record collection.
type Kind string

const (
	KindMeme  Kind = "meme"
	KindQuote Kind = "quote"
)

// Valid reports whether k is a known collection.
func (k Kind) Valid() bool { return k == KindMeme || k == KindQuote }

var (
	// ErrEmpty is returned by Random when the collection holds no records.
	ErrEmpty = errors.New("records: collection is empty")
	// ErrNotFound is returned by Delete when no record matches the id.
	ErrNotFound = errors.New("records: not found")
	// ErrInvalidKind is returned for an unknown Kind.
	ErrInvalidKind = errors.New("records: invalid kind")
)

// Record is one user-submitted meme or quote. Content is the meme URL or the quote text.
type Record struct {
	ID         string
	Kind       Kind
	Platform   string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// Store is the persistence contract used by the command router.
type Store interface {
	Add(ctx context.Context, r Record) (Record, error)
	Count(ctx context.Context, kind Kind) (int64, error)
	Random(ctx context.Context, kind Kind) (Record, error)
	Delete(ctx context.Context, kind Kind, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Intn returns a uniform int in [0, n). Stores take one so tests can pin the pick.
type Intn func(n int64) int64

func defaultIntn(n int64) int64 { return rand.Int64N(n) }

// pickOffset maps a collection size to a skip offset. Callers must handle count == 0 first.
func pickOffset(intn Intn, count int64) int64 {
	if count <= 1 {
		return 0
	}
	off := intn(count)
	if off < 0 || off >= count {
		return 0
	}
	return off
}

func prepare(r Record, newID func() string) (Record, error) {
	if !r.Kind.Valid() {
		return Record{}, ErrInvalidKind
	}
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if r.Platform == "" {
		r.Platform = "discord"
	}
	return r, nil
}
