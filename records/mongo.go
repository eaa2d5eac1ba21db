package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps each kind in its own collection ("memes", "quotes").
// Documents use the field names older deployments wrote: userID, URL (memes),
// content (quotes) and time.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	// Intn overrides the random offset source; nil uses math/rand/v2.
	Intn Intn
}

type mongoDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	UserID   string             `bson:"userID"`
	UserName string             `bson:"userName,omitempty"`
	Platform string             `bson:"platform,omitempty"`
	URL      string             `bson:"URL,omitempty"`
	Content  string             `bson:"content,omitempty"`
	Time     time.Time          `bson:"time"`
}

// ConnectMongo dials uri and returns a store on the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func collectionName(kind Kind) string {
	if kind == KindQuote {
		return "quotes"
	}
	return "memes"
}

func (s *MongoStore) coll(kind Kind) *mongo.Collection { return s.db.Collection(collectionName(kind)) }

func (s *MongoStore) intn() Intn {
	if s.Intn != nil {
		return s.Intn
	}
	return defaultIntn
}

func toDoc(r Record) (mongoDoc, error) {
	oid, err := primitive.ObjectIDFromHex(r.ID)
	if err != nil {
		return mongoDoc{}, fmt.Errorf("record id %q: %w", r.ID, err)
	}
	d := mongoDoc{ID: oid, UserID: r.AuthorID, UserName: r.AuthorName, Platform: r.Platform, Time: r.CreatedAt}
	if r.Kind == KindMeme {
		d.URL = r.Content
	} else {
		d.Content = r.Content
	}
	return d, nil
}

func fromDoc(kind Kind, d mongoDoc) Record {
	r := Record{
		ID:         d.ID.Hex(),
		Kind:       kind,
		Platform:   d.Platform,
		AuthorID:   d.UserID,
		AuthorName: d.UserName,
		Content:    d.Content,
		CreatedAt:  d.Time.UTC(),
	}
	if kind == KindMeme {
		r.Content = d.URL
	}
	if r.Platform == "" {
		r.Platform = "discord"
	}
	return r
}

// Add inserts a record with a fresh ObjectID.
func (s *MongoStore) Add(ctx context.Context, r Record) (Record, error) {
	r, err := prepare(r, func() string { return primitive.NewObjectID().Hex() })
	if err != nil {
		return Record{}, err
	}
	d, err := toDoc(r)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.coll(r.Kind).InsertOne(ctx, d); err != nil {
		return Record{}, fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	// BSON dates hold milliseconds; report what was stored.
	r.CreatedAt = r.CreatedAt.Truncate(time.Millisecond)
	return r, nil
}

// Count returns the number of documents in the kind's collection.
func (s *MongoStore) Count(ctx context.Context, kind Kind) (int64, error) {
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	n, err := s.coll(kind).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Random counts the collection, then skips a random number of documents.
func (s *MongoStore) Random(ctx context.Context, kind Kind) (Record, error) {
	count, err := s.Count(ctx, kind)
	if err != nil {
		return Record{}, err
	}
	if count == 0 {
		return Record{}, ErrEmpty
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(pickOffset(s.intn(), count))
	var d mongoDoc
	err = s.coll(kind).FindOne(ctx, bson.D{}, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrEmpty
	}
	if err != nil {
		return Record{}, fmt.Errorf("random %s: %w", kind, err)
	}
	return fromDoc(kind, d), nil
}

// Delete removes one document by its hex ObjectID. Malformed ids cannot match and return ErrNotFound.
func (s *MongoStore) Delete(ctx context.Context, kind Kind, id string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll(kind).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, readpref.Primary()) }

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
