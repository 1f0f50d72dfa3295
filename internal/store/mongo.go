package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoDatabase = "clima"

// MongoStore keeps one document per city in a collection named after the table.
// Strong reads go to the primary; eventual reads may be served by the nearest member.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	clock  clockwork.Clock
}

type observationDoc struct {
	City        string    `bson:"_id"`
	Temperature float64   `bson:"temperature"`
	ObservedAt  time.Time `bson:"observed_at"`
}

// NewMongoStore connects to the MongoDB URI in dsn. The database comes from
// the URI path, defaulting to "clima".
func NewMongoStore(ctx context.Context, dsn, table string, clock clockwork.Clock) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(mongoDatabase(dsn)).Collection(table),
		clock:  clock,
	}, nil
}

func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func (s *MongoStore) Upsert(ctx context.Context, city string, temperature float64) error {
	doc := observationDoc{City: city, Temperature: temperature, ObservedAt: s.clock.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": city}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving observation: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, city string, consistency Consistency) (domain.Observation, error) {
	pref := readpref.Nearest()
	if consistency == Strong {
		pref = readpref.Primary()
	}
	coll, err := s.coll.Clone(options.Collection().SetReadPreference(pref))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("selecting read preference: %w", err)
	}

	var doc observationDoc
	err = coll.FindOne(ctx, bson.M{"_id": city}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Observation{}, ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("reading observation: %w", err)
	}
	return domain.Observation{City: doc.City, Temperature: doc.Temperature, ObservedAt: doc.ObservedAt.UTC()}, nil
}

func (s *MongoStore) Delete(ctx context.Context, city string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": city}); err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	return nil
}

func (s *MongoStore) Describe(ctx context.Context) (TableInfo, error) {
	count, err := s.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return TableInfo{}, fmt.Errorf("describing table: %w", err)
	}
	return TableInfo{
		Driver:    "mongo",
		Table:     s.coll.Name(),
		Status:    statusActive,
		KeySchema: keySchema,
		ItemCount: count,
	}, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
