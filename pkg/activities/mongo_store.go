package activities

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

// MongoStore runs migration primitives against a single MongoDB deployment.
// Source and target are databases reached through the same client.
type MongoStore struct {
	client *mongo.Client
	l      *zap.Logger
}

// Connect dials uri, verifies it with a ping and returns a store bound to the client.
func Connect(ctx context.Context, uri string, connectTimeout time.Duration, l *zap.Logger) (*MongoStore, error) {
	l.Debug("Connecting to MongoDB")

	client, err := connectToMongoDB(ctx, uri, connectTimeout)
	if err != nil {
		return nil, err
	}

	l.Info("Connected to MongoDB")
	return NewMongoStore(client, l), nil
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, l *zap.Logger) *MongoStore {
	return &MongoStore{client: client, l: l}
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	s.l.Info("Database connection closed")
	return nil
}

// ListDatabaseNames returns the names of all databases visible to the connection.
func (s *MongoStore) ListDatabaseNames(ctx context.Context) ([]string, error) {
	names, err := s.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return names, nil
}

// CountDocuments counts every document of db.coll. A missing collection counts as zero.
func (s *MongoStore) CountDocuments(ctx context.Context, db, coll string) (int64, error) {
	n, err := s.collection(db, coll).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s.%s: %w", db, coll, err)
	}
	return n, nil
}

// DeleteAll removes every document of db.coll and returns how many were removed.
func (s *MongoStore) DeleteAll(ctx context.Context, db, coll string) (int64, error) {
	res, err := s.collection(db, coll).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s.%s: %w", db, coll, err)
	}
	return res.DeletedCount, nil
}

// ForEachBatch reads db.coll through a single cursor and calls fn with
// consecutive batches of at most batchSize documents. Every document of the
// result set is passed exactly once. Iteration stops at the first error.
func (s *MongoStore) ForEachBatch(
	ctx context.Context,
	db string,
	coll string,
	batchSize int,
	fn func(batch []bson.Raw) error,
) error {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}

	findOptions := options.Find().
		SetNoCursorTimeout(true).
		SetBatchSize(int32(batchSize))

	cursor, err := s.collection(db, coll).Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return fmt.Errorf("failed to execute find: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]bson.Raw, 0, batchSize)
	for cursor.Next(ctx) {
		batch = append(batch, cloneRaw(cursor.Current))

		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]bson.Raw, 0, batchSize)
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error: %w", err)
	}

	if len(batch) > 0 {
		return fn(batch)
	}

	return nil
}

// InsertMany inserts docs into db.coll unchanged.
func (s *MongoStore) InsertMany(ctx context.Context, db, coll string, docs []bson.Raw) error {
	if len(docs) == 0 {
		return nil
	}

	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}

	insertOptions := options.InsertMany().SetOrdered(false)
	if _, err := s.collection(db, coll).InsertMany(ctx, batch, insertOptions); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// ListIndexes returns every index of db.coll except the default _id_ index.
func (s *MongoStore) ListIndexes(ctx context.Context, db, coll string) ([]models.IndexSpec, error) {
	cursor, err := s.collection(db, coll).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	var indexes []models.IndexSpec
	for cursor.Next(ctx) {
		spec, err := indexSpecFromRaw(cursor.Current)
		if err != nil {
			return nil, err
		}

		// created automatically with the collection
		if spec.Name == defaultIndexName {
			continue
		}

		indexes = append(indexes, spec)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return indexes, nil
}

// CreateIndex creates spec on db.coll with its original name and options.
func (s *MongoStore) CreateIndex(ctx context.Context, db, coll string, spec models.IndexSpec) error {
	cmd := createIndexesCommand(coll, spec)
	if err := s.client.Database(db).RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
	}
	return nil
}

func (s *MongoStore) collection(db, coll string) *mongo.Collection {
	return s.client.Database(db).Collection(coll)
}
