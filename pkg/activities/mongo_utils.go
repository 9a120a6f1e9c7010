package activities

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

const defaultIndexName = "_id_"

// connectToMongoDB establishes a connection to MongoDB with the given URI
func connectToMongoDB(ctx context.Context, uri string, connectTimeout time.Duration) (*mongo.Client, error) {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(connectTimeout)
	clientOptions.SetServerSelectionTimeout(connectTimeout)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)
	clientOptions.SetCompressors([]string{"snappy"})

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// indexSpecFromRaw converts a listIndexes document into an IndexSpec.
// The bookkeeping fields v and ns are dropped; every other field except
// key and name is kept as an index option.
func indexSpecFromRaw(raw bson.Raw) (models.IndexSpec, error) {
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return models.IndexSpec{}, fmt.Errorf("failed to decode index: %w", err)
	}

	var spec models.IndexSpec
	for _, e := range doc {
		switch e.Key {
		case "v", "ns":
		case "name":
			name, ok := e.Value.(string)
			if !ok {
				return models.IndexSpec{}, fmt.Errorf("invalid index name %v", e.Value)
			}
			spec.Name = name
		case "key":
			keys, ok := e.Value.(bson.D)
			if !ok {
				return models.IndexSpec{}, fmt.Errorf("invalid index key format")
			}
			spec.Keys = keys
		default:
			spec.Options = append(spec.Options, e)
		}
	}

	if len(spec.Keys) == 0 {
		return models.IndexSpec{}, fmt.Errorf("index %q has no key", spec.Name)
	}

	return spec, nil
}

// createIndexesCommand builds a createIndexes command that recreates spec on coll.
func createIndexesCommand(coll string, spec models.IndexSpec) bson.D {
	index := bson.D{
		{Key: "key", Value: spec.Keys},
		{Key: "name", Value: spec.Name},
	}
	index = append(index, spec.Options...)

	return bson.D{
		{Key: "createIndexes", Value: coll},
		{Key: "indexes", Value: bson.A{index}},
	}
}

// cloneRaw copies a cursor document; the cursor reuses its buffer on Next.
func cloneRaw(raw bson.Raw) bson.Raw {
	out := make(bson.Raw, len(raw))
	copy(out, raw)
	return out
}
