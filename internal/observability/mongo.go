package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/clearancesync/internal/engine"
)

// MongoRecorder stores run reports in a MongoDB collection so run history
// survives restarts.
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoRecorder connects and pings the server.
func NewMongoRecorder(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoRecorder{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_recorder"),
	}, nil
}

// Record inserts the report as one document.
func (m *MongoRecorder) Record(ctx context.Context, r *engine.RunReport) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	m.logger.Debug("run report stored", "run_id", r.RunID)
	return nil
}

// Recent returns up to limit reports, newest first.
func (m *MongoRecorder) Recent(ctx context.Context, limit int64) ([]engine.RunReport, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit)

	cur, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cur.Close(ctx)

	var reports []engine.RunReport
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return reports, nil
}

// Close disconnects from the server.
func (m *MongoRecorder) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
