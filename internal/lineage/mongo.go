package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoConfig points the lineage sink at a MongoDB collection.
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// MongoEmitter stores each lineage event as one document.
type MongoEmitter struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoEmitter connects to MongoDB. The connection is lazy; the first
// Emit surfaces connectivity errors, which Safe then logs and drops.
func NewMongoEmitter(cfg MongoConfig) (*MongoEmitter, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo lineage: uri is required")
	}
	return connectMongo(cfg, options.Client().ApplyURI(cfg.URI))
}

func connectMongo(cfg MongoConfig, opts *options.ClientOptions) (*MongoEmitter, error) {
	if cfg.Database == "" {
		cfg.Database = "ballpark"
	}
	if cfg.Collection == "" {
		cfg.Collection = "lineage_events"
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	slog.Debug("mongo lineage sink ready", "database", cfg.Database, "collection", cfg.Collection)
	return &MongoEmitter{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoEmitter) Emit(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := m.coll.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert lineage event: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoEmitter) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
