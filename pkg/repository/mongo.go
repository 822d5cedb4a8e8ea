package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/config"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) Products() *ProductStore {
	return &ProductStore{coll: m.database.Collection(m.config.Collections.Products)}
}

func (m *MongoRepository) Orders() *OrderStore {
	return &OrderStore{coll: m.database.Collection(m.config.Collections.Orders)}
}

func (m *MongoRepository) OrderLines() *OrderLineStore {
	return &OrderLineStore{coll: m.database.Collection(m.config.Collections.OrderLines)}
}

func (m *MongoRepository) Admins() *AdminStore {
	return &AdminStore{coll: m.database.Collection(m.config.Collections.Admins)}
}

func (m *MongoRepository) Audit() *AuditPublisher {
	return &AuditPublisher{coll: m.database.Collection(m.config.Collections.Audit)}
}

// EnsureIndexes creates the indexes the listing and lookup queries rely on.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		m.config.Collections.Products: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		m.config.Collections.Orders: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		m.config.Collections.OrderLines: {
			{Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "position", Value: 1}}},
		},
		m.config.Collections.Admins: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		m.config.Collections.Audit: {
			{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := m.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
