package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/models"
)

type OrderLineStore struct {
	coll *mongo.Collection
}

func (s *OrderLineStore) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	docs := make([]interface{}, len(lines))
	for i := range lines {
		doc, err := newOrderLineDoc(&lines[i])
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert order lines: %w", err)
	}
	return nil
}

func (s *OrderLineStore) FindOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := s.coll.Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find order lines: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderLineDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode order lines: %w", err)
	}

	lines := make([]models.OrderLine, 0, len(docs))
	for i := range docs {
		l, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		lines = append(lines, *l)
	}
	return lines, nil
}

func (s *OrderLineStore) DeleteOrderLines(ctx context.Context, orderID string) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"orderId": orderID}); err != nil {
		return fmt.Errorf("failed to delete order lines: %w", err)
	}
	return nil
}
