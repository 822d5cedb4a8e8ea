package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/models"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entityId"`
	Data      bson.M    `bson:"data" json:"data"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// AuditPublisher records every order event in the audit collection.
type AuditPublisher struct {
	coll *mongo.Collection
}

func (a *AuditPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	data := bson.M{
		"customer_name": event.CustomerName,
		"email":         event.Email,
		"total":         event.Total.StringFixed(2),
		"items":         event.Items,
		"to":            string(event.To),
	}
	if event.From != "" {
		data["from"] = string(event.From)
	}

	return a.CreateAuditLog(ctx, &AuditLog{
		ID:        uuid.NewString(),
		Service:   "orders",
		Action:    string(event.Type),
		EntityID:  event.OrderID,
		Data:      data,
		CreatedAt: event.OccurredAt,
	})
}

func (a *AuditPublisher) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if _, err := a.coll.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// GetAuditLogs returns the newest entries for entityID first.
func (a *AuditPublisher) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := a.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := []*AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}

	return logs, nil
}
