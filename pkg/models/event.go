package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderPlaced        OrderEventType = "order.placed"
	EventOrderStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent is emitted after an order mutation has been committed.
type OrderEvent struct {
	Type         OrderEventType  `json:"type"`
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	Email        string          `json:"email"`
	Total        decimal.Decimal `json:"total"`
	Items        int             `json:"items"`
	From         OrderStatus     `json:"from,omitempty"`
	To           OrderStatus     `json:"to"`
	OccurredAt   time.Time       `json:"occurredAt"`
}
