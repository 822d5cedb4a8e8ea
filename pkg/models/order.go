package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderNew        OrderStatus = "New"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderNew, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func OrderStatusList() string {
	names := make([]string, len(OrderStatuses))
	for i, s := range OrderStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

type Order struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customerName"`
	Email           string          `json:"email"`
	ContactNumber   string          `json:"contactNumber"`
	ShippingAddress string          `json:"shippingAddress"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderLine is a priced line item. UnitPrice is the catalog price at order time.
type OrderLine struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	// Position is the line's index in the checkout request.
	Position  int             `json:"position"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	CreatedAt time.Time       `json:"createdAt"`
}

type OrderLineView struct {
	OrderLine
	Product *ProductSummary `json:"product,omitempty"`
}

type OrderDetail struct {
	Order
	Items []OrderLineView `json:"items"`
}

type OrderFilter struct {
	Statuses        []OrderStatus
	ExcludeStatuses []OrderStatus
	// From is inclusive and To exclusive; zero values leave that side unbounded.
	From time.Time
	To   time.Time
	Page Page
}
