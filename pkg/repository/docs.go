package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/storefront/pkg/models"
)

// BSON documents. Money is stored as Decimal128 so sums stay exact in aggregations.

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Category    string               `bson:"category"`
	Status      string               `bson:"status"`
	ImageURL    string               `bson:"imageUrl,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	CustomerName    string               `bson:"customerName"`
	Email           string               `bson:"email"`
	ContactNumber   string               `bson:"contactNumber"`
	ShippingAddress string               `bson:"shippingAddress"`
	Total           primitive.Decimal128 `bson:"total"`
	Status          string               `bson:"status"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

type orderLineDoc struct {
	ID        string               `bson:"_id"`
	OrderID   string               `bson:"orderId"`
	ProductID string               `bson:"productId"`
	Position  int                  `bson:"position"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unitPrice"`
	LineTotal primitive.Decimal128 `bson:"lineTotal"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type adminDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode decimal %s: %w", v, err)
	}
	return d, nil
}

func newProductDoc(p *models.Product) (*productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	return &productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Stock:       p.Stock,
		Category:    p.Category,
		Status:      string(p.Status),
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (d *productDoc) model() (*models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	return &models.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
		Category:    d.Category,
		Status:      models.ProductStatus(d.Status),
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func newOrderDoc(o *models.Order) (*orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, err
	}
	return &orderDoc{
		ID:              o.ID,
		CustomerName:    o.CustomerName,
		Email:           o.Email,
		ContactNumber:   o.ContactNumber,
		ShippingAddress: o.ShippingAddress,
		Total:           total,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (d *orderDoc) model() (*models.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, err
	}
	return &models.Order{
		ID:              d.ID,
		CustomerName:    d.CustomerName,
		Email:           d.Email,
		ContactNumber:   d.ContactNumber,
		ShippingAddress: d.ShippingAddress,
		Total:           total,
		Status:          models.OrderStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func newOrderLineDoc(l *models.OrderLine) (*orderLineDoc, error) {
	unit, err := toDecimal128(l.UnitPrice)
	if err != nil {
		return nil, err
	}
	total, err := toDecimal128(l.LineTotal)
	if err != nil {
		return nil, err
	}
	return &orderLineDoc{
		ID:        l.ID,
		OrderID:   l.OrderID,
		ProductID: l.ProductID,
		Position:  l.Position,
		Quantity:  l.Quantity,
		UnitPrice: unit,
		LineTotal: total,
		CreatedAt: l.CreatedAt,
	}, nil
}

func (d *orderLineDoc) model() (*models.OrderLine, error) {
	unit, err := fromDecimal128(d.UnitPrice)
	if err != nil {
		return nil, err
	}
	total, err := fromDecimal128(d.LineTotal)
	if err != nil {
		return nil, err
	}
	return &models.OrderLine{
		ID:        d.ID,
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
		Position:  d.Position,
		Quantity:  d.Quantity,
		UnitPrice: unit,
		LineTotal: total,
		CreatedAt: d.CreatedAt,
	}, nil
}
