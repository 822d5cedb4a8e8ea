package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals are rendered as JSON numbers, as the storefront client expects.
	decimal.MarshalJSONWithoutQuotes = true
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "Active"
	ProductInactive ProductStatus = "Inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Status      ProductStatus   `json:"status"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductSummary is the product projection embedded in order lines.
// Price and Stock are nil unless the view includes them.
type ProductSummary struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
}

type ProductFilter struct {
	// Search matches name or description, case-insensitively.
	Search   string
	Category string
	Status   ProductStatus
	Page     Page
}

type Page struct {
	Number int
	Limit  int
}

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Skip() int64 {
	p = p.Normalize()
	return int64(p.Number-1) * int64(p.Limit)
}

func (p Page) TotalPages(total int64) int64 {
	p = p.Normalize()
	return (total + int64(p.Limit) - 1) / int64(p.Limit)
}
