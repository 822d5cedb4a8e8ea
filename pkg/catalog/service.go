// Package catalog manages the product catalog for customers and administrators.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type ProductStore interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetProductStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error)
	ProductCategories(ctx context.Context) ([]string, error)
}

// ProductInput carries the editable product fields. ImageURL is empty when no
// new image was uploaded.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	Status      models.ProductStatus
	ImageURL    string
}

type Listing struct {
	Products    []models.Product `json:"products"`
	TotalPages  int64            `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Total       int64            `json:"total"`
}

type Service struct {
	store  ProductStore
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store ProductStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("catalog"),
		now:    time.Now,
	}
}

// ListForCustomers lists active products, newest first.
func (s *Service) ListForCustomers(ctx context.Context, search, category string, page models.Page) (*Listing, error) {
	return s.list(ctx, models.ProductFilter{
		Search:   strings.TrimSpace(search),
		Category: category,
		Status:   models.ProductActive,
		Page:     page,
	})
}

func (s *Service) ListForAdmin(ctx context.Context, status models.ProductStatus, category string, page models.Page) (*Listing, error) {
	return s.list(ctx, models.ProductFilter{Category: category, Status: status, Page: page})
}

func (s *Service) list(ctx context.Context, filter models.ProductFilter) (*Listing, error) {
	filter.Page = filter.Page.Normalize()

	products, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list products")
	}
	if products == nil {
		products = []models.Product{}
	}

	return &Listing{
		Products:    products,
		TotalPages:  filter.Page.TotalPages(total),
		CurrentPage: filter.Page.Number,
		Total:       total,
	}, nil
}

// GetForCustomer hides inactive products.
func (s *Service) GetForCustomer(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProductActive {
		return nil, apperr.NotFound("Product not found")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.store.FindProduct(ctx, id)
	if err != nil {
		return nil, productError(err, "failed to load product")
	}
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.store.ProductCategories(ctx)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	in, err := in.normalize(true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, apperr.Unexpected(err, "Error creating product")
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update replaces the product's fields. The stored image is kept unless in carries a new one.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	in, err := in.normalize(false)
	if err != nil {
		return nil, err
	}

	p, err := s.store.UpdateProduct(ctx, &models.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return nil, productError(err, "Error updating product")
	}

	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return productError(err, "failed to delete product")
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error) {
	if !status.Valid() {
		return nil, apperr.Validation("Invalid status")
	}
	p, err := s.store.SetProductStatus(ctx, id, status)
	if err != nil {
		return nil, productError(err, "failed to update product status")
	}
	return p, nil
}

func productError(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Product not found")
	}
	return apperr.Unexpected(err, message)
}

func (in ProductInput) normalize(requireDescription bool) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Status == "" {
		in.Status = models.ProductActive
	}

	switch {
	case in.Name == "":
		return in, apperr.Validation("Product name is required")
	case requireDescription && in.Description == "":
		return in, apperr.Validation("Product description is required")
	case in.Price.IsNegative():
		return in, apperr.Validation("Product price is required and must be a valid positive number")
	case in.Stock < 0:
		return in, apperr.Validation("Product stock is required and must be a valid non-negative number")
	case in.Category == "":
		return in, apperr.Validation("Product category is required")
	case !in.Status.Valid():
		return in, apperr.Validation("Invalid status")
	}
	return in, nil
}
