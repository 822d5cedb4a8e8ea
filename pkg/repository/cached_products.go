package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/models"
)

type ProductBackend interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetProductStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error)
	ProductCategories(ctx context.Context) ([]string, error)
	CountLowStockProducts(ctx context.Context, threshold int) (int64, error)
}

// CachedProductStore serves single-product reads from Redis. Every write to a
// product, stock adjustments included, drops its cache entry before and after
// the backend write. Redis failures fall through to the backend.
type CachedProductStore struct {
	ProductBackend
	cache  *RedisRepository
	logger *zap.Logger
}

func NewCachedProductStore(backend ProductBackend, cache *RedisRepository, logger *zap.Logger) *CachedProductStore {
	return &CachedProductStore{
		ProductBackend: backend,
		cache:          cache,
		logger:         logger.Named("product-cache"),
	}
}

type skipCacheKey struct{}

// SkipCache marks ctx so product reads go to the backend. The value read
// still replaces the cache entry.
func SkipCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCacheKey{}, true)
}

func cacheSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipCacheKey{}).(bool)
	return skip
}

func (s *CachedProductStore) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	if !cacheSkipped(ctx) {
		p, err := s.cache.GetCachedProduct(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	p, err := s.ProductBackend.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheProduct(ctx, p); err != nil {
		s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
	}
	return p, nil
}

func (s *CachedProductStore) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	s.invalidate(ctx, p.ID)
	defer s.invalidate(ctx, p.ID)
	return s.ProductBackend.UpdateProduct(ctx, p)
}

func (s *CachedProductStore) DeleteProduct(ctx context.Context, id string) error {
	s.invalidate(ctx, id)
	defer s.invalidate(ctx, id)
	return s.ProductBackend.DeleteProduct(ctx, id)
}

func (s *CachedProductStore) SetProductStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error) {
	s.invalidate(ctx, id)
	defer s.invalidate(ctx, id)
	return s.ProductBackend.SetProductStatus(ctx, id, status)
}

func (s *CachedProductStore) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	s.invalidate(ctx, id)
	defer s.invalidate(ctx, id)
	return s.ProductBackend.AdjustStock(ctx, id, delta)
}

func (s *CachedProductStore) invalidate(ctx context.Context, id string) {
	if err := s.cache.InvalidateProduct(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}
