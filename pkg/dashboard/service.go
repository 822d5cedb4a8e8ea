package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

type OrderStats interface {
	CountOrders(ctx context.Context, filter models.OrderFilter) (int64, error)
	SumOrderTotals(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error)
}

type ProductStats interface {
	CountLowStockProducts(ctx context.Context, threshold int) (int64, error)
}

type Stats struct {
	TodayOrders      int64           `json:"todayOrders"`
	TodayRevenue     decimal.Decimal `json:"todayRevenue"`
	LowStockProducts int64           `json:"lowStockProducts"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalOrders      int64           `json:"totalOrders"`
	PendingOrders    int64           `json:"pendingOrders"`
}

type Service struct {
	orders    OrderStats
	products  ProductStats
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(orders OrderStats, products ProductStats, lowStockThreshold int, logger *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		threshold: lowStockThreshold,
		logger:    logger.Named("dashboard"),
		now:       time.Now,
	}
}

// Stats computes the dashboard rollups. "Today" is the current calendar day in
// the server's local time zone.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	notCancelled := []models.OrderStatus{models.OrderCancelled}

	var (
		stats Stats
		err   error
	)

	if stats.TodayOrders, err = s.orders.CountOrders(ctx, models.OrderFilter{From: start, To: end}); err != nil {
		return nil, apperr.Unexpected(err, "failed to count today's orders")
	}

	todayRevenue, err := s.orders.SumOrderTotals(ctx, models.OrderFilter{From: start, To: end, ExcludeStatuses: notCancelled})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to sum today's revenue")
	}
	stats.TodayRevenue = todayRevenue.Round(2)

	if stats.LowStockProducts, err = s.products.CountLowStockProducts(ctx, s.threshold); err != nil {
		return nil, apperr.Unexpected(err, "failed to count low stock products")
	}

	totalRevenue, err := s.orders.SumOrderTotals(ctx, models.OrderFilter{ExcludeStatuses: notCancelled})
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to sum revenue")
	}
	stats.TotalRevenue = totalRevenue.Round(2)

	if stats.TotalOrders, err = s.orders.CountOrders(ctx, models.OrderFilter{}); err != nil {
		return nil, apperr.Unexpected(err, "failed to count orders")
	}

	pending := models.OrderFilter{Statuses: []models.OrderStatus{models.OrderNew, models.OrderProcessing}}
	if stats.PendingOrders, err = s.orders.CountOrders(ctx, pending); err != nil {
		return nil, apperr.Unexpected(err, "failed to count pending orders")
	}

	s.logger.Debug("Dashboard stats computed",
		zap.Int64("today_orders", stats.TodayOrders),
		zap.Int64("total_orders", stats.TotalOrders))

	return &stats, nil
}
