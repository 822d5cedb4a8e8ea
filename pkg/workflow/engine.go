// Package workflow places orders and moves them through their lifecycle,
// keeping product stock consistent with every order event.
package workflow

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

// View selects which product fields are joined onto order lines.
type View int

const (
	// ViewReceipt shows product name and image, returned right after checkout.
	ViewReceipt View = iota
	// ViewTracking adds the current catalog price, for customer order lookup.
	ViewTracking
	// ViewAdmin adds price and current stock.
	ViewAdmin
)

type Engine struct {
	catalog    CatalogStore
	orders     OrderStore
	lines      OrderLineStore
	publishers []Publisher
	logger     *zap.Logger
	tracer     trace.Tracer
	metrics    instruments
	now        func() time.Time
}

func NewEngine(catalog CatalogStore, orders OrderStore, lines OrderLineStore, logger *zap.Logger, publishers ...Publisher) *Engine {
	return &Engine{
		catalog:    catalog,
		orders:     orders,
		lines:      lines,
		publishers: publishers,
		logger:     logger.Named("workflow"),
		tracer:     otel.Tracer(instrumentationName),
		metrics:    newInstruments(),
		now:        time.Now,
	}
}

func (e *Engine) FindOrder(ctx context.Context, id string, view View) (*models.OrderDetail, error) {
	order, err := e.orders.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Unexpected(err, "failed to load order")
	}

	lines, err := e.lines.FindOrderLines(ctx, order.ID)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load order items")
	}

	return e.join(ctx, order, lines, view, nil), nil
}

func (e *Engine) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	orders, total, err := e.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Unexpected(err, "failed to list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, total, nil
}

// join attaches lines to order, enriching each with product fields for view.
// Products already loaded by the caller are passed in known.
func (e *Engine) join(ctx context.Context, order *models.Order, lines []models.OrderLine, view View, known map[string]*models.Product) *models.OrderDetail {
	detail := &models.OrderDetail{
		Order: *order,
		Items: make([]models.OrderLineView, len(lines)),
	}

	for i, line := range lines {
		detail.Items[i] = models.OrderLineView{OrderLine: line}

		product, ok := known[line.ProductID]
		if !ok {
			p, err := e.catalog.FindProduct(ctx, line.ProductID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					e.logger.Warn("Failed to load product for order line",
						zap.String("order_id", order.ID),
						zap.String("product_id", line.ProductID),
						zap.Error(err))
				}
				continue
			}
			product = p
		}
		detail.Items[i].Product = summarize(product, view)
	}

	return detail
}

func summarize(p *models.Product, view View) *models.ProductSummary {
	s := &models.ProductSummary{ID: p.ID, Name: p.Name, ImageURL: p.ImageURL}
	if view >= ViewTracking {
		price := p.Price
		s.Price = &price
	}
	if view >= ViewAdmin {
		stock := p.Stock
		s.Stock = &stock
	}
	return s
}

// publish fans an event out to every publisher. Failures never undo the committed change.
func (e *Engine) publish(ctx context.Context, event models.OrderEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range e.publishers {
		if err := p.Publish(ctx, event); err != nil {
			e.logger.Warn("Failed to publish order event",
				zap.String("type", string(event.Type)),
				zap.String("order_id", event.OrderID),
				zap.Error(err))
		}
	}
}
