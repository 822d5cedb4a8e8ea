package workflow

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type stockEffect int

const (
	effectNone stockEffect = iota
	// effectRestore returns every line's quantity to stock.
	effectRestore
	// effectDebit takes every line's quantity from stock again.
	effectDebit
)

func (s stockEffect) String() string {
	switch s {
	case effectRestore:
		return "restore"
	case effectDebit:
		return "debit"
	default:
		return "none"
	}
}

type transitionKey struct {
	from, to models.OrderStatus
}

// transitions lists every permitted status change and what it does to stock.
// Administrators may move an order between any two statuses.
var transitions = map[transitionKey]stockEffect{
	{models.OrderNew, models.OrderNew}:               effectNone,
	{models.OrderNew, models.OrderProcessing}:        effectNone,
	{models.OrderNew, models.OrderShipped}:           effectNone,
	{models.OrderNew, models.OrderDelivered}:         effectNone,
	{models.OrderNew, models.OrderCancelled}:         effectRestore,
	{models.OrderProcessing, models.OrderNew}:        effectNone,
	{models.OrderProcessing, models.OrderProcessing}: effectNone,
	{models.OrderProcessing, models.OrderShipped}:    effectNone,
	{models.OrderProcessing, models.OrderDelivered}:  effectNone,
	{models.OrderProcessing, models.OrderCancelled}:  effectRestore,
	{models.OrderShipped, models.OrderNew}:           effectNone,
	{models.OrderShipped, models.OrderProcessing}:    effectNone,
	{models.OrderShipped, models.OrderShipped}:       effectNone,
	{models.OrderShipped, models.OrderDelivered}:     effectNone,
	{models.OrderShipped, models.OrderCancelled}:     effectRestore,
	{models.OrderDelivered, models.OrderNew}:         effectNone,
	{models.OrderDelivered, models.OrderProcessing}:  effectNone,
	{models.OrderDelivered, models.OrderShipped}:     effectNone,
	{models.OrderDelivered, models.OrderDelivered}:   effectNone,
	{models.OrderDelivered, models.OrderCancelled}:   effectRestore,
	{models.OrderCancelled, models.OrderNew}:         effectDebit,
	{models.OrderCancelled, models.OrderProcessing}:  effectDebit,
	{models.OrderCancelled, models.OrderShipped}:     effectDebit,
	{models.OrderCancelled, models.OrderDelivered}:   effectDebit,
	{models.OrderCancelled, models.OrderCancelled}:   effectNone,
}

// TransitionStatus moves an order to status to, applying the stock effect of the
// transition. The status write only succeeds if no one else changed the order
// since it was read.
func (e *Engine) TransitionStatus(ctx context.Context, id string, to models.OrderStatus) (*models.OrderDetail, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.TransitionStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.to", string(to))))
	defer span.End()

	detail, err := e.transition(ctx, id, to)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return detail, nil
}

func (e *Engine) transition(ctx context.Context, id string, to models.OrderStatus) (*models.OrderDetail, error) {
	if !to.Valid() {
		return nil, apperr.Validation("Status must be one of: " + models.OrderStatusList())
	}

	order, err := e.orders.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Unexpected(err, "failed to load order")
	}

	from := order.Status
	effect, ok := transitions[transitionKey{from, to}]
	if !ok {
		return nil, apperr.Conflict("Cannot change order status from %s to %s", from, to)
	}

	lines, err := e.lines.FindOrderLines(ctx, order.ID)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to load order items")
	}

	var updated *models.Order
	switch effect {
	case effectRestore:
		updated, err = e.cancel(ctx, order, to, lines)
	case effectDebit:
		updated, err = e.reactivate(ctx, order, to, lines)
	default:
		updated, err = e.setStatus(ctx, order, to)
	}
	if err != nil {
		return nil, err
	}

	e.metrics.transitioned(ctx, from, to)
	e.logger.Info("Order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Stringer("stock", effect))

	e.publish(ctx, models.OrderEvent{
		Type:         models.EventOrderStatusChanged,
		OrderID:      updated.ID,
		CustomerName: updated.CustomerName,
		Email:        updated.Email,
		Total:        updated.Total,
		Items:        len(lines),
		From:         from,
		To:           to,
		OccurredAt:   updated.UpdatedAt,
	})

	return e.join(ctx, updated, lines, ViewAdmin, nil), nil
}

func (e *Engine) setStatus(ctx context.Context, order *models.Order, to models.OrderStatus) (*models.Order, error) {
	updated, err := e.orders.UpdateOrderStatus(ctx, order.ID, order.Status, to, e.now())
	if err != nil {
		return nil, e.statusError(err, order.ID)
	}
	return updated, nil
}

func (e *Engine) statusError(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return apperr.Conflict("Order %s was modified concurrently, retry", id)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("Order not found")
	default:
		return apperr.Unexpected(err, "failed to update order status")
	}
}

// cancel claims the status change first so a concurrent cancellation of the
// same order loses the race and restores nothing.
func (e *Engine) cancel(ctx context.Context, order *models.Order, to models.OrderStatus, lines []models.OrderLine) (*models.Order, error) {
	updated, err := e.setStatus(ctx, order, to)
	if err != nil {
		return nil, err
	}

	var saga compensation
	saga.add("revert status", func(ctx context.Context) error {
		_, err := e.orders.UpdateOrderStatus(ctx, order.ID, to, order.Status, e.now())
		return err
	})

	for _, line := range lines {
		if _, err := e.catalog.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				e.logger.Warn("Skipping stock restore for deleted product",
					zap.String("order_id", order.ID),
					zap.String("product_id", line.ProductID))
				continue
			}
			saga.rollback(ctx, e.logger)
			return nil, apperr.Unexpected(err, "failed to restore stock")
		}

		line := line
		saga.add("undo restore", func(ctx context.Context) error {
			_, err := e.catalog.AdjustStock(ctx, line.ProductID, -line.Quantity)
			return err
		})
	}

	return updated, nil
}

// reactivate checks that stock covers the whole order before touching anything,
// then debits each line and finally claims the status change.
func (e *Engine) reactivate(ctx context.Context, order *models.Order, to models.OrderStatus, lines []models.OrderLine) (*models.Order, error) {
	products := make(map[string]*models.Product, len(lines))
	demand := make(map[string]int, len(lines))

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			p, err := e.catalog.FindProduct(repository.SkipCache(ctx), line.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, apperr.Conflict("Cannot reactivate order. Product %s no longer exists", line.ProductID)
				}
				return nil, apperr.Unexpected(err, "failed to load product")
			}
			product = p
			products[p.ID] = p
		}

		demand[line.ProductID] += line.Quantity
		if product.Stock < demand[line.ProductID] {
			return nil, apperr.Conflict("Cannot reactivate order. Insufficient stock for %s", product.Name)
		}
	}

	var saga compensation
	for _, line := range lines {
		if _, err := e.catalog.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			saga.rollback(ctx, e.logger)
			name := products[line.ProductID].Name
			switch {
			case errors.Is(err, repository.ErrInsufficientStock):
				return nil, apperr.Conflict("Cannot reactivate order. Insufficient stock for %s", name)
			case errors.Is(err, repository.ErrNotFound):
				return nil, apperr.Conflict("Cannot reactivate order. Product %s no longer exists", line.ProductID)
			default:
				return nil, apperr.Unexpected(err, "failed to update stock")
			}
		}

		line := line
		saga.add("restore stock", func(ctx context.Context) error {
			_, err := e.catalog.AdjustStock(ctx, line.ProductID, line.Quantity)
			return err
		})
	}

	updated, err := e.setStatus(ctx, order, to)
	if err != nil {
		saga.rollback(ctx, e.logger)
		return nil, err
	}
	return updated, nil
}
