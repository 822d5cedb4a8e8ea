package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type CustomerProfile struct {
	Name            string
	Email           string
	ContactNumber   string
	ShippingAddress string
}

// MaxQuantity bounds a single line so summed demand cannot overflow.
const MaxQuantity = math.MaxInt32

type ItemRequest struct {
	ProductID string
	Quantity  int
}

type CheckoutRequest struct {
	Customer CustomerProfile
	Items    []ItemRequest
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func (c CustomerProfile) normalize() (CustomerProfile, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.ContactNumber = strings.TrimSpace(c.ContactNumber)
	c.ShippingAddress = strings.TrimSpace(c.ShippingAddress)

	var problems []string
	check := func(label, value string, max int) {
		switch {
		case value == "":
			problems = append(problems, label+" is required")
		case utf8.RuneCountInString(value) > max:
			problems = append(problems, fmt.Sprintf("%s must be at most %d characters", label, max))
		}
	}

	check("Customer name", c.Name, 100)
	check("Email", c.Email, 255)
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		problems = append(problems, "Invalid email format")
	}
	check("Contact number", c.ContactNumber, 20)
	check("Shipping address", c.ShippingAddress, 500)

	if len(problems) > 0 {
		return c, apperr.Validation(problems[0], problems...)
	}
	return c, nil
}

type pricedLine struct {
	product   *models.Product
	quantity  int
	lineTotal decimal.Decimal
}

// Checkout validates every requested item against the catalog, then creates the
// order, its lines and the stock debits. Any failure after the first write is
// compensated, so checkout either applies completely or not at all.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (*models.OrderDetail, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Checkout",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	defer span.End()

	detail, err := e.checkout(ctx, req)
	if err != nil {
		e.metrics.checkoutRejected(ctx, err)
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", detail.ID))
	e.metrics.orderPlaced(ctx, &detail.Order)
	return detail, nil
}

func (e *Engine) checkout(ctx context.Context, req CheckoutRequest) (*models.OrderDetail, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}
	customer, err := req.Customer.normalize()
	if err != nil {
		return nil, err
	}

	priced, subtotal, err := e.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(subtotal)
	now := e.now()
	order := &models.Order{
		ID:              uuid.NewString(),
		CustomerName:    customer.Name,
		Email:           customer.Email,
		ContactNumber:   customer.ContactNumber,
		ShippingAddress: customer.ShippingAddress,
		Total:           totals.Total,
		Status:          models.OrderNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	lines := make([]models.OrderLine, len(priced))
	known := make(map[string]*models.Product, len(priced))
	for i, p := range priced {
		lines[i] = models.OrderLine{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: p.product.ID,
			Position:  i,
			Quantity:  p.quantity,
			UnitPrice: p.product.Price,
			LineTotal: p.lineTotal,
			CreatedAt: now,
		}
		known[p.product.ID] = p.product
	}

	if err := e.commitCheckout(ctx, order, lines, known); err != nil {
		return nil, err
	}

	e.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.Int("lines", len(lines)),
		zap.String("subtotal", totals.Subtotal.StringFixed(2)),
		zap.String("total", order.Total.StringFixed(2)))

	e.publish(ctx, models.OrderEvent{
		Type:         models.EventOrderPlaced,
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Email:        order.Email,
		Total:        order.Total,
		Items:        len(lines),
		To:           order.Status,
		OccurredAt:   now,
	})

	return e.join(ctx, order, lines, ViewReceipt, known), nil
}

// priceItems is the read-only validation pass. Nothing is written until every
// item has been checked.
func (e *Engine) priceItems(ctx context.Context, items []ItemRequest) ([]pricedLine, decimal.Decimal, error) {
	// prices are frozen into the order, so they are read past the cache
	ctx = repository.SkipCache(ctx)
	priced := make([]pricedLine, 0, len(items))
	demand := make(map[string]int, len(items))
	subtotal := decimal.Zero

	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, subtotal, apperr.Validation(fmt.Sprintf("Item %d: Product ID is required", i+1))
		}
		if item.Quantity < 1 {
			return nil, subtotal, apperr.Validation(fmt.Sprintf("Item %d: Quantity is required and must be a positive number", i+1))
		}
		if item.Quantity > MaxQuantity {
			return nil, subtotal, apperr.Validation(fmt.Sprintf("Item %d: Quantity must be at most %d", i+1, MaxQuantity))
		}

		product, err := e.catalog.FindProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, subtotal, apperr.NotFound("Product %s not found", item.ProductID)
			}
			return nil, subtotal, apperr.Unexpected(err, "failed to load product")
		}

		if product.Status != models.ProductActive {
			return nil, subtotal, apperr.Conflict("Product %s is not available", product.Name)
		}

		// The same product may appear on several lines; stock must cover all of them.
		demand[product.ID] += item.Quantity
		if product.Stock < demand[product.ID] {
			return nil, subtotal, apperr.Conflict("Insufficient stock for %s. Available: %d", product.Name, product.Stock)
		}

		lineTotal := LineTotal(product.Price, item.Quantity)
		subtotal = subtotal.Add(lineTotal)
		priced = append(priced, pricedLine{product: product, quantity: item.Quantity, lineTotal: lineTotal})
	}

	return priced, subtotal, nil
}

func (e *Engine) commitCheckout(ctx context.Context, order *models.Order, lines []models.OrderLine, known map[string]*models.Product) error {
	var saga compensation

	if err := e.orders.CreateOrder(ctx, order); err != nil {
		return apperr.Unexpected(err, "failed to create order")
	}
	saga.add("delete order", func(ctx context.Context) error {
		return e.orders.DeleteOrder(ctx, order.ID)
	})

	if err := e.lines.CreateOrderLines(ctx, lines); err != nil {
		saga.rollback(ctx, e.logger)
		return apperr.Unexpected(err, "failed to create order items")
	}
	saga.add("delete order lines", func(ctx context.Context) error {
		return e.lines.DeleteOrderLines(ctx, order.ID)
	})

	for _, line := range lines {
		if _, err := e.catalog.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			saga.rollback(ctx, e.logger)
			e.logger.Warn("Checkout rolled back",
				zap.String("order_id", order.ID),
				zap.String("product_id", line.ProductID),
				zap.Error(err))
			return e.debitError(ctx, err, known[line.ProductID])
		}

		line := line
		saga.add("restore stock", func(ctx context.Context) error {
			_, err := e.catalog.AdjustStock(ctx, line.ProductID, line.Quantity)
			return err
		})
	}

	return nil
}

// debitError translates a failed conditional decrement. The product's current
// stock is re-read so the message reports what is actually left.
func (e *Engine) debitError(ctx context.Context, err error, product *models.Product) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		available := 0
		if current, ferr := e.catalog.FindProduct(repository.SkipCache(ctx), product.ID); ferr == nil {
			available = current.Stock
		}
		return apperr.Conflict("Insufficient stock for %s. Available: %d", product.Name, available)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("Product %s not found", product.ID)
	default:
		return apperr.Unexpected(err, "failed to update stock")
	}
}
