package workflow

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
)

type CatalogStore interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	// AdjustStock adds delta to a product's stock. A negative delta must be applied
	// atomically and only when the stock covers it, else repository.ErrInsufficientStock.
	AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	// UpdateOrderStatus sets the status only while the order is still in status from,
	// else repository.ErrStatusConflict.
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

type OrderLineStore interface {
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	FindOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error)
	DeleteOrderLines(ctx context.Context, orderID string) error
}

// Publisher receives order events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}
