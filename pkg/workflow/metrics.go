package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

const instrumentationName = "github.com/example/storefront/pkg/workflow"

type instruments struct {
	placed      metric.Int64Counter
	rejected    metric.Int64Counter
	transitions metric.Int64Counter
	revenue     metric.Float64Counter
}

func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	int64Counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	revenue, err := meter.Float64Counter("storefront.orders.revenue",
		metric.WithDescription("Tax-inclusive total of placed orders"))
	if err != nil {
		revenue, _ = fallback.Float64Counter("storefront.orders.revenue")
	}

	return instruments{
		placed:      int64Counter("storefront.orders.placed", "Orders created at checkout"),
		rejected:    int64Counter("storefront.checkout.rejected", "Checkout attempts rejected, by error kind"),
		transitions: int64Counter("storefront.orders.transitions", "Order status transitions, by from/to status"),
		revenue:     revenue,
	}
}

func (m instruments) orderPlaced(ctx context.Context, order *models.Order) {
	m.placed.Add(ctx, 1)
	m.revenue.Add(ctx, order.Total.InexactFloat64())
}

func (m instruments) checkoutRejected(ctx context.Context, err error) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", apperr.KindOf(err).String())))
}

func (m instruments) transitioned(ctx context.Context, from, to models.OrderStatus) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
