package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

func TestTransitionTableIsComplete(t *testing.T) {
	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			effect, ok := transitions[transitionKey{from, to}]
			require.True(t, ok, "%s -> %s", from, to)

			want := effectNone
			switch {
			case from != models.OrderCancelled && to == models.OrderCancelled:
				want = effectRestore
			case from == models.OrderCancelled && to != models.OrderCancelled:
				want = effectDebit
			}
			assert.Equal(t, want, effect, "%s -> %s", from, to)
		}
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()

	place := func(t *testing.T, f *fixture, p *models.Product, qty int) *models.OrderDetail {
		t.Helper()
		placed, err := f.engine.Checkout(ctx, order(ItemRequest{ProductID: p.ID, Quantity: qty}))
		require.NoError(t, err)
		return placed
	}

	t.Run("forward move leaves stock alone", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 3)

		got, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderShipped)
		require.NoError(t, err)
		assert.Equal(t, models.OrderShipped, got.Status)
		assert.Equal(t, 2, f.stockOf(t, p.ID))
		assert.False(t, got.UpdatedAt.Before(placed.UpdatedAt))

		require.NotNil(t, got.Items[0].Product.Stock)
		assert.Equal(t, 2, *got.Items[0].Product.Stock)
	})

	t.Run("cancel restores stock", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 3)

		got, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, got.Status)
		assert.Equal(t, 5, f.stockOf(t, p.ID))

		events := f.publisher.recorded()
		require.Len(t, events, 2)
		assert.Equal(t, models.EventOrderStatusChanged, events[1].Type)
		assert.Equal(t, models.OrderNew, events[1].From)
		assert.Equal(t, models.OrderCancelled, events[1].To)
	})

	t.Run("cancelling twice restores once", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 3)

		_, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		assert.Equal(t, 5, f.stockOf(t, p.ID))
	})

	t.Run("cancel skips deleted products", func(t *testing.T) {
		f := newFixture(t)
		gone := f.addProduct(t, "Gone", "10", 5)
		kept := f.addProduct(t, "Kept", "10", 5)
		placed, err := f.engine.Checkout(ctx, order(
			ItemRequest{ProductID: gone.ID, Quantity: 1},
			ItemRequest{ProductID: kept.ID, Quantity: 2},
		))
		require.NoError(t, err)
		require.NoError(t, f.store.DeleteProduct(ctx, gone.ID))

		got, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, got.Status)
		assert.Equal(t, 5, f.stockOf(t, kept.ID))
	})

	t.Run("reactivate debits stock", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 3)
		_, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)

		got, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderProcessing)
		require.NoError(t, err)
		assert.Equal(t, models.OrderProcessing, got.Status)
		assert.Equal(t, 2, f.stockOf(t, p.ID))
	})

	t.Run("reactivate without stock leaves the order cancelled", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 3)
		_, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		f.store.SetStock(p.ID, 2)

		_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderNew)
		requireKind(t, err, apperr.KindConflict, "Cannot reactivate order. Insufficient stock for Lamp")

		current, err := f.store.FindOrder(ctx, placed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, current.Status)
		assert.Equal(t, 2, f.stockOf(t, p.ID))
	})

	t.Run("reactivate checks summed demand per product", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 6)
		placed, err := f.engine.Checkout(ctx, order(
			ItemRequest{ProductID: p.ID, Quantity: 2},
			ItemRequest{ProductID: p.ID, Quantity: 2},
		))
		require.NoError(t, err)
		_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		f.store.SetStock(p.ID, 3)

		_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderNew)
		requireKind(t, err, apperr.KindConflict, "Cannot reactivate order. Insufficient stock for Lamp")
		assert.Equal(t, 3, f.stockOf(t, p.ID))
	})

	t.Run("reactivate with a deleted product", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, "Lamp", "10", 5)
		placed := place(t, f, p, 1)
		_, err := f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		require.NoError(t, err)
		require.NoError(t, f.store.DeleteProduct(ctx, p.ID))

		_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderNew)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("invalid status", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.TransitionStatus(ctx, "any", models.OrderStatus("Lost"))
		requireKind(t, err, apperr.KindValidation,
			"Status must be one of: New, Processing, Shipped, Delivered, Cancelled")
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.TransitionStatus(ctx, "missing", models.OrderShipped)
		requireKind(t, err, apperr.KindNotFound, "Order not found")
	})
}

func TestTransitionStatusConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Lamp", "10", 5)
	placed, err := f.engine.Checkout(ctx, order(ItemRequest{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	// Both callers read the order as New before either writes its status.
	var ready sync.WaitGroup
	ready.Add(2)
	f.store.OnMutate(func(op string) {
		if op == "UpdateOrderStatus" {
			ready.Done()
			ready.Wait()
		}
	})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 5, f.stockOf(t, p.ID))
}

func TestTransitionStatusRevertsFailedCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "Keyboard", "50", 5)
	b := f.addProduct(t, "Mouse", "20", 5)
	placed, err := f.engine.Checkout(ctx, order(
		ItemRequest{ProductID: a.ID, Quantity: 1},
		ItemRequest{ProductID: b.ID, Quantity: 1},
	))
	require.NoError(t, err)

	calls := 0
	f.store.OnMutate(func(op string) {
		if op == "AdjustStock" {
			calls++
			if calls == 2 {
				f.store.FailNext("AdjustStock", errors.New("write timeout"))
			}
		}
	})

	_, err = f.engine.TransitionStatus(ctx, placed.ID, models.OrderCancelled)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnexpected, apperr.KindOf(err))

	current, err := f.store.FindOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderNew, current.Status)
	assert.Equal(t, 4, f.stockOf(t, a.ID))
	assert.Equal(t, 4, f.stockOf(t, b.ID))
}
