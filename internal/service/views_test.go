package service

import (
	"context"
	"testing"

	"pos-service/internal/apperrors"
	"pos-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKitchenView(t *testing.T) {
	st, _, sessions, batches := newBatchFixture(t)
	views := NewViewService(st)
	ctx := context.Background()

	session := openTestSession(t, sessions, int64Ptr(10))
	first := addTestBatch(t, batches, session.ID,
		BatchItemRequest{MenuItemID: 100, Quantity: 1},
		BatchItemRequest{MenuItemID: 101, Quantity: 1})
	addTestBatch(t, batches, session.ID, BatchItemRequest{MenuItemID: 101, Quantity: 2})

	// Serve one item from the first batch; it disappears from the board
	// while its sibling stays.
	_, err := batches.UpdateItemStatus(ctx, waiter, first.Items[0].ID, models.ItemStatusServed, "")
	require.NoError(t, err)

	view, err := views.KitchenView(ctx, chef, 1)
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Len(t, view[0].Items, 1)
	assert.Equal(t, first.Items[1].ID, view[0].Items[0].ID)
	assert.Len(t, view[1].Items, 1)

	_, err = views.KitchenView(ctx, cashier, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden), "cashier has no kitchen view")
}

func TestKitchenViewDropsServedBatches(t *testing.T) {
	st, _, sessions, batches := newBatchFixture(t)
	views := NewViewService(st)
	ctx := context.Background()

	session := openTestSession(t, sessions, int64Ptr(10))
	detail := addTestBatch(t, batches, session.ID, BatchItemRequest{MenuItemID: 100, Quantity: 1})

	_, err := batches.UpdateItemStatus(ctx, waiter, detail.Items[0].ID, models.ItemStatusServed, "")
	require.NoError(t, err)

	view, err := views.KitchenView(ctx, chef, 1)
	require.NoError(t, err)
	assert.Empty(t, view, "fully served batch leaves the board")
}

func TestBillingView(t *testing.T) {
	st, _, sessions, batches, bills := newBillFixture(t)
	views := NewViewService(st)
	payments := NewPaymentService(st, &captureSink{})
	ctx := context.Background()

	billed := openTestSession(t, sessions, int64Ptr(10))
	addTestBatch(t, batches, billed.ID, BatchItemRequest{MenuItemID: 100, Quantity: 1})
	generated, err := bills.Generate(ctx, cashier, billed.ID, &GenerateBillRequest{})
	require.NoError(t, err)
	_, err = payments.AddPayment(ctx, cashier, generated.Bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("5.00"),
		Method: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	open := openTestSession(t, sessions, nil)

	view, err := views.BillingView(ctx, cashier, 1)
	require.NoError(t, err)
	require.Len(t, view, 2)

	assert.Equal(t, billed.ID, view[0].Session.ID)
	assert.True(t, view[0].HasBill)
	assert.Equal(t, 1, view[0].BatchCount)
	assert.True(t, view[0].BillTotal.Equal(decimal.RequireFromString("11.00")))
	assert.True(t, view[0].PaidSum.Equal(decimal.RequireFromString("5.00")))

	assert.Equal(t, open.ID, view[1].Session.ID)
	assert.False(t, view[1].HasBill)

	_, err = views.BillingView(ctx, chef, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden), "kitchen has no billing view")
}
