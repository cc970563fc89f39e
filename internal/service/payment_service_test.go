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

type paymentFixture struct {
	store    *fakeStore
	sink     *captureSink
	sessions *SessionService
	payments *PaymentService
	session  *models.Session
	bill     *models.Bill
}

// newPaymentFixture walks a session to a generated bill of 27.50
// (2x Item A + 1x Item B plus 10% tax) on table 10.
func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	st := newFakeStore()
	seedRestaurant(st)
	sink := &captureSink{}
	sessions := NewSessionService(st, sink)
	batches := NewBatchService(st, NewPricingResolver(st, nil), nil, sink)
	bills := NewBillService(st, sink)

	session := openTestSession(t, sessions, int64Ptr(10))
	addTestBatch(t, batches, session.ID,
		BatchItemRequest{MenuItemID: 100, Quantity: 2},
		BatchItemRequest{MenuItemID: 101, Quantity: 1})
	detail, err := bills.Generate(context.Background(), cashier, session.ID, &GenerateBillRequest{})
	require.NoError(t, err)
	sink.reset()

	return &paymentFixture{
		store:    st,
		sink:     sink,
		sessions: sessions,
		payments: NewPaymentService(st, sink),
		session:  session,
		bill:     detail.Bill,
	}
}

func TestAddPaymentFullAmount(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	resp, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("27.50"),
		Method: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.True(t, resp.IsFullyPaid)
	assert.True(t, resp.Remaining.IsZero())
	assert.Equal(t, models.BillStatusPaid, fx.store.bills[fx.bill.ID].Status)
	assert.Equal(t, models.SessionStatusPaid, fx.store.sessions[fx.session.ID].Status)
	assert.NotNil(t, fx.store.sessions[fx.session.ID].ClosedAt)
	assert.Equal(t, models.TableStatusAvailable, fx.store.tables[10].Status)

	assert.Equal(t, []string{
		models.EventPaymentRecorded,
		models.EventBillPaid,
		models.EventSessionStatusChanged,
		models.EventTableStatusChanged,
	}, fx.sink.names())
}

func TestAddPaymentSplit(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	resp, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("20.00"),
		Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsFullyPaid)
	assert.True(t, resp.Remaining.Equal(decimal.RequireFromString("7.50")))
	assert.Equal(t, models.BillStatusPending, fx.store.bills[fx.bill.ID].Status)
	assert.Equal(t, models.TableStatusOccupied, fx.store.tables[10].Status)
	assert.Equal(t, []string{models.EventPaymentRecorded}, fx.sink.names())

	fx.sink.reset()
	resp, err = fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("7.50"),
		Method: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsFullyPaid)
	assert.Equal(t, models.SessionStatusPaid, fx.store.sessions[fx.session.ID].Status)
	assert.Len(t, fx.store.payments[fx.bill.ID], 2)
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	_, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("30.00"),
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Empty(t, fx.store.payments[fx.bill.ID])

	// Within the rounding tolerance is accepted.
	resp, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("27.51"),
		Method: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsFullyPaid)
}

func TestAddPaymentValidation(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	_, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.Zero,
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation), "zero amount")

	_, err = fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("-5.00"),
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation), "negative amount")

	_, err = fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("5.00"),
		Method: "IOU",
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation), "unknown method")

	_, err = fx.payments.AddPayment(ctx, waiter, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("5.00"),
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden), "waiter cannot record payments")

	_, err = fx.payments.AddPayment(ctx, cashier, 999, &AddPaymentRequest{
		Amount: decimal.RequireFromString("5.00"),
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestAddPaymentOnPaidBill(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	_, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("27.50"),
		Method: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	_, err = fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("1.00"),
		Method: models.PaymentMethodCash,
	})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
}

func TestSplitBillTableReleasedAfterBothSessionsPaid(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	// A second OPEN session shares the table, so paying the first bill must
	// not free it.
	second := openTestSession(t, fx.sessions, int64Ptr(10))
	fx.sink.reset()

	_, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
		Amount: decimal.RequireFromString("27.50"),
		Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, fx.store.tables[10].Status)

	_, err = fx.sessions.UpdateStatus(ctx, manager, second.ID, models.SessionStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusAvailable, fx.store.tables[10].Status)
}

func TestListPayments(t *testing.T) {
	fx := newPaymentFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"10.00", "7.50"} {
		_, err := fx.payments.AddPayment(ctx, cashier, fx.bill.ID, &AddPaymentRequest{
			Amount: decimal.RequireFromString(amount),
			Method: models.PaymentMethodCash,
		})
		require.NoError(t, err)
	}

	payments, paid, err := fx.payments.ListPayments(ctx, cashier, fx.bill.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.True(t, paid.Equal(decimal.RequireFromString("17.50")))

	_, _, err = fx.payments.ListPayments(ctx, stranger, fx.bill.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}
