package service

import (
	"context"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService is the append-only ledger against bills. Split and partial
// payments are first-class; a bill flips to PAID exactly when the recorded
// sum reaches its total.
type PaymentService struct {
	store  Store
	events EventSink
	logger *zap.Logger
}

// NewPaymentService creates a payment service.
func NewPaymentService(st Store, events EventSink) *PaymentService {
	return &PaymentService{
		store:  st,
		events: events,
		logger: util.GetLogger(),
	}
}

// AddPaymentRequest records one payment toward a bill.
type AddPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

// AddPaymentResponse reports the ledger state after the payment.
type AddPaymentResponse struct {
	Payment     *models.Payment `json:"payment"`
	Remaining   decimal.Decimal `json:"remaining"`
	IsFullyPaid bool            `json:"is_fully_paid"`
}

// AddPayment validates and appends a payment. The balance is re-checked
// under a row lock inside the store transaction, so concurrent submissions
// cannot overshoot the bill total.
func (s *PaymentService) AddPayment(ctx context.Context, actor auth.Actor, billID int64, req *AddPaymentRequest) (*AddPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.AddPayment")
	defer span.End()

	if !actor.Can(auth.CapPay) {
		return nil, apperrors.Forbidden("role %s cannot record payments", actor.Role)
	}
	if !req.Amount.IsPositive() {
		util.PaymentsRejectedTotal.WithLabelValues("non_positive").Inc()
		return nil, apperrors.Validation("payment amount must be greater than zero")
	}
	if !models.IsValidPaymentMethod(req.Method) {
		return nil, apperrors.Validation("unknown payment method %q", req.Method)
	}

	bill, err := s.store.GetBillByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, apperrors.NotFound("bill %d not found", billID)
	}
	if !actor.MemberOf(bill.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, bill.RestaurantID)
	}

	payment := &models.Payment{
		BillID:      billID,
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
		ProcessedBy: actor.ID,
	}

	result, err := s.store.AddPaymentTx(ctx, payment)
	if err != nil {
		if apperrors.Is(err, apperrors.KindValidation) {
			util.PaymentsRejectedTotal.WithLabelValues("over_balance").Inc()
		}
		return nil, err
	}

	util.PaymentsRecordedTotal.WithLabelValues(req.Method).Inc()
	s.logger.Info("Payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("bill_id", billID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.Bool("fully_paid", result.IsFullyPaid))

	events := []models.Event{
		models.NewEvent(models.EventPaymentRecorded, models.PaymentPayload{
			PaymentID:   payment.ID,
			BillID:      billID,
			SessionID:   result.SessionID,
			Amount:      req.Amount.StringFixed(2),
			Method:      req.Method,
			Remaining:   result.Remaining.StringFixed(2),
			IsFullyPaid: result.IsFullyPaid,
			ActorID:     actor.ID,
		}, models.BillingRoom(bill.RestaurantID), models.RestaurantRoom(bill.RestaurantID)),
	}

	if result.IsFullyPaid {
		util.BillsPaidTotal.Inc()
		util.SessionsClosedTotal.WithLabelValues(models.SessionStatusPaid).Inc()

		bill.Status = models.BillStatusPaid
		events = append(events,
			models.NewEvent(models.EventBillPaid, billPayload(bill, actor.ID),
				models.BillingRoom(bill.RestaurantID)),
			models.NewEvent(models.EventSessionStatusChanged, models.SessionStatusPayload{
				SessionID:    result.SessionID,
				RestaurantID: bill.RestaurantID,
				TableID:      result.TableID,
				Status:       models.SessionStatusPaid,
				ActorID:      actor.ID,
			}, models.RestaurantRoom(bill.RestaurantID)),
		)

		// Table release runs after the payment committed; occupancy is
		// recomputed from the remaining OPEN sessions.
		if result.TableID != nil {
			if evt, err := s.releaseTableIfIdle(ctx, bill.RestaurantID, *result.TableID); err != nil {
				s.logger.Error("Table release check failed",
					zap.Int64("table_id", *result.TableID), zap.Error(err))
			} else if evt != nil {
				events = append(events, *evt)
			}
		}
	}

	s.events.Publish(ctx, events...)

	return &AddPaymentResponse{
		Payment:     payment,
		Remaining:   result.Remaining,
		IsFullyPaid: result.IsFullyPaid,
	}, nil
}

func (s *PaymentService) releaseTableIfIdle(ctx context.Context, restaurantID, tableID int64) (*models.Event, error) {
	open, err := s.store.CountOpenSessionsForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, nil
	}
	if err := s.store.UpdateTableStatus(ctx, tableID, models.TableStatusAvailable); err != nil {
		return nil, err
	}
	evt := models.NewEvent(models.EventTableStatusChanged, models.TableStatusPayload{
		TableID:      tableID,
		RestaurantID: restaurantID,
		Status:       models.TableStatusAvailable,
	}, models.RestaurantRoom(restaurantID), models.TableRoom(tableID))
	return &evt, nil
}

// ListPayments returns a bill's payments with the running total.
func (s *PaymentService) ListPayments(ctx context.Context, actor auth.Actor, billID int64) ([]models.Payment, decimal.Decimal, error) {
	bill, err := s.store.GetBillByID(ctx, billID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if bill == nil {
		return nil, decimal.Zero, apperrors.NotFound("bill %d not found", billID)
	}
	if !actor.MemberOf(bill.RestaurantID) {
		return nil, decimal.Zero, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, bill.RestaurantID)
	}

	payments, err := s.store.ListPaymentsByBill(ctx, billID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	paid, err := s.store.SumPaymentsByBill(ctx, billID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return payments, paid, nil
}
