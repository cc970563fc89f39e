package service

import (
	"context"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BillService freezes a session's charges into an immutable bill.
type BillService struct {
	store  Store
	events EventSink
	logger *zap.Logger
}

// NewBillService creates a bill service.
func NewBillService(st Store, events EventSink) *BillService {
	return &BillService{
		store:  st,
		events: events,
		logger: util.GetLogger(),
	}
}

// GenerateBillRequest generates the bill for a session. DiscountAmount is a
// decimal string ("0.00") and defaults to zero.
type GenerateBillRequest struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Notes          string          `json:"notes,omitempty"`
}

// BillDetail is a bill with its aggregated line items and payment progress.
type BillDetail struct {
	Bill     *models.Bill      `json:"bill"`
	Items    []models.BillItem `json:"items"`
	PaidSum  decimal.Decimal   `json:"paid_sum"`
	Payments []models.Payment  `json:"payments,omitempty"`
}

// Generate aggregates every non-cancelled item across the session's
// batches, computes the totals, and atomically persists the bill while
// moving the session to BILLED. A session gets exactly one bill.
func (s *BillService) Generate(ctx context.Context, actor auth.Actor, sessionID int64, req *GenerateBillRequest) (*BillDetail, error) {
	ctx, span := util.StartSpan(ctx, "BillService.Generate")
	defer span.End()

	start := time.Now()
	defer func() {
		util.BillGenerationLatency.Observe(time.Since(start).Seconds())
	}()

	if !actor.Can(auth.CapBill) {
		return nil, apperrors.Forbidden("role %s cannot generate bills", actor.Role)
	}
	if req.DiscountAmount.IsNegative() {
		return nil, apperrors.Validation("discount amount cannot be negative")
	}

	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", sessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}
	if session.Status != models.SessionStatusOpen {
		return nil, apperrors.InvalidState("session %s is %s, only OPEN sessions can be billed", session.SessionNumber, session.Status)
	}

	existing, err := s.store.GetBillBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("a bill already exists for session %s", session.SessionNumber)
	}

	restaurant, err := s.store.GetRestaurantByID(ctx, session.RestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, apperrors.NotFound("restaurant %d not found", session.RestaurantID)
	}

	orderItems, err := s.store.ListActiveItemsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(orderItems) == 0 {
		return nil, apperrors.InvalidState("session %s has no active items to bill", session.SessionNumber)
	}

	lineItems, subtotal := aggregateLineItems(orderItems)
	taxable := decimal.Max(decimal.Zero, subtotal.Sub(req.DiscountAmount))
	taxAmount := taxable.Mul(restaurant.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	totalAmount := taxable.Add(taxAmount).Round(2)

	bill := &models.Bill{
		SessionID:      sessionID,
		RestaurantID:   session.RestaurantID,
		Subtotal:       subtotal,
		TaxRate:        restaurant.TaxRate,
		TaxAmount:      taxAmount,
		DiscountAmount: req.DiscountAmount,
		TotalAmount:    totalAmount,
		Status:         models.BillStatusPending,
		Notes:          req.Notes,
		GeneratedBy:    actor.ID,
	}

	if err := s.generateWithUniqueNumber(ctx, bill, lineItems); err != nil {
		return nil, err
	}

	util.BillsGeneratedTotal.Inc()
	s.logger.Info("Bill generated",
		zap.Int64("bill_id", bill.ID),
		zap.String("bill_number", bill.BillNumber),
		zap.Int64("session_id", sessionID),
		zap.String("total", bill.TotalAmount.StringFixed(2)))

	s.events.Publish(ctx,
		models.NewEvent(models.EventBillGenerated, billPayload(bill, actor.ID),
			models.BillingRoom(session.RestaurantID)),
		models.NewEvent(models.EventSessionStatusChanged, models.SessionStatusPayload{
			SessionID:     session.ID,
			SessionNumber: session.SessionNumber,
			RestaurantID:  session.RestaurantID,
			TableID:       session.TableID,
			Status:        models.SessionStatusBilled,
			ActorID:       actor.ID,
		}, models.RestaurantRoom(session.RestaurantID)),
	)

	return &BillDetail{Bill: bill, Items: lineItems, PaidSum: decimal.Zero}, nil
}

// aggregateLineItems groups non-cancelled order items by menu item,
// summing quantities and frozen line totals. First-seen order is kept so
// the bill reads like the meal happened.
func aggregateLineItems(orderItems []models.OrderItem) ([]models.BillItem, decimal.Decimal) {
	index := make(map[int64]int)
	lines := make([]models.BillItem, 0, len(orderItems))
	subtotal := decimal.Zero

	for _, item := range orderItems {
		subtotal = subtotal.Add(item.LineTotal)
		if i, ok := index[item.MenuItemID]; ok {
			lines[i].Quantity += item.Quantity
			lines[i].LineTotal = lines[i].LineTotal.Add(item.LineTotal)
			continue
		}
		index[item.MenuItemID] = len(lines)
		lines = append(lines, models.BillItem{
			MenuItemID: item.MenuItemID,
			Name:       item.MenuItemName,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			LineTotal:  item.LineTotal,
		})
	}
	return lines, subtotal
}

func (s *BillService) generateWithUniqueNumber(ctx context.Context, bill *models.Bill, items []models.BillItem) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.NewShortCode()
		if err != nil {
			return apperrors.Internal(err, "failed to generate bill number")
		}
		bill.BillNumber = code

		err = s.store.GenerateBillTx(ctx, bill, items)
		if err == nil {
			return nil
		}
		if !store.IsUniqueViolation(err, store.ConstraintBillNumber) {
			return err
		}
		util.ShortCodeRetriesTotal.WithLabelValues("bill").Inc()
	}
	return apperrors.Internal(nil, "exhausted bill number generation attempts")
}

// Get returns the bill for a session with line items and payment progress.
func (s *BillService) Get(ctx context.Context, actor auth.Actor, sessionID int64) (*BillDetail, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", sessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}

	bill, err := s.store.GetBillBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, apperrors.NotFound("session %s has no bill", session.SessionNumber)
	}

	items, err := s.store.ListBillItems(ctx, bill.ID)
	if err != nil {
		return nil, err
	}
	paid, err := s.store.SumPaymentsByBill(ctx, bill.ID)
	if err != nil {
		return nil, err
	}

	return &BillDetail{Bill: bill, Items: items, PaidSum: paid}, nil
}

func billPayload(bill *models.Bill, actorID int64) models.BillPayload {
	return models.BillPayload{
		BillID:      bill.ID,
		BillNumber:  bill.BillNumber,
		SessionID:   bill.SessionID,
		Subtotal:    bill.Subtotal.StringFixed(2),
		TaxAmount:   bill.TaxAmount.StringFixed(2),
		Discount:    bill.DiscountAmount.StringFixed(2),
		TotalAmount: bill.TotalAmount.StringFixed(2),
		Status:      bill.Status,
		ActorID:     actorID,
	}
}
