package service

import (
	"context"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/models"

	"github.com/shopspring/decimal"
)

// ViewService serves the role-specific read projections.
type ViewService struct {
	store Store
}

// NewViewService creates a view service.
func NewViewService(st Store) *ViewService {
	return &ViewService{store: st}
}

// KitchenBatch is one actionable batch on the kitchen dashboard. Items
// exclude SERVED and CANCELLED; the kitchen only sees work left to do.
type KitchenBatch struct {
	Batch *models.Batch      `json:"batch"`
	Items []models.OrderItem `json:"items"`
}

// BillingSession is one row on the billing dashboard.
type BillingSession struct {
	Session    *models.Session `json:"session"`
	BatchCount int             `json:"batch_count"`
	BillTotal  decimal.Decimal `json:"bill_total"`
	PaidSum    decimal.Decimal `json:"paid_sum"`
	HasBill    bool            `json:"has_bill"`
}

// KitchenView returns a restaurant's pending/in-progress/ready batches
// oldest-first with their actionable items.
func (s *ViewService) KitchenView(ctx context.Context, actor auth.Actor, restaurantID int64) ([]KitchenBatch, error) {
	if !actor.Can(auth.CapViewKitchen) {
		return nil, apperrors.Forbidden("role %s cannot view the kitchen dashboard", actor.Role)
	}
	if !actor.MemberOf(restaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, restaurantID)
	}

	batches, err := s.store.ListKitchenBatches(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	itemsByBatch, err := s.store.ListItemsByBatchIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := make([]KitchenBatch, len(batches))
	for i := range batches {
		actionable := make([]models.OrderItem, 0, len(itemsByBatch[batches[i].ID]))
		for _, item := range itemsByBatch[batches[i].ID] {
			if item.Status == models.ItemStatusServed || item.Status == models.ItemStatusCancelled {
				continue
			}
			actionable = append(actionable, item)
		}
		view[i] = KitchenBatch{Batch: &batches[i], Items: actionable}
	}
	return view, nil
}

// BillingView returns a restaurant's OPEN and BILLED sessions with batch
// counts and, where a bill exists, its payment progress.
func (s *ViewService) BillingView(ctx context.Context, actor auth.Actor, restaurantID int64) ([]BillingSession, error) {
	if !actor.Can(auth.CapViewBilling) {
		return nil, apperrors.Forbidden("role %s cannot view the billing dashboard", actor.Role)
	}
	if !actor.MemberOf(restaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, restaurantID)
	}

	sessions, err := s.store.ListBillingSessions(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	view := make([]BillingSession, len(sessions))
	for i := range sessions {
		row := BillingSession{Session: &sessions[i]}

		row.BatchCount, err = s.store.CountBatchesBySession(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}

		bill, err := s.store.GetBillBySessionID(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		if bill != nil {
			row.HasBill = true
			row.BillTotal = bill.TotalAmount
			row.PaidSum, err = s.store.SumPaymentsByBill(ctx, bill.ID)
			if err != nil {
				return nil, err
			}
		}
		view[i] = row
	}
	return view, nil
}
