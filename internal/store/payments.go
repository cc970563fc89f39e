package store

import (
	"context"
	"database/sql"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentResult reports the ledger state after a payment committed.
type PaymentResult struct {
	Remaining   decimal.Decimal
	IsFullyPaid bool
	SessionID   int64
	TableID     *int64
}

// AddPaymentTx appends a payment to a bill's ledger. The bill row is locked
// for the duration of the transaction and the remaining balance is
// recomputed under that lock, so two concurrent payments cannot both pass
// the balance check against a stale sum. When the balance reaches zero the
// bill and its session flip to PAID in the same transaction.
func (s *Store) AddPaymentTx(ctx context.Context, payment *models.Payment) (*PaymentResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bill models.Bill
	err = tx.GetContext(ctx, &bill,
		"SELECT * FROM bills WHERE id = $1 FOR UPDATE", payment.BillID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("bill %d not found", payment.BillID)
	}
	if err != nil {
		return nil, err
	}

	if bill.Status == models.BillStatusVoided {
		return nil, apperrors.InvalidState("bill %s is voided", bill.BillNumber)
	}
	if bill.Status == models.BillStatusPaid {
		return nil, apperrors.InvalidState("bill %s is already fully paid", bill.BillNumber)
	}

	var paid decimal.Decimal
	err = tx.GetContext(ctx, &paid,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = $1", payment.BillID)
	if err != nil {
		return nil, err
	}

	remaining := bill.TotalAmount.Sub(paid)
	if payment.Amount.GreaterThan(remaining.Add(models.BalanceTolerance)) {
		return nil, apperrors.Validation(
			"payment of %s exceeds remaining balance of %s on bill %s",
			payment.Amount.StringFixed(2), remaining.StringFixed(2), bill.BillNumber)
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO payments (bill_id, amount, method, reference, notes, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		payment.BillID, payment.Amount, payment.Method, payment.Reference,
		payment.Notes, payment.ProcessedBy,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return nil, err
	}

	result := &PaymentResult{
		Remaining:   remaining.Sub(payment.Amount),
		IsFullyPaid: payment.Amount.GreaterThanOrEqual(remaining.Sub(models.BalanceTolerance)),
		SessionID:   bill.SessionID,
	}

	if result.IsFullyPaid {
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			"UPDATE bills SET status = $1, paid_at = $2 WHERE id = $3",
			models.BillStatusPaid, now, bill.ID)
		if err != nil {
			return nil, err
		}

		err = tx.QueryRowxContext(ctx, `
			UPDATE sessions SET status = $1, closed_at = $2 WHERE id = $3
			RETURNING table_id`,
			models.SessionStatusPaid, now, bill.SessionID,
		).Scan(&result.TableID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListPaymentsByBill retrieves a bill's payments oldest-first.
func (s *Store) ListPaymentsByBill(ctx context.Context, billID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE bill_id = $1 ORDER BY created_at", billID)
	return payments, err
}

// SumPaymentsByBill totals the payments recorded against a bill.
func (s *Store) SumPaymentsByBill(ctx context.Context, billID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = $1", billID)
	return sum, err
}
