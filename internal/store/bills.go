package store

import (
	"context"
	"database/sql"

	"pos-service/internal/apperrors"
	"pos-service/internal/models"
)

// GenerateBillTx persists a bill with its aggregated line items and flips
// the session to BILLED, all in one transaction. The session row is locked
// so a concurrent generate cannot slip between the state check and the
// insert; the one-bill-per-session unique constraint backstops it.
func (s *Store) GenerateBillTx(ctx context.Context, bill *models.Bill, items []models.BillItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM sessions WHERE id = $1 FOR UPDATE", bill.SessionID)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("session %d not found", bill.SessionID)
	}
	if err != nil {
		return err
	}
	if status != models.SessionStatusOpen {
		return apperrors.InvalidState("session %d is %s, only OPEN sessions can be billed", bill.SessionID, status)
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO bills (session_id, restaurant_id, bill_number, subtotal,
			tax_rate, tax_amount, discount_amount, total_amount, status,
			notes, generated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		bill.SessionID, bill.RestaurantID, bill.BillNumber, bill.Subtotal,
		bill.TaxRate, bill.TaxAmount, bill.DiscountAmount, bill.TotalAmount,
		bill.Status, bill.Notes, bill.GeneratedBy,
	).Scan(&bill.ID, &bill.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err, ConstraintBillSession) {
			return apperrors.Conflict("a bill already exists for session %d", bill.SessionID)
		}
		return err
	}

	for i := range items {
		items[i].BillID = bill.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO bill_items (bill_id, menu_item_id, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			items[i].BillID, items[i].MenuItemID, items[i].Name,
			items[i].Quantity, items[i].UnitPrice, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = $1, subtotal = $2, tax_amount = $3, discount_amount = $4, total_amount = $5
		WHERE id = $6`,
		models.SessionStatusBilled, bill.Subtotal, bill.TaxAmount,
		bill.DiscountAmount, bill.TotalAmount, bill.SessionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetBillByID retrieves a bill.
func (s *Store) GetBillByID(ctx context.Context, id int64) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.GetContext(ctx, &bill, "SELECT * FROM bills WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBillBySessionID retrieves the bill for a session, nil when none exists.
func (s *Store) GetBillBySessionID(ctx context.Context, sessionID int64) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.GetContext(ctx, &bill, "SELECT * FROM bills WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListBillItems retrieves a bill's aggregated line items.
func (s *Store) ListBillItems(ctx context.Context, billID int64) ([]models.BillItem, error) {
	var items []models.BillItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM bill_items WHERE bill_id = $1 ORDER BY id", billID)
	return items, err
}
