package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateBatchWithItems inserts a batch and all of its items in one
// transaction. A rejected item list never leaves a half-written batch
// behind. Unique violations on the batch number bubble up for retry.
func (s *Store) CreateBatchWithItems(ctx context.Context, batch *models.Batch, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO batches (session_id, batch_number, status, kitchen_note, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		batch.SessionID, batch.BatchNumber, batch.Status, batch.KitchenNote, batch.CreatedBy,
	).Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return err
	}

	for i := range items {
		items[i].BatchID = batch.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (batch_id, menu_item_id, menu_item_name,
				quantity, notes, status, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
			items[i].BatchID, items[i].MenuItemID, items[i].MenuItemName,
			items[i].Quantity, items[i].Notes, items[i].Status,
			items[i].UnitPrice, items[i].LineTotal,
		).Scan(&items[i].ID, &items[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetBatchByID retrieves a batch.
func (s *Store) GetBatchByID(ctx context.Context, id int64) (*models.Batch, error) {
	var batch models.Batch
	err := s.db.GetContext(ctx, &batch, "SELECT * FROM batches WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatchesBySession retrieves a session's batches oldest-first.
func (s *Store) ListBatchesBySession(ctx context.Context, sessionID int64) ([]models.Batch, error) {
	var batches []models.Batch
	err := s.db.SelectContext(ctx, &batches,
		"SELECT * FROM batches WHERE session_id = $1 ORDER BY created_at",
		sessionID)
	return batches, err
}

// UpdateBatchStatus sets a batch's status.
func (s *Store) UpdateBatchStatus(ctx context.Context, batchID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE batches SET status = $1 WHERE id = $2", status, batchID)
	return err
}

// GetOrderItemByID retrieves an order item.
func (s *Store) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM order_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItemsByBatch retrieves a batch's items in insertion order.
func (s *Store) ListItemsByBatch(ctx context.Context, batchID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE batch_id = $1 ORDER BY id", batchID)
	return items, err
}

// ListItemsByBatchIDs retrieves items for a set of batches grouped by batch.
func (s *Store) ListItemsByBatchIDs(ctx context.Context, batchIDs []int64) (map[int64][]models.OrderItem, error) {
	result := make(map[int64][]models.OrderItem, len(batchIDs))
	if len(batchIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE batch_id IN (?) ORDER BY id", batchIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.BatchID] = append(result[item.BatchID], item)
	}
	return result, nil
}

// UpdateOrderItemStatus sets an item's status along with the lifecycle
// timestamp and cancellation reason that belong to it.
func (s *Store) UpdateOrderItemStatus(ctx context.Context, itemID int64, status, cancelReason string) error {
	now := time.Now().UTC()
	var preparedAt, servedAt, cancelledAt *time.Time
	switch status {
	case models.ItemStatusPrepared:
		preparedAt = &now
	case models.ItemStatusServed:
		servedAt = &now
	case models.ItemStatusCancelled:
		cancelledAt = &now
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE order_items
		SET status = $1,
		    cancel_reason = COALESCE(NULLIF($2, ''), cancel_reason),
		    prepared_at = COALESCE($3, prepared_at),
		    served_at = COALESCE($4, served_at),
		    cancelled_at = COALESCE($5, cancelled_at)
		WHERE id = $6`,
		status, cancelReason, preparedAt, servedAt, cancelledAt, itemID)
	return err
}

// ListActiveItemsBySession retrieves every non-cancelled item across all of
// a session's batches. Bill generation aggregates over this set.
func (s *Store) ListActiveItemsBySession(ctx context.Context, sessionID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.* FROM order_items oi
		JOIN batches b ON b.id = oi.batch_id
		WHERE b.session_id = $1 AND oi.status <> $2
		ORDER BY oi.id`,
		sessionID, models.ItemStatusCancelled)
	return items, err
}

// ListKitchenBatches retrieves the actionable batches for a restaurant,
// oldest-first.
func (s *Store) ListKitchenBatches(ctx context.Context, restaurantID int64) ([]models.Batch, error) {
	var batches []models.Batch
	err := s.db.SelectContext(ctx, &batches, `
		SELECT b.* FROM batches b
		JOIN sessions s ON s.id = b.session_id
		WHERE s.restaurant_id = $1 AND b.status IN ($2, $3, $4)
		ORDER BY b.created_at`,
		restaurantID, models.BatchStatusPending, models.BatchStatusInProgress, models.BatchStatusReady)
	return batches, err
}
