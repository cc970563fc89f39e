package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-service/internal/models"
)

// Constraint names used to classify unique violations on insert.
const (
	ConstraintSessionNumber = "sessions_restaurant_id_session_number_key"
	ConstraintBatchNumber   = "batches_session_id_batch_number_key"
	ConstraintBillNumber    = "bills_restaurant_id_bill_number_key"
	ConstraintBillSession   = "bills_session_id_key"
)

// CreateSession inserts a session. A unique violation on the session number
// constraint is returned as-is so the caller can regenerate and retry.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (restaurant_id, table_id, session_number, channel,
			customer_name, customer_phone, customer_email, guest_count,
			external_ref, status, subtotal, tax_amount, discount_amount,
			total_amount, opened_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, 0, 0, $11)
		RETURNING id, opened_at`

	return s.db.QueryRowxContext(ctx, query,
		session.RestaurantID, session.TableID, session.SessionNumber,
		session.Channel, session.CustomerName, session.CustomerPhone,
		session.CustomerEmail, session.GuestCount, session.ExternalRef,
		session.Status, session.OpenedBy,
	).Scan(&session.ID, &session.OpenedAt)
}

// GetSessionByID retrieves a session.
func (s *Store) GetSessionByID(ctx context.Context, id int64) (*models.Session, error) {
	var session models.Session
	err := s.db.GetContext(ctx, &session, "SELECT * FROM sessions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionFilter narrows ListSessions. Zero values mean "no filter".
type SessionFilter struct {
	Status  string
	TableID int64
	Channel string
}

// ListSessions retrieves a restaurant's sessions newest-first.
func (s *Store) ListSessions(ctx context.Context, restaurantID int64, filter SessionFilter) ([]models.Session, error) {
	query := "SELECT * FROM sessions WHERE restaurant_id = $1"
	args := []interface{}{restaurantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.TableID != 0 {
		args = append(args, filter.TableID)
		query += fmt.Sprintf(" AND table_id = $%d", len(args))
	}
	if filter.Channel != "" {
		args = append(args, filter.Channel)
		query += fmt.Sprintf(" AND channel = $%d", len(args))
	}
	query += " ORDER BY opened_at DESC"

	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions, query, args...)
	return sessions, err
}

// ListBillingSessions retrieves the sessions the billing view shows: OPEN
// and BILLED, newest-first.
func (s *Store) ListBillingSessions(ctx context.Context, restaurantID int64) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE restaurant_id = $1 AND status IN ($2, $3)
		ORDER BY opened_at DESC`,
		restaurantID, models.SessionStatusOpen, models.SessionStatusBilled)
	return sessions, err
}

// UpdateSessionStatus sets a session's status and, for terminal statuses,
// the closed timestamp.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID int64, status string, closedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = $1, closed_at = $2 WHERE id = $3",
		status, closedAt, sessionID)
	return err
}

// CountOpenSessionsForTable counts OPEN sessions referencing a table.
// Table occupancy is always derived from this, never tracked incrementally.
func (s *Store) CountOpenSessionsForTable(ctx context.Context, tableID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sessions WHERE table_id = $1 AND status = $2",
		tableID, models.SessionStatusOpen)
	return count, err
}

// CountBatchesBySession counts the kitchen rounds placed in a session.
func (s *Store) CountBatchesBySession(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM batches WHERE session_id = $1", sessionID)
	return count, err
}
