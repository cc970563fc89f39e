package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store wraps the shared Postgres connection pool. All order-core state
// lives behind it.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and configures the pool.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database handle.
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. When constraint is non-empty the violated constraint must
// match it; short-code generation relies on this to tell a code collision
// apart from other conflicts.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// GetRestaurantByID retrieves a restaurant.
func (s *Store) GetRestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.db.GetContext(ctx, &r, "SELECT * FROM restaurants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetTableByID retrieves a dining table.
func (s *Store) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	var t models.Table
	err := s.db.GetContext(ctx, &t, "SELECT * FROM tables WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTableStatus sets a table's occupancy status.
func (s *Store) UpdateTableStatus(ctx context.Context, tableID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tables SET status = $1 WHERE id = $2", status, tableID)
	return err
}

// GetMenuItemByID retrieves a menu item.
func (s *Store) GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	var m models.MenuItem
	err := s.db.GetContext(ctx, &m, "SELECT * FROM menu_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMenuItemsByIDs retrieves multiple menu items keyed by id.
func (s *Store) GetMenuItemsByIDs(ctx context.Context, ids []int64) (map[int64]*models.MenuItem, error) {
	result := make(map[int64]*models.MenuItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT * FROM menu_items WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.MenuItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

// GetActivePricingRules retrieves the active rules for a menu item ordered
// so the first matching rule wins: priority descending, limited-time before
// recurring on ties.
func (s *Store) GetActivePricingRules(ctx context.Context, restaurantID, menuItemID int64) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := s.db.SelectContext(ctx, &rules, `
		SELECT * FROM pricing_rules
		WHERE restaurant_id = $1 AND menu_item_id = $2 AND is_active = true
		ORDER BY priority DESC, (rule_type = 'LIMITED_TIME') DESC, id`,
		restaurantID, menuItemID)
	return rules, err
}
