package service

import (
	"context"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface the services depend on. *store.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetRestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error)
	GetTableByID(ctx context.Context, id int64) (*models.Table, error)
	UpdateTableStatus(ctx context.Context, tableID int64, status string) error
	GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error)
	GetMenuItemsByIDs(ctx context.Context, ids []int64) (map[int64]*models.MenuItem, error)
	GetActivePricingRules(ctx context.Context, restaurantID, menuItemID int64) ([]models.PricingRule, error)

	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByID(ctx context.Context, id int64) (*models.Session, error)
	ListSessions(ctx context.Context, restaurantID int64, filter store.SessionFilter) ([]models.Session, error)
	ListBillingSessions(ctx context.Context, restaurantID int64) ([]models.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID int64, status string, closedAt *time.Time) error
	CountOpenSessionsForTable(ctx context.Context, tableID int64) (int, error)
	CountBatchesBySession(ctx context.Context, sessionID int64) (int, error)

	CreateBatchWithItems(ctx context.Context, batch *models.Batch, items []models.OrderItem) error
	GetBatchByID(ctx context.Context, id int64) (*models.Batch, error)
	ListBatchesBySession(ctx context.Context, sessionID int64) ([]models.Batch, error)
	UpdateBatchStatus(ctx context.Context, batchID int64, status string) error
	GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error)
	ListItemsByBatch(ctx context.Context, batchID int64) ([]models.OrderItem, error)
	ListItemsByBatchIDs(ctx context.Context, batchIDs []int64) (map[int64][]models.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, itemID int64, status, cancelReason string) error
	ListActiveItemsBySession(ctx context.Context, sessionID int64) ([]models.OrderItem, error)
	ListKitchenBatches(ctx context.Context, restaurantID int64) ([]models.Batch, error)

	GenerateBillTx(ctx context.Context, bill *models.Bill, items []models.BillItem) error
	GetBillByID(ctx context.Context, id int64) (*models.Bill, error)
	GetBillBySessionID(ctx context.Context, sessionID int64) (*models.Bill, error)
	ListBillItems(ctx context.Context, billID int64) ([]models.BillItem, error)

	AddPaymentTx(ctx context.Context, payment *models.Payment) (*store.PaymentResult, error)
	ListPaymentsByBill(ctx context.Context, billID int64) ([]models.Payment, error)
	SumPaymentsByBill(ctx context.Context, billID int64) (decimal.Decimal, error)
}

// EventSink receives outbound notifications from state-mutating operations.
// Delivery is best-effort: implementations log failures and never return
// them to the caller.
type EventSink interface {
	Publish(ctx context.Context, events ...models.Event)
}

// MenuCache is a read-through cache in front of menu-item lookups. A nil
// cache is legal; lookups then hit the store directly.
type MenuCache interface {
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, bool)
	SetMenuItem(ctx context.Context, item *models.MenuItem)
}

// maxCodeAttempts bounds the short-code collision retry loop. Exhaustion is
// treated as an internal error.
const maxCodeAttempts = 5
