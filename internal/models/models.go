package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant holds the tenant fields the order core reads. Provisioning is
// managed elsewhere.
type Restaurant struct {
	ID       int64           `db:"id" json:"id"`
	Name     string          `db:"name" json:"name"`
	TaxRate  decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	IsActive bool            `db:"is_active" json:"is_active"`
}

// Table is a physical seating unit. Occupancy is derived from the set of
// OPEN sessions referencing it, never counted incrementally.
type Table struct {
	ID           int64  `db:"id" json:"id"`
	RestaurantID int64  `db:"restaurant_id" json:"restaurant_id"`
	Name         string `db:"name" json:"name"`
	Seats        int    `db:"seats" json:"seats"`
	Status       string `db:"status" json:"status"`
	IsActive     bool   `db:"is_active" json:"is_active"`
}

// MenuItem carries the read-only fields consulted when a batch is placed.
type MenuItem struct {
	ID           int64           `db:"id" json:"id"`
	RestaurantID int64           `db:"restaurant_id" json:"restaurant_id"`
	Name         string          `db:"name" json:"name"`
	BasePrice    decimal.Decimal `db:"base_price" json:"base_price"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	IsAvailable  bool            `db:"is_available" json:"is_available"`
	IsOutOfStock bool            `db:"is_out_of_stock" json:"is_out_of_stock"`
}

// PricingRule overrides a menu item's base price inside a matching window.
// DaysOfWeek is a comma-separated list of weekday numbers (0=Sunday) and is
// only meaningful for recurring rules. StartTime/EndTime are "HH:MM" and
// optional for both rule types.
type PricingRule struct {
	ID           int64           `db:"id" json:"id"`
	RestaurantID int64           `db:"restaurant_id" json:"restaurant_id"`
	MenuItemID   int64           `db:"menu_item_id" json:"menu_item_id"`
	RuleType     string          `db:"rule_type" json:"rule_type"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Priority     int             `db:"priority" json:"priority"`
	StartDate    *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time      `db:"end_date" json:"end_date,omitempty"`
	DaysOfWeek   string          `db:"days_of_week" json:"days_of_week,omitempty"`
	StartTime    string          `db:"start_time" json:"start_time,omitempty"`
	EndTime      string          `db:"end_time" json:"end_time,omitempty"`
	IsActive     bool            `db:"is_active" json:"is_active"`
}

// Session is one ordering episode: dine-in on a table, or a delivery/online
// order with no table. Subtotal through TotalAmount are populated when the
// bill is generated and stay zero before that.
type Session struct {
	ID             int64           `db:"id" json:"id"`
	RestaurantID   int64           `db:"restaurant_id" json:"restaurant_id"`
	TableID        *int64          `db:"table_id" json:"table_id,omitempty"`
	SessionNumber  string          `db:"session_number" json:"session_number"`
	Channel        string          `db:"channel" json:"channel"`
	CustomerName   string          `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email,omitempty"`
	GuestCount     int             `db:"guest_count" json:"guest_count"`
	ExternalRef    string          `db:"external_ref" json:"external_ref,omitempty"`
	Status         string          `db:"status" json:"status"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	OpenedBy       int64           `db:"opened_by" json:"opened_by"`
	OpenedAt       time.Time       `db:"opened_at" json:"opened_at"`
	ClosedAt       *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
}

// Batch is one kitchen round inside a session. Status is derived from the
// batch's non-cancelled items unless a manual override is applied.
type Batch struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   int64     `db:"session_id" json:"session_id"`
	BatchNumber string    `db:"batch_number" json:"batch_number"`
	Status      string    `db:"status" json:"status"`
	KitchenNote string    `db:"kitchen_note" json:"kitchen_note,omitempty"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OrderItem is one line within a batch. UnitPrice and LineTotal are frozen
// at batch creation from the pricing resolver and never recomputed.
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	BatchID      int64           `db:"batch_id" json:"batch_id"`
	MenuItemID   int64           `db:"menu_item_id" json:"menu_item_id"`
	MenuItemName string          `db:"menu_item_name" json:"menu_item_name"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	Status       string          `db:"status" json:"status"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal    decimal.Decimal `db:"line_total" json:"line_total"`
	CancelReason string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	PreparedAt   *time.Time      `db:"prepared_at" json:"prepared_at,omitempty"`
	ServedAt     *time.Time      `db:"served_at" json:"served_at,omitempty"`
	CancelledAt  *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Bill is the immutable financial snapshot of a session. Line items and
// totals never change after creation; only status moves (PENDING -> PAID,
// or VOIDED).
type Bill struct {
	ID             int64           `db:"id" json:"id"`
	SessionID      int64           `db:"session_id" json:"session_id"`
	RestaurantID   int64           `db:"restaurant_id" json:"restaurant_id"`
	BillNumber     string          `db:"bill_number" json:"bill_number"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxRate        decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status         string          `db:"status" json:"status"`
	Notes          string          `db:"notes" json:"notes,omitempty"`
	GeneratedBy    int64           `db:"generated_by" json:"generated_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// BillItem is one aggregated line on a bill: quantities and totals summed
// across every non-cancelled order item for the same menu item.
type BillItem struct {
	ID         int64           `db:"id" json:"id"`
	BillID     int64           `db:"bill_id" json:"bill_id"`
	MenuItemID int64           `db:"menu_item_id" json:"menu_item_id"`
	Name       string          `db:"name" json:"name"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal  decimal.Decimal `db:"line_total" json:"line_total"`
}

// Payment is one append-only amount applied toward a bill's balance.
type Payment struct {
	ID          int64           `db:"id" json:"id"`
	BillID      int64           `db:"bill_id" json:"bill_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	Reference   string          `db:"reference" json:"reference,omitempty"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	ProcessedBy int64           `db:"processed_by" json:"processed_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Session statuses
const (
	SessionStatusOpen      = "OPEN"
	SessionStatusBilled    = "BILLED"
	SessionStatusPaid      = "PAID"
	SessionStatusCancelled = "CANCELLED"
	SessionStatusVoid      = "VOID"
)

// Session channels
const (
	ChannelDineIn    = "DINE_IN"
	ChannelOnlineOwn = "ONLINE_OWN"
	ChannelUberEats  = "UBER_EATS"
)

// Table statuses
const (
	TableStatusAvailable = "AVAILABLE"
	TableStatusOccupied  = "OCCUPIED"
)

// Batch statuses
const (
	BatchStatusPending    = "PENDING"
	BatchStatusInProgress = "IN_PROGRESS"
	BatchStatusReady      = "READY"
	BatchStatusServed     = "SERVED"
)

// Order item statuses
const (
	ItemStatusPending   = "PENDING"
	ItemStatusPreparing = "PREPARING"
	ItemStatusPrepared  = "PREPARED"
	ItemStatusServed    = "SERVED"
	ItemStatusCancelled = "CANCELLED"
)

// Bill statuses
const (
	BillStatusPending = "PENDING"
	BillStatusPaid    = "PAID"
	BillStatusVoided  = "VOIDED"
)

// Payment methods
const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodUPI    = "UPI"
	PaymentMethodOnline = "ONLINE"
	PaymentMethodOther  = "OTHER"
)

// Pricing rule types
const (
	RuleTypeLimitedTime = "LIMITED_TIME"
	RuleTypeRecurring   = "RECURRING_WEEKLY"
)

// BalanceTolerance absorbs rounding drift when comparing payment sums
// against a bill total.
var BalanceTolerance = decimal.NewFromFloat(0.01)
