package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names carried on the fan-out channel
const (
	EventSessionOpened        = "session:opened"
	EventSessionStatusChanged = "session:status:changed"
	EventBatchCreated         = "batch:created"
	EventBatchStatusChanged   = "batch:status:changed"
	EventItemStatusChanged    = "item:status:changed"
	EventBillGenerated        = "bill:generated"
	EventBillPaid             = "bill:paid"
	EventPaymentRecorded      = "payment:recorded"
	EventTableStatusChanged   = "table:status:changed"
)

// Room builders. Subscribers join rooms; every event is addressed to one
// or more of them.
func RestaurantRoom(id int64) string { return fmt.Sprintf("restaurant:%d", id) }
func KitchenRoom(id int64) string    { return fmt.Sprintf("kitchen:%d", id) }
func BillingRoom(id int64) string    { return fmt.Sprintf("billing:%d", id) }
func TableRoom(id int64) string      { return fmt.Sprintf("table:%d", id) }

// Event is one outbound notification produced by a state-mutating
// operation. Delivery is best-effort and never affects the mutation.
type Event struct {
	ID        string      `json:"event_id"`
	Name      string      `json:"event"`
	Rooms     []string    `json:"rooms"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent builds an event addressed to the given rooms.
func NewEvent(name string, payload interface{}, rooms ...string) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      name,
		Rooms:     rooms,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionStatusPayload is the payload for session:opened and
// session:status:changed.
type SessionStatusPayload struct {
	SessionID     int64  `json:"session_id"`
	SessionNumber string `json:"session_number"`
	RestaurantID  int64  `json:"restaurant_id"`
	TableID       *int64 `json:"table_id,omitempty"`
	Status        string `json:"status"`
	ActorID       int64  `json:"actor_id"`
}

// BatchCreatedPayload is the payload for batch:created. Items carry frozen
// prices so kitchen clients need no follow-up fetch.
type BatchCreatedPayload struct {
	BatchID     int64       `json:"batch_id"`
	BatchNumber string      `json:"batch_number"`
	SessionID   int64       `json:"session_id"`
	KitchenNote string      `json:"kitchen_note,omitempty"`
	Items       []OrderItem `json:"items"`
	ActorID     int64       `json:"actor_id"`
}

// BatchStatusPayload is the payload for batch:status:changed. AutoSync is
// true when the status was derived from item states and false for manual
// overrides.
type BatchStatusPayload struct {
	BatchID   int64  `json:"batch_id"`
	SessionID int64  `json:"session_id"`
	Status    string `json:"status"`
	AutoSync  bool   `json:"autoSync"`
	ActorID   int64  `json:"actor_id"`
}

// ItemStatusPayload is the payload for item:status:changed.
type ItemStatusPayload struct {
	ItemID       int64  `json:"item_id"`
	BatchID      int64  `json:"batch_id"`
	SessionID    int64  `json:"session_id"`
	Status       string `json:"status"`
	CancelReason string `json:"cancel_reason,omitempty"`
	ActorID      int64  `json:"actor_id"`
}

// BillPayload is the payload for bill:generated and bill:paid.
type BillPayload struct {
	BillID      int64  `json:"bill_id"`
	BillNumber  string `json:"bill_number"`
	SessionID   int64  `json:"session_id"`
	Subtotal    string `json:"subtotal"`
	TaxAmount   string `json:"tax_amount"`
	Discount    string `json:"discount_amount"`
	TotalAmount string `json:"total_amount"`
	Status      string `json:"status"`
	ActorID     int64  `json:"actor_id"`
}

// PaymentPayload is the payload for payment:recorded.
type PaymentPayload struct {
	PaymentID   int64  `json:"payment_id"`
	BillID      int64  `json:"bill_id"`
	SessionID   int64  `json:"session_id"`
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	Remaining   string `json:"remaining"`
	IsFullyPaid bool   `json:"is_fully_paid"`
	ActorID     int64  `json:"actor_id"`
}

// TableStatusPayload is the payload for table:status:changed.
type TableStatusPayload struct {
	TableID      int64  `json:"table_id"`
	RestaurantID int64  `json:"restaurant_id"`
	Status       string `json:"status"`
}
