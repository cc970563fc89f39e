package service

import (
	"context"
	"sort"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/models"
	"pos-service/internal/store"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store for service tests. The transactional
// methods mirror the invariants the real store enforces (session lock on
// bill generation, balance re-check on payment) so business rules can be
// exercised without Postgres.
type fakeStore struct {
	restaurants map[int64]*models.Restaurant
	tables      map[int64]*models.Table
	menu        map[int64]*models.MenuItem
	rules       map[int64][]models.PricingRule
	sessions    map[int64]*models.Session
	batches     map[int64]*models.Batch
	items       map[int64]*models.OrderItem
	bills       map[int64]*models.Bill
	billItems   map[int64][]models.BillItem
	payments    map[int64][]models.Payment
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		restaurants: make(map[int64]*models.Restaurant),
		tables:      make(map[int64]*models.Table),
		menu:        make(map[int64]*models.MenuItem),
		rules:       make(map[int64][]models.PricingRule),
		sessions:    make(map[int64]*models.Session),
		batches:     make(map[int64]*models.Batch),
		items:       make(map[int64]*models.OrderItem),
		bills:       make(map[int64]*models.Bill),
		billItems:   make(map[int64][]models.BillItem),
		payments:    make(map[int64][]models.Payment),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetRestaurantByID(_ context.Context, id int64) (*models.Restaurant, error) {
	return f.restaurants[id], nil
}

func (f *fakeStore) GetTableByID(_ context.Context, id int64) (*models.Table, error) {
	return f.tables[id], nil
}

func (f *fakeStore) UpdateTableStatus(_ context.Context, tableID int64, status string) error {
	if t, ok := f.tables[tableID]; ok {
		t.Status = status
	}
	return nil
}

func (f *fakeStore) GetMenuItemByID(_ context.Context, id int64) (*models.MenuItem, error) {
	return f.menu[id], nil
}

func (f *fakeStore) GetMenuItemsByIDs(_ context.Context, ids []int64) (map[int64]*models.MenuItem, error) {
	result := make(map[int64]*models.MenuItem)
	for _, id := range ids {
		if item, ok := f.menu[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (f *fakeStore) GetActivePricingRules(_ context.Context, _, menuItemID int64) ([]models.PricingRule, error) {
	var active []models.PricingRule
	for _, r := range f.rules[menuItemID] {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].RuleType == models.RuleTypeLimitedTime &&
			active[j].RuleType != models.RuleTypeLimitedTime
	})
	return active, nil
}

func (f *fakeStore) CreateSession(_ context.Context, session *models.Session) error {
	session.ID = f.id()
	session.OpenedAt = time.Now().UTC()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) GetSessionByID(_ context.Context, id int64) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) ListSessions(_ context.Context, restaurantID int64, filter store.SessionFilter) ([]models.Session, error) {
	var result []models.Session
	for _, s := range f.sortedSessions() {
		if s.RestaurantID != restaurantID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.TableID != 0 && (s.TableID == nil || *s.TableID != filter.TableID) {
			continue
		}
		if filter.Channel != "" && s.Channel != filter.Channel {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (f *fakeStore) ListBillingSessions(_ context.Context, restaurantID int64) ([]models.Session, error) {
	var result []models.Session
	for _, s := range f.sortedSessions() {
		if s.RestaurantID != restaurantID {
			continue
		}
		if s.Status != models.SessionStatusOpen && s.Status != models.SessionStatusBilled {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (f *fakeStore) sortedSessions() []*models.Session {
	ids := make([]int64, 0, len(f.sessions))
	for id := range f.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]*models.Session, len(ids))
	for i, id := range ids {
		result[i] = f.sessions[id]
	}
	return result
}

func (f *fakeStore) UpdateSessionStatus(_ context.Context, sessionID int64, status string, closedAt *time.Time) error {
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = status
		s.ClosedAt = closedAt
	}
	return nil
}

func (f *fakeStore) CountOpenSessionsForTable(_ context.Context, tableID int64) (int, error) {
	count := 0
	for _, s := range f.sessions {
		if s.TableID != nil && *s.TableID == tableID && s.Status == models.SessionStatusOpen {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountBatchesBySession(_ context.Context, sessionID int64) (int, error) {
	count := 0
	for _, b := range f.batches {
		if b.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateBatchWithItems(_ context.Context, batch *models.Batch, items []models.OrderItem) error {
	batch.ID = f.id()
	batch.CreatedAt = time.Now().UTC()
	copied := *batch
	f.batches[batch.ID] = &copied

	for i := range items {
		items[i].ID = f.id()
		items[i].BatchID = batch.ID
		items[i].CreatedAt = batch.CreatedAt
		itemCopy := items[i]
		f.items[items[i].ID] = &itemCopy
	}
	return nil
}

func (f *fakeStore) GetBatchByID(_ context.Context, id int64) (*models.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) ListBatchesBySession(_ context.Context, sessionID int64) ([]models.Batch, error) {
	var result []models.Batch
	for _, b := range f.sortedBatches() {
		if b.SessionID == sessionID {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (f *fakeStore) sortedBatches() []*models.Batch {
	ids := make([]int64, 0, len(f.batches))
	for id := range f.batches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]*models.Batch, len(ids))
	for i, id := range ids {
		result[i] = f.batches[id]
	}
	return result
}

func (f *fakeStore) UpdateBatchStatus(_ context.Context, batchID int64, status string) error {
	if b, ok := f.batches[batchID]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeStore) GetOrderItemByID(_ context.Context, id int64) (*models.OrderItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStore) ListItemsByBatch(_ context.Context, batchID int64) ([]models.OrderItem, error) {
	var result []models.OrderItem
	for _, item := range f.sortedItems() {
		if item.BatchID == batchID {
			result = append(result, *item)
		}
	}
	return result, nil
}

func (f *fakeStore) ListItemsByBatchIDs(ctx context.Context, batchIDs []int64) (map[int64][]models.OrderItem, error) {
	result := make(map[int64][]models.OrderItem)
	for _, id := range batchIDs {
		items, _ := f.ListItemsByBatch(ctx, id)
		result[id] = items
	}
	return result, nil
}

func (f *fakeStore) sortedItems() []*models.OrderItem {
	ids := make([]int64, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]*models.OrderItem, len(ids))
	for i, id := range ids {
		result[i] = f.items[id]
	}
	return result
}

func (f *fakeStore) UpdateOrderItemStatus(_ context.Context, itemID int64, status, cancelReason string) error {
	item, ok := f.items[itemID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	item.Status = status
	switch status {
	case models.ItemStatusPrepared:
		item.PreparedAt = &now
	case models.ItemStatusServed:
		item.ServedAt = &now
	case models.ItemStatusCancelled:
		item.CancelledAt = &now
		item.CancelReason = cancelReason
	}
	return nil
}

func (f *fakeStore) ListActiveItemsBySession(ctx context.Context, sessionID int64) ([]models.OrderItem, error) {
	var result []models.OrderItem
	for _, item := range f.sortedItems() {
		batch := f.batches[item.BatchID]
		if batch == nil || batch.SessionID != sessionID {
			continue
		}
		if item.Status == models.ItemStatusCancelled {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (f *fakeStore) ListKitchenBatches(_ context.Context, restaurantID int64) ([]models.Batch, error) {
	var result []models.Batch
	for _, b := range f.sortedBatches() {
		session := f.sessions[b.SessionID]
		if session == nil || session.RestaurantID != restaurantID {
			continue
		}
		switch b.Status {
		case models.BatchStatusPending, models.BatchStatusInProgress, models.BatchStatusReady:
			result = append(result, *b)
		}
	}
	return result, nil
}

func (f *fakeStore) GenerateBillTx(_ context.Context, bill *models.Bill, items []models.BillItem) error {
	session, ok := f.sessions[bill.SessionID]
	if !ok {
		return apperrors.NotFound("session %d not found", bill.SessionID)
	}
	if session.Status != models.SessionStatusOpen {
		return apperrors.InvalidState("session %d is %s, only OPEN sessions can be billed", bill.SessionID, session.Status)
	}
	for _, existing := range f.bills {
		if existing.SessionID == bill.SessionID {
			return apperrors.Conflict("a bill already exists for session %d", bill.SessionID)
		}
	}

	bill.ID = f.id()
	bill.CreatedAt = time.Now().UTC()
	copied := *bill
	f.bills[bill.ID] = &copied

	for i := range items {
		items[i].ID = f.id()
		items[i].BillID = bill.ID
	}
	f.billItems[bill.ID] = append([]models.BillItem(nil), items...)

	session.Status = models.SessionStatusBilled
	session.Subtotal = bill.Subtotal
	session.TaxAmount = bill.TaxAmount
	session.DiscountAmount = bill.DiscountAmount
	session.TotalAmount = bill.TotalAmount
	return nil
}

func (f *fakeStore) GetBillByID(_ context.Context, id int64) (*models.Bill, error) {
	bill, ok := f.bills[id]
	if !ok {
		return nil, nil
	}
	copied := *bill
	return &copied, nil
}

func (f *fakeStore) GetBillBySessionID(_ context.Context, sessionID int64) (*models.Bill, error) {
	for _, bill := range f.bills {
		if bill.SessionID == sessionID {
			copied := *bill
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListBillItems(_ context.Context, billID int64) ([]models.BillItem, error) {
	return f.billItems[billID], nil
}

func (f *fakeStore) AddPaymentTx(_ context.Context, payment *models.Payment) (*store.PaymentResult, error) {
	bill, ok := f.bills[payment.BillID]
	if !ok {
		return nil, apperrors.NotFound("bill %d not found", payment.BillID)
	}
	if bill.Status == models.BillStatusVoided {
		return nil, apperrors.InvalidState("bill %s is voided", bill.BillNumber)
	}
	if bill.Status == models.BillStatusPaid {
		return nil, apperrors.InvalidState("bill %s is already fully paid", bill.BillNumber)
	}

	paid := decimal.Zero
	for _, p := range f.payments[bill.ID] {
		paid = paid.Add(p.Amount)
	}
	remaining := bill.TotalAmount.Sub(paid)
	if payment.Amount.GreaterThan(remaining.Add(models.BalanceTolerance)) {
		return nil, apperrors.Validation(
			"payment of %s exceeds remaining balance of %s on bill %s",
			payment.Amount.StringFixed(2), remaining.StringFixed(2), bill.BillNumber)
	}

	payment.ID = f.id()
	payment.CreatedAt = time.Now().UTC()
	f.payments[bill.ID] = append(f.payments[bill.ID], *payment)

	result := &store.PaymentResult{
		Remaining:   remaining.Sub(payment.Amount),
		IsFullyPaid: payment.Amount.GreaterThanOrEqual(remaining.Sub(models.BalanceTolerance)),
		SessionID:   bill.SessionID,
	}

	if result.IsFullyPaid {
		now := time.Now().UTC()
		bill.Status = models.BillStatusPaid
		bill.PaidAt = &now
		if session, ok := f.sessions[bill.SessionID]; ok {
			session.Status = models.SessionStatusPaid
			session.ClosedAt = &now
			result.TableID = session.TableID
		}
	}
	return result, nil
}

func (f *fakeStore) ListPaymentsByBill(_ context.Context, billID int64) ([]models.Payment, error) {
	return f.payments[billID], nil
}

func (f *fakeStore) SumPaymentsByBill(_ context.Context, billID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range f.payments[billID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

// seedRestaurant loads the shared fixture: restaurant 1 with a 10% tax
// rate, table 10 ("T1"), and menu items 100 (Item A, 10.00), 101 (Item B,
// 5.00), 102 (Item C, out of stock).
func seedRestaurant(st *fakeStore) {
	st.restaurants[1] = &models.Restaurant{
		ID: 1, Name: "Trattoria Uno",
		TaxRate:  decimal.NewFromInt(10),
		IsActive: true,
	}
	st.tables[10] = &models.Table{
		ID: 10, RestaurantID: 1, Name: "T1", Seats: 4,
		Status: models.TableStatusAvailable, IsActive: true,
	}
	st.menu[100] = &models.MenuItem{
		ID: 100, RestaurantID: 1, Name: "Item A",
		BasePrice: decimal.RequireFromString("10.00"),
		IsActive:  true, IsAvailable: true,
	}
	st.menu[101] = &models.MenuItem{
		ID: 101, RestaurantID: 1, Name: "Item B",
		BasePrice: decimal.RequireFromString("5.00"),
		IsActive:  true, IsAvailable: true,
	}
	st.menu[102] = &models.MenuItem{
		ID: 102, RestaurantID: 1, Name: "Item C",
		BasePrice: decimal.RequireFromString("3.00"),
		IsActive:  true, IsAvailable: true, IsOutOfStock: true,
	}
}

// captureSink records published events for assertions.
type captureSink struct {
	events []models.Event
}

func (c *captureSink) Publish(_ context.Context, events ...models.Event) {
	c.events = append(c.events, events...)
}

func (c *captureSink) names() []string {
	names := make([]string, len(c.events))
	for i, e := range c.events {
		names[i] = e.Name
	}
	return names
}

func (c *captureSink) reset() {
	c.events = nil
}
