package service

import (
	"context"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchService appends kitchen rounds to open sessions and owns the
// item-level prep lifecycle plus the derived batch status.
type BatchService struct {
	store   Store
	pricing *PricingResolver
	cache   MenuCache
	events  EventSink
	logger  *zap.Logger
}

// NewBatchService creates a batch service.
func NewBatchService(st Store, pricing *PricingResolver, cache MenuCache, events EventSink) *BatchService {
	return &BatchService{
		store:   st,
		pricing: pricing,
		cache:   cache,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// AddBatchRequest is one kitchen round.
type AddBatchRequest struct {
	Items       []BatchItemRequest `json:"items" binding:"required,min=1"`
	KitchenNote string             `json:"kitchen_note,omitempty"`
}

// BatchItemRequest is one requested line.
type BatchItemRequest struct {
	MenuItemID int64  `json:"menu_item_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	Notes      string `json:"notes,omitempty"`
}

// BatchDetail is a batch with its items.
type BatchDetail struct {
	Batch *models.Batch      `json:"batch"`
	Items []models.OrderItem `json:"items"`
}

// AddBatch validates every requested item and persists the round
// atomically. Any bad item rejects the whole batch; unit prices are
// resolved at call time and frozen on the stored lines.
func (s *BatchService) AddBatch(ctx context.Context, actor auth.Actor, sessionID int64, req *AddBatchRequest) (*BatchDetail, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.AddBatch")
	defer span.End()

	if !actor.Can(auth.CapTakeOrder) {
		return nil, apperrors.Forbidden("role %s cannot place orders", actor.Role)
	}
	if len(req.Items) == 0 {
		util.BatchesRejectedTotal.WithLabelValues("empty").Inc()
		return nil, apperrors.Validation("batch must contain at least one item")
	}

	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", sessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}
	if session.Status != models.SessionStatusOpen {
		util.BatchesRejectedTotal.WithLabelValues("session_not_open").Inc()
		return nil, apperrors.InvalidState("session %s is %s, orders need an OPEN session", session.SessionNumber, session.Status)
	}

	items, err := s.buildOrderItems(ctx, session, req.Items)
	if err != nil {
		return nil, err
	}

	batch := &models.Batch{
		SessionID:   sessionID,
		Status:      models.BatchStatusPending,
		KitchenNote: req.KitchenNote,
		CreatedBy:   actor.ID,
	}

	if err := s.createWithUniqueNumber(ctx, batch, items); err != nil {
		return nil, err
	}

	util.BatchesCreatedTotal.Inc()
	s.logger.Info("Batch created",
		zap.Int64("batch_id", batch.ID),
		zap.String("batch_number", batch.BatchNumber),
		zap.Int64("session_id", sessionID),
		zap.Int("items", len(items)))

	rooms := []string{
		models.KitchenRoom(session.RestaurantID),
		models.RestaurantRoom(session.RestaurantID),
	}
	if session.TableID != nil {
		rooms = append(rooms, models.TableRoom(*session.TableID))
	}
	s.events.Publish(ctx, models.NewEvent(models.EventBatchCreated, models.BatchCreatedPayload{
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		SessionID:   sessionID,
		KitchenNote: batch.KitchenNote,
		Items:       items,
		ActorID:     actor.ID,
	}, rooms...))

	return &BatchDetail{Batch: batch, Items: items}, nil
}

// buildOrderItems validates the requested lines against the menu and
// freezes each line's price. The whole list fails on the first violation.
func (s *BatchService) buildOrderItems(ctx context.Context, session *models.Session, reqs []BatchItemRequest) ([]models.OrderItem, error) {
	ids := make([]int64, len(reqs))
	for i, r := range reqs {
		ids[i] = r.MenuItemID
	}

	menu, err := s.store.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.OrderItem, 0, len(reqs))
	for _, r := range reqs {
		if r.Quantity < 1 {
			util.BatchesRejectedTotal.WithLabelValues("bad_quantity").Inc()
			return nil, apperrors.Validation("menu item %d needs a quantity of at least 1", r.MenuItemID)
		}

		item, ok := menu[r.MenuItemID]
		if !ok || item.RestaurantID != session.RestaurantID {
			util.BatchesRejectedTotal.WithLabelValues("unknown_item").Inc()
			return nil, apperrors.NotFound("menu item %d not found", r.MenuItemID)
		}
		if !item.IsActive || !item.IsAvailable {
			util.BatchesRejectedTotal.WithLabelValues("unavailable").Inc()
			return nil, apperrors.Validation("menu item %q is not available", item.Name)
		}
		if item.IsOutOfStock {
			util.BatchesRejectedTotal.WithLabelValues("out_of_stock").Inc()
			return nil, apperrors.Validation("menu item %q is out of stock", item.Name)
		}
		if s.cache != nil {
			s.cache.SetMenuItem(ctx, item)
		}

		price, err := s.pricing.EffectivePriceFor(ctx, item, now)
		if err != nil {
			return nil, err
		}

		items = append(items, models.OrderItem{
			MenuItemID:   item.ID,
			MenuItemName: item.Name,
			Quantity:     r.Quantity,
			Notes:        r.Notes,
			Status:       models.ItemStatusPending,
			UnitPrice:    price,
			LineTotal:    price.Mul(decimal.NewFromInt(int64(r.Quantity))),
		})
	}
	return items, nil
}

func (s *BatchService) createWithUniqueNumber(ctx context.Context, batch *models.Batch, items []models.OrderItem) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.NewShortCode()
		if err != nil {
			return apperrors.Internal(err, "failed to generate batch number")
		}
		batch.BatchNumber = code

		err = s.store.CreateBatchWithItems(ctx, batch, items)
		if err == nil {
			return nil
		}
		if !store.IsUniqueViolation(err, store.ConstraintBatchNumber) {
			return err
		}
		util.ShortCodeRetriesTotal.WithLabelValues("batch").Inc()
	}
	return apperrors.Internal(nil, "exhausted batch number generation attempts")
}

// UpdateItemStatus moves one order item along its prep lifecycle and
// resynchronizes the owning batch's derived status.
func (s *BatchService) UpdateItemStatus(ctx context.Context, actor auth.Actor, itemID int64, newStatus, cancelReason string) (*models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.UpdateItemStatus")
	defer span.End()

	if !models.IsValidItemStatus(newStatus) {
		return nil, apperrors.Validation("unknown item status %q", newStatus)
	}

	item, err := s.store.GetOrderItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.NotFound("order item %d not found", itemID)
	}

	batch, err := s.store.GetBatchByID(ctx, item.BatchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, apperrors.NotFound("batch %d not found", item.BatchID)
	}
	session, err := s.store.GetSessionByID(ctx, batch.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", batch.SessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}

	if err := checkItemTransition(actor, item, newStatus, cancelReason); err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrderItemStatus(ctx, itemID, newStatus, cancelReason); err != nil {
		return nil, err
	}
	util.ItemTransitionsTotal.WithLabelValues(newStatus).Inc()

	item.Status = newStatus
	if newStatus == models.ItemStatusCancelled {
		item.CancelReason = cancelReason
	}

	rooms := []string{
		models.KitchenRoom(session.RestaurantID),
		models.RestaurantRoom(session.RestaurantID),
	}
	if session.TableID != nil {
		rooms = append(rooms, models.TableRoom(*session.TableID))
	}
	events := []models.Event{
		models.NewEvent(models.EventItemStatusChanged, models.ItemStatusPayload{
			ItemID:       itemID,
			BatchID:      batch.ID,
			SessionID:    session.ID,
			Status:       newStatus,
			CancelReason: item.CancelReason,
			ActorID:      actor.ID,
		}, rooms...),
	}

	if evt, err := s.syncBatchStatus(ctx, batch, session, actor.ID); err != nil {
		s.logger.Error("Batch status sync failed",
			zap.Int64("batch_id", batch.ID), zap.Error(err))
	} else if evt != nil {
		events = append(events, *evt)
	}

	s.events.Publish(ctx, events...)
	return item, nil
}

// checkItemTransition enforces the allowed-edge table plus the role gating
// and cancellation-reason rule for one item move.
func checkItemTransition(actor auth.Actor, item *models.OrderItem, newStatus, cancelReason string) error {
	if !models.CanTransitionItem(item.Status, newStatus) {
		return apperrors.InvalidState("item %d cannot move from %s to %s", item.ID, item.Status, newStatus)
	}

	switch newStatus {
	case models.ItemStatusPreparing, models.ItemStatusPrepared:
		if !actor.Can(auth.CapKitchenUpdate) {
			return apperrors.Forbidden("role %s cannot update kitchen preparation status", actor.Role)
		}
	case models.ItemStatusServed:
		if !actor.Can(auth.CapServe) {
			return apperrors.Forbidden("role %s cannot mark items served", actor.Role)
		}
	case models.ItemStatusCancelled:
		if !actor.Can(auth.CapCancelItem) {
			return apperrors.Forbidden("role %s cannot cancel items", actor.Role)
		}
		if cancelReason == "" {
			return apperrors.Validation("cancelling an item requires a reason")
		}
	}
	return nil
}

// syncBatchStatus recomputes the batch status from its non-cancelled items
// and persists it only when it changed. Always a full recompute; derived
// state is never patched incrementally.
func (s *BatchService) syncBatchStatus(ctx context.Context, batch *models.Batch, session *models.Session, actorID int64) (*models.Event, error) {
	items, err := s.store.ListItemsByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	statuses := make([]string, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}

	derived := models.DeriveBatchStatus(statuses, batch.Status)
	if derived == batch.Status {
		return nil, nil
	}

	if err := s.store.UpdateBatchStatus(ctx, batch.ID, derived); err != nil {
		return nil, err
	}
	batch.Status = derived

	evt := models.NewEvent(models.EventBatchStatusChanged, models.BatchStatusPayload{
		BatchID:   batch.ID,
		SessionID: session.ID,
		Status:    derived,
		AutoSync:  true,
		ActorID:   actorID,
	}, models.KitchenRoom(session.RestaurantID), models.RestaurantRoom(session.RestaurantID))
	return &evt, nil
}

// OverrideBatchStatus sets a batch status directly, bypassing the derived
// computation. Kept as an administrative escape hatch and logged as such.
func (s *BatchService) OverrideBatchStatus(ctx context.Context, actor auth.Actor, batchID int64, newStatus string) (*models.Batch, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.OverrideBatchStatus")
	defer span.End()

	if !actor.Can(auth.CapTakeOrder) {
		return nil, apperrors.Forbidden("role %s cannot override batch status", actor.Role)
	}
	if !models.IsValidBatchStatus(newStatus) {
		return nil, apperrors.Validation("unknown batch status %q", newStatus)
	}

	batch, err := s.store.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, apperrors.NotFound("batch %d not found", batchID)
	}
	session, err := s.store.GetSessionByID(ctx, batch.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", batch.SessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}

	if err := s.store.UpdateBatchStatus(ctx, batchID, newStatus); err != nil {
		return nil, err
	}

	s.logger.Warn("Batch status overridden",
		zap.Int64("batch_id", batchID),
		zap.String("from", batch.Status),
		zap.String("to", newStatus),
		zap.Int64("actor_id", actor.ID))

	batch.Status = newStatus
	s.events.Publish(ctx, models.NewEvent(models.EventBatchStatusChanged, models.BatchStatusPayload{
		BatchID:   batchID,
		SessionID: session.ID,
		Status:    newStatus,
		AutoSync:  false,
		ActorID:   actor.ID,
	}, models.KitchenRoom(session.RestaurantID), models.RestaurantRoom(session.RestaurantID)))

	return batch, nil
}

// ListBatches returns a session's batches with their items.
func (s *BatchService) ListBatches(ctx context.Context, actor auth.Actor, sessionID int64) ([]BatchDetail, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", sessionID)
	}
	if !actor.MemberOf(session.RestaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, session.RestaurantID)
	}

	batches, err := s.store.ListBatchesBySession(ctx, sessionID)
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

	details := make([]BatchDetail, len(batches))
	for i := range batches {
		details[i] = BatchDetail{
			Batch: &batches[i],
			Items: itemsByBatch[batches[i].ID],
		}
	}
	return details, nil
}
