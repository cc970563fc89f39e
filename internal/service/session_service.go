package service

import (
	"context"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// SessionService owns the session lifecycle and the table-occupancy side
// effect.
type SessionService struct {
	store  Store
	events EventSink
	logger *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(st Store, events EventSink) *SessionService {
	return &SessionService{
		store:  st,
		events: events,
		logger: util.GetLogger(),
	}
}

// OpenSessionRequest opens a new ordering session. TableID is omitted for
// delivery and online channels.
type OpenSessionRequest struct {
	TableID       *int64 `json:"table_id,omitempty"`
	Channel       string `json:"channel" binding:"required"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	GuestCount    int    `json:"guest_count,omitempty"`
	ExternalRef   string `json:"external_ref,omitempty"`
}

// SessionDetail is a session with its summary projections.
type SessionDetail struct {
	Session    *models.Session `json:"session"`
	Table      *models.Table   `json:"table,omitempty"`
	BatchCount int             `json:"batch_count"`
}

// Open creates a session in status OPEN and, when a table is attached,
// marks it occupied. Multiple OPEN sessions on one table are legal; that is
// how split bills work.
func (s *SessionService) Open(ctx context.Context, actor auth.Actor, restaurantID int64, req *OpenSessionRequest) (*SessionDetail, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.Open")
	defer span.End()

	if !actor.Can(auth.CapOpenSession) {
		return nil, apperrors.Forbidden("role %s cannot open sessions", actor.Role)
	}
	if !actor.MemberOf(restaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, restaurantID)
	}
	if !models.IsValidChannel(req.Channel) {
		return nil, apperrors.Validation("unknown channel %q", req.Channel)
	}

	restaurant, err := s.store.GetRestaurantByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, apperrors.NotFound("restaurant %d not found", restaurantID)
	}

	var table *models.Table
	if req.TableID != nil {
		table, err = s.store.GetTableByID(ctx, *req.TableID)
		if err != nil {
			return nil, err
		}
		if table == nil || table.RestaurantID != restaurantID {
			return nil, apperrors.NotFound("table %d not found in restaurant %d", *req.TableID, restaurantID)
		}
		if !table.IsActive {
			return nil, apperrors.Validation("table %s is not active", table.Name)
		}
	}

	session := &models.Session{
		RestaurantID:  restaurantID,
		TableID:       req.TableID,
		Channel:       req.Channel,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		GuestCount:    req.GuestCount,
		ExternalRef:   req.ExternalRef,
		Status:        models.SessionStatusOpen,
		OpenedBy:      actor.ID,
	}

	if err := s.createWithUniqueNumber(ctx, session); err != nil {
		return nil, err
	}

	util.SessionsOpenedTotal.Inc()
	s.logger.Info("Session opened",
		zap.Int64("session_id", session.ID),
		zap.String("session_number", session.SessionNumber),
		zap.Int64("restaurant_id", restaurantID))

	events := []models.Event{
		models.NewEvent(models.EventSessionOpened, models.SessionStatusPayload{
			SessionID:     session.ID,
			SessionNumber: session.SessionNumber,
			RestaurantID:  restaurantID,
			TableID:       session.TableID,
			Status:        session.Status,
			ActorID:       actor.ID,
		}, models.RestaurantRoom(restaurantID)),
	}

	if table != nil {
		if err := s.store.UpdateTableStatus(ctx, table.ID, models.TableStatusOccupied); err != nil {
			s.logger.Error("Failed to mark table occupied",
				zap.Int64("table_id", table.ID), zap.Error(err))
		} else {
			table.Status = models.TableStatusOccupied
			events = append(events, models.NewEvent(models.EventTableStatusChanged, models.TableStatusPayload{
				TableID:      table.ID,
				RestaurantID: restaurantID,
				Status:       models.TableStatusOccupied,
			}, models.RestaurantRoom(restaurantID), models.TableRoom(table.ID)))
		}
	}

	s.events.Publish(ctx, events...)

	return &SessionDetail{Session: session, Table: table}, nil
}

// createWithUniqueNumber inserts the session, regenerating the 6-character
// session number when the restaurant-scoped unique constraint rejects it.
func (s *SessionService) createWithUniqueNumber(ctx context.Context, session *models.Session) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := util.NewShortCode()
		if err != nil {
			return apperrors.Internal(err, "failed to generate session number")
		}
		session.SessionNumber = code

		err = s.store.CreateSession(ctx, session)
		if err == nil {
			return nil
		}
		if !store.IsUniqueViolation(err, store.ConstraintSessionNumber) {
			return err
		}
		util.ShortCodeRetriesTotal.WithLabelValues("session").Inc()
	}
	return apperrors.Internal(nil, "exhausted session number generation attempts")
}

// UpdateStatus is the manager-tier administrative override on a session's
// status. Terminal statuses are final; everything else is allowed without
// further legality checks and logged as an override.
func (s *SessionService) UpdateStatus(ctx context.Context, actor auth.Actor, sessionID int64, newStatus string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionService.UpdateStatus")
	defer span.End()

	if !actor.Can(auth.CapOverrideStatus) {
		return nil, apperrors.Forbidden("role %s cannot override session status", actor.Role)
	}
	if !models.IsValidSessionStatus(newStatus) {
		return nil, apperrors.Validation("unknown session status %q", newStatus)
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
	if models.IsTerminalSessionStatus(session.Status) {
		return nil, apperrors.InvalidState("session %s is %s and cannot change", session.SessionNumber, session.Status)
	}

	var closedAt *time.Time
	if models.IsTerminalSessionStatus(newStatus) {
		now := time.Now().UTC()
		closedAt = &now
	}

	if err := s.store.UpdateSessionStatus(ctx, sessionID, newStatus, closedAt); err != nil {
		return nil, err
	}

	s.logger.Warn("Session status overridden",
		zap.Int64("session_id", sessionID),
		zap.String("from", session.Status),
		zap.String("to", newStatus),
		zap.Int64("actor_id", actor.ID))
	if models.IsTerminalSessionStatus(newStatus) {
		util.SessionsClosedTotal.WithLabelValues(newStatus).Inc()
	}

	session.Status = newStatus
	session.ClosedAt = closedAt

	events := []models.Event{
		models.NewEvent(models.EventSessionStatusChanged, models.SessionStatusPayload{
			SessionID:     session.ID,
			SessionNumber: session.SessionNumber,
			RestaurantID:  session.RestaurantID,
			TableID:       session.TableID,
			Status:        newStatus,
			ActorID:       actor.ID,
		}, models.RestaurantRoom(session.RestaurantID)),
	}

	if models.IsTerminalSessionStatus(newStatus) && session.TableID != nil {
		if evt, err := s.releaseTableIfIdle(ctx, session.RestaurantID, *session.TableID); err != nil {
			s.logger.Error("Table release check failed",
				zap.Int64("table_id", *session.TableID), zap.Error(err))
		} else if evt != nil {
			events = append(events, *evt)
		}
	}

	s.events.Publish(ctx, events...)
	return session, nil
}

// releaseTableIfIdle frees a table when no OPEN session references it
// anymore. Occupancy is recomputed from the authoritative session set, so a
// missed release event cannot cause drift.
func (s *SessionService) releaseTableIfIdle(ctx context.Context, restaurantID, tableID int64) (*models.Event, error) {
	open, err := s.store.CountOpenSessionsForTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, nil
	}
	if err := s.store.UpdateTableStatus(ctx, tableID, models.TableStatusAvailable); err != nil {
		return nil, err
	}
	evt := models.NewEvent(models.EventTableStatusChanged, models.TableStatusPayload{
		TableID:      tableID,
		RestaurantID: restaurantID,
		Status:       models.TableStatusAvailable,
	}, models.RestaurantRoom(restaurantID), models.TableRoom(tableID))
	return &evt, nil
}

// Get returns a session with its table and batch count.
func (s *SessionService) Get(ctx context.Context, actor auth.Actor, sessionID int64) (*SessionDetail, error) {
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

	detail := &SessionDetail{Session: session}

	if session.TableID != nil {
		detail.Table, err = s.store.GetTableByID(ctx, *session.TableID)
		if err != nil {
			return nil, err
		}
	}

	detail.BatchCount, err = s.store.CountBatchesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns a restaurant's sessions, optionally filtered by status,
// table, or channel.
func (s *SessionService) List(ctx context.Context, actor auth.Actor, restaurantID int64, filter store.SessionFilter) ([]models.Session, error) {
	if !actor.MemberOf(restaurantID) {
		return nil, apperrors.Forbidden("actor %d is not assigned to restaurant %d", actor.ID, restaurantID)
	}
	if filter.Status != "" && !models.IsValidSessionStatus(filter.Status) {
		return nil, apperrors.Validation("unknown session status %q", filter.Status)
	}
	return s.store.ListSessions(ctx, restaurantID, filter)
}
