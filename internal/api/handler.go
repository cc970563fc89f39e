package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/auth"
	"pos-service/internal/service"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains the HTTP handlers for the order core.
type Handler struct {
	sessions *service.SessionService
	batches  *service.BatchService
	bills    *service.BillService
	payments *service.PaymentService
	views    *service.ViewService
}

// NewHandler creates the HTTP handler.
func NewHandler(
	sessions *service.SessionService,
	batches *service.BatchService,
	bills *service.BillService,
	payments *service.PaymentService,
	views *service.ViewService,
) *Handler {
	return &Handler{
		sessions: sessions,
		batches:  batches,
		bills:    bills,
		payments: payments,
		views:    views,
	}
}

// SetupRoutes registers all routes and middleware.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(actorMiddleware())
	{
		v1.POST("/sessions", h.openSession)
		v1.GET("/sessions", h.listSessions)
		v1.GET("/sessions/:id", h.getSession)
		v1.PATCH("/sessions/:id/status", h.updateSessionStatus)

		v1.POST("/sessions/:id/batches", h.addBatch)
		v1.GET("/sessions/:id/batches", h.listBatches)
		v1.PATCH("/batches/:id/status", h.overrideBatchStatus)
		v1.PATCH("/items/:id/status", h.updateItemStatus)

		v1.GET("/views/kitchen", h.kitchenView)
		v1.GET("/views/billing", h.billingView)

		v1.POST("/sessions/:id/bill", h.generateBill)
		v1.GET("/sessions/:id/bill", h.getBill)

		v1.POST("/bills/:id/payments", h.addPayment)
		v1.GET("/bills/:id/payments", h.listPayments)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// actorMiddleware builds the acting principal from the headers set by the
// authenticating gateway. Authentication itself is out of scope; the core
// only requires that the identity arrives explicitly.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := strconv.ParseInt(c.GetHeader("X-Actor-ID"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid X-Actor-ID header",
			})
			return
		}

		role := auth.Role(c.GetHeader("X-Actor-Role"))
		if !auth.IsValidRole(role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid X-Actor-Role header",
			})
			return
		}

		restaurantID, err := strconv.ParseInt(c.GetHeader("X-Restaurant-ID"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid X-Restaurant-ID header",
			})
			return
		}

		c.Set("actor", auth.Actor{
			ID:           actorID,
			Role:         role,
			RestaurantID: restaurantID,
		})
		c.Next()
	}
}

func getActor(c *gin.Context) auth.Actor {
	return c.MustGet("actor").(auth.Actor)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps the application error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindForbidden:
		status = http.StatusForbidden
	case apperrors.KindInvalidState, apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		util.GetLogger().Sugar().Errorw("Request failed", "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) openSession(c *gin.Context) {
	var req service.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	actor := getActor(c)
	detail, err := h.sessions.Open(c.Request.Context(), actor, actor.RestaurantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) listSessions(c *gin.Context) {
	actor := getActor(c)

	filter := store.SessionFilter{
		Status:  c.Query("status"),
		Channel: c.Query("channel"),
	}
	if tableID := c.Query("table_id"); tableID != "" {
		id, err := strconv.ParseInt(tableID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid table_id"})
			return
		}
		filter.TableID = id
	}

	sessions, err := h.sessions.List(c.Request.Context(), actor, actor.RestaurantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := getActor(c)

	detail, err := h.sessions.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	batches, err := h.batches.ListBatches(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"session":     detail.Session,
		"table":       detail.Table,
		"batch_count": detail.BatchCount,
		"batches":     batches,
	}
	if bill, err := h.bills.Get(c.Request.Context(), actor, id); err == nil {
		resp["bill"] = bill
	}
	c.JSON(http.StatusOK, resp)
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) updateSessionStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.sessions.UpdateStatus(c.Request.Context(), getActor(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *Handler) addBatch(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	detail, err := h.batches.AddBatch(c.Request.Context(), getActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) listBatches(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	batches, err := h.batches.ListBatches(c.Request.Context(), getActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) overrideBatchStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	batch, err := h.batches.OverrideBatchStatus(c.Request.Context(), getActor(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

func (h *Handler) updateItemStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.batches.UpdateItemStatus(c.Request.Context(), getActor(c), id, req.Status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) kitchenView(c *gin.Context) {
	actor := getActor(c)
	view, err := h.views.KitchenView(c.Request.Context(), actor, actor.RestaurantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": view})
}

func (h *Handler) billingView(c *gin.Context) {
	actor := getActor(c)
	view, err := h.views.BillingView(c.Request.Context(), actor, actor.RestaurantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": view})
}

func (h *Handler) generateBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	// The body is optional; generating with no discount and no notes is the
	// common case.
	var req service.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	detail, err := h.bills.Generate(c.Request.Context(), getActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) getBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.bills.Get(c.Request.Context(), getActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) addPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.payments.AddPayment(c.Request.Context(), getActor(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listPayments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	payments, paid, err := h.payments.ListPayments(c.Request.Context(), getActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"paid_sum": paid,
	})
}

// prometheusMiddleware collects HTTP metrics.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
