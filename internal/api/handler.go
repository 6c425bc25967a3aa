package api

import (
	"net/http"
	"strconv"
	"time"

	"tyre-assistant/internal/models"
	"tyre-assistant/internal/service"
	"tyre-assistant/internal/store"
	"tyre-assistant/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	assistant *service.Assistant
	store     *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(assistant *service.Assistant, store *store.Store) *Handler {
	return &Handler{
		assistant: assistant,
		store:     store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", h.query)
		v1.GET("/salesrep-notifications/:id", h.pendingRequests)
		v1.GET("/salesrep-progress/:id", h.salesProgress)
		v1.POST("/salesrep-notifications/:request_id/accept", h.acceptRequest)
		v1.POST("/salesrep-notifications/:request_id/dismiss", h.dismissRequest)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// QueryRequest is one assistant turn.
type QueryRequest struct {
	Username  string `json:"username" binding:"required"`
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// query handles one conversational turn. A missing session id starts a
// fresh session; clients carry the returned id across turns so pending
// confirmations stay scoped to them.
func (h *Handler) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.store.GetSessionByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unknown user",
			"details": err.Error(),
		})
		return
	}

	session.SessionID = req.SessionID
	if session.SessionID == "" {
		session.SessionID = uuid.New().String()
	}

	answer, err := h.assistant.Answer(c.Request.Context(), session, req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to answer query",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":     answer,
		"session_id": session.SessionID,
		"role":       session.Role,
	})
}

// pendingRequests lists a rep's open dealer order requests.
func (h *Handler) pendingRequests(c *gin.Context) {
	salesRepID := c.Param("id")

	requests, err := h.store.PendingRequestsForRep(c.Request.Context(), salesRepID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load pending requests",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// salesProgress reports a rep's monthly quota position.
func (h *Handler) salesProgress(c *gin.Context) {
	progress, err := h.store.SalesProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Sales rep not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// acceptRequest moves a pending request to accepted.
func (h *Handler) acceptRequest(c *gin.Context) {
	h.transitionRequest(c, models.RequestStatusAccepted)
}

// dismissRequest moves a pending request to dismissed.
func (h *Handler) dismissRequest(c *gin.Context) {
	h.transitionRequest(c, models.RequestStatusDismissed)
}

func (h *Handler) transitionRequest(c *gin.Context, status string) {
	requestID, err := strconv.ParseInt(c.Param("request_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request ID",
		})
		return
	}

	if err := h.store.UpdateRequestStatus(c.Request.Context(), requestID, status); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Request is not pending",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"status":     status,
	})
}

// prometheusMiddleware collects HTTP metrics
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
