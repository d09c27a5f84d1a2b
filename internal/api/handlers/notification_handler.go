package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/campushub/services/events/internal/api/middleware"
	"example.com/campushub/services/events/internal/services"
	"example.com/campushub/services/events/internal/tracing"
	"example.com/campushub/services/events/internal/workflow"
)

// NotificationHandler handles notification read requests. All endpoints are
// idempotent and safe for the clients' 5-30s polling loops.
type NotificationHandler struct {
	notificationService *services.NotificationService
	tracer              tracing.Tracer
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService, tracer tracing.Tracer) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		tracer:              tracer,
	}
}

// HandleList returns the caller's notifications, newest first.
func (h *NotificationHandler) HandleList(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated identity"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.notificationService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// HandleUnreadCount returns the caller's unread notification count.
func (h *NotificationHandler) HandleUnreadCount(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated identity"})
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// HandleMarkRead marks one notification as read.
func (h *NotificationHandler) HandleMarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, errors.Wrap(workflow.ErrNotFound, "invalid notification id"))
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleMarkAllRead marks all of the caller's notifications as read.
func (h *NotificationHandler) HandleMarkAllRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated identity"})
		return
	}

	if err := h.notificationService.MarkAllRead(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterRoutes registers the handler's routes
func (h *NotificationHandler) RegisterRoutes(router gin.IRouter) {
	notifications := router.Group("/notifications")
	notifications.GET("", h.HandleList)
	notifications.GET("/unread-count", h.HandleUnreadCount)
	notifications.POST("/:id/read", h.HandleMarkRead)
	notifications.POST("/read-all", h.HandleMarkAllRead)
}
