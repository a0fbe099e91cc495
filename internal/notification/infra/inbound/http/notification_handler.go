package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/passport-notifier/internal/notification/application"
	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
	"github.com/davicafu/passport-notifier/internal/shared/infra/auth"
	"github.com/davicafu/passport-notifier/pkg/utils"
)

// NotificationHandler encapsula los endpoints HTTP de Notification.
type NotificationHandler struct {
	service *application.NotificationService
	log     *zap.Logger
}

// NewNotificationHandler crea un nuevo NotificationHandler.
func NewNotificationHandler(service *application.NotificationService, log *zap.Logger) *NotificationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationHandler{service: service, log: log}
}

// ---------------- Handlers ----------------

// CreateNotification endpoint POST /api/notifications
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req struct {
		Type           string                 `json:"type" binding:"required"`
		EventType      string                 `json:"eventType" binding:"required"`
		Title          string                 `json:"title" binding:"required"`
		Message        string                 `json:"message" binding:"required"`
		Recipient      string                 `json:"recipient"`
		RecipientEmail string                 `json:"recipientEmail"`
		Priority       string                 `json:"priority"`
		Metadata       map[string]interface{} `json:"metadata"`
		MaxRetries     *int                   `json:"maxRetries"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, "Type, eventType, title, and message are required")
		return
	}

	eventType, err := sharedEvents.ParseEventType(req.EventType)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	n, err := h.service.CreateNotification(c.Request.Context(), notificationDomain.NewNotificationParams{
		Channel:         notificationDomain.Channel(req.Type),
		EventType:       eventType,
		Title:           req.Title,
		Body:            req.Message,
		RecipientUserID: req.Recipient,
		RecipientEmail:  req.RecipientEmail,
		Priority:        notificationDomain.Priority(req.Priority),
		Metadata:        req.Metadata,
		MaxRetries:      req.MaxRetries,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusCreated, "Notification created successfully", n)
}

// ListNotifications endpoint GET /api/notifications?page=&limit=&status=&type=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := notificationDomain.ListFilter{
		Status:  notificationDomain.Status(c.Query("status")),
		Channel: notificationDomain.Channel(c.Query("type")),
	}

	result, err := h.service.ListNotifications(c.Request.Context(), viewerFrom(c), filter, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Notifications retrieved successfully", result)
}

// GetStats endpoint GET /api/notifications/stats
func (h *NotificationHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), viewerFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Notification statistics retrieved successfully", stats)
}

// GetNotification endpoint GET /api/notifications/:id
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, err := h.service.GetNotification(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Notification retrieved successfully", n)
}

// MarkAsRead endpoint PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, err := h.service.MarkAsRead(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Notification marked as read", gin.H{
		"id":     n.ID,
		"status": n.Status,
		"readAt": n.ReadAt,
	})
}

// DeleteNotification endpoint DELETE /api/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(c.Request.Context(), viewerFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Notification deleted successfully", nil)
}

// RetryDelivery endpoint POST /api/notifications/:id/retry (admin)
func (h *NotificationHandler) RetryDelivery(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, result, err := h.service.RetryDelivery(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	utils.SendSuccessWithMessage(c, http.StatusOK, "Delivery retried", gin.H{
		"notification": n,
		"delivery":     result,
	})
}

// DeliveryTrend endpoint GET /api/notifications/analytics/trend?from=&to= (admin)
func (h *NotificationHandler) DeliveryTrend(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			utils.SendBadRequest(c, "invalid 'from' date, use YYYY-MM-DD or RFC3339")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			utils.SendBadRequest(c, "invalid 'to' date, use YYYY-MM-DD or RFC3339")
			return
		}
	}

	trend, err := h.service.DeliveryTrend(c.Request.Context(), viewerFrom(c), from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if trend == nil {
		trend = []notificationDomain.DailyDeliveryTrend{}
	}

	utils.SendSuccess(c, http.StatusOK, trend)
}

// ---------------- Helpers ----------------

func (h *NotificationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notificationDomain.ErrValidation):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, notificationDomain.ErrNotFound):
		utils.SendNotFound(c, "Notification not found")
	case errors.Is(err, notificationDomain.ErrForbidden):
		utils.SendForbidden(c, "Admin role required")
	case errors.Is(err, notificationDomain.ErrNotRetryable):
		utils.SendError(c, http.StatusConflict, err.Error())
	case errors.Is(err, notificationDomain.ErrAnalyticsUnavailable):
		utils.SendError(c, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		utils.SendInternalServerError(c, "Internal server error")
	}
}

func viewerFrom(c *gin.Context) notificationDomain.Viewer {
	user, _ := auth.FromGin(c)
	return notificationDomain.Viewer{UserID: user.UserID, Role: user.Role}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid notification id")
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
