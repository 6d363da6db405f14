package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/handler"
	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/service/notification"
	"github.com/voluntree/engage-api/internal/service/template"
)

const maxPageSize = 100

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("/:id/notifications", h.ListNotifications)
		users.GET("/:id/notifications/unread-count", h.GetUnreadCount)
	}
	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.CreateNotification)
		notifications.POST("/from-template", h.CreateFromTemplate)
		notifications.PATCH("/:id/read", h.MarkAsRead)
		notifications.PATCH("/:id/acted", h.MarkAsActed)
	}
}

type createNotificationRequest struct {
	RecipientID   uuid.UUID                  `json:"recipient_id" binding:"required"`
	Category      model.NotificationCategory `json:"category" binding:"required"`
	Subcategory   string                     `json:"subcategory"`
	Title         string                     `json:"title" binding:"required"`
	Message       string                     `json:"message" binding:"required"`
	ActionText    string                     `json:"action_text"`
	ActionURL     string                     `json:"action_url"`
	Priority      model.NotificationPriority `json:"priority"`
	EventID       *uuid.UUID                 `json:"event_id"`
	GroupID       *uuid.UUID                 `json:"group_id"`
	ExpiresInDays int                        `json:"expires_in_days" binding:"min=0"`
}

func (h *Handler) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.service.Create(c.Request.Context(), &notification.CreateInput{
		RecipientID:   req.RecipientID,
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		Title:         req.Title,
		Message:       req.Message,
		ActionText:    req.ActionText,
		ActionURL:     req.ActionURL,
		Priority:      req.Priority,
		EventID:       req.EventID,
		GroupID:       req.GroupID,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, n)
}

type createFromTemplateRequest struct {
	RecipientID   uuid.UUID                  `json:"recipient_id" binding:"required"`
	Template      string                     `json:"template" binding:"required"`
	Variables     template.Vars              `json:"variables"`
	Priority      model.NotificationPriority `json:"priority"`
	ExpiresInDays int                        `json:"expires_in_days" binding:"min=0"`
	ActionURL     string                     `json:"action_url"`
	EventID       *uuid.UUID                 `json:"event_id"`
	GroupID       *uuid.UUID                 `json:"group_id"`
}

func (h *Handler) CreateFromTemplate(c *gin.Context) {
	var req createFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	var opts *notification.Options
	if req.Priority != "" || req.ExpiresInDays > 0 || req.ActionURL != "" || req.EventID != nil || req.GroupID != nil {
		opts = &notification.Options{
			Priority:      req.Priority,
			ExpiresInDays: req.ExpiresInDays,
			ActionURL:     req.ActionURL,
			EventID:       req.EventID,
			GroupID:       req.GroupID,
		}
	}

	n, err := h.service.CreateFromTemplate(c.Request.Context(), req.RecipientID, req.Template, req.Variables, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, n)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	filter := &model.NotificationFilter{
		Status:   model.NotificationStatus(c.Query("status")),
		Category: model.NotificationCategory(c.Query("category")),
		Pagination: model.Pagination{
			Limit:  parseIntQuery(c, "limit", 20),
			Offset: parseIntQuery(c, "offset", 0),
		},
	}
	if filter.Pagination.Limit > maxPageSize {
		filter.Pagination.Limit = maxPageSize
	}

	notifications, err := h.service.GetUserNotifications(c.Request.Context(), userID, filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, notifications)
}

func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	count, err := h.service.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, gin.H{"unread": count})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	h.advance(c, h.service.MarkAsRead)
}

func (h *Handler) MarkAsActed(c *gin.Context) {
	h.advance(c, h.service.MarkAsActed)
}

func (h *Handler) advance(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*model.Notification, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid notification ID")
		return
	}

	n, err := fn(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, n)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
