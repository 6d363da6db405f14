package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/handler"
	"github.com/voluntree/engage-api/internal/service/archival"
	"github.com/voluntree/engage-api/internal/service/notification"
)

// Handler exposes the scheduler's jobs for manual runs plus the
// archival diagnostics. Mounted under the admin group.
type Handler struct {
	archival *archival.Service
	notifier *notification.Service
}

func NewHandler(archivalSvc *archival.Service, notifierSvc *notification.Service) *Handler {
	return &Handler{archival: archivalSvc, notifier: notifierSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	scheduler := r.Group("/scheduler")
	{
		scheduler.POST("/archive", h.RunArchival)
		scheduler.POST("/reminders", h.RunReminders)
		scheduler.POST("/cleanup", h.RunCleanup)
		scheduler.GET("/stats", h.GetStats)
	}
	r.POST("/events/:id/restore", h.RestoreEvent)
}

func (h *Handler) RunArchival(c *gin.Context) {
	result, err := h.archival.ArchiveCompletedEvents(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Success(c, http.StatusOK, result)
}

func (h *Handler) RunReminders(c *gin.Context) {
	result, err := h.archival.ScheduleRatingReminders(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Success(c, http.StatusOK, result)
}

func (h *Handler) RunCleanup(c *gin.Context) {
	expired, err := h.notifier.CleanupExpired(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Success(c, http.StatusOK, gin.H{"expired": expired})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.archival.GetStats(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Success(c, http.StatusOK, stats)
}

func (h *Handler) RestoreEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid event ID")
		return
	}

	if err := h.archival.RestoreEvent(c.Request.Context(), eventID); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Success(c, http.StatusOK, gin.H{"restored": eventID})
}
