package rating

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/handler"
	"github.com/voluntree/engage-api/internal/service/rating"
)

type Handler struct {
	service *rating.Service
}

func NewHandler(service *rating.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/events")
	{
		events.POST("/:id/ratings", h.SubmitRating)
		events.GET("/:id/ratings/eligibility", h.CheckEligibility)
	}
	users := r.Group("/users")
	{
		users.GET("/:id/pending-ratings", h.ListPendingRatings)
		users.GET("/:id/rating-summary", h.GetRatingSummary)
	}
}

type submitRatingRequest struct {
	RaterID  uuid.UUID `json:"rater_id" binding:"required"`
	RatedID  uuid.UUID `json:"rated_id" binding:"required"`
	Rating   int       `json:"rating" binding:"required,min=1,max=5"`
	Feedback string    `json:"feedback" binding:"max=2000"`
}

func (h *Handler) SubmitRating(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid event ID")
		return
	}

	var req submitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.SubmitRating(c.Request.Context(), eventID, req.RaterID, req.RatedID, req.Rating, req.Feedback)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, result)
}

func (h *Handler) CheckEligibility(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid event ID")
		return
	}
	raterID, err := uuid.Parse(c.Query("rater_id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid rater ID")
		return
	}
	ratedID, err := uuid.Parse(c.Query("rated_id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid rated ID")
		return
	}

	can, err := h.service.CanRateUser(c.Request.Context(), eventID, raterID, ratedID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, gin.H{"can_rate": can})
}

func (h *Handler) ListPendingRatings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	pending, err := h.service.GetEventsNeedingRating(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, pending)
}

func (h *Handler) GetRatingSummary(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	summary, err := h.service.GetUserRatingSummary(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Success(c, http.StatusOK, summary)
}
