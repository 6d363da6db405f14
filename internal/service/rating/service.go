package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/metrics"
)

// Notifier is the port through which the consensus engine hands
// domain events to the notification layer. Implementations are
// best-effort collaborators: their errors are logged and swallowed,
// never allowed to undo the rating write.
type Notifier interface {
	RatingReceived(ctx context.Context, ev model.RatingRecorded) error
	RatingCompleted(ctx context.Context, ev model.ConsensusReached) error
	EventFullyRated(ctx context.Context, ev model.EventFullyRated) error
}

type Service struct {
	events   repository.EventRepository
	apps     repository.ApplicationRepository
	ratings  repository.RatingRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	events repository.EventRepository,
	apps repository.ApplicationRepository,
	ratings repository.RatingRepository,
	users repository.UserRepository,
	notifier Notifier,
	l *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		events:   events,
		apps:     apps,
		ratings:  ratings,
		users:    users,
		notifier: notifier,
		logger:   l,
		metrics:  m,
		now:      time.Now,
	}
}

// SubmitRating records a one-directional rating and drives the
// bilateral consensus state machine. Validation happens before any
// mutation; everything after the rating write is best-effort.
func (s *Service) SubmitRating(ctx context.Context, eventID, raterID, ratedID uuid.UUID, value int, feedback string) (*model.EventRating, error) {
	if value < model.MinRatingValue || value > model.MaxRatingValue {
		s.metrics.RatingsRejected.WithLabelValues("invalid_value").Inc()
		return nil, apperrors.ErrInvalidRatingValue
	}

	exists, err := s.ratings.Exists(ctx, eventID, raterID, ratedID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing rating: %w", err)
	}
	if exists {
		s.metrics.RatingsRejected.WithLabelValues("duplicate").Inc()
		return nil, apperrors.ErrDuplicateRating
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	// Side determination doubles as a standing check: resolving the
	// application before the write keeps strangers out without
	// leaving an orphaned rating behind.
	app, raterIsOrg, err := s.resolveApplication(ctx, event, raterID, ratedID)
	if err != nil {
		s.metrics.RatingsRejected.WithLabelValues("no_standing").Inc()
		return nil, err
	}

	rating := &model.EventRating{
		EventID:  eventID,
		RaterID:  raterID,
		RatedID:  ratedID,
		Rating:   value,
		Feedback: feedback,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		// The unique index backstops a race on the same triple.
		if errors.Is(err, apperrors.ErrDuplicateRating) {
			s.metrics.RatingsRejected.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to persist rating: %w", err)
	}
	s.metrics.RatingsSubmitted.Inc()

	// Everything from here on is a follow-up to an already-committed
	// write: failures are logged and swallowed.
	reachedBoth := s.advanceRatingStatus(ctx, app, raterIsOrg)

	s.recomputeAggregate(ctx, ratedID)

	if err := s.notifier.RatingReceived(ctx, model.RatingRecorded{
		Event:   event,
		RaterID: raterID,
		RatedID: ratedID,
		Rating:  value,
	}); err != nil {
		s.logger.Error(err, "failed to emit rating-received notification",
			"event_id", eventID.String(), "rated_id", ratedID.String())
	}

	if reachedBoth {
		s.metrics.ConsensusReached.Inc()
		if err := s.notifier.RatingCompleted(ctx, model.ConsensusReached{
			Event:       event,
			Application: app,
		}); err != nil {
			s.logger.Error(err, "failed to emit rating-completed notification",
				"application_id", app.ID.String())
		}
		s.maybeArchiveEvent(ctx, event)
	}

	return rating, nil
}

// resolveApplication identifies which side of the event the rater is
// on and returns the application whose rating status must advance.
func (s *Service) resolveApplication(ctx context.Context, event *model.Event, raterID, ratedID uuid.UUID) (*model.EventApplication, bool, error) {
	if raterID == event.OrganizationID {
		app, err := s.apps.GetByEventAndVolunteer(ctx, event.ID, ratedID)
		if err != nil {
			return nil, false, apperrors.BadRequest("rated user did not participate in this event", err)
		}
		return app, true, nil
	}

	app, err := s.apps.GetByEventAndVolunteer(ctx, event.ID, raterID)
	if err != nil {
		return nil, false, apperrors.BadRequest("rater has no standing relationship with this event", err)
	}
	if ratedID != event.OrganizationID {
		return nil, false, apperrors.BadRequest("volunteers can only rate the organizing party", nil)
	}
	return app, false, nil
}

// advanceRatingStatus applies the join rule to the application's
// rating status and reports whether this call completed the
// consensus. The join never regresses.
func (s *Service) advanceRatingStatus(ctx context.Context, app *model.EventApplication, raterIsOrg bool) bool {
	incoming := model.RatingStatusVolunteerRated
	if raterIsOrg {
		incoming = model.RatingStatusOrganizationRated
	}

	merged := model.MergeRatingStatus(app.RatingStatus, incoming)
	if merged == app.RatingStatus {
		return false
	}

	if err := s.apps.UpdateRatingStatus(ctx, app.ID, merged); err != nil {
		s.logger.Error(err, "failed to advance rating status",
			"application_id", app.ID.String(), "to", string(merged))
		return false
	}

	completed := merged == model.RatingStatusBothRated
	app.RatingStatus = merged
	return completed
}

// recomputeAggregate rereads the rated party's full rating history
// and writes back the derived mean. The fresh full scan sidesteps
// lost-update races between concurrent submissions for the same
// rated party.
func (s *Service) recomputeAggregate(ctx context.Context, ratedID uuid.UUID) {
	history, err := s.ratings.ListByRated(ctx, ratedID)
	if err != nil {
		s.logger.Error(err, "failed to load rating history", "rated_id", ratedID.String())
		return
	}
	if len(history) == 0 {
		return
	}

	sum := 0
	for _, r := range history {
		sum += r.Rating
	}
	average := roundToOneDecimal(float64(sum) / float64(len(history)))

	if err := s.users.UpdateRatingAggregate(ctx, ratedID, average, len(history)); err != nil {
		s.logger.Error(err, "failed to persist rating aggregate", "rated_id", ratedID.String())
	}
}

// maybeArchiveEvent archives the event once every participating
// application has reached both_rated, then notifies all parties.
func (s *Service) maybeArchiveEvent(ctx context.Context, event *model.Event) {
	apps, err := s.apps.ListByEvent(ctx, event.ID)
	if err != nil {
		s.logger.Error(err, "failed to list applications for archival check",
			"event_id", event.ID.String())
		return
	}

	var volunteers []uuid.UUID
	for _, app := range apps {
		if app.Status != model.ApplicationStatusCompleted {
			continue
		}
		if app.RatingStatus != model.RatingStatusBothRated {
			return
		}
		volunteers = append(volunteers, app.VolunteerID)
	}
	if len(volunteers) == 0 {
		return
	}

	archivedAt := s.now()
	if err := s.events.TransitionStatus(ctx, event.ID, model.EventStatusCompleted, model.EventStatusArchived, &archivedAt); err != nil {
		s.logger.Error(err, "failed to archive fully rated event", "event_id", event.ID.String())
		return
	}
	s.metrics.EventsArchived.Inc()
	event.Status = model.EventStatusArchived
	event.ArchivedAt = &archivedAt

	if err := s.notifier.EventFullyRated(ctx, model.EventFullyRated{
		Event:        event,
		VolunteerIDs: volunteers,
	}); err != nil {
		s.logger.Error(err, "failed to emit fully-rated notification",
			"event_id", event.ID.String())
	}
}

// GetEventsNeedingRating lists outstanding rating obligations for
// either side: completed participations the volunteer has not rated,
// or unrated completed applications across an organization's events.
func (s *Service) GetEventsNeedingRating(ctx context.Context, userID uuid.UUID) ([]*model.PendingRating, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Type == model.UserTypeOrganization {
		return s.ratings.ListPendingForOrganization(ctx, userID)
	}
	return s.ratings.ListPendingForVolunteer(ctx, userID)
}

// CanRateUser gates the rating affordance: the rating must not exist
// yet, the event must have finished, and the rater must have standing.
func (s *Service) CanRateUser(ctx context.Context, eventID, raterID, ratedID uuid.UUID) (bool, error) {
	exists, err := s.ratings.Exists(ctx, eventID, raterID, ratedID)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing rating: %w", err)
	}
	if exists {
		return false, nil
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to get event: %w", err)
	}
	if event.Status != model.EventStatusCompleted && event.Status != model.EventStatusArchived {
		return false, nil
	}

	if _, _, err := s.resolveApplication(ctx, event, raterID, ratedID); err != nil {
		return false, nil
	}
	return true, nil
}

// GetUserRatingSummary derives the aggregate view from the full
// rating history.
func (s *Service) GetUserRatingSummary(ctx context.Context, userID uuid.UUID) (*model.RatingSummary, error) {
	history, err := s.ratings.ListByRated(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating history: %w", err)
	}

	summary := &model.RatingSummary{
		UserID:             userID,
		TotalRatings:       len(history),
		RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	sum := 0
	for _, r := range history {
		sum += r.Rating
		summary.RatingDistribution[r.Rating]++
	}
	if len(history) > 0 {
		summary.AverageRating = roundToOneDecimal(float64(sum) / float64(len(history)))
	}
	return summary, nil
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
