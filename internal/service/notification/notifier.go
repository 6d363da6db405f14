package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	"github.com/voluntree/engage-api/internal/service/template"
)

// Template names consumed by the rating flow. Seeded by migration;
// versioning is handled by the template store.
const (
	TemplateRatingReceived  = "rating_received"
	TemplateRatingCompleted = "rating_completed"
	TemplateEventFullyRated = "event_fully_rated"
)

// RatingNotifier translates rating-engine domain events into
// notifications. It satisfies the engine's notifier port so the
// consensus state machine stays free of delivery concerns.
type RatingNotifier struct {
	svc   *Service
	users repository.UserRepository
}

func NewRatingNotifier(svc *Service, users repository.UserRepository) *RatingNotifier {
	return &RatingNotifier{svc: svc, users: users}
}

func (rn *RatingNotifier) RatingReceived(ctx context.Context, ev model.RatingRecorded) error {
	vars := template.Vars{
		"event_title": ev.Event.Title,
		"rating":      fmt.Sprintf("%d", ev.Rating),
		"rater_name":  rn.displayName(ctx, ev.RaterID),
	}
	_, err := rn.svc.CreateFromTemplate(ctx, ev.RatedID, TemplateRatingReceived, vars, &Options{
		EventID: &ev.Event.ID,
	})
	return err
}

func (rn *RatingNotifier) RatingCompleted(ctx context.Context, ev model.ConsensusReached) error {
	volunteerID := ev.Application.VolunteerID
	organizationID := ev.Event.OrganizationID

	pairs := []struct {
		recipient   uuid.UUID
		counterpart uuid.UUID
	}{
		{volunteerID, organizationID},
		{organizationID, volunteerID},
	}

	var firstErr error
	for _, p := range pairs {
		vars := template.Vars{
			"event_title":      ev.Event.Title,
			"counterpart_name": rn.displayName(ctx, p.counterpart),
		}
		_, err := rn.svc.CreateFromTemplate(ctx, p.recipient, TemplateRatingCompleted, vars, &Options{
			EventID: &ev.Event.ID,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (rn *RatingNotifier) EventFullyRated(ctx context.Context, ev model.EventFullyRated) error {
	recipients := append([]uuid.UUID{}, ev.VolunteerIDs...)
	recipients = append(recipients, ev.Event.OrganizationID)

	vars := template.Vars{"event_title": ev.Event.Title}

	var firstErr error
	for _, recipient := range recipients {
		_, err := rn.svc.CreateFromTemplate(ctx, recipient, TemplateEventFullyRated, vars, &Options{
			EventID: &ev.Event.ID,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (rn *RatingNotifier) displayName(ctx context.Context, id uuid.UUID) string {
	user, err := rn.users.Get(ctx, id)
	if err != nil {
		return "A participant"
	}
	return user.DisplayName
}
