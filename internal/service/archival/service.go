package archival

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	"github.com/voluntree/engage-api/internal/service/notification"
	"github.com/voluntree/engage-api/internal/service/template"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/metrics"
)

// GraceWindow is how long a completed event sits before the sweep
// archives it.
const GraceWindow = 7 * 24 * time.Hour

// Template names consumed by the archival flow.
const (
	TemplateEventArchived  = "event_archived"
	TemplatePleaseRate     = "please_rate_participants"
	TemplateRatingReminder = "rating_reminder"
)

// reminderTiers maps exact days-since-archival onto escalation
// settings. The exact-match keying requires the scheduler to run
// daily: a skipped day permanently skips that tier.
var reminderTiers = map[int]struct {
	priority      model.NotificationPriority
	daysRemaining int
}{
	1: {model.NotificationPriorityNormal, 6},
	3: {model.NotificationPriorityHigh, 4},
	7: {model.NotificationPriorityUrgent, 1},
}

// Dispatcher is the notification port used for all archival
// emissions.
type Dispatcher interface {
	CreateFromTemplate(ctx context.Context, recipientID uuid.UUID, name string, vars template.Vars, opts *notification.Options) (*model.Notification, error)
}

type Service struct {
	events     repository.EventRepository
	apps       repository.ApplicationRepository
	dispatcher Dispatcher
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(
	events repository.EventRepository,
	apps repository.ApplicationRepository,
	dispatcher Dispatcher,
	l *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		events:     events,
		apps:       apps,
		dispatcher: dispatcher,
		logger:     l,
		metrics:    m,
		now:        time.Now,
	}
}

// SweepResult reports aggregate outcomes of one archival sweep.
type SweepResult struct {
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// ArchiveCompletedEvents transitions completed events past the grace
// window to archived and notifies all parties. The status filter on
// the selection makes repeat runs idempotent; per-event failures are
// isolated so one bad event never aborts the sweep.
func (s *Service) ArchiveCompletedEvents(ctx context.Context) (*SweepResult, error) {
	timer := prometheus.NewTimer(s.metrics.SweepLatency)
	defer timer.ObserveDuration()

	now := s.now()
	cutoff := now.Add(-GraceWindow)

	events, err := s.events.ListCompletedEndedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list events eligible for archival: %w", err)
	}

	result := &SweepResult{}
	for _, event := range events {
		if err := s.archiveOne(ctx, event, now); err != nil {
			result.Failed++
			s.metrics.ArchiveFailures.Inc()
			s.logger.Error(err, "failed to archive event", "event_id", event.ID.String())
			continue
		}
		result.Archived++
		s.metrics.EventsArchived.Inc()
	}

	s.logger.Info("archival sweep finished",
		"archived", result.Archived, "failed", result.Failed)
	return result, nil
}

func (s *Service) archiveOne(ctx context.Context, event *model.Event, now time.Time) error {
	if err := s.events.TransitionStatus(ctx, event.ID, model.EventStatusCompleted, model.EventStatusArchived, &now); err != nil {
		return err
	}
	event.Status = model.EventStatusArchived
	event.ArchivedAt = &now

	// Notifications are follow-ups to the committed transition.
	apps, err := s.apps.ListByEvent(ctx, event.ID)
	if err != nil {
		s.logger.Error(err, "failed to list applications for archived event",
			"event_id", event.ID.String())
		return nil
	}

	vars := template.Vars{
		"event_title": event.Title,
		"end_date":    event.EndTime.Format("January 2, 2006"),
	}
	for _, app := range apps {
		if app.Status != model.ApplicationStatusCompleted {
			continue
		}
		if _, err := s.dispatcher.CreateFromTemplate(ctx, app.VolunteerID, TemplateEventArchived, vars, &notification.Options{
			EventID: &event.ID,
		}); err != nil {
			s.logger.Error(err, "failed to notify volunteer of archival",
				"event_id", event.ID.String(), "volunteer_id", app.VolunteerID.String())
		}
	}

	if _, err := s.dispatcher.CreateFromTemplate(ctx, event.OrganizationID, TemplatePleaseRate, vars, &notification.Options{
		EventID: &event.ID,
	}); err != nil {
		s.logger.Error(err, "failed to notify organization of archival",
			"event_id", event.ID.String())
	}
	return nil
}

// ReminderResult reports aggregate outcomes of one reminder pass.
type ReminderResult struct {
	Reminded int `json:"reminded"`
	Skipped  int `json:"skipped"`
}

// ScheduleRatingReminders emits escalating reminders at exactly 1, 3
// and 7 days after archival to every party that still owes a rating.
func (s *Service) ScheduleRatingReminders(ctx context.Context) (*ReminderResult, error) {
	events, err := s.events.ListArchivedWithPendingRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events pending ratings: %w", err)
	}

	now := s.now()
	result := &ReminderResult{}
	for _, event := range events {
		if event.ArchivedAt == nil {
			result.Skipped++
			continue
		}

		days := daysSince(*event.ArchivedAt, now)
		tier, ok := reminderTiers[days]
		if !ok {
			result.Skipped++
			continue
		}

		sent, err := s.remindEvent(ctx, event, tier.priority, tier.daysRemaining)
		if err != nil {
			s.logger.Error(err, "failed to send reminders for event",
				"event_id", event.ID.String())
			continue
		}
		if sent > 0 {
			s.metrics.RemindersEmitted.WithLabelValues(strconv.Itoa(days)).Add(float64(sent))
			result.Reminded += sent
		}
	}
	return result, nil
}

// remindEvent notifies every volunteer whose side of the rating is
// still open, plus the organization when it still owes any rating.
func (s *Service) remindEvent(ctx context.Context, event *model.Event, priority model.NotificationPriority, daysRemaining int) (int, error) {
	apps, err := s.apps.ListByEvent(ctx, event.ID)
	if err != nil {
		return 0, err
	}

	vars := template.Vars{
		"event_title":    event.Title,
		"days_remaining": strconv.Itoa(daysRemaining),
	}
	opts := &notification.Options{Priority: priority, EventID: &event.ID}

	sent := 0
	orgOwes := false
	for _, app := range apps {
		if app.Status != model.ApplicationStatusCompleted {
			continue
		}
		switch app.RatingStatus {
		case model.RatingStatusBothRated:
			continue
		case model.RatingStatusVolunteerRated:
			// Volunteer already rated; only the org still owes.
			orgOwes = true
			continue
		case model.RatingStatusPending:
			orgOwes = true
		}

		if _, err := s.dispatcher.CreateFromTemplate(ctx, app.VolunteerID, TemplateRatingReminder, vars, opts); err != nil {
			s.logger.Error(err, "failed to remind volunteer",
				"event_id", event.ID.String(), "volunteer_id", app.VolunteerID.String())
			continue
		}
		sent++
	}

	if orgOwes {
		if _, err := s.dispatcher.CreateFromTemplate(ctx, event.OrganizationID, TemplateRatingReminder, vars, opts); err != nil {
			s.logger.Error(err, "failed to remind organization",
				"event_id", event.ID.String())
		} else {
			sent++
		}
	}
	return sent, nil
}

// Stats is the read-only diagnostic view of the archival pipeline.
type Stats struct {
	TotalArchived  int `json:"total_archived"`
	ArchivedMonth  int `json:"archived_this_month"`
	PendingArchive int `json:"pending_archive"`
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	now := s.now()

	total, err := s.events.CountArchived(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count archived events: %w", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	month, err := s.events.CountArchivedSince(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly archived events: %w", err)
	}

	pending, err := s.events.CountPendingArchive(ctx, now.Add(-GraceWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count pending-archive events: %w", err)
	}

	return &Stats{
		TotalArchived:  total,
		ArchivedMonth:  month,
		PendingArchive: pending,
	}, nil
}

// RestoreEvent moves an archived event back to completed. This is the
// one sanctioned regress in the event lifecycle, for operator
// correction only.
func (s *Service) RestoreEvent(ctx context.Context, eventID uuid.UUID) error {
	if err := s.events.TransitionStatus(ctx, eventID, model.EventStatusArchived, model.EventStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to restore event: %w", err)
	}
	s.logger.Info("event restored from archive", "event_id", eventID.String())
	return nil
}

func daysSince(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
