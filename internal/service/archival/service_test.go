package archival

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/service/notification"
	"github.com/voluntree/engage-api/internal/service/template"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/metrics"
)

type fakeEventRepo struct {
	events        map[uuid.UUID]*model.Event
	transitionErr map[uuid.UUID]error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:        map[uuid.UUID]*model.Event{},
		transitionErr: map[uuid.UUID]error{},
	}
}

func (f *fakeEventRepo) Get(_ context.Context, id uuid.UUID) (*model.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("event not found")
	}
	return ev, nil
}

func (f *fakeEventRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to model.EventStatus, archivedAt *time.Time) error {
	if err := f.transitionErr[id]; err != nil {
		return err
	}
	ev, ok := f.events[id]
	if !ok || ev.Status != from {
		return fmt.Errorf("no event in status %s", from)
	}
	ev.Status = to
	ev.ArchivedAt = archivedAt
	return nil
}

func (f *fakeEventRepo) ListCompletedEndedBefore(_ context.Context, cutoff time.Time) ([]*model.Event, error) {
	var out []*model.Event
	for _, ev := range f.events {
		if ev.Status == model.EventStatusCompleted && ev.EndTime.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListArchivedWithPendingRatings(_ context.Context) ([]*model.Event, error) {
	var out []*model.Event
	for _, ev := range f.events {
		if ev.Status == model.EventStatusArchived {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) CountArchived(_ context.Context) (int, error) {
	count := 0
	for _, ev := range f.events {
		if ev.Status == model.EventStatusArchived {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) CountArchivedSince(_ context.Context, since time.Time) (int, error) {
	count := 0
	for _, ev := range f.events {
		if ev.Status == model.EventStatusArchived && ev.ArchivedAt != nil && ev.ArchivedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) CountPendingArchive(_ context.Context, cutoff time.Time) (int, error) {
	count := 0
	for _, ev := range f.events {
		if ev.Status == model.EventStatusCompleted && ev.EndTime.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

type fakeAppRepo struct {
	apps map[uuid.UUID][]*model.EventApplication
}

func (f *fakeAppRepo) Get(context.Context, uuid.UUID) (*model.EventApplication, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeAppRepo) GetByEventAndVolunteer(context.Context, uuid.UUID, uuid.UUID) (*model.EventApplication, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeAppRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*model.EventApplication, error) {
	return f.apps[eventID], nil
}

func (f *fakeAppRepo) UpdateRatingStatus(context.Context, uuid.UUID, model.RatingStatus) error {
	return nil
}

type sentNotification struct {
	recipientID uuid.UUID
	template    string
	vars        template.Vars
	priority    model.NotificationPriority
}

type recordingDispatcher struct {
	sent []sentNotification
}

func (d *recordingDispatcher) CreateFromTemplate(_ context.Context, recipientID uuid.UUID, name string, vars template.Vars, opts *notification.Options) (*model.Notification, error) {
	s := sentNotification{recipientID: recipientID, template: name, vars: vars}
	if opts != nil {
		s.priority = opts.Priority
	}
	d.sent = append(d.sent, s)
	return &model.Notification{ID: uuid.New(), RecipientID: recipientID}, nil
}

func (d *recordingDispatcher) byTemplate(name string) []sentNotification {
	var out []sentNotification
	for _, s := range d.sent {
		if s.template == name {
			out = append(out, s)
		}
	}
	return out
}

var testMetrics = metrics.New("archival_test")

type harness struct {
	svc        *Service
	events     *fakeEventRepo
	apps       *fakeAppRepo
	dispatcher *recordingDispatcher
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		events:     newFakeEventRepo(),
		apps:       &fakeAppRepo{apps: map[uuid.UUID][]*model.EventApplication{}},
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(h.events, h.apps, h.dispatcher, logger.NewLogger(nil), testMetrics)
	h.svc.now = func() time.Time { return h.now }
	return h
}

func (h *harness) addEvent(status model.EventStatus, endedAgo time.Duration) *model.Event {
	ev := &model.Event{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Title:          "River Restoration",
		Status:         status,
		EndTime:        h.now.Add(-endedAgo),
	}
	h.events.events[ev.ID] = ev
	return ev
}

func (h *harness) addApplication(ev *model.Event, status model.ApplicationStatus, ratingStatus model.RatingStatus) *model.EventApplication {
	app := &model.EventApplication{
		ID:           uuid.New(),
		EventID:      ev.ID,
		VolunteerID:  uuid.New(),
		Status:       status,
		RatingStatus: ratingStatus,
	}
	h.apps.apps[ev.ID] = append(h.apps.apps[ev.ID], app)
	return app
}

func TestArchiveCompletedEventsRespectsGraceWindow(t *testing.T) {
	h := newHarness(t)

	recent := h.addEvent(model.EventStatusCompleted, 3*24*time.Hour)
	due := h.addEvent(model.EventStatusCompleted, 8*24*time.Hour)
	h.addApplication(due, model.ApplicationStatusCompleted, model.RatingStatusPending)

	result, err := h.svc.ArchiveCompletedEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Archived)
	assert.Zero(t, result.Failed)
	assert.Equal(t, model.EventStatusArchived, due.Status)
	require.NotNil(t, due.ArchivedAt)
	assert.Equal(t, h.now, *due.ArchivedAt)
	assert.Equal(t, model.EventStatusCompleted, recent.Status, "events inside the grace window wait")
}

func TestArchiveCompletedEventsSkipsOtherStatuses(t *testing.T) {
	h := newHarness(t)

	h.addEvent(model.EventStatusPublished, 30*24*time.Hour)
	h.addEvent(model.EventStatusInProgress, 30*24*time.Hour)
	h.addEvent(model.EventStatusArchived, 30*24*time.Hour)

	result, err := h.svc.ArchiveCompletedEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Archived)
}

func TestArchiveCompletedEventsIsolatesFailures(t *testing.T) {
	h := newHarness(t)

	broken := h.addEvent(model.EventStatusCompleted, 10*24*time.Hour)
	h.events.transitionErr[broken.ID] = fmt.Errorf("row lock timeout")
	healthy := h.addEvent(model.EventStatusCompleted, 10*24*time.Hour)

	result, err := h.svc.ArchiveCompletedEvents(context.Background())
	require.NoError(t, err, "one bad event never aborts the sweep")

	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.EventStatusArchived, healthy.Status)
}

func TestArchiveNotifiesParticipantsAndOrganization(t *testing.T) {
	h := newHarness(t)

	ev := h.addEvent(model.EventStatusCompleted, 8*24*time.Hour)
	completed := h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusPending)
	h.addApplication(ev, model.ApplicationStatusRejected, model.RatingStatusPending)

	_, err := h.svc.ArchiveCompletedEvents(context.Background())
	require.NoError(t, err)

	archived := h.dispatcher.byTemplate(TemplateEventArchived)
	require.Len(t, archived, 1, "only completed participants are told")
	assert.Equal(t, completed.VolunteerID, archived[0].recipientID)

	pleaseRate := h.dispatcher.byTemplate(TemplatePleaseRate)
	require.Len(t, pleaseRate, 1)
	assert.Equal(t, ev.OrganizationID, pleaseRate[0].recipientID)
	assert.Equal(t, ev.Title, pleaseRate[0].vars["event_title"])
}

func archivedEvent(h *harness, daysAgo int) *model.Event {
	ev := h.addEvent(model.EventStatusArchived, time.Duration(daysAgo+7)*24*time.Hour)
	archivedAt := h.now.AddDate(0, 0, -daysAgo)
	ev.ArchivedAt = &archivedAt
	return ev
}

func TestScheduleRatingRemindersTierEscalation(t *testing.T) {
	cases := []struct {
		daysSinceArchival int
		priority          model.NotificationPriority
		daysRemaining     string
	}{
		{1, model.NotificationPriorityNormal, "6"},
		{3, model.NotificationPriorityHigh, "4"},
		{7, model.NotificationPriorityUrgent, "1"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("day_%d", tc.daysSinceArchival), func(t *testing.T) {
			h := newHarness(t)
			ev := archivedEvent(h, tc.daysSinceArchival)
			app := h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusPending)

			result, err := h.svc.ScheduleRatingReminders(context.Background())
			require.NoError(t, err)

			// Pending means both sides owe: volunteer plus org.
			assert.Equal(t, 2, result.Reminded)
			reminders := h.dispatcher.byTemplate(TemplateRatingReminder)
			require.Len(t, reminders, 2)
			for _, r := range reminders {
				assert.Equal(t, tc.priority, r.priority)
				assert.Equal(t, tc.daysRemaining, r.vars["days_remaining"])
			}
			assert.Equal(t, app.VolunteerID, reminders[0].recipientID)
			assert.Equal(t, ev.OrganizationID, reminders[1].recipientID)
		})
	}
}

func TestScheduleRatingRemindersSkipsOffTierDays(t *testing.T) {
	for _, days := range []int{0, 2, 4, 5, 6, 8, 30} {
		h := newHarness(t)
		ev := archivedEvent(h, days)
		h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusPending)

		result, err := h.svc.ScheduleRatingReminders(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.Reminded, "day %d is not a reminder tier", days)
		assert.Equal(t, 1, result.Skipped)
	}
}

func TestScheduleRatingRemindersTargetsOnlyOwingParties(t *testing.T) {
	h := newHarness(t)
	ev := archivedEvent(h, 3)

	// Volunteer already rated; only the organization still owes.
	rated := h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusVolunteerRated)
	// Fully settled application generates nothing.
	h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusBothRated)

	result, err := h.svc.ScheduleRatingReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Reminded)
	reminders := h.dispatcher.byTemplate(TemplateRatingReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, ev.OrganizationID, reminders[0].recipientID)
	assert.NotEqual(t, rated.VolunteerID, reminders[0].recipientID)
}

func TestScheduleRatingRemindersOrganizationRatedSide(t *testing.T) {
	h := newHarness(t)
	ev := archivedEvent(h, 1)

	// The org has rated; only the volunteer still owes.
	app := h.addApplication(ev, model.ApplicationStatusCompleted, model.RatingStatusOrganizationRated)

	result, err := h.svc.ScheduleRatingReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Reminded)
	reminders := h.dispatcher.byTemplate(TemplateRatingReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, app.VolunteerID, reminders[0].recipientID)
}

func TestGetStats(t *testing.T) {
	h := newHarness(t)

	archivedEvent(h, 2)
	archivedEvent(h, 40)
	h.addEvent(model.EventStatusCompleted, 10*24*time.Hour)
	h.addEvent(model.EventStatusCompleted, 2*24*time.Hour)

	stats, err := h.svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalArchived)
	assert.Equal(t, 1, stats.ArchivedMonth)
	assert.Equal(t, 1, stats.PendingArchive, "grace window excludes the fresh completion")
}

func TestRestoreEvent(t *testing.T) {
	h := newHarness(t)
	ev := archivedEvent(h, 2)

	require.NoError(t, h.svc.RestoreEvent(context.Background(), ev.ID))
	assert.Equal(t, model.EventStatusCompleted, ev.Status)
	assert.Nil(t, ev.ArchivedAt)

	// Restoring a non-archived event is a guarded no-op failure.
	assert.Error(t, h.svc.RestoreEvent(context.Background(), ev.ID))
}
