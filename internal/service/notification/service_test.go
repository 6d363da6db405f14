package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntree/engage-api/internal/email"
	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/service/template"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/metrics"
)

type fakeNotificationRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{store: map[uuid.UUID]*model.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *n
	f.store[n.ID] = &copied
	return nil
}

func (f *fakeNotificationRepo) Update(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.store[n.ID]; !ok {
		return fmt.Errorf("notification not found")
	}
	copied := *n
	f.store[n.ID] = &copied
	return nil
}

func (f *fakeNotificationRepo) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.store[id]
	if !ok {
		return nil, fmt.Errorf("notification not found")
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID uuid.UUID, _ *model.NotificationFilter) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.store {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

// Unread means status pending, sent, or delivered, matching the SQL
// predicate in the postgres repository.
func (f *fakeNotificationRepo) UnreadCount(_ context.Context, recipientID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.store {
		if n.RecipientID != recipientID {
			continue
		}
		switch n.Status {
		case model.NotificationStatusPending, model.NotificationStatusSent, model.NotificationStatusDelivered:
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, n := range f.store {
		if n.IsTerminal() || n.Status == model.NotificationStatusRead || n.Status == model.NotificationStatusActed {
			continue
		}
		if n.ExpiresAt.Before(now) {
			n.Status = model.NotificationStatusExpired
			moved++
		}
	}
	return moved, nil
}

type fakePrefsRepo struct {
	prefs   map[uuid.UUID]*model.UserNotificationPreferences
	created int
}

func (f *fakePrefsRepo) Get(_ context.Context, userID uuid.UUID) (*model.UserNotificationPreferences, error) {
	return f.prefs[userID], nil
}

func (f *fakePrefsRepo) Create(_ context.Context, p *model.UserNotificationPreferences) error {
	f.prefs[p.UserID] = p
	f.created++
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}

func (f *fakeUserRepo) UpdateRatingAggregate(context.Context, uuid.UUID, float64, int) error {
	return nil
}

// recordingChannel counts sends and optionally fails every call.
type recordingChannel struct {
	name string
	fail bool

	mu    sync.Mutex
	sends int
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, _ *model.Notification, _ *model.User) error {
	c.mu.Lock()
	c.sends++
	c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("%s transport down", c.name)
	}
	return nil
}

func (c *recordingChannel) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

type fakeRenderer struct {
	templates map[string]*model.NotificationTemplate
}

func (f *fakeRenderer) Render(_ context.Context, name string, vars template.Vars) (*template.Rendered, error) {
	tpl, ok := f.templates[name]
	if !ok {
		return nil, apperrors.ErrTemplateNotFound
	}
	title := tpl.TitlePattern
	message := tpl.MessagePattern
	for key, value := range vars {
		title = strings.ReplaceAll(title, "{"+key+"}", value)
		message = strings.ReplaceAll(message, "{"+key+"}", value)
	}
	return &template.Rendered{Title: title, Message: message, Template: tpl}, nil
}

var testMetrics = metrics.New("notification_test")

type harness struct {
	svc      *Service
	repo     *fakeNotificationRepo
	prefs    *fakePrefsRepo
	users    *fakeUserRepo
	inApp    *recordingChannel
	email    *recordingChannel
	push     *recordingChannel
	sms      *recordingChannel
	renderer *fakeRenderer

	recipient uuid.UUID
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:      newFakeNotificationRepo(),
		prefs:     &fakePrefsRepo{prefs: map[uuid.UUID]*model.UserNotificationPreferences{}},
		users:     &fakeUserRepo{users: map[uuid.UUID]*model.User{}},
		inApp:     &recordingChannel{name: ChannelInApp},
		email:     &recordingChannel{name: ChannelEmail},
		push:      &recordingChannel{name: ChannelPush},
		sms:       &recordingChannel{name: ChannelSMS},
		renderer:  &fakeRenderer{templates: map[string]*model.NotificationTemplate{}},
		recipient: uuid.New(),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.users.users[h.recipient] = &model.User{
		ID:    h.recipient,
		Type:  model.UserTypeVolunteer,
		Email: "vol@example.org",
	}

	h.svc = NewService(h.repo, h.prefs, h.users, h.renderer,
		[]Channel{h.inApp, h.email, h.push, h.sms},
		logger.NewLogger(nil), testMetrics)
	h.svc.now = func() time.Time { return h.now }
	return h
}

func (h *harness) input() *CreateInput {
	return &CreateInput{
		RecipientID: h.recipient,
		Category:    model.NotificationCategoryEvent,
		Title:       "Event updated",
		Message:     "Beach Cleanup moved to Saturday",
	}
}

func TestCreateRejectsIncompleteInput(t *testing.T) {
	h := newHarness(t)

	cases := map[string]*CreateInput{
		"nil input":     nil,
		"no recipient":  {Category: model.NotificationCategoryEvent, Title: "t", Message: "m"},
		"empty title":   {RecipientID: h.recipient, Category: model.NotificationCategoryEvent, Message: "m"},
		"empty message": {RecipientID: h.recipient, Category: model.NotificationCategoryEvent, Title: "t"},
		"no category":   {RecipientID: h.recipient, Title: "t", Message: "m"},
	}
	for name, input := range cases {
		_, err := h.svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, apperrors.ErrInvalidNotificationData, name)
	}
	assert.Empty(t, h.repo.store)
}

func TestCreateAppliesDefaults(t *testing.T) {
	h := newHarness(t)

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	assert.Equal(t, model.NotificationPriorityNormal, n.Priority)
	assert.Equal(t, h.now.AddDate(0, 0, 30), n.ExpiresAt, "default expiry is 30 days out")
}

func TestCreateDeliversToDefaultChannels(t *testing.T) {
	h := newHarness(t)

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	// Event category defaults enable email, push and in-app.
	assert.Equal(t, 1, h.inApp.sent())
	assert.Equal(t, 1, h.email.sent())
	assert.Equal(t, 1, h.push.sent())
	assert.Equal(t, 0, h.sms.sent(), "sms is off by default")

	assert.Equal(t, model.NotificationStatusDelivered, n.Status, "in-app success marks delivered")
	assert.NotNil(t, n.SentAt)
	assert.NotNil(t, n.DeliveredAt)
}

func TestCreateLazilyPersistsDefaultPreferences(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)
	_, err = h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	assert.Equal(t, 1, h.prefs.created, "defaults are written once, on first contact")
	require.NotNil(t, h.prefs.prefs[h.recipient])
}

func TestCreateHonorsDisabledChannels(t *testing.T) {
	h := newHarness(t)

	prefs := model.DefaultPreferences(h.recipient)
	prefs.Categories[model.NotificationCategoryEvent] = model.ChannelToggles{InApp: true}
	h.prefs.prefs[h.recipient] = prefs

	_, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	assert.Equal(t, 1, h.inApp.sent())
	assert.Equal(t, 0, h.email.sent())
	assert.Equal(t, 0, h.push.sent())
}

func TestChannelFailureDoesNotFailCreate(t *testing.T) {
	h := newHarness(t)
	h.email.fail = true
	h.push.fail = true

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err, "channel errors are swallowed")

	assert.Equal(t, model.NotificationStatusDelivered, n.Status, "in-app still delivered")

	stored, err := h.repo.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusDelivered, stored.Status)
}

func TestUnconfiguredEmailChannelSitsOutOfDispatch(t *testing.T) {
	h := newHarness(t)

	// Real email channel over a transport with no SMTP host. It must
	// be dropped at construction, not fail on every send.
	emailCh := NewEmailChannel(email.NewService(email.Config{}))
	h.svc = NewService(h.repo, h.prefs, h.users, h.renderer,
		[]Channel{h.inApp, emailCh, h.push, h.sms},
		logger.NewLogger(nil), testMetrics)
	h.svc.now = func() time.Time { return h.now }

	_, ok := h.svc.channels[ChannelEmail]
	assert.False(t, ok, "disabled channel never registered")

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	// Default preferences enable email for event notifications, yet
	// dispatch still settles cleanly without it.
	assert.Equal(t, model.NotificationStatusDelivered, n.Status)
	assert.Equal(t, 1, h.inApp.sent())
	assert.Equal(t, 1, h.push.sent())
}

func TestCreateMarksSentWhenInAppFails(t *testing.T) {
	h := newHarness(t)
	h.inApp.fail = true

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	assert.Equal(t, model.NotificationStatusSent, n.Status)
	assert.NotNil(t, n.SentAt)
	assert.Nil(t, n.DeliveredAt)
}

func TestCreateFromTemplate(t *testing.T) {
	h := newHarness(t)
	h.renderer.templates["event_archived"] = &model.NotificationTemplate{
		Name:           "event_archived",
		Category:       model.NotificationCategoryEvent,
		TitlePattern:   "{event_title} has ended",
		MessagePattern: "Thanks for taking part in {event_title}.",
		Priority:       model.NotificationPriorityLow,
		ExpiryDays:     14,
	}

	n, err := h.svc.CreateFromTemplate(context.Background(), h.recipient, "event_archived",
		template.Vars{"event_title": "Beach Cleanup"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Beach Cleanup has ended", n.Title)
	assert.Equal(t, "Thanks for taking part in Beach Cleanup.", n.Message)
	assert.Equal(t, model.NotificationPriorityLow, n.Priority)
	assert.Equal(t, h.now.AddDate(0, 0, 14), n.ExpiresAt, "template expiry wins over the default")
}

func TestCreateFromTemplateOptionsOverrideDefaults(t *testing.T) {
	h := newHarness(t)
	h.renderer.templates["rating_reminder"] = &model.NotificationTemplate{
		Name:           "rating_reminder",
		Category:       model.NotificationCategoryRating,
		TitlePattern:   "Rate {event_title}",
		MessagePattern: "You have {days_remaining} days left.",
		Priority:       model.NotificationPriorityNormal,
	}

	eventID := uuid.New()
	n, err := h.svc.CreateFromTemplate(context.Background(), h.recipient, "rating_reminder",
		template.Vars{"event_title": "Beach Cleanup", "days_remaining": "1"},
		&Options{Priority: model.NotificationPriorityUrgent, EventID: &eventID})
	require.NoError(t, err)

	assert.Equal(t, model.NotificationPriorityUrgent, n.Priority)
	require.NotNil(t, n.EventID)
	assert.Equal(t, eventID, *n.EventID)
}

func TestCreateFromTemplateUnknownTemplateCreatesNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateFromTemplate(context.Background(), h.recipient, "no_such_template", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrTemplateNotFound)
	assert.Empty(t, h.repo.store)
	assert.Equal(t, 0, h.inApp.sent())
}

func TestMarkAsReadAndActed(t *testing.T) {
	h := newHarness(t)

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	read, err := h.svc.MarkAsRead(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusRead, read.Status)
	assert.NotNil(t, read.ReadAt)

	acted, err := h.svc.MarkAsActed(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusActed, acted.Status)
	assert.NotNil(t, acted.ClickedAt)
}

func TestAdvanceLeavesTerminalStatesAlone(t *testing.T) {
	h := newHarness(t)

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	n.Status = model.NotificationStatusArchived
	require.NoError(t, h.repo.Update(context.Background(), n))

	got, err := h.svc.MarkAsRead(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusArchived, got.Status, "terminal status is a no-op")
}

func TestGetUnreadCount(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)
	_, err = h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	count, err := h.svc.GetUnreadCount(context.Background(), h.recipient)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = h.svc.MarkAsRead(context.Background(), first.ID)
	require.NoError(t, err)

	count, err = h.svc.GetUnreadCount(context.Background(), h.recipient)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanupExpired(t *testing.T) {
	h := newHarness(t)

	n, err := h.svc.Create(context.Background(), h.input())
	require.NoError(t, err)

	// Nothing has expired yet.
	moved, err := h.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)

	h.now = h.now.AddDate(0, 0, 31)
	moved, err = h.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	stored, err := h.repo.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusExpired, stored.Status)

	// A second pass finds nothing left to move.
	moved, err = h.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
}
