package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	"github.com/voluntree/engage-api/internal/service/template"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
	"github.com/voluntree/engage-api/pkg/fanout"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/metrics"
)

const (
	defaultExpiryDays  = 30
	defaultSendTimeout = 10 * time.Second
)

// Renderer is the template port consumed by CreateFromTemplate.
type Renderer interface {
	Render(ctx context.Context, name string, vars template.Vars) (*template.Rendered, error)
}

// CreateInput carries the caller-supplied notification fields.
type CreateInput struct {
	RecipientID uuid.UUID                  `validate:"required"`
	Category    model.NotificationCategory `validate:"required"`
	Subcategory string
	Title       string `validate:"required"`
	Message     string `validate:"required"`
	ActionText  string
	ActionURL   string
	Priority    model.NotificationPriority
	EventID     *uuid.UUID
	GroupID     *uuid.UUID
	// ExpiresInDays of zero means the 30-day default.
	ExpiresInDays int
}

// Options overrides template defaults in CreateFromTemplate.
type Options struct {
	Priority      model.NotificationPriority
	ExpiresInDays int
	ActionURL     string
	EventID       *uuid.UUID
	GroupID       *uuid.UUID
}

type Service struct {
	repo        repository.NotificationRepository
	prefs       repository.PreferencesRepository
	users       repository.UserRepository
	renderer    Renderer
	channels    map[string]Channel
	sendTimeout time.Duration
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(
	repo repository.NotificationRepository,
	prefs repository.PreferencesRepository,
	users repository.UserRepository,
	renderer Renderer,
	channels []Channel,
	l *logger.Logger,
	m *metrics.Metrics,
) *Service {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		// A channel without a working transport, email with no SMTP
		// host being the usual case, is treated as absent rather than
		// left to fail every send.
		if sw, ok := ch.(interface{ Enabled() bool }); ok && !sw.Enabled() {
			continue
		}
		byName[ch.Name()] = ch
	}
	return &Service{
		repo:        repo,
		prefs:       prefs,
		users:       users,
		renderer:    renderer,
		channels:    byName,
		sendTimeout: defaultSendTimeout,
		logger:      l,
		metrics:     m,
		now:         time.Now,
	}
}

// Create persists the notification and immediately attempts delivery
// across the recipient's enabled channels. Delivery is best-effort: a
// channel failure is logged, never returned, and never rolls the
// record back.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*model.Notification, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	expiresIn := input.ExpiresInDays
	if expiresIn <= 0 {
		expiresIn = defaultExpiryDays
	}
	priority := input.Priority
	if priority == "" {
		priority = model.NotificationPriorityNormal
	}

	n := &model.Notification{
		ID:          uuid.New(),
		RecipientID: input.RecipientID,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Title:       input.Title,
		Message:     input.Message,
		ActionText:  input.ActionText,
		ActionURL:   input.ActionURL,
		Priority:    priority,
		Status:      model.NotificationStatusPending,
		EventID:     input.EventID,
		GroupID:     input.GroupID,
		ExpiresAt:   now.AddDate(0, 0, expiresIn),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.metrics.NotificationsCreated.Inc()

	s.deliver(ctx, n)

	return n, nil
}

// CreateFromTemplate renders the named template and dispatches the
// result. Template defaults for priority and expiry apply unless the
// options override them.
func (s *Service) CreateFromTemplate(ctx context.Context, recipientID uuid.UUID, name string, vars template.Vars, opts *Options) (*model.Notification, error) {
	rendered, err := s.renderer.Render(ctx, name, vars)
	if err != nil {
		return nil, err
	}

	input := &CreateInput{
		RecipientID:   recipientID,
		Category:      rendered.Template.Category,
		Subcategory:   rendered.Template.Subcategory,
		Title:         rendered.Title,
		Message:       rendered.Message,
		ActionText:    rendered.ActionText,
		Priority:      rendered.Template.Priority,
		ExpiresInDays: rendered.Template.ExpiryDays,
	}
	if opts != nil {
		if opts.Priority != "" {
			input.Priority = opts.Priority
		}
		if opts.ExpiresInDays > 0 {
			input.ExpiresInDays = opts.ExpiresInDays
		}
		input.ActionURL = opts.ActionURL
		input.EventID = opts.EventID
		input.GroupID = opts.GroupID
	}

	return s.Create(ctx, input)
}

// deliver fans the notification out to every enabled channel and
// settles all sends before advancing the record to sent. In-app
// deliveries are additionally marked delivered since there is no
// transport in between.
func (s *Service) deliver(ctx context.Context, n *model.Notification) {
	timer := prometheus.NewTimer(s.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	toggles := s.resolveToggles(ctx, n.RecipientID, n.Category)
	recipient := s.resolveRecipient(ctx, n.RecipientID)

	jobs := make(map[string]func(context.Context) error)
	add := func(name string, enabled bool) {
		ch, ok := s.channels[name]
		if !ok || !enabled {
			return
		}
		jobs[name] = func(jobCtx context.Context) error {
			return ch.Send(jobCtx, n, recipient)
		}
	}
	add(ChannelInApp, toggles.InApp)
	add(ChannelEmail, toggles.Email)
	add(ChannelPush, toggles.Push)
	add(ChannelSMS, toggles.SMS)

	results := fanout.SettleAll(ctx, s.sendTimeout, jobs)

	inAppDelivered := false
	for _, r := range results {
		if r.Failed() {
			s.metrics.ChannelSends.WithLabelValues(r.Name, "error").Inc()
			s.logger.Error(r.Err, "channel send failed",
				"notification_id", n.ID.String(),
				"channel", r.Name,
			)
			continue
		}
		s.metrics.ChannelSends.WithLabelValues(r.Name, "success").Inc()
		if r.Name == ChannelInApp {
			inAppDelivered = true
		}
	}

	now := s.now()
	n.Status = model.NotificationStatusSent
	n.SentAt = &now
	if inAppDelivered {
		n.Status = model.NotificationStatusDelivered
		n.DeliveredAt = &now
	}

	if err := s.repo.Update(ctx, n); err != nil {
		s.logger.Error(err, "failed to mark notification sent",
			"notification_id", n.ID.String())
	}
}

// resolveToggles loads the recipient's preferences, creating the
// default record on first contact. Resolution never fails: any
// problem falls back to in-app only.
func (s *Service) resolveToggles(ctx context.Context, userID uuid.UUID, category model.NotificationCategory) model.ChannelToggles {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		s.logger.Error(err, "failed to load preferences", "user_id", userID.String())
		return model.ChannelToggles{InApp: true}
	}
	if prefs == nil {
		prefs = model.DefaultPreferences(userID)
		if err := s.prefs.Create(ctx, prefs); err != nil {
			s.logger.Error(err, "failed to create default preferences", "user_id", userID.String())
		}
	}
	return prefs.EnabledChannels(category)
}

func (s *Service) resolveRecipient(ctx context.Context, userID uuid.UUID) *model.User {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load recipient, transport channels will be skipped",
			"user_id", userID.String(), "error", err.Error())
		return nil
	}
	return user
}

// MarkAsRead advances the notification to read. Terminal states are
// left untouched.
func (s *Service) MarkAsRead(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.advance(ctx, id, model.NotificationStatusRead)
}

// MarkAsActed advances the notification to acted.
func (s *Service) MarkAsActed(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.advance(ctx, id, model.NotificationStatusActed)
}

func (s *Service) advance(ctx context.Context, id uuid.UUID, to model.NotificationStatus) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if n.IsTerminal() {
		return n, nil
	}

	now := s.now()
	n.Status = to
	switch to {
	case model.NotificationStatusRead:
		n.ReadAt = &now
	case model.NotificationStatusActed:
		n.ClickedAt = &now
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	return n, nil
}

// GetUserNotifications lists the recipient's notifications newest
// first.
func (s *Service) GetUserNotifications(ctx context.Context, userID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, error) {
	notifications, err := s.repo.ListByRecipient(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// CleanupExpired bulk-transitions every notification past its expiry
// into expired. Idempotent; already-expired rows are excluded by the
// status filter.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire notifications: %w", err)
	}
	if expired > 0 {
		s.metrics.NotificationsExpired.Add(float64(expired))
		s.logger.Info("expired stale notifications", "count", expired)
	}
	return expired, nil
}

var validate = validator.New()

func validateInput(input *CreateInput) error {
	if input == nil {
		return apperrors.ErrInvalidNotificationData
	}
	if err := validate.Struct(input); err != nil {
		return apperrors.ErrInvalidNotificationData
	}
	return nil
}
