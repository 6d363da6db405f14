package notification

import (
	"context"
	"fmt"

	"github.com/voluntree/engage-api/internal/email"
	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/messaging"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// Channel is one delivery medium. Implementations must be safe for
// concurrent use; the dispatcher fans out across all enabled channels
// at once.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *model.Notification, recipient *model.User) error
}

// inAppChannel publishes the notification onto the message broker for
// connected clients. It has no external transport dependency, which
// is why the dispatcher marks in-app deliveries as delivered
// immediately.
type inAppChannel struct {
	broker messaging.Broker
	topic  string
}

func NewInAppChannel(broker messaging.Broker, topic string) Channel {
	if topic == "" {
		topic = "notifications"
	}
	return &inAppChannel{broker: broker, topic: topic}
}

func (c *inAppChannel) Name() string { return ChannelInApp }

func (c *inAppChannel) Send(ctx context.Context, n *model.Notification, _ *model.User) error {
	return c.broker.Publish(ctx, c.topic, messaging.Message{
		Type:    "in_app_notification",
		Payload: n,
	})
}

type emailChannel struct {
	svc email.Service
}

func NewEmailChannel(svc email.Service) Channel {
	return &emailChannel{svc: svc}
}

func (c *emailChannel) Name() string { return ChannelEmail }

// Enabled mirrors the underlying transport: no SMTP host configured
// means the channel sits out of dispatch entirely.
func (c *emailChannel) Enabled() bool { return c.svc.Enabled() }

func (c *emailChannel) Send(ctx context.Context, n *model.Notification, recipient *model.User) error {
	if recipient == nil || recipient.Email == "" {
		return fmt.Errorf("recipient has no email address")
	}
	body := fmt.Sprintf("<p>%s</p>", n.Message)
	return c.svc.Send(ctx, recipient.Email, n.Title, body)
}

// pushChannel is a log-only stub kept behind the Channel interface so
// a real provider can be substituted without touching the dispatcher.
type pushChannel struct {
	logger *logger.Logger
}

func NewPushChannel(l *logger.Logger) Channel {
	return &pushChannel{logger: l}
}

func (c *pushChannel) Name() string { return ChannelPush }

func (c *pushChannel) Send(_ context.Context, n *model.Notification, _ *model.User) error {
	c.logger.Info("push notification (stub)",
		"notification_id", n.ID.String(),
		"recipient_id", n.RecipientID.String(),
		"title", n.Title,
	)
	return nil
}

// smsChannel is a log-only stub, same contract as push.
type smsChannel struct {
	logger *logger.Logger
}

func NewSMSChannel(l *logger.Logger) Channel {
	return &smsChannel{logger: l}
}

func (c *smsChannel) Name() string { return ChannelSMS }

func (c *smsChannel) Send(_ context.Context, n *model.Notification, _ *model.User) error {
	c.logger.Info("sms notification (stub)",
		"notification_id", n.ID.String(),
		"recipient_id", n.RecipientID.String(),
	)
	return nil
}
