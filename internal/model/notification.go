package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusRead      NotificationStatus = "read"
	NotificationStatusActed     NotificationStatus = "acted"
	NotificationStatusExpired   NotificationStatus = "expired"
	NotificationStatusArchived  NotificationStatus = "archived"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

type NotificationCategory string

const (
	NotificationCategoryEvent   NotificationCategory = "event"
	NotificationCategoryRating  NotificationCategory = "rating"
	NotificationCategoryMessage NotificationCategory = "message"
	NotificationCategorySystem  NotificationCategory = "system"
)

type Notification struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	RecipientID uuid.UUID            `json:"recipient_id" db:"recipient_id"`
	Category    NotificationCategory `json:"category" db:"category"`
	Subcategory string               `json:"subcategory,omitempty" db:"subcategory"`
	Title       string               `json:"title" db:"title"`
	Message     string               `json:"message" db:"message"`
	ActionText  string               `json:"action_text,omitempty" db:"action_text"`
	ActionURL   string               `json:"action_url,omitempty" db:"action_url"`
	Priority    NotificationPriority `json:"priority" db:"priority"`
	Status      NotificationStatus   `json:"status" db:"status"`
	EventID     *uuid.UUID           `json:"event_id,omitempty" db:"event_id"`
	GroupID     *uuid.UUID           `json:"group_id,omitempty" db:"group_id"`
	SentAt      *time.Time           `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt *time.Time           `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt      *time.Time           `json:"read_at,omitempty" db:"read_at"`
	ClickedAt   *time.Time           `json:"clicked_at,omitempty" db:"clicked_at"`
	ExpiresAt   time.Time            `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the notification can still advance.
// Expiry applies to every non-terminal state.
func (n *Notification) IsTerminal() bool {
	switch n.Status {
	case NotificationStatusRead, NotificationStatusActed,
		NotificationStatusExpired, NotificationStatusArchived:
		return true
	}
	return false
}

// NotificationTemplate is a versioned pattern for notification
// content. The renderer always picks the highest active version per
// name.
type NotificationTemplate struct {
	ID             uuid.UUID            `json:"id" db:"id"`
	Name           string               `json:"name" db:"name"`
	Version        int                  `json:"version" db:"version"`
	Active         bool                 `json:"active" db:"active"`
	Category       NotificationCategory `json:"category" db:"category"`
	Subcategory    string               `json:"subcategory,omitempty" db:"subcategory"`
	TitlePattern   string               `json:"title_pattern" db:"title_pattern"`
	MessagePattern string               `json:"message_pattern" db:"message_pattern"`
	ActionPattern  string               `json:"action_pattern,omitempty" db:"action_pattern"`
	Priority       NotificationPriority `json:"priority" db:"priority"`
	ExpiryDays     int                  `json:"expiry_days" db:"expiry_days"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// ChannelToggles is one enable/disable set across the four delivery
// channels.
type ChannelToggles struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	InApp bool `json:"in_app"`
	SMS   bool `json:"sms"`
}

// UserNotificationPreferences is consulted (never mutated) by the
// dispatcher. Created lazily with category defaults on first contact.
type UserNotificationPreferences struct {
	UserID          uuid.UUID                               `json:"user_id" db:"user_id"`
	Global          ChannelToggles                          `json:"global"`
	Categories      map[NotificationCategory]ChannelToggles `json:"categories"`
	Timezone        string                                  `json:"timezone" db:"timezone"`
	DigestFrequency string                                  `json:"digest_frequency" db:"digest_frequency"`
	CreatedAt       time.Time                               `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                               `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences is the lazily-created preference record:
// event/rating fully on except SMS, message push+in-app, system
// email+in-app.
func DefaultPreferences(userID uuid.UUID) *UserNotificationPreferences {
	return &UserNotificationPreferences{
		UserID: userID,
		Global: ChannelToggles{Email: true, Push: true, InApp: true, SMS: false},
		Categories: map[NotificationCategory]ChannelToggles{
			NotificationCategoryEvent:   {Email: true, Push: true, InApp: true},
			NotificationCategoryRating:  {Email: true, Push: true, InApp: true},
			NotificationCategoryMessage: {Push: true, InApp: true},
			NotificationCategorySystem:  {Email: true, InApp: true},
		},
		Timezone:        "UTC",
		DigestFrequency: "immediate",
	}
}

// EnabledChannels resolves the channels a notification in the given
// category may use: a channel must be on both globally and for the
// category. Unknown categories fall back to in-app only.
func (p *UserNotificationPreferences) EnabledChannels(category NotificationCategory) ChannelToggles {
	cat, ok := p.Categories[category]
	if !ok {
		return ChannelToggles{InApp: true}
	}
	return ChannelToggles{
		Email: p.Global.Email && cat.Email,
		Push:  p.Global.Push && cat.Push,
		InApp: p.Global.InApp && cat.InApp,
		SMS:   p.Global.SMS && cat.SMS,
	}
}
