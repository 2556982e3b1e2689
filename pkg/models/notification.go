package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Notification Kind
// ============================================================================

// NotificationKind distinguishes immediate alerts from batched digests.
type NotificationKind string

const (
	NotificationUrgent       NotificationKind = "urgent_alert"
	NotificationDigest       NotificationKind = "digest"
	NotificationExpiringSoon NotificationKind = "expiring_soon"
	NotificationDailyDigest  NotificationKind = "daily_digest"
)

// ============================================================================
// Notification Settings
// ============================================================================

// NotificationSettings is per-account, read-mostly configuration consumed by
// the notification policy.
type NotificationSettings struct {
	AccountID uuid.UUID `json:"account_id"`

	EnabledCategories []OpportunityCategory `json:"enabled_categories"`
	MinConfidence     float64               `json:"min_confidence"` // 0.0-1.0
	MinImpact         float64               `json:"min_impact"`     // 0-100

	RealTimeEnabled bool `json:"real_time_enabled"`
	DigestEnabled   bool `json:"digest_enabled"`
	DigestSize      int  `json:"digest_size"` // top-K for the daily digest

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultNotificationSettings returns the settings used when an account has
// never customized its preferences.
func DefaultNotificationSettings(accountID uuid.UUID) *NotificationSettings {
	return &NotificationSettings{
		AccountID:         accountID,
		EnabledCategories: append([]OpportunityCategory(nil), ValidOpportunityCategories...),
		MinConfidence:     0.3,
		MinImpact:         20,
		RealTimeEnabled:   true,
		DigestEnabled:     true,
		DigestSize:        5,
	}
}

// CategoryEnabled returns true if the account receives the given category.
func (s *NotificationSettings) CategoryEnabled(c OpportunityCategory) bool {
	for _, v := range s.EnabledCategories {
		if v == c {
			return true
		}
	}
	return false
}

// ============================================================================
// Notification Model
// ============================================================================

// Notification is an outbound alert handed to the notification sink.
// Delivery is fire-and-forget; the core does not track confirmation.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	AccountID uuid.UUID        `json:"account_id"`
	Kind      NotificationKind `json:"kind"`

	Title string `json:"title"`
	Body  string `json:"body,omitempty"`

	// SuggestionIDs are the opportunities bundled into this notification.
	// Urgent alerts carry exactly one.
	SuggestionIDs []uuid.UUID `json:"suggestion_ids"`

	CreatedAt time.Time `json:"created_at"`
}
