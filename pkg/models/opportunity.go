package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Opportunity Category and Type
// ============================================================================

// OpportunityCategory groups suggestions by the pattern that produced them.
type OpportunityCategory string

const (
	CategoryReconnection  OpportunityCategory = "reconnection"
	CategoryIntroduction  OpportunityCategory = "introduction"
	CategoryBusinessMatch OpportunityCategory = "business_match"
)

// ValidOpportunityCategories contains all valid category values.
var ValidOpportunityCategories = []OpportunityCategory{
	CategoryReconnection,
	CategoryIntroduction,
	CategoryBusinessMatch,
}

// IsValidOpportunityCategory checks if the given category is valid.
func IsValidOpportunityCategory(c OpportunityCategory) bool {
	for _, v := range ValidOpportunityCategories {
		if v == c {
			return true
		}
	}
	return false
}

// OpportunityType is the specific pattern variant within a category.
type OpportunityType string

const (
	TypeReconnectDormant  OpportunityType = "reconnect_dormant"
	TypeWarmIntroduction  OpportunityType = "warm_introduction"
	TypeStrategicCluster  OpportunityType = "strategic_cluster"
)

// ============================================================================
// Priority
// ============================================================================

// OpportunityPriority buckets a suggestion for triage.
type OpportunityPriority string

const (
	PriorityLow    OpportunityPriority = "low"
	PriorityMedium OpportunityPriority = "medium"
	PriorityHigh   OpportunityPriority = "high"
	PriorityUrgent OpportunityPriority = "urgent"
)

// ValidOpportunityPriorities contains all valid priority values.
var ValidOpportunityPriorities = []OpportunityPriority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityUrgent,
}

// Priority bucket thresholds over the composite confidence*impact score
// (0-100 scale).
const (
	UrgentCompositeThreshold = 85.0
	HighCompositeThreshold   = 65.0
	MediumCompositeThreshold = 40.0
)

// PriorityFromComposite buckets a composite score (confidence * impact,
// 0-100) into a priority. The mapping is monotonic: a higher composite never
// yields a lower priority.
func PriorityFromComposite(composite float64) OpportunityPriority {
	switch {
	case composite >= UrgentCompositeThreshold:
		return PriorityUrgent
	case composite >= HighCompositeThreshold:
		return PriorityHigh
	case composite >= MediumCompositeThreshold:
		return PriorityMedium
	}
	return PriorityLow
}

// ============================================================================
// Opportunity Status
// ============================================================================

// OpportunityStatus is the lifecycle state of a suggestion. Status is
// advanced only by user action or expiry.
type OpportunityStatus string

const (
	OppStatusPending    OpportunityStatus = "pending"
	OppStatusViewed     OpportunityStatus = "viewed"
	OppStatusAccepted   OpportunityStatus = "accepted"
	OppStatusInProgress OpportunityStatus = "in_progress"
	OppStatusCompleted  OpportunityStatus = "completed"
	OppStatusRejected   OpportunityStatus = "rejected"
	OppStatusExpired    OpportunityStatus = "expired"
)

// ValidOpportunityStatuses contains all valid status values.
var ValidOpportunityStatuses = []OpportunityStatus{
	OppStatusPending,
	OppStatusViewed,
	OppStatusAccepted,
	OppStatusInProgress,
	OppStatusCompleted,
	OppStatusRejected,
	OppStatusExpired,
}

// IsValidOpportunityStatus checks if the given status is valid.
func IsValidOpportunityStatus(s OpportunityStatus) bool {
	for _, v := range ValidOpportunityStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminalStatus returns true for statuses that close a suggestion.
// Terminal suggestions are immutable except for feedback metadata.
func IsTerminalStatus(s OpportunityStatus) bool {
	return s == OppStatusCompleted || s == OppStatusRejected || s == OppStatusExpired
}

// IsAcceptedStatus returns true for statuses a suggestion reaches only by
// the user taking it up. Rejecting acts on a suggestion without accepting it.
func IsAcceptedStatus(s OpportunityStatus) bool {
	return s == OppStatusAccepted || s == OppStatusInProgress || s == OppStatusCompleted
}

// ============================================================================
// Opportunity Suggestion Model
// ============================================================================

// OpportunitySuggestion is an actionable pattern surfaced to the user:
// a reconnection, a warm introduction path, or a strategic cluster.
type OpportunitySuggestion struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	Category OpportunityCategory `json:"category"`
	Type     OpportunityType     `json:"type"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Narrative is optional LLM-generated framing. Empty when the summarizer
	// is unavailable or timed out; never blocks generation.
	Narrative *string `json:"narrative,omitempty"`

	PrimaryContactID uuid.UUID   `json:"primary_contact_id"`
	PathContactIDs   []uuid.UUID `json:"path_contact_ids,omitempty"`

	ConfidenceScore float64             `json:"confidence_score"` // 0.0-1.0
	ImpactScore     float64             `json:"impact_score"`     // 0-100
	Priority        OpportunityPriority `json:"priority"`

	// PathSignature dedups regeneration: while a non-terminal suggestion
	// exists for (category, primary contact, path signature), no new one is
	// created.
	PathSignature string `json:"path_signature"`

	Status OpportunityStatus `json:"status"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ActedAt   *time.Time `json:"acted_at,omitempty"`

	// Closed-outcome metadata, written once by feedback recording.
	Outcome      *FeedbackOutcome `json:"outcome,omitempty"`
	Rating       *int             `json:"rating,omitempty"`
	ActualImpact *float64         `json:"actual_impact,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal returns true once the suggestion has been closed.
func (o *OpportunitySuggestion) IsTerminal() bool {
	return IsTerminalStatus(o.Status)
}

// CompositeScore returns confidence*impact on the 0-100 scale used for
// priority bucketing and digest ranking.
func (o *OpportunitySuggestion) CompositeScore() float64 {
	return o.ConfidenceScore * o.ImpactScore
}

// IsExpired returns true if the suggestion has an expiry in the past.
func (o *OpportunitySuggestion) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// ExpiringSoon returns true if the suggestion expires within the window.
func (o *OpportunitySuggestion) ExpiringSoon(now time.Time, window time.Duration) bool {
	if o.ExpiresAt == nil || o.IsTerminal() {
		return false
	}
	return o.ExpiresAt.After(now) && o.ExpiresAt.Before(now.Add(window))
}
