package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Contact Status
// ============================================================================

// ContactStatus represents the lifecycle state of a contact record.
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusArchived ContactStatus = "archived"
)

// ValidContactStatuses contains all valid contact status values.
var ValidContactStatuses = []ContactStatus{
	ContactStatusActive,
	ContactStatusArchived,
}

// IsValidContactStatus checks if the given status is valid.
func IsValidContactStatus(s ContactStatus) bool {
	for _, v := range ValidContactStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Contact Tier
// ============================================================================

// ContactTier is the coarse manual priority bucket assigned by the user.
// It is distinct from the computed priority score.
type ContactTier string

const (
	TierA ContactTier = "A"
	TierB ContactTier = "B"
	TierC ContactTier = "C"
)

// ValidContactTiers contains all valid tier values.
var ValidContactTiers = []ContactTier{TierA, TierB, TierC}

// IsValidContactTier checks if the given tier is valid.
func IsValidContactTier(t ContactTier) bool {
	for _, v := range ValidContactTiers {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Opportunity Flags
// ============================================================================

// OpportunityFlag is a tag derived by the scorer from threshold rules on
// position text and network shape.
type OpportunityFlag string

const (
	FlagDecisionMaker     OpportunityFlag = "decision_maker"
	FlagWarmIntroAvail    OpportunityFlag = "warm_intro_available"
	FlagDormantHighValue  OpportunityFlag = "dormant_high_value"
	FlagConnector         OpportunityFlag = "connector"
	FlagExpansionSignal   OpportunityFlag = "expansion_signal"
)

// ValidOpportunityFlags contains all valid opportunity flag values.
var ValidOpportunityFlags = []OpportunityFlag{
	FlagDecisionMaker,
	FlagWarmIntroAvail,
	FlagDormantHighValue,
	FlagConnector,
	FlagExpansionSignal,
}

// ============================================================================
// Contact Model
// ============================================================================

// Contact is a person in the user's network. Identity fields come from
// ingestion; the three derived scores and the flag set are written only by
// the contact scorer.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	Name     string       `json:"name"`
	Email    *string      `json:"email,omitempty"`
	Company  string       `json:"company,omitempty"`
	Position string       `json:"position,omitempty"`
	Location string       `json:"location,omitempty"`
	Industry string       `json:"industry,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Source   string       `json:"source,omitempty"`
	Tier     *ContactTier `json:"tier,omitempty"`

	Status ContactStatus `json:"status"`

	// Derived scores, 0-100. Written back by batch scoring together with
	// OpportunityFlags and LastScoredAt.
	PriorityScore    float64           `json:"priority_score"`
	OpportunityScore float64           `json:"opportunity_score"`
	StrategicValue   float64           `json:"strategic_value"`
	OpportunityFlags []OpportunityFlag `json:"opportunity_flags,omitempty"`
	LastScoredAt     *time.Time        `json:"last_scored_at,omitempty"`

	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the contact participates in discovery and scoring.
func (c *Contact) IsActive() bool {
	return c.Status == ContactStatusActive
}

// HasFlag returns true if the given opportunity flag is set on the contact.
func (c *Contact) HasFlag(flag OpportunityFlag) bool {
	for _, f := range c.OpportunityFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// DaysSinceContact returns the number of whole days since the last logged
// outreach, and false if outreach was never logged.
func (c *Contact) DaysSinceContact(now time.Time) (int, bool) {
	if c.LastContactedAt == nil {
		return 0, false
	}
	return int(now.Sub(*c.LastContactedAt).Hours() / 24), true
}
