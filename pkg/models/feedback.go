package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
)

// ============================================================================
// Feedback Outcome
// ============================================================================

// FeedbackOutcome is the user-reported real-world result of acting on an
// opportunity.
type FeedbackOutcome string

const (
	OutcomeSuccess        FeedbackOutcome = "success"
	OutcomePartialSuccess FeedbackOutcome = "partial_success"
	OutcomeNoResult       FeedbackOutcome = "no_result"
	OutcomeNegative       FeedbackOutcome = "negative"
)

// ValidFeedbackOutcomes contains all valid outcome values.
var ValidFeedbackOutcomes = []FeedbackOutcome{
	OutcomeSuccess,
	OutcomePartialSuccess,
	OutcomeNoResult,
	OutcomeNegative,
}

// IsValidFeedbackOutcome checks if the given outcome is valid.
func IsValidFeedbackOutcome(o FeedbackOutcome) bool {
	for _, v := range ValidFeedbackOutcomes {
		if v == o {
			return true
		}
	}
	return false
}

// ============================================================================
// Opportunity Feedback Model
// ============================================================================

// OpportunityFeedback is the write-once outcome record for a closed
// opportunity. It feeds the recalibrator.
type OpportunityFeedback struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`

	Rating              int             `json:"rating"` // 1-5
	ActualOutcome       FeedbackOutcome `json:"actual_outcome"`
	ActualImpact        float64         `json:"actual_impact"` // 0-100
	TimeInvestedMinutes int             `json:"time_invested_minutes"`
	Notes               *string         `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate rejects malformed feedback before anything is persisted.
func (f *OpportunityFeedback) Validate() error {
	if f.OpportunityID == uuid.Nil {
		return fmt.Errorf("%w: opportunity id is required", apperrors.ErrValidation)
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", apperrors.ErrValidation, f.Rating)
	}
	if !IsValidFeedbackOutcome(f.ActualOutcome) {
		return fmt.Errorf("%w: unknown outcome %q", apperrors.ErrValidation, f.ActualOutcome)
	}
	if f.ActualImpact < 0 || f.ActualImpact > 100 {
		return fmt.Errorf("%w: actual impact must be in [0,100], got %.2f", apperrors.ErrValidation, f.ActualImpact)
	}
	if f.TimeInvestedMinutes < 0 {
		return fmt.Errorf("%w: time invested cannot be negative", apperrors.ErrValidation)
	}
	return nil
}

// ============================================================================
// Learning Signal
// ============================================================================

// SuccessImpactRatio: an opportunity counts as a success only if the realized
// impact reached this fraction of the predicted impact.
const SuccessImpactRatio = 0.8

// LearningSignal is the derived training record emitted on feedback. Success
// requires a rating of at least 4, a reported success outcome, and realized
// impact within SuccessImpactRatio of the prediction.
type LearningSignal struct {
	Category            OpportunityCategory `json:"category"`
	Type                OpportunityType     `json:"type"`
	PredictedConfidence float64             `json:"predicted_confidence"`
	PredictedImpact     float64             `json:"predicted_impact"`
	ActualOutcome       FeedbackOutcome     `json:"actual_outcome"`
	ActualImpact        float64             `json:"actual_impact"`
	Success             bool                `json:"success"`
}

// NewLearningSignal derives the learning signal for a closed opportunity.
func NewLearningSignal(opp *OpportunitySuggestion, fb *OpportunityFeedback) LearningSignal {
	success := fb.Rating >= 4 &&
		fb.ActualOutcome == OutcomeSuccess &&
		fb.ActualImpact >= SuccessImpactRatio*opp.ImpactScore

	return LearningSignal{
		Category:            opp.Category,
		Type:                opp.Type,
		PredictedConfidence: opp.ConfidenceScore,
		PredictedImpact:     opp.ImpactScore,
		ActualOutcome:       fb.ActualOutcome,
		ActualImpact:        fb.ActualImpact,
		Success:             success,
	}
}
