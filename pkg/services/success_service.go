package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// SuccessMetrics summarizes how well suggestions performed over a window.
type SuccessMetrics struct {
	WindowDays int `json:"window_days"`

	TotalSuggestions int `json:"total_suggestions"`
	ActedCount       int `json:"acted_count"`
	AcceptedCount    int `json:"accepted_count"`
	CompletedCount   int `json:"completed_count"`
	ExpiredCount     int `json:"expired_count"`
	FeedbackCount    int `json:"feedback_count"`
	SuccessCount     int `json:"success_count"`

	// AcceptanceRate is accepted suggestions (status reached accepted,
	// in_progress, or completed) over all non-expired suggestions. A
	// rejection is an action, not an acceptance. Expired entries are
	// excluded from the denominator: the user never had to decide on them.
	AcceptanceRate float64 `json:"acceptance_rate"`

	// CompletionRate is completed over accepted.
	CompletionRate float64 `json:"completion_rate"`

	MeanHoursToAction       float64 `json:"mean_hours_to_action"`
	MedianHoursToAction     float64 `json:"median_hours_to_action"`
	MeanHoursToCompletion   float64 `json:"mean_hours_to_completion"`
	MedianHoursToCompletion float64 `json:"median_hours_to_completion"`

	// ConfidenceAccuracy is the agreement rate between "confidence above 0.7
	// predicts success" and the derived success signal, over suggestions that
	// received feedback.
	ConfidenceAccuracy float64 `json:"confidence_accuracy"`

	// ImpactAccuracy is 1 minus the mean relative error between predicted
	// and reported impact, clipped to [0,1].
	ImpactAccuracy float64 `json:"impact_accuracy"`

	CategoryAcceptance map[models.OpportunityCategory]float64 `json:"category_acceptance"`
}

// confidencePredictionThreshold is the cut above which a suggestion is
// counted as predicting success.
const confidencePredictionThreshold = 0.7

// Recommendation is an advisory tuning suggestion. The engine never applies
// these automatically.
type Recommendation struct {
	Target    string `json:"target"`    // config key or factor weight name
	Direction string `json:"direction"` // "raise" or "lower"
	Reason    string `json:"reason"`
}

// Acceptance bounds that trigger threshold recommendations.
const (
	acceptanceRaiseAbove = 0.8
	acceptanceLowerBelow = 0.3
	categoryLagPoints    = 20.0
)

// SuccessService records feedback and derives recalibration metrics from it.
type SuccessService interface {
	// RecordFeedback validates and persists write-once feedback for an
	// opportunity and returns the derived learning signal.
	RecordFeedback(ctx context.Context, fb *models.OpportunityFeedback) (*models.LearningSignal, error)

	// ComputeMetrics aggregates outcome metrics over the trailing window.
	ComputeMetrics(ctx context.Context, windowDays int) (*SuccessMetrics, error)

	// RecommendAdjustments turns the window's metrics into advisory tuning
	// recommendations.
	RecommendAdjustments(ctx context.Context, windowDays int) ([]Recommendation, error)
}

type successService struct {
	oppRepo      repositories.OpportunityRepository
	feedbackRepo repositories.FeedbackRepository
	weights      *config.ScoringWeights
	logger       *zap.Logger
}

// NewSuccessService creates a new SuccessService.
func NewSuccessService(
	oppRepo repositories.OpportunityRepository,
	feedbackRepo repositories.FeedbackRepository,
	weights *config.ScoringWeights,
	logger *zap.Logger,
) SuccessService {
	return &successService{
		oppRepo:      oppRepo,
		feedbackRepo: feedbackRepo,
		weights:      weights,
		logger:       logger.Named("success"),
	}
}

var _ SuccessService = (*successService)(nil)

// ============================================================================
// Feedback Recording
// ============================================================================

func (s *successService) RecordFeedback(ctx context.Context, fb *models.OpportunityFeedback) (*models.LearningSignal, error) {
	if err := fb.Validate(); err != nil {
		return nil, err
	}

	opp, err := s.oppRepo.GetByID(ctx, fb.OpportunityID)
	if err != nil {
		return nil, err
	}

	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	fb.AccountID = opp.AccountID

	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.oppRepo.AttachFeedback(ctx, opp.ID, fb.ActualOutcome, fb.Rating, fb.ActualImpact, now); err != nil {
		return nil, fmt.Errorf("attach feedback to opportunity: %w", err)
	}

	signal := models.NewLearningSignal(opp, fb)

	s.logger.Info("feedback recorded",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("category", string(opp.Category)),
		zap.Int("rating", fb.Rating),
		zap.String("outcome", string(fb.ActualOutcome)),
		zap.Bool("success", signal.Success))

	return &signal, nil
}

// ============================================================================
// Metrics
// ============================================================================

func (s *successService) ComputeMetrics(ctx context.Context, windowDays int) (*SuccessMetrics, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	opps, err := s.oppRepo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	feedback, err := s.feedbackRepo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	m := &SuccessMetrics{
		WindowDays:         windowDays,
		TotalSuggestions:   len(opps),
		CategoryAcceptance: make(map[models.OpportunityCategory]float64),
	}

	oppByID := make(map[uuid.UUID]*models.OpportunitySuggestion, len(opps))
	catTotal := make(map[models.OpportunityCategory]int)
	catAccepted := make(map[models.OpportunityCategory]int)

	var hoursToAction []float64
	var hoursToCompletion []float64

	decided := 0
	for _, o := range opps {
		oppByID[o.ID] = o

		if o.Status == models.OppStatusExpired {
			m.ExpiredCount++
			continue
		}
		decided++
		catTotal[o.Category]++

		if o.ActedAt != nil {
			m.ActedCount++
			hoursToAction = append(hoursToAction, o.ActedAt.Sub(o.CreatedAt).Hours())
		}

		// Rejections stamp ActedAt but are not acceptances.
		if !models.IsAcceptedStatus(o.Status) {
			continue
		}
		m.AcceptedCount++
		catAccepted[o.Category]++

		if o.Status == models.OppStatusCompleted {
			m.CompletedCount++
			hoursToCompletion = append(hoursToCompletion, o.UpdatedAt.Sub(o.CreatedAt).Hours())
		}
	}

	if decided > 0 {
		m.AcceptanceRate = float64(m.AcceptedCount) / float64(decided)
	}
	if m.AcceptedCount > 0 {
		m.CompletionRate = float64(m.CompletedCount) / float64(m.AcceptedCount)
	}
	for cat, total := range catTotal {
		m.CategoryAcceptance[cat] = float64(catAccepted[cat]) / float64(total)
	}

	m.MeanHoursToAction = mean(hoursToAction)
	m.MedianHoursToAction = median(hoursToAction)
	m.MeanHoursToCompletion = mean(hoursToCompletion)
	m.MedianHoursToCompletion = median(hoursToCompletion)

	// Accuracy over the feedback set.
	agree := 0
	var relErrors []float64
	for _, fb := range feedback {
		opp, ok := oppByID[fb.OpportunityID]
		if !ok {
			// Feedback on an opportunity created before the window.
			var err error
			opp, err = s.oppRepo.GetByID(ctx, fb.OpportunityID)
			if err != nil {
				continue
			}
		}
		m.FeedbackCount++

		signal := models.NewLearningSignal(opp, fb)
		if signal.Success {
			m.SuccessCount++
		}

		predicted := opp.ConfidenceScore > confidencePredictionThreshold
		if predicted == signal.Success {
			agree++
		}

		if opp.ImpactScore > 0 {
			relErrors = append(relErrors, math.Abs(opp.ImpactScore-fb.ActualImpact)/opp.ImpactScore)
		}
	}

	if m.FeedbackCount > 0 {
		m.ConfidenceAccuracy = float64(agree) / float64(m.FeedbackCount)
	}
	if len(relErrors) > 0 {
		m.ImpactAccuracy = clampUnit(1 - mean(relErrors))
	}

	return m, nil
}

// ============================================================================
// Recommendations
// ============================================================================

func (s *successService) RecommendAdjustments(ctx context.Context, windowDays int) ([]Recommendation, error) {
	m, err := s.ComputeMetrics(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	var recs []Recommendation

	// A thin sample says nothing about thresholds.
	if m.TotalSuggestions-m.ExpiredCount >= 5 {
		if m.AcceptanceRate > acceptanceRaiseAbove {
			recs = append(recs, Recommendation{
				Target:    "discovery.confidence_floor",
				Direction: "raise",
				Reason: fmt.Sprintf("Acceptance rate %.0f%% over the last %d days: suggestions are nearly always taken up, so the floor can be raised to surface only stronger candidates.",
					m.AcceptanceRate*100, m.WindowDays),
			})
		} else if m.AcceptanceRate < acceptanceLowerBelow {
			recs = append(recs, Recommendation{
				Target:    "discovery.confidence_floor",
				Direction: "lower",
				Reason: fmt.Sprintf("Acceptance rate %.0f%% over the last %d days: most suggestions are ignored or rejected, so the floor should be lowered and the %s weight revisited.",
					m.AcceptanceRate*100, m.WindowDays, config.FactorOpportunityIndicators),
			})
		}
	}

	// Categories trailing the best performer by a wide margin.
	var best models.OpportunityCategory
	bestRate := -1.0
	for cat, rate := range m.CategoryAcceptance {
		if rate > bestRate {
			best, bestRate = cat, rate
		}
	}
	if bestRate >= 0 {
		cats := make([]models.OpportunityCategory, 0, len(m.CategoryAcceptance))
		for cat := range m.CategoryAcceptance {
			cats = append(cats, cat)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

		for _, cat := range cats {
			rate := m.CategoryAcceptance[cat]
			if cat != best && (bestRate-rate)*100 > categoryLagPoints {
				recs = append(recs, Recommendation{
					Target:    string(cat),
					Direction: "lower",
					Reason: fmt.Sprintf("Category %s acceptance (%.0f%%) trails %s (%.0f%%) by more than %.0f points; its generation thresholds deserve review.",
						cat, rate*100, best, bestRate*100, categoryLagPoints),
				})
			}
		}
	}

	if m.FeedbackCount >= 5 && m.ConfidenceAccuracy < 0.5 {
		recs = append(recs, Recommendation{
			Target:    string(config.FactorRelationshipStrength),
			Direction: "raise",
			Reason: fmt.Sprintf("Confidence predicted outcomes correctly only %.0f%% of the time; weights version %s likely underweights observed relationship strength.",
				m.ConfidenceAccuracy*100, s.weights.Version),
		})
	}

	return recs, nil
}

// ============================================================================
// Stats Helpers
// ============================================================================

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
