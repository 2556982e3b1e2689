package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// FactorScore is a single explainable sub-score, 0-100.
type FactorScore struct {
	Factor    config.FactorName `json:"factor"`
	Score     float64           `json:"score"`
	Reasoning string            `json:"reasoning"`
}

// ContactScorecard is the full scoring output for one contact: the three
// aggregate scores, the derived flag set, and every factor sub-score with
// its reasoning.
type ContactScorecard struct {
	ContactID        uuid.UUID                `json:"contact_id"`
	PriorityScore    float64                  `json:"priority_score"`
	OpportunityScore float64                  `json:"opportunity_score"`
	StrategicValue   float64                  `json:"strategic_value"`
	Flags            []models.OpportunityFlag `json:"flags,omitempty"`
	Factors          []FactorScore            `json:"factors"`
	WeightsVersion   string                   `json:"weights_version"`
}

// ScoringService computes the three derived contact scores from the six
// weighted factors. Scoring is deterministic: two runs over unchanged data
// produce identical results.
type ScoringService interface {
	// ScoreContact scores a single contact against the current graph.
	ScoreContact(ctx context.Context, id uuid.UUID) (*ContactScorecard, error)

	// ScoreBatch scores every active contact in the account and writes the
	// results back. Chunked and idempotent; a concurrent trigger for the
	// same account returns apperrors.ErrBatchInFlight.
	ScoreBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error)
}

type scoringService struct {
	contactRepo repositories.ContactRepository
	relRepo     repositories.RelationshipRepository
	batchCfg    config.BatchConfig
	weights     *config.ScoringWeights
	gate        *AccountBatchGate
	logger      *zap.Logger
}

// NewScoringService creates a new ScoringService.
func NewScoringService(
	contactRepo repositories.ContactRepository,
	relRepo repositories.RelationshipRepository,
	batchCfg config.BatchConfig,
	weights *config.ScoringWeights,
	gate *AccountBatchGate,
	logger *zap.Logger,
) ScoringService {
	return &scoringService{
		contactRepo: contactRepo,
		relRepo:     relRepo,
		batchCfg:    batchCfg,
		weights:     weights,
		gate:        gate,
		logger:      logger.Named("scoring"),
	}
}

var _ ScoringService = (*scoringService)(nil)

// ============================================================================
// Graph Snapshot
// ============================================================================

// contactGraph is an in-memory snapshot of the account's contacts and edges
// taken at the start of a scoring run.
type contactGraph struct {
	contacts  map[uuid.UUID]*models.Contact
	edges     map[uuid.UUID][]*models.Relationship // neighbor view per contact
	companies map[string]int                       // normalized company -> contact count
}

func buildContactGraph(contacts []*models.Contact, edges []*models.Relationship) *contactGraph {
	g := &contactGraph{
		contacts:  make(map[uuid.UUID]*models.Contact, len(contacts)),
		edges:     make(map[uuid.UUID][]*models.Relationship),
		companies: make(map[string]int),
	}

	for _, c := range contacts {
		g.contacts[c.ID] = c
		if company := normalizeCompany(c.Company); company != "" {
			g.companies[company]++
		}
	}

	for _, e := range edges {
		g.edges[e.ContactID] = append(g.edges[e.ContactID], e)
		if e.IsMutual {
			g.edges[e.RelatedContactID] = append(g.edges[e.RelatedContactID], e)
		}
	}

	return g
}

func (g *contactGraph) neighbors(contactID uuid.UUID) []uuid.UUID {
	edges := g.edges[contactID]
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		if other := e.OtherEnd(contactID); other != uuid.Nil {
			ids = append(ids, other)
		}
	}
	return ids
}

// sharedConnectionCount counts neighbors of the contact that are also
// connected to at least one other of the contact's neighbors.
func (g *contactGraph) sharedConnectionCount(contactID uuid.UUID) int {
	neighborSet := make(map[uuid.UUID]bool)
	for _, id := range g.neighbors(contactID) {
		neighborSet[id] = true
	}

	count := 0
	for id := range neighborSet {
		for _, nid := range g.neighbors(id) {
			if nid != contactID && neighborSet[nid] {
				count++
				break
			}
		}
	}
	return count
}

// ============================================================================
// Factor Computation
// ============================================================================

// clamp100 clips a factor or aggregate score to the 0-100 range.
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func networkPositionFactor(c *models.Contact, g *contactGraph) FactorScore {
	degree := len(g.edges[c.ID])
	score := clamp100(float64(degree) * 12)
	return FactorScore{
		Factor:    config.FactorNetworkPosition,
		Score:     score,
		Reasoning: fmt.Sprintf("Connected to %d contact(s) in the network", degree),
	}
}

func relationshipStrengthFactor(c *models.Contact, g *contactGraph) FactorScore {
	edges := g.edges[c.ID]
	if len(edges) == 0 {
		return FactorScore{
			Factor:    config.FactorRelationshipStrength,
			Score:     0,
			Reasoning: "No relationships recorded",
		}
	}

	var sum float64
	for _, e := range edges {
		sum += e.Strength
	}
	avg := sum / float64(len(edges))

	return FactorScore{
		Factor:    config.FactorRelationshipStrength,
		Score:     clamp100(avg * 100),
		Reasoning: fmt.Sprintf("Average relationship strength %.2f across %d edge(s)", avg, len(edges)),
	}
}

func professionalRelevanceFactor(c *models.Contact) FactorScore {
	score := 30.0
	reasoning := "Baseline professional profile"

	if isSeniorPosition(c.Position) {
		score += 40
		reasoning = fmt.Sprintf("Senior position %q", c.Position)
	} else if c.Position != "" {
		score += 15
		reasoning = fmt.Sprintf("Position %q on record", c.Position)
	}
	if c.Company != "" {
		score += 15
	}
	if c.Industry != "" {
		score += 15
	}

	return FactorScore{
		Factor:    config.FactorProfessionalRelevance,
		Score:     clamp100(score),
		Reasoning: reasoning,
	}
}

func mutualConnectionsFactor(c *models.Contact, g *contactGraph) FactorScore {
	shared := g.sharedConnectionCount(c.ID)
	return FactorScore{
		Factor:    config.FactorMutualConnections,
		Score:     clamp100(float64(shared) * 15),
		Reasoning: fmt.Sprintf("%d neighbor(s) share another connection with this contact", shared),
	}
}

func engagementPatternFactor(c *models.Contact, now time.Time) FactorScore {
	days, ok := c.DaysSinceContact(now)
	if !ok {
		return FactorScore{
			Factor:    config.FactorEngagementPattern,
			Score:     10,
			Reasoning: "No outreach has ever been logged",
		}
	}

	var score float64
	switch {
	case days <= 7:
		score = 100
	case days <= 30:
		score = 80
	case days <= 90:
		score = 60
	case days <= 180:
		score = 40
	case days <= 365:
		score = 20
	default:
		score = 10
	}

	return FactorScore{
		Factor:    config.FactorEngagementPattern,
		Score:     score,
		Reasoning: fmt.Sprintf("Last outreach %d day(s) ago", days),
	}
}

// Thresholds for the opportunity-indicator flag rules.
const (
	connectorDegreeThreshold = 8
	dormantAfterDays         = 90
	largePresenceThreshold   = 5
	warmIntroMinStrength     = 0.6
)

func opportunityIndicatorsFactor(c *models.Contact, g *contactGraph, now time.Time) (FactorScore, []models.OpportunityFlag) {
	var flags []models.OpportunityFlag

	if isSeniorPosition(c.Position) {
		flags = append(flags, models.FlagDecisionMaker)
	}

	for _, e := range g.edges[c.ID] {
		if e.Strength >= warmIntroMinStrength {
			flags = append(flags, models.FlagWarmIntroAvail)
			break
		}
	}

	if c.Tier != nil && (*c.Tier == models.TierA || *c.Tier == models.TierB) {
		if days, ok := c.DaysSinceContact(now); !ok || days > dormantAfterDays {
			flags = append(flags, models.FlagDormantHighValue)
		}
	}

	if len(g.edges[c.ID]) >= connectorDegreeThreshold {
		flags = append(flags, models.FlagConnector)
	}

	if company := normalizeCompany(c.Company); company != "" && g.companies[company] >= largePresenceThreshold {
		flags = append(flags, models.FlagExpansionSignal)
	}

	score := clamp100(float64(len(flags)) * 25)
	reasoning := "No opportunity indicators detected"
	if len(flags) > 0 {
		names := make([]string, len(flags))
		for i, f := range flags {
			names[i] = string(f)
		}
		sort.Strings(names)
		reasoning = fmt.Sprintf("Indicators: %v", names)
	}

	return FactorScore{
		Factor:    config.FactorOpportunityIndicators,
		Score:     score,
		Reasoning: reasoning,
	}, flags
}

func isSeniorPosition(position string) bool {
	if position == "" {
		return false
	}
	lower := strings.ToLower(position)
	// Groups past "principal" (manager, lead) mark mid-level roles, not
	// decision makers.
	for _, group := range seniorityKeywords[:10] {
		if containsAny(lower, group) {
			return true
		}
	}
	return false
}

// ============================================================================
// Aggregation
// ============================================================================

func aggregateFactors(factors []FactorScore, weights config.FactorWeights) float64 {
	var total float64
	for _, f := range factors {
		total += f.Score * weights[f.Factor]
	}
	return clamp100(total)
}

// scoreContact computes the full scorecard for one contact against the graph
// snapshot. Pure given the snapshot and clock.
func (s *scoringService) scoreContact(c *models.Contact, g *contactGraph, now time.Time) *ContactScorecard {
	indicatorFactor, flags := opportunityIndicatorsFactor(c, g, now)

	factors := []FactorScore{
		networkPositionFactor(c, g),
		relationshipStrengthFactor(c, g),
		professionalRelevanceFactor(c),
		mutualConnectionsFactor(c, g),
		engagementPatternFactor(c, now),
		indicatorFactor,
	}

	return &ContactScorecard{
		ContactID:        c.ID,
		PriorityScore:    aggregateFactors(factors, s.weights.Priority),
		OpportunityScore: aggregateFactors(factors, s.weights.Opportunity),
		StrategicValue:   aggregateFactors(factors, s.weights.Strategic),
		Flags:            flags,
		Factors:          factors,
		WeightsVersion:   s.weights.Version,
	}
}

// ============================================================================
// Service Methods
// ============================================================================

func (s *scoringService) ScoreContact(ctx context.Context, id uuid.UUID) (*ContactScorecard, error) {
	contact, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contacts, err := s.contactRepo.List(ctx, models.ContactStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	edges, err := s.relRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	graph := buildContactGraph(contacts, edges)
	return s.scoreContact(contact, graph, time.Now()), nil
}

func (s *scoringService) ScoreBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error) {
	release, err := s.gate.Acquire(accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	contacts, err := s.contactRepo.List(ctx, models.ContactStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	edges, err := s.relRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	graph := buildContactGraph(contacts, edges)
	now := time.Now()
	result := &models.BatchResult{}

	s.logger.Info("starting scoring batch",
		zap.String("account_id", accountID.String()),
		zap.Int("contacts", len(contacts)),
		zap.String("weights_version", s.weights.Version))

	for chunkIdx, bounds := range chunkBounds(len(contacts), s.batchCfg.ChunkSize) {
		for _, contact := range contacts[bounds[0]:bounds[1]] {
			result.Processed++

			card := s.scoreContact(contact, graph, now)
			err := s.contactRepo.UpdateScores(ctx, contact.ID,
				card.PriorityScore, card.OpportunityScore, card.StrategicValue,
				card.Flags, now)
			if err != nil {
				result.RecordError(chunkIdx, contact.ID.String(), err)
				continue
			}
			result.Succeeded++
		}
	}

	s.logger.Info("scoring batch finished",
		zap.String("account_id", accountID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))

	return result, nil
}
