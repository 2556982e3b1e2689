package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/llm"
	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// OpportunityService generates actionable suggestions from the scored contact
// graph and manages their lifecycle.
type OpportunityService interface {
	// GenerateBatch expires due suggestions, then runs all three pattern
	// generators over the account. Regeneration is suppressed while a
	// non-terminal suggestion with the same signature exists.
	GenerateBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error)

	// ListPending returns open suggestions ordered by composite score.
	ListPending(ctx context.Context) ([]*models.OpportunitySuggestion, error)

	// UpdateStatus advances a suggestion's lifecycle. Terminal suggestions
	// cannot be reopened.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OpportunityStatus) (*models.OpportunitySuggestion, error)

	// ExpireDue marks past-expiry open suggestions as expired.
	ExpireDue(ctx context.Context) (int, error)
}

type opportunityService struct {
	oppRepo     repositories.OpportunityRepository
	contactRepo repositories.ContactRepository
	relRepo     repositories.RelationshipRepository
	cfg         config.OpportunityConfig
	summarizer  llm.Summarizer // nil when insight generation is disabled
	gate        *AccountBatchGate
	logger      *zap.Logger
}

// NewOpportunityService creates a new OpportunityService. summarizer may be
// nil; suggestions then carry template text only.
func NewOpportunityService(
	oppRepo repositories.OpportunityRepository,
	contactRepo repositories.ContactRepository,
	relRepo repositories.RelationshipRepository,
	cfg config.OpportunityConfig,
	summarizer llm.Summarizer,
	gate *AccountBatchGate,
	logger *zap.Logger,
) OpportunityService {
	return &opportunityService{
		oppRepo:     oppRepo,
		contactRepo: contactRepo,
		relRepo:     relRepo,
		cfg:         cfg,
		summarizer:  summarizer,
		gate:        gate,
		logger:      logger.Named("opportunity"),
	}
}

var _ OpportunityService = (*opportunityService)(nil)

// maxIntroPathsPerConnector caps the pair fan-out of a single highly connected
// contact so one hub cannot flood the suggestion list.
const maxIntroPathsPerConnector = 10

// ============================================================================
// Generation
// ============================================================================

func (s *opportunityService) GenerateBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error) {
	release, err := s.gate.Acquire(accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now()

	expired, err := s.oppRepo.ExpireDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expire due suggestions: %w", err)
	}
	if expired > 0 {
		s.logger.Info("expired suggestions", zap.Int("count", expired))
	}

	contacts, err := s.contactRepo.List(ctx, models.ContactStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	edges, err := s.relRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	active, err := s.oppRepo.ActiveSignatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active signatures: %w", err)
	}

	graph := buildContactGraph(contacts, edges)

	var candidates []*models.OpportunitySuggestion
	candidates = append(candidates, s.reconnectionSuggestions(accountID, contacts, now)...)
	candidates = append(candidates, s.introductionSuggestions(accountID, graph)...)
	candidates = append(candidates, s.clusterSuggestions(accountID, contacts)...)

	result := &models.BatchResult{}
	for _, opp := range candidates {
		result.Processed++

		if active[repositories.SignatureKey(opp.Category, opp.PrimaryContactID, opp.PathSignature)] {
			result.Skipped++
			continue
		}

		s.finalize(ctx, opp, now)

		if err := s.oppRepo.Create(ctx, opp); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				result.Skipped++
				continue
			}
			result.RecordError(0, opp.PathSignature, err)
			continue
		}
		result.Succeeded++
		result.Created++
	}

	s.logger.Info("opportunity generation finished",
		zap.String("account_id", accountID.String()),
		zap.Int("generated", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	return result, nil
}

// finalize stamps the derived fields shared by all patterns: priority bucket,
// expiry, and the optional narrative.
func (s *opportunityService) finalize(ctx context.Context, opp *models.OpportunitySuggestion, now time.Time) {
	opp.Priority = models.PriorityFromComposite(opp.CompositeScore())
	opp.Status = models.OppStatusPending

	expires := now.AddDate(0, 0, s.cfg.SuggestionTTLDays)
	opp.ExpiresAt = &expires

	if s.summarizer == nil {
		return
	}
	narrative, err := s.summarizer.Summarize(ctx, narrativePrompt(opp))
	if err != nil {
		// Suggestions are never blocked on narrative generation.
		s.logger.Warn("narrative generation failed, using template text",
			zap.String("path_signature", opp.PathSignature),
			zap.Error(err))
		return
	}
	opp.Narrative = &narrative
}

func narrativePrompt(opp *models.OpportunitySuggestion) string {
	return fmt.Sprintf("Opportunity category: %s\nTitle: %s\nContext: %s\nConfidence: %.2f, estimated impact: %.0f/100.",
		opp.Category, opp.Title, opp.Description, opp.ConfidenceScore, opp.ImpactScore)
}

// ============================================================================
// Pattern: Reconnection
// ============================================================================

func (s *opportunityService) reconnectionSuggestions(accountID uuid.UUID, contacts []*models.Contact, now time.Time) []*models.OpportunitySuggestion {
	var out []*models.OpportunitySuggestion

	for _, c := range contacts {
		days, ever := c.DaysSinceContact(now)
		if ever && days <= s.cfg.ReconnectAfterDays {
			continue
		}
		// Never-contacted entries only qualify once they carry real value.
		if !ever && c.StrategicValue < 50 {
			continue
		}

		stale := days
		if !ever {
			stale = 365
		}

		// Confidence decays with staleness: a three month gap is an easy
		// re-open, a two year gap much less so.
		overdue := float64(stale - s.cfg.ReconnectAfterDays)
		confidence := clampUnit(0.9 - overdue/730.0)
		if confidence < 0.3 {
			confidence = 0.3
		}

		urgency := clamp100(float64(stale) / 3.65) // saturates at one year
		impact := clamp100(0.7*c.StrategicValue + 0.3*urgency)

		out = append(out, &models.OpportunitySuggestion{
			ID:               uuid.New(),
			AccountID:        accountID,
			Category:         models.CategoryReconnection,
			Type:             models.TypeReconnectDormant,
			Title:            fmt.Sprintf("Reconnect with %s", c.Name),
			Description:      reconnectionDescription(c, days, ever),
			PrimaryContactID: c.ID,
			ConfidenceScore:  confidence,
			ImpactScore:      impact,
			PathSignature:    "dormant",
		})
	}

	return out
}

func reconnectionDescription(c *models.Contact, days int, ever bool) string {
	who := c.Name
	if c.Position != "" && c.Company != "" {
		who = fmt.Sprintf("%s (%s at %s)", c.Name, c.Position, c.Company)
	}
	if !ever {
		return fmt.Sprintf("No outreach to %s has ever been logged.", who)
	}
	return fmt.Sprintf("Last contact with %s was %d days ago.", who, days)
}

// ============================================================================
// Pattern: Warm Introduction
// ============================================================================

func (s *opportunityService) introductionSuggestions(accountID uuid.UUID, graph *contactGraph) []*models.OpportunitySuggestion {
	var out []*models.OpportunitySuggestion

	for connectorID, edges := range graph.edges {
		connector := graph.contacts[connectorID]
		if connector == nil {
			continue
		}

		// Strong neighbors of the connector, each a potential path endpoint.
		type endpoint struct {
			contact  *models.Contact
			strength float64
		}
		var strong []endpoint
		for _, e := range edges {
			if e.Strength < s.cfg.IntroPathMinStrength {
				continue
			}
			if other := graph.contacts[e.OtherEnd(connectorID)]; other != nil {
				strong = append(strong, endpoint{other, e.Strength})
			}
		}
		if len(strong) < 2 {
			continue
		}
		sort.Slice(strong, func(i, j int) bool {
			return strong[i].contact.OpportunityScore > strong[j].contact.OpportunityScore
		})

		paths := 0
		for i := 0; i < len(strong) && paths < maxIntroPathsPerConnector; i++ {
			for j := i + 1; j < len(strong) && paths < maxIntroPathsPerConnector; j++ {
				a, b := strong[i], strong[j]
				if graph.connected(a.contact.ID, b.contact.ID) {
					continue
				}

				// The higher-opportunity endpoint is the introduction target.
				target, source := a, b
				pathStrength := a.strength
				if b.strength < pathStrength {
					pathStrength = b.strength
				}

				confidence := clampUnit(pathStrength * target.contact.OpportunityScore / 100)
				if confidence < 0.2 {
					continue
				}
				impact := clamp100(0.5*target.contact.StrategicValue + 50*pathStrength)

				out = append(out, &models.OpportunitySuggestion{
					ID:               uuid.New(),
					AccountID:        accountID,
					Category:         models.CategoryIntroduction,
					Type:             models.TypeWarmIntroduction,
					Title:            fmt.Sprintf("Introduce %s to %s via %s", source.contact.Name, target.contact.Name, connector.Name),
					Description:      fmt.Sprintf("%s knows both %s and %s well enough to broker an introduction.", connector.Name, source.contact.Name, target.contact.Name),
					PrimaryContactID: target.contact.ID,
					PathContactIDs:   []uuid.UUID{source.contact.ID, connectorID, target.contact.ID},
					ConfidenceScore:  confidence,
					ImpactScore:      impact,
					PathSignature:    introSignature(source.contact.ID, connectorID, target.contact.ID),
				})
				paths++
			}
		}
	}

	return out
}

// introSignature identifies a path independent of which endpoint became the
// primary contact.
func introSignature(a, via, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("via:%s:%s:%s", via, lo, hi)
}

// connected reports whether any edge joins a and b, whichever way it points.
// An existing directed edge suppresses the introduction the same way the
// discoverer's duplicate check treats it as already-known.
func (g *contactGraph) connected(a, b uuid.UUID) bool {
	for _, e := range g.edges[a] {
		if e.OtherEnd(a) == b {
			return true
		}
	}
	for _, e := range g.edges[b] {
		if e.OtherEnd(b) == a {
			return true
		}
	}
	return false
}

// ============================================================================
// Pattern: Strategic Cluster
// ============================================================================

func (s *opportunityService) clusterSuggestions(accountID uuid.UUID, contacts []*models.Contact) []*models.OpportunitySuggestion {
	clusters := make(map[string][]*models.Contact)
	for _, c := range contacts {
		company := normalizeCompany(c.Company)
		if company == "" || c.Industry == "" {
			continue
		}
		key := company + "|" + strings.ToLower(c.Industry)
		clusters[key] = append(clusters[key], c)
	}

	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*models.OpportunitySuggestion
	for _, key := range keys {
		members := clusters[key]
		if len(members) < s.cfg.ClusterMinSize {
			continue
		}

		// Primary is the member with the highest strategic value.
		primary := members[0]
		var totalStrategic float64
		for _, m := range members {
			totalStrategic += m.StrategicValue
			if m.StrategicValue > primary.StrategicValue {
				primary = m
			}
		}

		memberIDs := make([]uuid.UUID, len(members))
		for i, m := range members {
			memberIDs[i] = m.ID
		}
		sort.Slice(memberIDs, func(i, j int) bool {
			return memberIDs[i].String() < memberIDs[j].String()
		})

		confidence := clampUnit(0.5 + 0.05*float64(len(members)))

		// Impact grows with cluster size: more members at one company means
		// a broader engagement, even at equal average strategic value.
		sizeBoost := 1 + 0.05*float64(len(members)-1)
		impact := clamp100(totalStrategic / float64(len(members)) * sizeBoost)

		out = append(out, &models.OpportunitySuggestion{
			ID:               uuid.New(),
			AccountID:        accountID,
			Category:         models.CategoryBusinessMatch,
			Type:             models.TypeStrategicCluster,
			Title:            fmt.Sprintf("%d contacts at %s", len(members), primary.Company),
			Description:      fmt.Sprintf("You know %d people at %s in %s. A coordinated approach could open a broader engagement.", len(members), primary.Company, primary.Industry),
			PrimaryContactID: primary.ID,
			PathContactIDs:   memberIDs,
			ConfidenceScore:  confidence,
			ImpactScore:      impact,
			PathSignature:    "cluster:" + key,
		})
	}

	return out
}

// ============================================================================
// Lifecycle
// ============================================================================

func (s *opportunityService) ListPending(ctx context.Context) ([]*models.OpportunitySuggestion, error) {
	return s.oppRepo.ListPending(ctx)
}

func (s *opportunityService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OpportunityStatus) (*models.OpportunitySuggestion, error) {
	if !models.IsValidOpportunityStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrValidation, status)
	}
	if status == models.OppStatusPending || status == models.OppStatusExpired {
		return nil, fmt.Errorf("%w: status %q cannot be set directly", apperrors.ErrValidation, status)
	}

	var actedAt *time.Time
	if status != models.OppStatusViewed {
		now := time.Now()
		actedAt = &now
	}

	if err := s.oppRepo.UpdateStatus(ctx, id, status, actedAt); err != nil {
		return nil, err
	}
	return s.oppRepo.GetByID(ctx, id)
}

func (s *opportunityService) ExpireDue(ctx context.Context) (int, error) {
	return s.oppRepo.ExpireDue(ctx, time.Now())
}

// clampUnit clips a confidence value to [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
