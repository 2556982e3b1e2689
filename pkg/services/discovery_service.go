package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// DiscoveryService infers undeclared relationships between contacts from
// shared-attribute evidence.
type DiscoveryService interface {
	// DiscoverPair evaluates a single contact pair. Returns nil (no error)
	// when the pair falls below the confidence floor, already has an edge,
	// or its fingerprint was previously suggested or rejected.
	DiscoverPair(ctx context.Context, aID, bID uuid.UUID) (*models.PotentialRelationship, error)

	// DiscoverBatch evaluates all candidate pairs in the account. Only one
	// batch per account runs at a time; a concurrent trigger returns
	// apperrors.ErrBatchInFlight.
	DiscoverBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error)

	// ApproveCandidate promotes a pending candidate to a verified mutual
	// relationship edge.
	ApproveCandidate(ctx context.Context, id uuid.UUID) (*models.Relationship, error)

	// RejectCandidate terminally rejects a pending candidate. The rejected
	// fingerprint suppresses identical future candidates.
	RejectCandidate(ctx context.Context, id uuid.UUID) error

	// ListPending returns candidates awaiting review, highest confidence first.
	ListPending(ctx context.Context) ([]*models.PotentialRelationship, error)
}

type discoveryService struct {
	contactRepo   repositories.ContactRepository
	relRepo       repositories.RelationshipRepository
	candidateRepo repositories.CandidateRepository
	cfg           config.DiscoveryConfig
	batchCfg      config.BatchConfig
	weights       *config.ScoringWeights
	gate          *AccountBatchGate
	logger        *zap.Logger
}

// NewDiscoveryService creates a new DiscoveryService.
func NewDiscoveryService(
	contactRepo repositories.ContactRepository,
	relRepo repositories.RelationshipRepository,
	candidateRepo repositories.CandidateRepository,
	cfg config.DiscoveryConfig,
	batchCfg config.BatchConfig,
	weights *config.ScoringWeights,
	gate *AccountBatchGate,
	logger *zap.Logger,
) DiscoveryService {
	return &discoveryService{
		contactRepo:   contactRepo,
		relRepo:       relRepo,
		candidateRepo: candidateRepo,
		cfg:           cfg,
		batchCfg:      batchCfg,
		weights:       weights,
		gate:          gate,
		logger:        logger.Named("discovery"),
	}
}

var _ DiscoveryService = (*discoveryService)(nil)

// ============================================================================
// Confidence and Type Inference
// ============================================================================

// aggregateConfidence combines evidence into a confidence score via the
// configured weighted sum, clipped to [0,1].
func aggregateConfidence(evidence []models.EvidenceSignal, w config.DiscoveryWeights) float64 {
	var confidence float64
	for _, sig := range evidence {
		switch sig.Signal {
		case models.SignalSameCompany:
			confidence += sig.Score * w.SameCompany
		case models.SignalSameEmailDomain:
			confidence += sig.Score * w.SameEmailDomain
		case models.SignalSameLocation:
			confidence += sig.Score * w.SameLocation
		case models.SignalRoleSimilarity:
			confidence += sig.Score * w.RoleSimilarity
		case models.SignalMutualConnections:
			confidence += sig.Score * w.MutualConnections
		}
	}

	if confidence > 1 {
		return 1
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// inferRelationshipType picks the type associated with the dominant evidence
// signal. Evidence arrives in signal declaration order, so a strict
// comparison breaks ties in favor of the earlier signal.
func inferRelationshipType(evidence []models.EvidenceSignal) models.RelationshipType {
	if len(evidence) == 0 {
		return models.RelTypeAcquaintance
	}

	dominant := evidence[0]
	for _, sig := range evidence[1:] {
		if sig.Score > dominant.Score {
			dominant = sig
		}
	}

	switch dominant.Signal {
	case models.SignalSameCompany, models.SignalSameEmailDomain:
		return models.RelTypeColleague
	}
	return models.RelTypeAcquaintance
}

// ============================================================================
// Pair Discovery
// ============================================================================

func (s *discoveryService) DiscoverPair(ctx context.Context, aID, bID uuid.UUID) (*models.PotentialRelationship, error) {
	if aID == bID {
		return nil, fmt.Errorf("%w: cannot discover a relationship between a contact and itself", apperrors.ErrValidation)
	}

	a, err := s.contactRepo.GetByID(ctx, aID)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	b, err := s.contactRepo.GetByID(ctx, bID)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}

	exists, err := s.relRepo.ExistsBetween(ctx, aID, bID)
	if err != nil {
		return nil, fmt.Errorf("check existing edge: %w", err)
	}
	if exists {
		return nil, nil
	}

	neighborsA, err := s.neighborIDs(ctx, aID)
	if err != nil {
		return nil, err
	}
	neighborsB, err := s.neighborIDs(ctx, bID)
	if err != nil {
		return nil, err
	}

	candidate := s.evaluatePair(a, b, neighborsA, neighborsB)
	if candidate == nil {
		return nil, nil
	}

	// Any prior candidate with this fingerprint, rejected or not, suppresses
	// a new suggestion.
	if _, err := s.candidateRepo.GetByFingerprint(ctx, candidate.Fingerprint); err == nil {
		return nil, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}

	if err := s.candidateRepo.Create(ctx, candidate); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, nil
		}
		return nil, fmt.Errorf("create candidate: %w", err)
	}

	s.logger.Info("discovered relationship candidate",
		zap.String("candidate_id", candidate.ID.String()),
		zap.Float64("confidence", candidate.Confidence),
		zap.String("inferred_type", string(candidate.InferredType)))

	return candidate, nil
}

// evaluatePair runs the pure scoring path: evidence, confidence, floor check,
// type inference. Returns nil when the pair does not clear the floor.
func (s *discoveryService) evaluatePair(a, b *models.Contact, neighborsA, neighborsB []uuid.UUID) *models.PotentialRelationship {
	evidence := ExtractEvidence(a, b, neighborsA, neighborsB)
	if len(evidence) == 0 {
		return nil
	}

	confidence := aggregateConfidence(evidence, s.weights.Discovery)
	if confidence < s.cfg.ConfidenceFloor {
		return nil
	}

	return &models.PotentialRelationship{
		AccountID:        a.AccountID,
		ContactID:        a.ID,
		RelatedContactID: b.ID,
		InferredType:     inferRelationshipType(evidence),
		Confidence:       confidence,
		Evidence:         evidence,
		Fingerprint:      models.CandidateFingerprint(a.ID, b.ID, evidence),
		Status:           models.CandidateStatusPending,
	}
}

func (s *discoveryService) neighborIDs(ctx context.Context, contactID uuid.UUID) ([]uuid.UUID, error) {
	edges, err := s.relRepo.ListByContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, edge := range edges {
		if other := edge.OtherEnd(contactID); other != uuid.Nil {
			ids = append(ids, other)
		}
	}
	return ids, nil
}

// ============================================================================
// Batch Discovery
// ============================================================================

type contactPair struct {
	a, b int // indexes into the contact snapshot
}

func (s *discoveryService) DiscoverBatch(ctx context.Context, accountID uuid.UUID) (*models.BatchResult, error) {
	release, err := s.gate.Acquire(accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	contacts, err := s.contactRepo.List(ctx, models.ContactStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	result := &models.BatchResult{}
	if len(contacts) < 2 {
		return result, nil
	}

	edges, err := s.relRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	fingerprints, err := s.candidateRepo.ListFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}

	neighbors := make(map[uuid.UUID][]uuid.UUID)
	connected := make(map[string]bool)
	for _, edge := range edges {
		neighbors[edge.ContactID] = append(neighbors[edge.ContactID], edge.RelatedContactID)
		if edge.IsMutual {
			neighbors[edge.RelatedContactID] = append(neighbors[edge.RelatedContactID], edge.ContactID)
		}
		connected[pairKey(edge.ContactID, edge.RelatedContactID)] = true
	}

	pairs := s.buildPairs(contacts)
	s.logger.Info("starting discovery batch",
		zap.String("account_id", accountID.String()),
		zap.Int("contacts", len(contacts)),
		zap.Int("pairs", len(pairs)))

	for chunkIdx, bounds := range chunkBounds(len(pairs), s.batchCfg.ChunkSize) {
		for _, pair := range pairs[bounds[0]:bounds[1]] {
			a, b := contacts[pair.a], contacts[pair.b]
			result.Processed++

			if connected[pairKey(a.ID, b.ID)] {
				result.Skipped++
				continue
			}

			candidate := s.evaluatePair(a, b, neighbors[a.ID], neighbors[b.ID])
			if candidate == nil {
				result.Skipped++
				continue
			}
			if _, seen := fingerprints[candidate.Fingerprint]; seen {
				result.Skipped++
				continue
			}

			if err := s.candidateRepo.Create(ctx, candidate); err != nil {
				if errors.Is(err, apperrors.ErrConflict) {
					result.Skipped++
					continue
				}
				result.RecordError(chunkIdx, candidate.Fingerprint, err)
				continue
			}

			fingerprints[candidate.Fingerprint] = models.CandidateStatusPending
			result.Created++
			result.Succeeded++
		}
	}

	s.logger.Info("discovery batch finished",
		zap.String("account_id", accountID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed))

	return result, nil
}

// buildPairs enumerates the unordered contact pairs to score. Small accounts
// get the exhaustive O(n^2) scan; larger ones are pre-filtered by blocking
// keys (normalized company, corporate email domain) so cost stays near-linear
// in the edges actually found.
func (s *discoveryService) buildPairs(contacts []*models.Contact) []contactPair {
	var pairs []contactPair

	if len(contacts) <= s.cfg.MaxExhaustiveContacts {
		for i := 0; i < len(contacts); i++ {
			for j := i + 1; j < len(contacts); j++ {
				pairs = append(pairs, contactPair{a: i, b: j})
				if len(pairs) >= s.cfg.MaxPairsPerBatch {
					return pairs
				}
			}
		}
		return pairs
	}

	blocks := make(map[string][]int)
	for i, c := range contacts {
		if company := normalizeCompany(c.Company); company != "" {
			blocks["company:"+company] = append(blocks["company:"+company], i)
		}
		if domain := emailDomain(c.Email); domain != "" && !freeEmailProviders[domain] {
			blocks["domain:"+domain] = append(blocks["domain:"+domain], i)
		}
	}

	seen := make(map[[2]int]bool)
	for _, members := range blocks {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				key := [2]int{members[i], members[j]}
				if key[0] > key[1] {
					key[0], key[1] = key[1], key[0]
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, contactPair{a: key[0], b: key[1]})
				if len(pairs) >= s.cfg.MaxPairsPerBatch {
					return pairs
				}
			}
		}
	}

	return pairs
}

func pairKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if second < first {
		first, second = second, first
	}
	return first + "|" + second
}

// ============================================================================
// Review Actions
// ============================================================================

func (s *discoveryService) ApproveCandidate(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	candidate, err := s.candidateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Resolving first means exactly one approval wins a race; the loser
	// observes the conflict.
	if err := s.candidateRepo.ResolveStatus(ctx, id, models.CandidateStatusApproved); err != nil {
		return nil, err
	}

	rel := &models.Relationship{
		AccountID:        candidate.AccountID,
		ContactID:        candidate.ContactID,
		RelatedContactID: candidate.RelatedContactID,
		Type:             candidate.InferredType,
		Strength:         candidate.Confidence,
		Source:           models.RelSourceDiscovered,
		IsVerified:       true,
		IsMutual:         true,
	}

	if err := s.relRepo.Create(ctx, rel); err != nil {
		return nil, fmt.Errorf("promote candidate %s: %w", id, err)
	}

	s.logger.Info("candidate approved",
		zap.String("candidate_id", id.String()),
		zap.String("relationship_id", rel.ID.String()))

	return rel, nil
}

func (s *discoveryService) RejectCandidate(ctx context.Context, id uuid.UUID) error {
	if err := s.candidateRepo.ResolveStatus(ctx, id, models.CandidateStatusRejected); err != nil {
		return err
	}

	s.logger.Info("candidate rejected", zap.String("candidate_id", id.String()))
	return nil
}

func (s *discoveryService) ListPending(ctx context.Context) ([]*models.PotentialRelationship, error) {
	return s.candidateRepo.ListPending(ctx)
}
