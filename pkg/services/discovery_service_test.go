package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

func newTestDiscoveryService(contactRepo *memContactRepo, relRepo *memRelationshipRepo, candidateRepo *memCandidateRepo) DiscoveryService {
	return NewDiscoveryService(
		contactRepo, relRepo, candidateRepo,
		config.DiscoveryConfig{
			ConfidenceFloor:       0.3,
			MaxExhaustiveContacts: 2000,
			MaxPairsPerBatch:      2_000_000,
		},
		config.BatchConfig{ChunkSize: 50},
		config.DefaultScoringWeights(),
		NewAccountBatchGate(),
		zap.NewNop(),
	)
}

func TestAggregateConfidence(t *testing.T) {
	weights := config.DefaultScoringWeights().Discovery

	tests := []struct {
		name     string
		evidence []models.EvidenceSignal
		want     float64
	}{
		{
			name:     "no evidence",
			evidence: nil,
			want:     0,
		},
		{
			name: "company only",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameCompany, Score: 1.0},
			},
			want: 0.30,
		},
		{
			name: "company plus domain plus city",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameCompany, Score: 1.0},
				{Signal: models.SignalSameEmailDomain, Score: 1.0},
				{Signal: models.SignalSameLocation, Score: 1.0},
			},
			want: 0.65,
		},
		{
			name: "partial location score",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameLocation, Score: 0.6},
			},
			want: 0.09,
		},
		{
			name: "all signals at full score",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameCompany, Score: 1.0},
				{Signal: models.SignalSameEmailDomain, Score: 1.0},
				{Signal: models.SignalSameLocation, Score: 1.0},
				{Signal: models.SignalRoleSimilarity, Score: 1.0},
				{Signal: models.SignalMutualConnections, Score: 1.0},
			},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, aggregateConfidence(tt.evidence, weights), 1e-9)
		})
	}
}

func TestInferRelationshipType(t *testing.T) {
	tests := []struct {
		name     string
		evidence []models.EvidenceSignal
		want     models.RelationshipType
	}{
		{
			name:     "no evidence defaults to acquaintance",
			evidence: nil,
			want:     models.RelTypeAcquaintance,
		},
		{
			name: "company dominant means colleague",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameCompany, Score: 1.0},
				{Signal: models.SignalSameLocation, Score: 0.6},
			},
			want: models.RelTypeColleague,
		},
		{
			name: "location dominant means acquaintance",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameLocation, Score: 1.0},
				{Signal: models.SignalRoleSimilarity, Score: 0.5},
			},
			want: models.RelTypeAcquaintance,
		},
		{
			name: "tie breaks toward the earlier signal",
			evidence: []models.EvidenceSignal{
				{Signal: models.SignalSameEmailDomain, Score: 1.0},
				{Signal: models.SignalSameLocation, Score: 1.0},
			},
			want: models.RelTypeColleague,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferRelationshipType(tt.evidence))
		})
	}
}

func TestDiscoverPair_CreatesCandidate(t *testing.T) {
	accountID := uuid.New()
	a := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Ana", Company: "Acme", Email: strPtr("ana@acme.com")}
	b := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Bob", Company: "Acme", Email: strPtr("bob@acme.com")}

	contactRepo := newMemContactRepo(a, b)
	candidateRepo := newMemCandidateRepo()
	svc := newTestDiscoveryService(contactRepo, newMemRelationshipRepo(), candidateRepo)

	candidate, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, candidate)

	assert.Equal(t, models.RelTypeColleague, candidate.InferredType)
	assert.InDelta(t, 0.50, candidate.Confidence, 1e-9) // company 0.30 + domain 0.20
	assert.Equal(t, models.CandidateStatusPending, candidate.Status)
	assert.NotEmpty(t, candidate.Fingerprint)
}

func TestDiscoverPair_BelowFloorYieldsNothing(t *testing.T) {
	accountID := uuid.New()
	a := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Ana", Location: "Oakland, CA"}
	b := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Bob", Location: "Fresno, CA"}

	svc := newTestDiscoveryService(newMemContactRepo(a, b), newMemRelationshipRepo(), newMemCandidateRepo())

	// State-level location alone scores 0.6 * 0.15 = 0.09, under the floor.
	candidate, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestDiscoverPair_SelfPairRejected(t *testing.T) {
	a := &models.Contact{ID: uuid.New(), Name: "Ana"}
	svc := newTestDiscoveryService(newMemContactRepo(a), newMemRelationshipRepo(), newMemCandidateRepo())

	_, err := svc.DiscoverPair(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDiscoverPair_ExistingEdgeSuppresses(t *testing.T) {
	accountID := uuid.New()
	a := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("ana@acme.com")}
	b := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("bob@acme.com")}

	relRepo := newMemRelationshipRepo(&models.Relationship{
		ContactID: a.ID, RelatedContactID: b.ID, Type: models.RelTypeColleague,
	})
	svc := newTestDiscoveryService(newMemContactRepo(a, b), relRepo, newMemCandidateRepo())

	candidate, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestDiscoverPair_RejectedFingerprintSuppresses(t *testing.T) {
	accountID := uuid.New()
	a := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("ana@acme.com")}
	b := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("bob@acme.com")}

	contactRepo := newMemContactRepo(a, b)
	candidateRepo := newMemCandidateRepo()
	svc := newTestDiscoveryService(contactRepo, newMemRelationshipRepo(), candidateRepo)

	first, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, svc.RejectCandidate(context.Background(), first.ID))

	// The identical pair must not resurface after rejection.
	second, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestDiscoverBatch_Idempotent(t *testing.T) {
	accountID := uuid.New()
	contacts := []*models.Contact{
		{ID: uuid.New(), AccountID: accountID, Name: "Ana", Company: "Acme", Email: strPtr("ana@acme.com")},
		{ID: uuid.New(), AccountID: accountID, Name: "Bob", Company: "Acme", Email: strPtr("bob@acme.com")},
		{ID: uuid.New(), AccountID: accountID, Name: "Cat", Company: "Globex"},
	}

	contactRepo := newMemContactRepo(contacts...)
	candidateRepo := newMemCandidateRepo()
	svc := newTestDiscoveryService(contactRepo, newMemRelationshipRepo(), candidateRepo)

	first, err := svc.DiscoverBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Processed)
	assert.Equal(t, 1, first.Created) // only Ana-Bob clears the floor

	second, err := svc.DiscoverBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApproveCandidate_CreatesOneMutualEdge(t *testing.T) {
	accountID := uuid.New()
	a := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("ana@acme.com")}
	b := &models.Contact{ID: uuid.New(), AccountID: accountID, Company: "Acme", Email: strPtr("bob@acme.com")}

	relRepo := newMemRelationshipRepo()
	svc := newTestDiscoveryService(newMemContactRepo(a, b), relRepo, newMemCandidateRepo())

	candidate, err := svc.DiscoverPair(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, candidate)

	rel, err := svc.ApproveCandidate(context.Background(), candidate.ID)
	require.NoError(t, err)

	assert.True(t, rel.IsMutual)
	assert.True(t, rel.IsVerified)
	assert.Equal(t, models.RelSourceDiscovered, rel.Source)
	assert.Equal(t, candidate.Confidence, rel.Strength)

	// One stored row, navigable from both ends.
	all, err := relRepo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	fromB, err := relRepo.ListByContact(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, a.ID, fromB[0].OtherEnd(b.ID))

	// A second approval observes the conflict.
	_, err = svc.ApproveCandidate(context.Background(), candidate.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
