package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/llm"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

func testOpportunityConfig() config.OpportunityConfig {
	return config.OpportunityConfig{
		ReconnectAfterDays:   90,
		IntroPathMinStrength: 0.6,
		ClusterMinSize:       3,
		SuggestionTTLDays:    30,
	}
}

func newTestOpportunityService(
	oppRepo *memOpportunityRepo,
	contactRepo *memContactRepo,
	relRepo *memRelationshipRepo,
	summarizer llm.Summarizer,
) OpportunityService {
	return NewOpportunityService(
		oppRepo, contactRepo, relRepo,
		testOpportunityConfig(),
		summarizer,
		NewAccountBatchGate(),
		zap.NewNop(),
	)
}

// ============================================================================
// Reconnection
// ============================================================================

func TestGenerateBatch_ReconnectionForDormantContact(t *testing.T) {
	accountID := uuid.New()
	stale := time.Now().AddDate(0, 0, -180)
	fresh := time.Now().AddDate(0, 0, -10)

	dormant := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Ana",
		Position: "CTO", Company: "Acme", StrategicValue: 80,
		LastContactedAt: &stale,
	}
	recent := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Bob",
		LastContactedAt: &fresh,
	}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(dormant, recent), newMemRelationshipRepo(), nil)

	result, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	pending, err := oppRepo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	opp := pending[0]
	assert.Equal(t, models.CategoryReconnection, opp.Category)
	assert.Equal(t, dormant.ID, opp.PrimaryContactID)
	assert.Equal(t, "dormant", opp.PathSignature)
	assert.Equal(t, models.OppStatusPending, opp.Status)
	require.NotNil(t, opp.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *opp.ExpiresAt, time.Minute)

	// 90 days overdue: confidence = 0.9 - 90/730.
	assert.InDelta(t, 0.9-90.0/730.0, opp.ConfidenceScore, 0.01)
}

func TestReconnectionConfidence_DecaysWithStaleness(t *testing.T) {
	accountID := uuid.New()
	barely := time.Now().AddDate(0, 0, -100)
	ancient := time.Now().AddDate(0, 0, -700)

	contacts := []*models.Contact{
		{ID: uuid.New(), AccountID: accountID, Name: "Barely", LastContactedAt: &barely},
		{ID: uuid.New(), AccountID: accountID, Name: "Ancient", LastContactedAt: &ancient},
	}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	byName := make(map[uuid.UUID]*models.OpportunitySuggestion)
	pending, _ := oppRepo.ListPending(context.Background())
	for _, o := range pending {
		byName[o.PrimaryContactID] = o
	}

	require.Len(t, byName, 2)
	assert.Greater(t, byName[contacts[0].ID].ConfidenceScore, byName[contacts[1].ID].ConfidenceScore)
	// Decay floors at 0.3 no matter how stale.
	assert.InDelta(t, 0.3, byName[contacts[1].ID].ConfidenceScore, 1e-9)
}

func TestReconnection_NeverContactedNeedsStrategicValue(t *testing.T) {
	accountID := uuid.New()
	lowValue := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Low", StrategicValue: 20}
	highValue := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "High", StrategicValue: 70}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(lowValue, highValue), newMemRelationshipRepo(), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, highValue.ID, pending[0].PrimaryContactID)
}

// ============================================================================
// Warm Introduction
// ============================================================================

func introTestGraph(accountID uuid.UUID) ([]*models.Contact, []*models.Relationship) {
	connector := &models.Contact{ID: uuid.New(), AccountID: accountID, Name: "Connector"}
	target := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Target",
		OpportunityScore: 90, StrategicValue: 80,
	}
	source := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Source",
		OpportunityScore: 40, StrategicValue: 30,
	}

	fresh := time.Now().AddDate(0, 0, -5)
	for _, c := range []*models.Contact{connector, target, source} {
		c.LastContactedAt = &fresh // keep reconnection out of the picture
	}

	edges := []*models.Relationship{
		{ID: uuid.New(), ContactID: connector.ID, RelatedContactID: target.ID, Strength: 0.9, IsMutual: true},
		{ID: uuid.New(), ContactID: connector.ID, RelatedContactID: source.ID, Strength: 0.7, IsMutual: true},
	}
	return []*models.Contact{connector, target, source}, edges
}

func TestGenerateBatch_IntroductionPath(t *testing.T) {
	accountID := uuid.New()
	contacts, edges := introTestGraph(accountID)
	connector, target, source := contacts[0], contacts[1], contacts[2]

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(edges...), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1)

	opp := pending[0]
	assert.Equal(t, models.CategoryIntroduction, opp.Category)
	assert.Equal(t, target.ID, opp.PrimaryContactID, "higher-opportunity endpoint is the target")
	assert.Equal(t, []uuid.UUID{source.ID, connector.ID, target.ID}, opp.PathContactIDs)

	// Path is as strong as its weakest edge: 0.7 * 90/100.
	assert.InDelta(t, 0.7*0.9, opp.ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.5*80+50*0.7, opp.ImpactScore, 1e-9)
}

func TestIntroduction_SkipsAlreadyConnectedEndpoints(t *testing.T) {
	accountID := uuid.New()
	contacts, edges := introTestGraph(accountID)
	target, source := contacts[1], contacts[2]

	edges = append(edges, &models.Relationship{
		ID: uuid.New(), ContactID: target.ID, RelatedContactID: source.ID,
		Strength: 0.5, IsMutual: true,
	})

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(edges...), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	assert.Empty(t, pending)
}

func TestIntroduction_DirectedEdgeAlsoCountsAsConnected(t *testing.T) {
	accountID := uuid.New()
	contacts, edges := introTestGraph(accountID)
	target, source := contacts[1], contacts[2]

	// A one-way edge between the endpoints still means they know each other.
	edges = append(edges, &models.Relationship{
		ID: uuid.New(), ContactID: target.ID, RelatedContactID: source.ID,
		Strength: 0.5, IsMutual: false,
	})

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(edges...), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	assert.Empty(t, pending)
}

func TestIntroduction_WeakEdgeBreaksPath(t *testing.T) {
	accountID := uuid.New()
	contacts, edges := introTestGraph(accountID)
	edges[1].Strength = 0.4 // connector-source below the path minimum

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(edges...), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	assert.Empty(t, pending)
}

func TestIntroSignature_EndpointOrderInvariant(t *testing.T) {
	a, via, b := uuid.New(), uuid.New(), uuid.New()
	assert.Equal(t, introSignature(a, via, b), introSignature(b, via, a))
	assert.NotEqual(t, introSignature(a, via, b), introSignature(a, uuid.New(), b))
}

// ============================================================================
// Strategic Cluster
// ============================================================================

func TestGenerateBatch_ClusterRequiresMinSize(t *testing.T) {
	accountID := uuid.New()
	fresh := time.Now().AddDate(0, 0, -5)

	mk := func(name, company string, strategic float64) *models.Contact {
		return &models.Contact{
			ID: uuid.New(), AccountID: accountID, Name: name,
			Company: company, Industry: "Software",
			StrategicValue: strategic, LastContactedAt: &fresh,
		}
	}

	contacts := []*models.Contact{
		mk("A1", "Acme Inc", 60),
		mk("A2", "Acme", 90), // normalization folds the suffix
		mk("A3", "ACME", 30),
		mk("G1", "Globex", 50),
		mk("G2", "Globex", 50),
	}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1, "only the three-member cluster qualifies")

	opp := pending[0]
	assert.Equal(t, models.CategoryBusinessMatch, opp.Category)
	assert.Equal(t, contacts[1].ID, opp.PrimaryContactID, "highest strategic value leads")
	assert.Len(t, opp.PathContactIDs, 3)
	assert.InDelta(t, 0.5+0.05*3, opp.ConfidenceScore, 1e-9)
	assert.InDelta(t, (60.0+90+30)/3*1.1, opp.ImpactScore, 1e-9)
}

func TestGenerateBatch_ClusterImpactGrowsWithSize(t *testing.T) {
	fresh := time.Now().AddDate(0, 0, -5)

	// Two accounts, identical 60-point averages, different head counts.
	seed := func(company string, n int) *models.OpportunitySuggestion {
		accountID := uuid.New()
		contacts := make([]*models.Contact, n)
		for i := range contacts {
			contacts[i] = &models.Contact{
				ID: uuid.New(), AccountID: accountID, Name: fmt.Sprintf("C%d", i),
				Company: company, Industry: "Software",
				StrategicValue: 60, LastContactedAt: &fresh,
			}
		}

		oppRepo := newMemOpportunityRepo()
		svc := newTestOpportunityService(oppRepo, newMemContactRepo(contacts...), newMemRelationshipRepo(), nil)
		_, err := svc.GenerateBatch(context.Background(), accountID)
		if err != nil {
			return nil
		}
		pending, _ := oppRepo.ListPending(context.Background())
		if len(pending) != 1 {
			return nil
		}
		return pending[0]
	}

	small := seed("Acme", 3)
	large := seed("Acme", 8)
	require.NotNil(t, small)
	require.NotNil(t, large)

	assert.Greater(t, large.ImpactScore, small.ImpactScore,
		"a bigger cluster of equally valuable contacts carries more weight")
}

// ============================================================================
// Dedup, Expiry, Narrative
// ============================================================================

func TestGenerateBatch_SecondRunSkipsActiveSignatures(t *testing.T) {
	accountID := uuid.New()
	stale := time.Now().AddDate(0, 0, -180)
	dormant := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Ana",
		StrategicValue: 70, LastContactedAt: &stale,
	}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(dormant), newMemRelationshipRepo(), nil)

	first, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
}

func TestGenerateBatch_ExpiresDueBeforeGenerating(t *testing.T) {
	accountID := uuid.New()
	past := time.Now().AddDate(0, 0, -1)
	expired := &models.OpportunitySuggestion{
		ID: uuid.New(), AccountID: accountID,
		Category:         models.CategoryReconnection,
		PrimaryContactID: uuid.New(),
		PathSignature:    "dormant",
		Status:           models.OppStatusPending,
		ExpiresAt:        &past,
	}

	oppRepo := newMemOpportunityRepo(expired)
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(), newMemRelationshipRepo(), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	stored, err := oppRepo.GetByID(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OppStatusExpired, stored.Status)
}

func TestGenerateBatch_NarrativeFromSummarizer(t *testing.T) {
	accountID := uuid.New()
	stale := time.Now().AddDate(0, 0, -180)
	dormant := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Ana",
		StrategicValue: 70, LastContactedAt: &stale,
	}

	mock := &llm.MockSummarizer{}
	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(dormant), newMemRelationshipRepo(), mock)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Narrative)
	assert.Equal(t, "mock narrative", *pending[0].Narrative)
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0], "Reconnect with Ana")
}

func TestGenerateBatch_SummarizerFailureFallsBackToTemplate(t *testing.T) {
	accountID := uuid.New()
	stale := time.Now().AddDate(0, 0, -180)
	dormant := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Ana",
		StrategicValue: 70, LastContactedAt: &stale,
	}

	mock := &llm.MockSummarizer{
		SummarizeFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(dormant), newMemRelationshipRepo(), mock)

	result, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].Narrative)
	assert.NotEmpty(t, pending[0].Description)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestUpdateStatus_Transitions(t *testing.T) {
	accountID := uuid.New()

	newOpp := func() *memOpportunityRepo {
		return newMemOpportunityRepo(&models.OpportunitySuggestion{
			ID: uuid.New(), AccountID: accountID,
			Category:         models.CategoryReconnection,
			PrimaryContactID: uuid.New(),
			PathSignature:    "dormant",
			ConfidenceScore:  0.8,
			ImpactScore:      70,
		})
	}

	t.Run("accept stamps acted_at", func(t *testing.T) {
		oppRepo := newOpp()
		svc := newTestOpportunityService(oppRepo, newMemContactRepo(), newMemRelationshipRepo(), nil)
		pending, _ := oppRepo.ListPending(context.Background())

		opp, err := svc.UpdateStatus(context.Background(), pending[0].ID, models.OppStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, models.OppStatusAccepted, opp.Status)
		assert.NotNil(t, opp.ActedAt)
	})

	t.Run("viewed does not stamp acted_at", func(t *testing.T) {
		oppRepo := newOpp()
		svc := newTestOpportunityService(oppRepo, newMemContactRepo(), newMemRelationshipRepo(), nil)
		pending, _ := oppRepo.ListPending(context.Background())

		opp, err := svc.UpdateStatus(context.Background(), pending[0].ID, models.OppStatusViewed)
		require.NoError(t, err)
		assert.Equal(t, models.OppStatusViewed, opp.Status)
		assert.Nil(t, opp.ActedAt)
	})

	t.Run("pending cannot be set directly", func(t *testing.T) {
		oppRepo := newOpp()
		svc := newTestOpportunityService(oppRepo, newMemContactRepo(), newMemRelationshipRepo(), nil)
		pending, _ := oppRepo.ListPending(context.Background())

		_, err := svc.UpdateStatus(context.Background(), pending[0].ID, models.OppStatusPending)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("terminal suggestions stay closed", func(t *testing.T) {
		oppRepo := newOpp()
		svc := newTestOpportunityService(oppRepo, newMemContactRepo(), newMemRelationshipRepo(), nil)
		pending, _ := oppRepo.ListPending(context.Background())

		_, err := svc.UpdateStatus(context.Background(), pending[0].ID, models.OppStatusRejected)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(context.Background(), pending[0].ID, models.OppStatusAccepted)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestPriorityFromComposite_AssignedOnFinalize(t *testing.T) {
	accountID := uuid.New()
	stale := time.Now().AddDate(0, 0, -100)
	dormant := &models.Contact{
		ID: uuid.New(), AccountID: accountID, Name: "Ana",
		StrategicValue: 100, LastContactedAt: &stale,
	}

	oppRepo := newMemOpportunityRepo()
	svc := newTestOpportunityService(oppRepo, newMemContactRepo(dormant), newMemRelationshipRepo(), nil)

	_, err := svc.GenerateBatch(context.Background(), accountID)
	require.NoError(t, err)

	pending, _ := oppRepo.ListPending(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, models.PriorityFromComposite(pending[0].CompositeScore()), pending[0].Priority)
	assert.Contains(t, models.ValidOpportunityPriorities, pending[0].Priority)
}
