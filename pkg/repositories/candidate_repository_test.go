package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

func TestCandidateRepository_FingerprintConflict(t *testing.T) {
	accountID := uuid.New()
	ctx := scopedCtx(t, accountID)
	repo := NewCandidateRepository()

	a := seedContact(t, ctx, accountID, "Ivy")
	b := seedContact(t, ctx, accountID, "Joe")

	evidence := []models.EvidenceSignal{{Signal: models.SignalSameCompany, Score: 1.0, Detail: "Both at Acme"}}
	candidate := &models.PotentialRelationship{
		AccountID:        accountID,
		ContactID:        a.ID,
		RelatedContactID: b.ID,
		InferredType:     models.RelTypeColleague,
		Confidence:       0.7,
		Evidence:         evidence,
		Fingerprint:      models.CandidateFingerprint(a.ID, b.ID, evidence),
	}
	require.NoError(t, repo.Create(ctx, candidate))

	dup := &models.PotentialRelationship{
		AccountID:        accountID,
		ContactID:        a.ID,
		RelatedContactID: b.ID,
		InferredType:     models.RelTypeColleague,
		Confidence:       0.7,
		Evidence:         evidence,
		Fingerprint:      candidate.Fingerprint,
	}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.GetByFingerprint(ctx, candidate.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, candidate.ID, got.ID)
	require.Len(t, got.Evidence, 1)
	assert.Equal(t, models.SignalSameCompany, got.Evidence[0].Signal)
}

func TestCandidateRepository_ResolveStatusIsTerminal(t *testing.T) {
	accountID := uuid.New()
	ctx := scopedCtx(t, accountID)
	repo := NewCandidateRepository()

	a := seedContact(t, ctx, accountID, "Kim")
	b := seedContact(t, ctx, accountID, "Lou")

	evidence := []models.EvidenceSignal{{Signal: models.SignalSameEmailDomain, Score: 1.0, Detail: "Shared domain"}}
	candidate := &models.PotentialRelationship{
		AccountID:        accountID,
		ContactID:        a.ID,
		RelatedContactID: b.ID,
		InferredType:     models.RelTypeColleague,
		Confidence:       0.5,
		Evidence:         evidence,
		Fingerprint:      models.CandidateFingerprint(a.ID, b.ID, evidence),
	}
	require.NoError(t, repo.Create(ctx, candidate))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.ResolveStatus(ctx, candidate.ID, models.CandidateStatusRejected))

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Rejection is final: the fingerprint stays on file with its verdict.
	fingerprints, err := repo.ListFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusRejected, fingerprints[candidate.Fingerprint])

	err = repo.ResolveStatus(ctx, candidate.ID, models.CandidateStatusApproved)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
