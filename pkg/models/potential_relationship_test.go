package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCandidateFingerprint_OrderInvariant(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	evidence := []EvidenceSignal{
		{Signal: SignalSameCompany, Score: 1.0},
		{Signal: SignalMutualConnections, Score: 0.4},
	}

	assert.Equal(t, CandidateFingerprint(a, b, evidence), CandidateFingerprint(b, a, evidence))
}

func TestCandidateFingerprint_EvidenceOrderInvariant(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	forward := []EvidenceSignal{
		{Signal: SignalSameCompany, Score: 1.0},
		{Signal: SignalSameLocation, Score: 0.6},
	}
	reversed := []EvidenceSignal{
		{Signal: SignalSameLocation, Score: 0.6},
		{Signal: SignalSameCompany, Score: 1.0},
	}

	assert.Equal(t, CandidateFingerprint(a, b, forward), CandidateFingerprint(a, b, reversed))
}

func TestCandidateFingerprint_SensitiveToSignalSet(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	company := []EvidenceSignal{{Signal: SignalSameCompany, Score: 1.0}}
	location := []EvidenceSignal{{Signal: SignalSameLocation, Score: 1.0}}

	assert.NotEqual(t, CandidateFingerprint(a, b, company), CandidateFingerprint(a, b, location))
}

func TestCandidateFingerprint_IgnoresZeroScoreSignals(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	with := []EvidenceSignal{
		{Signal: SignalSameCompany, Score: 1.0},
		{Signal: SignalMutualConnections, Score: 0},
	}
	without := []EvidenceSignal{{Signal: SignalSameCompany, Score: 1.0}}

	assert.Equal(t, CandidateFingerprint(a, b, with), CandidateFingerprint(a, b, without))
}

func TestCandidateFingerprint_DistinctPairs(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	evidence := []EvidenceSignal{{Signal: SignalSameCompany, Score: 1.0}}

	assert.NotEqual(t, CandidateFingerprint(a, b, evidence), CandidateFingerprint(a, c, evidence))
	assert.Len(t, CandidateFingerprint(a, b, evidence), 32)
}

func TestPotentialRelationship_IsTerminal(t *testing.T) {
	assert.False(t, (&PotentialRelationship{Status: CandidateStatusPending}).IsTerminal())
	assert.True(t, (&PotentialRelationship{Status: CandidateStatusApproved}).IsTerminal())
	assert.True(t, (&PotentialRelationship{Status: CandidateStatusRejected}).IsTerminal())
}
