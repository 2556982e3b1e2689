package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFromComposite(t *testing.T) {
	tests := []struct {
		composite float64
		want      OpportunityPriority
	}{
		{0, PriorityLow},
		{39.9, PriorityLow},
		{40, PriorityMedium},
		{64.9, PriorityMedium},
		{65, PriorityHigh},
		{84.9, PriorityHigh},
		{85, PriorityUrgent},
		{100, PriorityUrgent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityFromComposite(tt.composite), "composite %.1f", tt.composite)
	}
}

func TestPriorityFromComposite_Monotonic(t *testing.T) {
	rank := map[OpportunityPriority]int{
		PriorityLow: 0, PriorityMedium: 1, PriorityHigh: 2, PriorityUrgent: 3,
	}

	prev := -1
	for composite := 0.0; composite <= 100; composite += 0.5 {
		r := rank[PriorityFromComposite(composite)]
		assert.GreaterOrEqual(t, r, prev, "composite %.1f", composite)
		prev = r
	}
}

func TestOpportunityLifecycleHelpers(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	soon := now.Add(24 * time.Hour)
	far := now.Add(30 * 24 * time.Hour)

	t.Run("terminal statuses", func(t *testing.T) {
		for _, s := range []OpportunityStatus{OppStatusCompleted, OppStatusRejected, OppStatusExpired} {
			assert.True(t, (&OpportunitySuggestion{Status: s}).IsTerminal(), string(s))
		}
		for _, s := range []OpportunityStatus{OppStatusPending, OppStatusViewed, OppStatusAccepted, OppStatusInProgress} {
			assert.False(t, (&OpportunitySuggestion{Status: s}).IsTerminal(), string(s))
		}
	})

	t.Run("expiry", func(t *testing.T) {
		assert.True(t, (&OpportunitySuggestion{ExpiresAt: &past}).IsExpired(now))
		assert.False(t, (&OpportunitySuggestion{ExpiresAt: &soon}).IsExpired(now))
		assert.False(t, (&OpportunitySuggestion{}).IsExpired(now), "no expiry set")
	})

	t.Run("expiring soon", func(t *testing.T) {
		window := 3 * 24 * time.Hour
		assert.True(t, (&OpportunitySuggestion{ExpiresAt: &soon}).ExpiringSoon(now, window))
		assert.False(t, (&OpportunitySuggestion{ExpiresAt: &far}).ExpiringSoon(now, window))
		assert.False(t, (&OpportunitySuggestion{ExpiresAt: &past}).ExpiringSoon(now, window))
		assert.False(t, (&OpportunitySuggestion{ExpiresAt: &soon, Status: OppStatusCompleted}).ExpiringSoon(now, window))
	})
}

func TestCompositeScore(t *testing.T) {
	o := &OpportunitySuggestion{ConfidenceScore: 0.8, ImpactScore: 75}
	assert.InDelta(t, 60.0, o.CompositeScore(), 1e-9)
}
