package repositories

// Shared fixtures for the repository integration tests. Every test in this
// package runs against the shared postgres container and is skipped in short
// mode.

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/testhelpers"
)

// scopedCtx returns a context carrying an account-scoped connection. Each
// test uses a fresh account id, so rows from other tests never leak in.
func scopedCtx(t *testing.T, accountID uuid.UUID) context.Context {
	t.Helper()
	return testhelpers.ScopedContext(t, testhelpers.GetEngineDB(t), accountID)
}

func seedContact(t *testing.T, ctx context.Context, accountID uuid.UUID, name string) *models.Contact {
	t.Helper()
	c := &models.Contact{
		AccountID: accountID,
		Name:      name,
		Company:   "Acme",
		Industry:  "Software",
	}
	require.NoError(t, NewContactRepository().Create(ctx, c))
	return c
}

func seedSuggestion(t *testing.T, ctx context.Context, accountID, contactID uuid.UUID, mutate func(*models.OpportunitySuggestion)) *models.OpportunitySuggestion {
	t.Helper()
	opp := &models.OpportunitySuggestion{
		AccountID:        accountID,
		Category:         models.CategoryReconnection,
		Type:             models.TypeReconnectDormant,
		Title:            "Reconnect",
		PrimaryContactID: contactID,
		ConfidenceScore:  0.8,
		ImpactScore:      70,
		Priority:         models.PriorityHigh,
		PathSignature:    uuid.NewString(),
	}
	if mutate != nil {
		mutate(opp)
	}
	require.NoError(t, NewOpportunityRepository().Create(ctx, opp))
	return opp
}
