package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/database"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

// OpportunityRepository provides data access for opportunity suggestions.
type OpportunityRepository interface {
	Create(ctx context.Context, opp *models.OpportunitySuggestion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunitySuggestion, error)
	// ListPending returns actionable suggestions: non-terminal status and not
	// past their expiry.
	ListPending(ctx context.Context) ([]*models.OpportunitySuggestion, error)
	// ListSince returns all suggestions created after the given time,
	// regardless of status. Used by metric computation.
	ListSince(ctx context.Context, since time.Time) ([]*models.OpportunitySuggestion, error)
	// ActiveSignatures returns the (category, primary contact, path signature)
	// keys of all non-terminal suggestions, for dedup during generation.
	ActiveSignatures(ctx context.Context) (map[string]bool, error)
	// UpdateStatus advances a suggestion's lifecycle. Advancing a terminal
	// suggestion returns apperrors.ErrConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OpportunityStatus, actedAt *time.Time) error
	// AttachFeedback writes the closed-outcome metadata exactly once and
	// closes the suggestion if it was still open. A second attempt returns
	// apperrors.ErrConflict.
	AttachFeedback(ctx context.Context, id uuid.UUID, outcome models.FeedbackOutcome, rating int, actualImpact float64, actedAt time.Time) error
	// ExpireDue transitions every overdue non-terminal suggestion to expired
	// and returns how many were expired.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type opportunityRepository struct{}

// NewOpportunityRepository creates a new OpportunityRepository.
func NewOpportunityRepository() OpportunityRepository {
	return &opportunityRepository{}
}

var _ OpportunityRepository = (*opportunityRepository)(nil)

const opportunityColumns = `id, account_id, category, type, title, description, narrative,
	       primary_contact_id, path_contact_ids,
	       confidence_score, impact_score, priority, path_signature, status,
	       expires_at, acted_at, outcome, rating, actual_impact,
	       created_at, updated_at`

// SignatureKey builds the dedup key used by ActiveSignatures.
func SignatureKey(category models.OpportunityCategory, primaryContactID uuid.UUID, pathSignature string) string {
	return fmt.Sprintf("%s|%s|%s", category, primaryContactID, pathSignature)
}

func (r *opportunityRepository) Create(ctx context.Context, opp *models.OpportunitySuggestion) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	now := time.Now()
	opp.CreatedAt = now
	opp.UpdatedAt = now
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	if opp.Status == "" {
		opp.Status = models.OppStatusPending
	}
	if opp.PathContactIDs == nil {
		opp.PathContactIDs = []uuid.UUID{}
	}

	query := `
		INSERT INTO opportunity_suggestions (
			id, account_id, category, type, title, description, narrative,
			primary_contact_id, path_contact_ids,
			confidence_score, impact_score, priority, path_signature, status,
			expires_at, acted_at, outcome, rating, actual_impact,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err := scope.Conn.Exec(ctx, query,
		opp.ID, opp.AccountID, opp.Category, opp.Type,
		opp.Title, opp.Description, opp.Narrative,
		opp.PrimaryContactID, opp.PathContactIDs,
		opp.ConfidenceScore, opp.ImpactScore, opp.Priority, opp.PathSignature, opp.Status,
		opp.ExpiresAt, opp.ActedAt, opp.Outcome, opp.Rating, opp.ActualImpact,
		opp.CreatedAt, opp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create opportunity suggestion: %w", err)
	}

	return nil
}

func (r *opportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunitySuggestion, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + opportunityColumns + `
		FROM opportunity_suggestions
		WHERE id = $1`

	opp, err := scanOpportunityRow(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("opportunity %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return opp, nil
}

func (r *opportunityRepository) ListPending(ctx context.Context) ([]*models.OpportunitySuggestion, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + opportunityColumns + `
		FROM opportunity_suggestions
		WHERE status NOT IN ('completed', 'rejected', 'expired')
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY confidence_score * impact_score DESC, created_at ASC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunityRows(rows)
}

func (r *opportunityRepository) ListSince(ctx context.Context, since time.Time) ([]*models.OpportunitySuggestion, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + opportunityColumns + `
		FROM opportunity_suggestions
		WHERE created_at >= $1
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunityRows(rows)
}

func (r *opportunityRepository) ActiveSignatures(ctx context.Context) (map[string]bool, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT category, primary_contact_id, path_signature
		FROM opportunity_suggestions
		WHERE status NOT IN ('completed', 'rejected', 'expired')`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active signatures: %w", err)
	}
	defer rows.Close()

	signatures := make(map[string]bool)
	for rows.Next() {
		var category models.OpportunityCategory
		var contactID uuid.UUID
		var pathSig string
		if err := rows.Scan(&category, &contactID, &pathSig); err != nil {
			return nil, fmt.Errorf("failed to scan signature row: %w", err)
		}
		signatures[SignatureKey(category, contactID, pathSig)] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signature rows: %w", err)
	}

	return signatures, nil
}

func (r *opportunityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OpportunityStatus, actedAt *time.Time) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	query := `
		UPDATE opportunity_suggestions
		SET status = $2,
		    acted_at = COALESCE($3, acted_at),
		    updated_at = NOW()
		WHERE id = $1
		  AND status NOT IN ('completed', 'rejected', 'expired')`

	result, err := scope.Conn.Exec(ctx, query, id, status, actedAt)
	if err != nil {
		return fmt.Errorf("failed to update opportunity status: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("opportunity %s already closed: %w", id, apperrors.ErrConflict)
	}

	return nil
}

func (r *opportunityRepository) AttachFeedback(ctx context.Context, id uuid.UUID, outcome models.FeedbackOutcome, rating int, actualImpact float64, actedAt time.Time) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	// The rating IS NULL guard makes feedback write-once even under
	// concurrent submissions; the CASE keeps an explicit user rejection
	// intact rather than flipping it to completed.
	query := `
		UPDATE opportunity_suggestions
		SET outcome = $2,
		    rating = $3,
		    actual_impact = $4,
		    status = CASE
		        WHEN status IN ('completed', 'rejected', 'expired') THEN status
		        ELSE 'completed'
		    END,
		    acted_at = COALESCE(acted_at, $5),
		    updated_at = NOW()
		WHERE id = $1 AND rating IS NULL`

	result, err := scope.Conn.Exec(ctx, query, id, outcome, rating, actualImpact, actedAt)
	if err != nil {
		return fmt.Errorf("failed to attach feedback: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("opportunity %s already has feedback: %w", id, apperrors.ErrConflict)
	}

	return nil
}

func (r *opportunityRepository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no account scope in context")
	}

	query := `
		UPDATE opportunity_suggestions
		SET status = 'expired',
		    updated_at = NOW()
		WHERE expires_at IS NOT NULL
		  AND expires_at < $1
		  AND status NOT IN ('completed', 'rejected', 'expired')`

	result, err := scope.Conn.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire opportunities: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func scanOpportunity(row pgx.Row) (*models.OpportunitySuggestion, error) {
	var o models.OpportunitySuggestion
	err := row.Scan(
		&o.ID, &o.AccountID, &o.Category, &o.Type,
		&o.Title, &o.Description, &o.Narrative,
		&o.PrimaryContactID, &o.PathContactIDs,
		&o.ConfidenceScore, &o.ImpactScore, &o.Priority, &o.PathSignature, &o.Status,
		&o.ExpiresAt, &o.ActedAt, &o.Outcome, &o.Rating, &o.ActualImpact,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOpportunityRow(row pgx.Row) (*models.OpportunitySuggestion, error) {
	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan opportunity: %w", err)
	}
	return opp, nil
}

func scanOpportunityRows(rows pgx.Rows) ([]*models.OpportunitySuggestion, error) {
	var opps []*models.OpportunitySuggestion

	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity row: %w", err)
		}
		opps = append(opps, opp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating opportunity rows: %w", err)
	}

	return opps, nil
}
