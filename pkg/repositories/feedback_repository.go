package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/database"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

// FeedbackRepository provides data access for opportunity feedback records.
type FeedbackRepository interface {
	// Create inserts feedback. Feedback is write-once per opportunity; a
	// second insert returns apperrors.ErrConflict.
	Create(ctx context.Context, feedback *models.OpportunityFeedback) error
	GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*models.OpportunityFeedback, error)
	ListSince(ctx context.Context, since time.Time) ([]*models.OpportunityFeedback, error)
}

type feedbackRepository struct{}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository() FeedbackRepository {
	return &feedbackRepository{}
}

var _ FeedbackRepository = (*feedbackRepository)(nil)

const feedbackColumns = `id, account_id, opportunity_id, rating, actual_outcome,
	       actual_impact, time_invested_minutes, notes, created_at`

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.OpportunityFeedback) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	feedback.CreatedAt = time.Now()
	if feedback.ID == uuid.Nil {
		feedback.ID = uuid.New()
	}

	query := `
		INSERT INTO opportunity_feedback (
			id, account_id, opportunity_id, rating, actual_outcome,
			actual_impact, time_invested_minutes, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := scope.Conn.Exec(ctx, query,
		feedback.ID, feedback.AccountID, feedback.OpportunityID,
		feedback.Rating, feedback.ActualOutcome, feedback.ActualImpact,
		feedback.TimeInvestedMinutes, feedback.Notes, feedback.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("feedback for opportunity %s: %w", feedback.OpportunityID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

func (r *feedbackRepository) GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*models.OpportunityFeedback, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + feedbackColumns + `
		FROM opportunity_feedback
		WHERE opportunity_id = $1`

	fb, err := scanFeedbackRow(scope.Conn.QueryRow(ctx, query, opportunityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("feedback for opportunity %s: %w", opportunityID, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return fb, nil
}

func (r *feedbackRepository) ListSince(ctx context.Context, since time.Time) ([]*models.OpportunityFeedback, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + feedbackColumns + `
		FROM opportunity_feedback
		WHERE created_at >= $1
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var records []*models.OpportunityFeedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		records = append(records, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}

	return records, nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func scanFeedback(row pgx.Row) (*models.OpportunityFeedback, error) {
	var f models.OpportunityFeedback
	err := row.Scan(
		&f.ID, &f.AccountID, &f.OpportunityID, &f.Rating, &f.ActualOutcome,
		&f.ActualImpact, &f.TimeInvestedMinutes, &f.Notes, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFeedbackRow(row pgx.Row) (*models.OpportunityFeedback, error) {
	fb, err := scanFeedback(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	return fb, nil
}
