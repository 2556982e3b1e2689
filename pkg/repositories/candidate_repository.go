package repositories

import (
	"context"
	"encoding/json"
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

// CandidateRepository provides data access for potential relationships.
type CandidateRepository interface {
	// Create inserts a new candidate. A duplicate fingerprint returns
	// apperrors.ErrConflict.
	Create(ctx context.Context, candidate *models.PotentialRelationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PotentialRelationship, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.PotentialRelationship, error)
	ListPending(ctx context.Context) ([]*models.PotentialRelationship, error)
	// ListFingerprints returns every known fingerprint and its status.
	// Batch discovery uses this to skip duplicates and rejected candidates
	// without a per-pair query.
	ListFingerprints(ctx context.Context) (map[string]models.CandidateStatus, error)
	// ResolveStatus transitions a pending candidate to approved or rejected.
	// The update is optimistic: a candidate that is no longer pending returns
	// apperrors.ErrConflict.
	ResolveStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatus) error
	CountByStatus(ctx context.Context, status models.CandidateStatus) (int, error)
}

type candidateRepository struct{}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository() CandidateRepository {
	return &candidateRepository{}
}

var _ CandidateRepository = (*candidateRepository)(nil)

const candidateColumns = `id, account_id, contact_id, related_contact_id,
	       inferred_type, confidence, evidence, fingerprint, status,
	       created_at, updated_at`

func (r *candidateRepository) Create(ctx context.Context, candidate *models.PotentialRelationship) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	now := time.Now()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	if candidate.Status == "" {
		candidate.Status = models.CandidateStatusPending
	}

	evidence, err := json.Marshal(candidate.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	query := `
		INSERT INTO potential_relationships (
			id, account_id, contact_id, related_contact_id,
			inferred_type, confidence, evidence, fingerprint, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = scope.Conn.Exec(ctx, query,
		candidate.ID, candidate.AccountID, candidate.ContactID, candidate.RelatedContactID,
		candidate.InferredType, candidate.Confidence, evidence,
		candidate.Fingerprint, candidate.Status,
		candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("candidate fingerprint %s: %w", candidate.Fingerprint, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create candidate: %w", err)
	}

	return nil
}

func (r *candidateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PotentialRelationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + candidateColumns + `
		FROM potential_relationships
		WHERE id = $1`

	candidate, err := scanCandidateRow(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("candidate %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return candidate, nil
}

func (r *candidateRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.PotentialRelationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + candidateColumns + `
		FROM potential_relationships
		WHERE fingerprint = $1`

	candidate, err := scanCandidateRow(scope.Conn.QueryRow(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("candidate fingerprint %s: %w", fingerprint, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return candidate, nil
}

func (r *candidateRepository) ListPending(ctx context.Context) ([]*models.PotentialRelationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + candidateColumns + `
		FROM potential_relationships
		WHERE status = 'pending'
		ORDER BY confidence DESC, created_at ASC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidateRows(rows)
}

func (r *candidateRepository) ListFingerprints(ctx context.Context) (map[string]models.CandidateStatus, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT fingerprint, status FROM potential_relationships`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]models.CandidateStatus)
	for rows.Next() {
		var fp string
		var status models.CandidateStatus
		if err := rows.Scan(&fp, &status); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint row: %w", err)
		}
		fingerprints[fp] = status
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprint rows: %w", err)
	}

	return fingerprints, nil
}

func (r *candidateRepository) ResolveStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatus) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	query := `
		UPDATE potential_relationships
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := scope.Conn.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to resolve candidate status: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the candidate does not exist or it was already resolved.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("candidate %s already resolved: %w", id, apperrors.ErrConflict)
	}

	return nil
}

func (r *candidateRepository) CountByStatus(ctx context.Context, status models.CandidateStatus) (int, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no account scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM potential_relationships WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}

	return count, nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func scanCandidate(row pgx.Row) (*models.PotentialRelationship, error) {
	var c models.PotentialRelationship
	var evidence []byte

	err := row.Scan(
		&c.ID, &c.AccountID, &c.ContactID, &c.RelatedContactID,
		&c.InferredType, &c.Confidence, &evidence, &c.Fingerprint, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
	}

	return &c, nil
}

func scanCandidateRow(row pgx.Row) (*models.PotentialRelationship, error) {
	candidate, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}
	return candidate, nil
}

func scanCandidateRows(rows pgx.Rows) ([]*models.PotentialRelationship, error) {
	var candidates []*models.PotentialRelationship

	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	return candidates, nil
}
