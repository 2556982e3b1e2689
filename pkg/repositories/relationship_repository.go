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

// pgUniqueViolation is the Postgres error code for unique constraint violations.
const pgUniqueViolation = "23505"

// RelationshipRepository provides data access for relationship edges.
type RelationshipRepository interface {
	// Create inserts a new edge. A duplicate (contact, related, type) triple
	// returns apperrors.ErrConflict.
	Create(ctx context.Context, rel *models.Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	// ListByContact returns edges touching the contact, including mutual
	// edges stored in the opposite direction. This is the derived neighbor
	// view: mutual edges are one row, navigable both ways.
	ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.Relationship, error)
	// ListAll returns every edge in the account, for graph snapshots.
	ListAll(ctx context.Context) ([]*models.Relationship, error)
	// ExistsBetween reports whether any edge connects the two contacts in
	// either direction.
	ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type relationshipRepository struct{}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository() RelationshipRepository {
	return &relationshipRepository{}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

const relationshipColumns = `id, account_id, contact_id, related_contact_id,
	       type, strength, notes, source, is_verified, is_mutual,
	       created_at, updated_at`

func (r *relationshipRepository) Create(ctx context.Context, rel *models.Relationship) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	now := time.Now()
	rel.CreatedAt = now
	rel.UpdatedAt = now
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	query := `
		INSERT INTO relationships (
			id, account_id, contact_id, related_contact_id,
			type, strength, notes, source, is_verified, is_mutual,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := scope.Conn.Exec(ctx, query,
		rel.ID, rel.AccountID, rel.ContactID, rel.RelatedContactID,
		rel.Type, rel.Strength, rel.Notes, rel.Source,
		rel.IsVerified, rel.IsMutual,
		rel.CreatedAt, rel.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("relationship %s -> %s (%s): %w",
				rel.ContactID, rel.RelatedContactID, rel.Type, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create relationship: %w", err)
	}

	return nil
}

func (r *relationshipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE id = $1`

	rel, err := scanRelationshipRow(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("relationship %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return rel, nil
}

func (r *relationshipRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.Relationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE contact_id = $1 OR (is_mutual AND related_contact_id = $1)
		ORDER BY strength DESC, created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	return scanRelationshipRows(rows)
}

func (r *relationshipRepository) ListAll(ctx context.Context) ([]*models.Relationship, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	return scanRelationshipRows(rows)
}

func (r *relationshipRepository) ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return false, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE (contact_id = $1 AND related_contact_id = $2)
			   OR (contact_id = $2 AND related_contact_id = $1)
		)`

	var exists bool
	if err := scope.Conn.QueryRow(ctx, query, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check relationship existence: %w", err)
	}

	return exists, nil
}

func (r *relationshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("relationship %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func scanRelationship(row pgx.Row) (*models.Relationship, error) {
	var rel models.Relationship
	err := row.Scan(
		&rel.ID, &rel.AccountID, &rel.ContactID, &rel.RelatedContactID,
		&rel.Type, &rel.Strength, &rel.Notes, &rel.Source,
		&rel.IsVerified, &rel.IsMutual,
		&rel.CreatedAt, &rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func scanRelationshipRow(row pgx.Row) (*models.Relationship, error) {
	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}
	return rel, nil
}

func scanRelationshipRows(rows pgx.Rows) ([]*models.Relationship, error) {
	var rels []*models.Relationship

	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship row: %w", err)
		}
		rels = append(rels, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationship rows: %w", err)
	}

	return rels, nil
}
