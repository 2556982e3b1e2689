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

// ContactRepository provides data access for contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, status models.ContactStatus) ([]*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) error
	// UpdateScores writes back the derived scores, flag set and scoring
	// timestamp. This is the only write path the scorer uses.
	UpdateScores(ctx context.Context, id uuid.UUID, priority, opportunity, strategic float64, flags []models.OpportunityFlag, scoredAt time.Time) error
	Count(ctx context.Context, status models.ContactStatus) (int, error)
}

type contactRepository struct{}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository() ContactRepository {
	return &contactRepository{}
}

var _ ContactRepository = (*contactRepository)(nil)

const contactColumns = `id, account_id, name, email, company, position, location, industry,
	       tags, source, tier, status,
	       priority_score, opportunity_score, strategic_value, opportunity_flags,
	       last_scored_at, last_contacted_at, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	now := time.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.Status == "" {
		contact.Status = models.ContactStatusActive
	}
	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	query := `
		INSERT INTO contacts (
			id, account_id, name, email, company, position, location, industry,
			tags, source, tier, status,
			priority_score, opportunity_score, strategic_value, opportunity_flags,
			last_scored_at, last_contacted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`

	_, err := scope.Conn.Exec(ctx, query,
		contact.ID, contact.AccountID, contact.Name, contact.Email,
		contact.Company, contact.Position, contact.Location, contact.Industry,
		contact.Tags, contact.Source, contact.Tier, contact.Status,
		contact.PriorityScore, contact.OpportunityScore, contact.StrategicValue,
		flagsToStrings(contact.OpportunityFlags),
		contact.LastScoredAt, contact.LastContactedAt,
		contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, id)
	contact, err := scanContactRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}

	return contact, nil
}

func (r *contactRepository) List(ctx context.Context, status models.ContactStatus) ([]*models.Contact, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE status = $1
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	return scanContactRows(rows)
}

func (r *contactRepository) Update(ctx context.Context, contact *models.Contact) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	contact.UpdatedAt = time.Now()

	query := `
		UPDATE contacts
		SET name = $2,
		    email = $3,
		    company = $4,
		    position = $5,
		    location = $6,
		    industry = $7,
		    tags = $8,
		    source = $9,
		    tier = $10,
		    status = $11,
		    last_contacted_at = $12,
		    updated_at = $13
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		contact.ID, contact.Name, contact.Email,
		contact.Company, contact.Position, contact.Location, contact.Industry,
		contact.Tags, contact.Source, contact.Tier, contact.Status,
		contact.LastContactedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *contactRepository) UpdateScores(ctx context.Context, id uuid.UUID, priority, opportunity, strategic float64, flags []models.OpportunityFlag, scoredAt time.Time) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	query := `
		UPDATE contacts
		SET priority_score = $2,
		    opportunity_score = $3,
		    strategic_value = $4,
		    opportunity_flags = $5,
		    last_scored_at = $6,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		id, priority, opportunity, strategic, flagsToStrings(flags), scoredAt)
	if err != nil {
		return fmt.Errorf("failed to update contact scores: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

func (r *contactRepository) Count(ctx context.Context, status models.ContactStatus) (int, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no account scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	return count, nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func flagsToStrings(flags []models.OpportunityFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func stringsToFlags(raw []string) []models.OpportunityFlag {
	if len(raw) == 0 {
		return nil
	}
	out := make([]models.OpportunityFlag, len(raw))
	for i, s := range raw {
		out[i] = models.OpportunityFlag(s)
	}
	return out
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	var flags []string

	err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Email,
		&c.Company, &c.Position, &c.Location, &c.Industry,
		&c.Tags, &c.Source, &c.Tier, &c.Status,
		&c.PriorityScore, &c.OpportunityScore, &c.StrategicValue, &flags,
		&c.LastScoredAt, &c.LastContactedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.OpportunityFlags = stringsToFlags(flags)
	return &c, nil
}

func scanContactRow(row pgx.Row) (*models.Contact, error) {
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}
	return contact, nil
}

func scanContactRows(rows pgx.Rows) ([]*models.Contact, error) {
	var contacts []*models.Contact

	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact rows: %w", err)
	}

	return contacts, nil
}
