package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mylesweissleder/newday-engine/pkg/database"
	"github.com/mylesweissleder/newday-engine/pkg/models"
)

// NotificationRepository provides data access for notification settings and
// the delivery ledger that keeps alert delivery idempotent.
type NotificationRepository interface {
	// GetSettings returns the account's settings, or the defaults when the
	// account never customized them.
	GetSettings(ctx context.Context, accountID uuid.UUID) (*models.NotificationSettings, error)
	SaveSettings(ctx context.Context, settings *models.NotificationSettings) error
	// MarkNotified records that the given suggestions were delivered under
	// the given kind. Already-recorded pairs are ignored.
	MarkNotified(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) error
	// NotifiedIDs returns which of the given suggestions were already
	// delivered under the given kind.
	NotifiedIDs(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type notificationRepository struct{}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

var _ NotificationRepository = (*notificationRepository)(nil)

func (r *notificationRepository) GetSettings(ctx context.Context, accountID uuid.UUID) (*models.NotificationSettings, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	query := `
		SELECT account_id, enabled_categories, min_confidence, min_impact,
		       real_time_enabled, digest_enabled, digest_size, updated_at
		FROM notification_settings
		WHERE account_id = $1`

	var s models.NotificationSettings
	var categories []string
	err := scope.Conn.QueryRow(ctx, query, accountID).Scan(
		&s.AccountID, &categories, &s.MinConfidence, &s.MinImpact,
		&s.RealTimeEnabled, &s.DigestEnabled, &s.DigestSize, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultNotificationSettings(accountID), nil
		}
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}

	s.EnabledCategories = make([]models.OpportunityCategory, len(categories))
	for i, c := range categories {
		s.EnabledCategories[i] = models.OpportunityCategory(c)
	}

	return &s, nil
}

func (r *notificationRepository) SaveSettings(ctx context.Context, settings *models.NotificationSettings) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	settings.UpdatedAt = time.Now()

	categories := make([]string, len(settings.EnabledCategories))
	for i, c := range settings.EnabledCategories {
		categories[i] = string(c)
	}

	query := `
		INSERT INTO notification_settings (
			account_id, enabled_categories, min_confidence, min_impact,
			real_time_enabled, digest_enabled, digest_size, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE
		SET enabled_categories = EXCLUDED.enabled_categories,
		    min_confidence = EXCLUDED.min_confidence,
		    min_impact = EXCLUDED.min_impact,
		    real_time_enabled = EXCLUDED.real_time_enabled,
		    digest_enabled = EXCLUDED.digest_enabled,
		    digest_size = EXCLUDED.digest_size,
		    updated_at = EXCLUDED.updated_at`

	_, err := scope.Conn.Exec(ctx, query,
		settings.AccountID, categories, settings.MinConfidence, settings.MinImpact,
		settings.RealTimeEnabled, settings.DigestEnabled, settings.DigestSize,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}

	return nil
}

func (r *notificationRepository) MarkNotified(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) error {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return fmt.Errorf("no account scope in context")
	}

	query := `
		INSERT INTO notification_log (suggestion_id, kind, sent_at)
		SELECT unnest($1::uuid[]), $2, NOW()
		ON CONFLICT (suggestion_id, kind) DO NOTHING`

	_, err := scope.Conn.Exec(ctx, query, suggestionIDs, kind)
	if err != nil {
		return fmt.Errorf("failed to record notification delivery: %w", err)
	}

	return nil
}

func (r *notificationRepository) NotifiedIDs(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	scope, ok := database.GetAccountScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no account scope in context")
	}

	if len(suggestionIDs) == 0 {
		return map[uuid.UUID]bool{}, nil
	}

	query := `
		SELECT suggestion_id
		FROM notification_log
		WHERE kind = $1 AND suggestion_id = ANY($2::uuid[])`

	rows, err := scope.Conn.Query(ctx, query, kind, suggestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification log: %w", err)
	}
	defer rows.Close()

	notified := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan notification log row: %w", err)
		}
		notified[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification log rows: %w", err)
	}

	return notified, nil
}
