package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// Notifier is the outbound delivery sink. Delivery is fire-and-forget; a
// failed send is logged but never retried by the core.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification) error
}

// LogNotifier writes notifications to the structured log. It is the default
// sink when no external channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func (l *LogNotifier) Send(_ context.Context, n *models.Notification) error {
	l.Logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("title", n.Title),
		zap.Int("suggestions", len(n.SuggestionIDs)))
	return nil
}

// expiringSoonWindow is how far ahead of expiry a suggestion triggers its
// one-time reminder.
const expiringSoonWindow = 3 * 24 * time.Hour

// NotificationPlan is the pure partition of open suggestions into delivery
// buckets, before settings thresholds and the delivery ledger are applied.
type NotificationPlan struct {
	Urgent       []*models.OpportunitySuggestion // one alert each
	Digest       []*models.OpportunitySuggestion // high and medium, batched
	ExpiringSoon []*models.OpportunitySuggestion // one-time reminders
}

// PlanNotifications partitions open suggestions against the account settings.
// Pure over its inputs: no I/O and no clock reads.
func PlanNotifications(opps []*models.OpportunitySuggestion, settings *models.NotificationSettings, now time.Time) *NotificationPlan {
	plan := &NotificationPlan{}

	for _, o := range opps {
		if o.IsTerminal() || o.IsExpired(now) {
			continue
		}
		if !settings.CategoryEnabled(o.Category) {
			continue
		}
		if o.ConfidenceScore < settings.MinConfidence || o.ImpactScore < settings.MinImpact {
			continue
		}

		switch o.Priority {
		case models.PriorityUrgent:
			plan.Urgent = append(plan.Urgent, o)
		case models.PriorityHigh, models.PriorityMedium:
			plan.Digest = append(plan.Digest, o)
		}

		if o.ExpiringSoon(now, expiringSoonWindow) {
			plan.ExpiringSoon = append(plan.ExpiringSoon, o)
		}
	}

	return plan
}

// NotificationService applies the notification policy: urgent suggestions
// alert immediately, high and medium batch into the daily digest, expiring
// suggestions remind once. The delivery ledger keeps every path idempotent.
type NotificationService interface {
	// Dispatch sends urgent alerts and expiry reminders not yet delivered.
	Dispatch(ctx context.Context, accountID uuid.UUID) (int, error)

	// SendDailyDigest sends the top-K digest of open high and medium
	// suggestions. Suggestions already digested are not repeated.
	SendDailyDigest(ctx context.Context, accountID uuid.UUID) (*models.Notification, error)

	GetSettings(ctx context.Context, accountID uuid.UUID) (*models.NotificationSettings, error)
	SaveSettings(ctx context.Context, settings *models.NotificationSettings) error
}

type notificationService struct {
	oppRepo   repositories.OpportunityRepository
	notifRepo repositories.NotificationRepository
	notifier  Notifier
	logger    *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	oppRepo repositories.OpportunityRepository,
	notifRepo repositories.NotificationRepository,
	notifier Notifier,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		oppRepo:   oppRepo,
		notifRepo: notifRepo,
		notifier:  notifier,
		logger:    logger.Named("notification"),
	}
}

var _ NotificationService = (*notificationService)(nil)

func (s *notificationService) Dispatch(ctx context.Context, accountID uuid.UUID) (int, error) {
	settings, err := s.notifRepo.GetSettings(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	if !settings.RealTimeEnabled {
		return 0, nil
	}

	opps, err := s.oppRepo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list suggestions: %w", err)
	}

	plan := PlanNotifications(opps, settings, time.Now())
	sent := 0

	urgent, err := s.undelivered(ctx, models.NotificationUrgent, plan.Urgent)
	if err != nil {
		return sent, err
	}
	for _, o := range urgent {
		n := &models.Notification{
			ID:            uuid.New(),
			AccountID:     accountID,
			Kind:          models.NotificationUrgent,
			Title:         o.Title,
			Body:          suggestionBody(o),
			SuggestionIDs: []uuid.UUID{o.ID},
			CreatedAt:     time.Now(),
		}
		if err := s.deliver(ctx, n); err != nil {
			continue
		}
		sent++
	}

	expiring, err := s.undelivered(ctx, models.NotificationExpiringSoon, plan.ExpiringSoon)
	if err != nil {
		return sent, err
	}
	if len(expiring) > 0 {
		ids := suggestionIDs(expiring)
		n := &models.Notification{
			ID:            uuid.New(),
			AccountID:     accountID,
			Kind:          models.NotificationExpiringSoon,
			Title:         fmt.Sprintf("%d opportunity(ies) expiring soon", len(expiring)),
			Body:          digestBody(expiring),
			SuggestionIDs: ids,
			CreatedAt:     time.Now(),
		}
		if err := s.deliver(ctx, n); err == nil {
			sent++
		}
	}

	return sent, nil
}

func (s *notificationService) SendDailyDigest(ctx context.Context, accountID uuid.UUID) (*models.Notification, error) {
	settings, err := s.notifRepo.GetSettings(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.DigestEnabled {
		return nil, nil
	}

	opps, err := s.oppRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}

	plan := PlanNotifications(opps, settings, time.Now())

	fresh, err := s.undelivered(ctx, models.NotificationDailyDigest, plan.Digest)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	// Top-K by composite score.
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].CompositeScore() > fresh[j].CompositeScore()
	})
	if settings.DigestSize > 0 && len(fresh) > settings.DigestSize {
		fresh = fresh[:settings.DigestSize]
	}

	n := &models.Notification{
		ID:            uuid.New(),
		AccountID:     accountID,
		Kind:          models.NotificationDailyDigest,
		Title:         fmt.Sprintf("Your top %d opportunities today", len(fresh)),
		Body:          digestBody(fresh),
		SuggestionIDs: suggestionIDs(fresh),
		CreatedAt:     time.Now(),
	}
	if err := s.deliver(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *notificationService) GetSettings(ctx context.Context, accountID uuid.UUID) (*models.NotificationSettings, error) {
	return s.notifRepo.GetSettings(ctx, accountID)
}

func (s *notificationService) SaveSettings(ctx context.Context, settings *models.NotificationSettings) error {
	if settings.MinConfidence < 0 || settings.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", settings.MinConfidence)
	}
	if settings.MinImpact < 0 || settings.MinImpact > 100 {
		return fmt.Errorf("min impact must be in [0,100], got %v", settings.MinImpact)
	}
	return s.notifRepo.SaveSettings(ctx, settings)
}

// undelivered filters out suggestions already delivered under the kind.
func (s *notificationService) undelivered(ctx context.Context, kind models.NotificationKind, opps []*models.OpportunitySuggestion) ([]*models.OpportunitySuggestion, error) {
	if len(opps) == 0 {
		return nil, nil
	}
	delivered, err := s.notifRepo.NotifiedIDs(ctx, kind, suggestionIDs(opps))
	if err != nil {
		return nil, fmt.Errorf("check delivery ledger: %w", err)
	}
	fresh := make([]*models.OpportunitySuggestion, 0, len(opps))
	for _, o := range opps {
		if !delivered[o.ID] {
			fresh = append(fresh, o)
		}
	}
	return fresh, nil
}

// deliver marks the ledger first, then sends. The ledger write wins: a send
// failure after marking is logged and dropped rather than risking a
// duplicate alert later.
func (s *notificationService) deliver(ctx context.Context, n *models.Notification) error {
	if err := s.notifRepo.MarkNotified(ctx, n.Kind, n.SuggestionIDs); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Warn("notification send failed",
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
		return err
	}
	return nil
}

func suggestionIDs(opps []*models.OpportunitySuggestion) []uuid.UUID {
	ids := make([]uuid.UUID, len(opps))
	for i, o := range opps {
		ids[i] = o.ID
	}
	return ids
}

func suggestionBody(o *models.OpportunitySuggestion) string {
	if o.Narrative != nil && *o.Narrative != "" {
		return *o.Narrative
	}
	return o.Description
}

func digestBody(opps []*models.OpportunitySuggestion) string {
	var b strings.Builder
	for i, o := range opps {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, o.Priority, o.Title)
	}
	return b.String()
}
