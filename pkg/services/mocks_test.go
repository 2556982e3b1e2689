package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mylesweissleder/newday-engine/pkg/apperrors"
	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// In-memory repository fakes. They mirror the SQL repositories' conflict and
// not-found semantics so service tests exercise the same error paths.

// ============================================================================
// Contact Repository
// ============================================================================

type memContactRepo struct {
	contacts map[uuid.UUID]*models.Contact
}

func newMemContactRepo(contacts ...*models.Contact) *memContactRepo {
	r := &memContactRepo{contacts: make(map[uuid.UUID]*models.Contact)}
	for _, c := range contacts {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.Status == "" {
			c.Status = models.ContactStatusActive
		}
		r.contacts[c.ID] = c
	}
	return r
}

var _ repositories.ContactRepository = (*memContactRepo)(nil)

func (r *memContactRepo) Create(ctx context.Context, c *models.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ContactStatusActive
	}
	r.contacts[c.ID] = c
	return nil
}

func (r *memContactRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	c, ok := r.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}
	return c, nil
}

func (r *memContactRepo) List(ctx context.Context, status models.ContactStatus) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range r.contacts {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memContactRepo) Update(ctx context.Context, c *models.Contact) error {
	if _, ok := r.contacts[c.ID]; !ok {
		return fmt.Errorf("contact %s: %w", c.ID, apperrors.ErrNotFound)
	}
	r.contacts[c.ID] = c
	return nil
}

func (r *memContactRepo) UpdateScores(ctx context.Context, id uuid.UUID, priority, opportunity, strategic float64, flags []models.OpportunityFlag, scoredAt time.Time) error {
	c, ok := r.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
	}
	c.PriorityScore = priority
	c.OpportunityScore = opportunity
	c.StrategicValue = strategic
	c.OpportunityFlags = flags
	c.LastScoredAt = &scoredAt
	return nil
}

func (r *memContactRepo) Count(ctx context.Context, status models.ContactStatus) (int, error) {
	contacts, _ := r.List(ctx, status)
	return len(contacts), nil
}

// ============================================================================
// Relationship Repository
// ============================================================================

type memRelationshipRepo struct {
	edges map[uuid.UUID]*models.Relationship
}

func newMemRelationshipRepo(edges ...*models.Relationship) *memRelationshipRepo {
	r := &memRelationshipRepo{edges: make(map[uuid.UUID]*models.Relationship)}
	for _, e := range edges {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		r.edges[e.ID] = e
	}
	return r
}

var _ repositories.RelationshipRepository = (*memRelationshipRepo)(nil)

func (r *memRelationshipRepo) Create(ctx context.Context, rel *models.Relationship) error {
	for _, e := range r.edges {
		if e.ContactID == rel.ContactID && e.RelatedContactID == rel.RelatedContactID && e.Type == rel.Type {
			return fmt.Errorf("relationship already exists: %w", apperrors.ErrConflict)
		}
	}
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	r.edges[rel.ID] = rel
	return nil
}

func (r *memRelationshipRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	e, ok := r.edges[id]
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", id, apperrors.ErrNotFound)
	}
	return e, nil
}

func (r *memRelationshipRepo) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.Relationship, error) {
	var out []*models.Relationship
	for _, e := range r.edges {
		if e.ContactID == contactID || (e.IsMutual && e.RelatedContactID == contactID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRelationshipRepo) ListAll(ctx context.Context) ([]*models.Relationship, error) {
	var out []*models.Relationship
	for _, e := range r.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memRelationshipRepo) ExistsBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	for _, e := range r.edges {
		if (e.ContactID == a && e.RelatedContactID == b) || (e.ContactID == b && e.RelatedContactID == a) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRelationshipRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.edges[id]; !ok {
		return fmt.Errorf("relationship %s: %w", id, apperrors.ErrNotFound)
	}
	delete(r.edges, id)
	return nil
}

// ============================================================================
// Candidate Repository
// ============================================================================

type memCandidateRepo struct {
	candidates map[uuid.UUID]*models.PotentialRelationship
}

func newMemCandidateRepo() *memCandidateRepo {
	return &memCandidateRepo{candidates: make(map[uuid.UUID]*models.PotentialRelationship)}
}

var _ repositories.CandidateRepository = (*memCandidateRepo)(nil)

func (r *memCandidateRepo) Create(ctx context.Context, c *models.PotentialRelationship) error {
	for _, existing := range r.candidates {
		if existing.Fingerprint == c.Fingerprint {
			return fmt.Errorf("candidate fingerprint exists: %w", apperrors.ErrConflict)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CandidateStatusPending
	}
	r.candidates[c.ID] = c
	return nil
}

func (r *memCandidateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PotentialRelationship, error) {
	c, ok := r.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, apperrors.ErrNotFound)
	}
	return c, nil
}

func (r *memCandidateRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*models.PotentialRelationship, error) {
	for _, c := range r.candidates {
		if c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return nil, fmt.Errorf("candidate fingerprint %s: %w", fingerprint, apperrors.ErrNotFound)
}

func (r *memCandidateRepo) ListPending(ctx context.Context) ([]*models.PotentialRelationship, error) {
	var out []*models.PotentialRelationship
	for _, c := range r.candidates {
		if c.Status == models.CandidateStatusPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (r *memCandidateRepo) ListFingerprints(ctx context.Context) (map[string]models.CandidateStatus, error) {
	out := make(map[string]models.CandidateStatus)
	for _, c := range r.candidates {
		out[c.Fingerprint] = c.Status
	}
	return out, nil
}

func (r *memCandidateRepo) ResolveStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatus) error {
	c, ok := r.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, apperrors.ErrNotFound)
	}
	if c.Status != models.CandidateStatusPending {
		return fmt.Errorf("candidate %s already resolved: %w", id, apperrors.ErrConflict)
	}
	c.Status = status
	return nil
}

func (r *memCandidateRepo) CountByStatus(ctx context.Context, status models.CandidateStatus) (int, error) {
	count := 0
	for _, c := range r.candidates {
		if c.Status == status {
			count++
		}
	}
	return count, nil
}

// ============================================================================
// Opportunity Repository
// ============================================================================

type memOpportunityRepo struct {
	opps map[uuid.UUID]*models.OpportunitySuggestion
}

func newMemOpportunityRepo(opps ...*models.OpportunitySuggestion) *memOpportunityRepo {
	r := &memOpportunityRepo{opps: make(map[uuid.UUID]*models.OpportunitySuggestion)}
	for _, o := range opps {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		if o.Status == "" {
			o.Status = models.OppStatusPending
		}
		r.opps[o.ID] = o
	}
	return r
}

var _ repositories.OpportunityRepository = (*memOpportunityRepo)(nil)

func (r *memOpportunityRepo) Create(ctx context.Context, o *models.OpportunitySuggestion) error {
	key := repositories.SignatureKey(o.Category, o.PrimaryContactID, o.PathSignature)
	for _, existing := range r.opps {
		if !existing.IsTerminal() &&
			repositories.SignatureKey(existing.Category, existing.PrimaryContactID, existing.PathSignature) == key {
			return fmt.Errorf("active suggestion exists: %w", apperrors.ErrConflict)
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
		o.UpdatedAt = o.CreatedAt
	}
	r.opps[o.ID] = o
	return nil
}

func (r *memOpportunityRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunitySuggestion, error) {
	o, ok := r.opps[id]
	if !ok {
		return nil, fmt.Errorf("opportunity %s: %w", id, apperrors.ErrNotFound)
	}
	return o, nil
}

func (r *memOpportunityRepo) ListPending(ctx context.Context) ([]*models.OpportunitySuggestion, error) {
	now := time.Now()
	var out []*models.OpportunitySuggestion
	for _, o := range r.opps {
		if !o.IsTerminal() && !o.IsExpired(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompositeScore() > out[j].CompositeScore() })
	return out, nil
}

func (r *memOpportunityRepo) ListSince(ctx context.Context, since time.Time) ([]*models.OpportunitySuggestion, error) {
	var out []*models.OpportunitySuggestion
	for _, o := range r.opps {
		if o.CreatedAt.After(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOpportunityRepo) ActiveSignatures(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, o := range r.opps {
		if !o.IsTerminal() {
			out[repositories.SignatureKey(o.Category, o.PrimaryContactID, o.PathSignature)] = true
		}
	}
	return out, nil
}

func (r *memOpportunityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OpportunityStatus, actedAt *time.Time) error {
	o, ok := r.opps[id]
	if !ok {
		return fmt.Errorf("opportunity %s: %w", id, apperrors.ErrNotFound)
	}
	if o.IsTerminal() {
		return fmt.Errorf("opportunity %s is closed: %w", id, apperrors.ErrConflict)
	}
	o.Status = status
	if actedAt != nil && o.ActedAt == nil {
		o.ActedAt = actedAt
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *memOpportunityRepo) AttachFeedback(ctx context.Context, id uuid.UUID, outcome models.FeedbackOutcome, rating int, actualImpact float64, actedAt time.Time) error {
	o, ok := r.opps[id]
	if !ok {
		return fmt.Errorf("opportunity %s: %w", id, apperrors.ErrNotFound)
	}
	if o.Rating != nil {
		return fmt.Errorf("feedback already attached: %w", apperrors.ErrConflict)
	}
	o.Outcome = &outcome
	o.Rating = &rating
	o.ActualImpact = &actualImpact
	if !o.IsTerminal() {
		o.Status = models.OppStatusCompleted
	}
	if o.ActedAt == nil {
		o.ActedAt = &actedAt
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (r *memOpportunityRepo) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for _, o := range r.opps {
		if !o.IsTerminal() && o.IsExpired(now) {
			o.Status = models.OppStatusExpired
			count++
		}
	}
	return count, nil
}

// ============================================================================
// Feedback Repository
// ============================================================================

type memFeedbackRepo struct {
	feedback map[uuid.UUID]*models.OpportunityFeedback // keyed by opportunity id
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{feedback: make(map[uuid.UUID]*models.OpportunityFeedback)}
}

var _ repositories.FeedbackRepository = (*memFeedbackRepo)(nil)

func (r *memFeedbackRepo) Create(ctx context.Context, fb *models.OpportunityFeedback) error {
	if _, ok := r.feedback[fb.OpportunityID]; ok {
		return fmt.Errorf("feedback exists for opportunity: %w", apperrors.ErrConflict)
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	r.feedback[fb.OpportunityID] = fb
	return nil
}

func (r *memFeedbackRepo) GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*models.OpportunityFeedback, error) {
	fb, ok := r.feedback[opportunityID]
	if !ok {
		return nil, fmt.Errorf("feedback for %s: %w", opportunityID, apperrors.ErrNotFound)
	}
	return fb, nil
}

func (r *memFeedbackRepo) ListSince(ctx context.Context, since time.Time) ([]*models.OpportunityFeedback, error) {
	var out []*models.OpportunityFeedback
	for _, fb := range r.feedback {
		if fb.CreatedAt.After(since) {
			out = append(out, fb)
		}
	}
	return out, nil
}

// ============================================================================
// Notification Repository
// ============================================================================

type memNotificationRepo struct {
	settings map[uuid.UUID]*models.NotificationSettings
	log      map[string]bool // "kind|suggestion"
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{
		settings: make(map[uuid.UUID]*models.NotificationSettings),
		log:      make(map[string]bool),
	}
}

var _ repositories.NotificationRepository = (*memNotificationRepo)(nil)

func (r *memNotificationRepo) GetSettings(ctx context.Context, accountID uuid.UUID) (*models.NotificationSettings, error) {
	if s, ok := r.settings[accountID]; ok {
		return s, nil
	}
	return models.DefaultNotificationSettings(accountID), nil
}

func (r *memNotificationRepo) SaveSettings(ctx context.Context, settings *models.NotificationSettings) error {
	r.settings[settings.AccountID] = settings
	return nil
}

func (r *memNotificationRepo) MarkNotified(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) error {
	for _, id := range suggestionIDs {
		r.log[string(kind)+"|"+id.String()] = true
	}
	return nil
}

func (r *memNotificationRepo) NotifiedIDs(ctx context.Context, kind models.NotificationKind, suggestionIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	for _, id := range suggestionIDs {
		if r.log[string(kind)+"|"+id.String()] {
			out[id] = true
		}
	}
	return out, nil
}
