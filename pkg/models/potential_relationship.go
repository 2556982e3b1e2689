package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Evidence Signals
// ============================================================================

// SignalType identifies a pairwise similarity feature between two contacts.
// Declaration order is the tie-break order for type inference.
type SignalType string

const (
	SignalSameCompany       SignalType = "same_company"
	SignalSameEmailDomain   SignalType = "same_email_domain"
	SignalSameLocation      SignalType = "same_location"
	SignalRoleSimilarity    SignalType = "role_similarity"
	SignalMutualConnections SignalType = "mutual_connections"
)

// ValidSignalTypes contains all valid signal types, in declaration order.
var ValidSignalTypes = []SignalType{
	SignalSameCompany,
	SignalSameEmailDomain,
	SignalSameLocation,
	SignalRoleSimilarity,
	SignalMutualConnections,
}

// IsValidSignalType checks if the given signal type is valid.
func IsValidSignalType(s SignalType) bool {
	for _, v := range ValidSignalTypes {
		if v == s {
			return true
		}
	}
	return false
}

// EvidenceSignal is a single measurable similarity feature with its score
// and a human-readable explanation shown verbatim in the evidence list.
type EvidenceSignal struct {
	Signal SignalType `json:"signal"`
	Score  float64    `json:"score"` // 0.0-1.0
	Detail string     `json:"detail"`
}

// ============================================================================
// Candidate Status
// ============================================================================

// CandidateStatus represents the review state of a potential relationship.
type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "pending"
	CandidateStatusApproved CandidateStatus = "approved"
	CandidateStatusRejected CandidateStatus = "rejected"
)

// ValidCandidateStatuses contains all valid candidate status values.
var ValidCandidateStatuses = []CandidateStatus{
	CandidateStatusPending,
	CandidateStatusApproved,
	CandidateStatusRejected,
}

// IsValidCandidateStatus checks if the given status is valid.
func IsValidCandidateStatus(s CandidateStatus) bool {
	for _, v := range ValidCandidateStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Potential Relationship Model
// ============================================================================

// PotentialRelationship is an inferred, pre-graph relationship candidate.
// Approval promotes it to a Relationship; rejection is terminal and the
// fingerprint suppresses identical future candidates.
type PotentialRelationship struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	ContactID        uuid.UUID `json:"contact_id"`
	RelatedContactID uuid.UUID `json:"related_contact_id"`

	InferredType RelationshipType `json:"inferred_type"`
	Confidence   float64          `json:"confidence"` // 0.0-1.0
	Evidence     []EvidenceSignal `json:"evidence"`

	// Fingerprint is the stable dedup key: sorted contact-id pair plus the
	// evidence signature. A rejected fingerprint is never re-suggested.
	Fingerprint string `json:"fingerprint"`

	Status CandidateStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal returns true once the candidate has been approved or rejected.
func (p *PotentialRelationship) IsTerminal() bool {
	return p.Status == CandidateStatusApproved || p.Status == CandidateStatusRejected
}

// ============================================================================
// Fingerprinting
// ============================================================================

// CandidateFingerprint computes the stable dedup key for a contact pair and
// its evidence. Contact order does not matter; the evidence signature is the
// sorted list of contributing signal types, so the same pair with different
// evidence yields a different fingerprint.
func CandidateFingerprint(a, b uuid.UUID, evidence []EvidenceSignal) string {
	first, second := a.String(), b.String()
	if second < first {
		first, second = second, first
	}

	signals := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Score > 0 {
			signals = append(signals, string(ev.Signal))
		}
	}
	sort.Strings(signals)

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", first, second, strings.Join(signals, ","))))
	return hex.EncodeToString(sum[:16])
}
