package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Relationship Type
// ============================================================================

// RelationshipType classifies a directed edge between two contacts.
type RelationshipType string

const (
	RelTypeColleague    RelationshipType = "colleague"
	RelTypeFriend       RelationshipType = "friend"
	RelTypeFamily       RelationshipType = "family"
	RelTypeClient       RelationshipType = "client"
	RelTypePartner      RelationshipType = "partner"
	RelTypeAcquaintance RelationshipType = "acquaintance"
	RelTypeIntroducer   RelationshipType = "introducer"
)

// ValidRelationshipTypes contains all valid relationship type values.
var ValidRelationshipTypes = []RelationshipType{
	RelTypeColleague,
	RelTypeFriend,
	RelTypeFamily,
	RelTypeClient,
	RelTypePartner,
	RelTypeAcquaintance,
	RelTypeIntroducer,
}

// IsValidRelationshipType checks if the given type is valid.
func IsValidRelationshipType(t RelationshipType) bool {
	for _, v := range ValidRelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Relationship Source
// ============================================================================

// RelationshipSource records how an edge entered the graph.
type RelationshipSource string

const (
	RelSourceManual     RelationshipSource = "manual"
	RelSourceDiscovered RelationshipSource = "discovered"
	RelSourceImported   RelationshipSource = "imported"
)

// ValidRelationshipSources contains all valid relationship source values.
var ValidRelationshipSources = []RelationshipSource{
	RelSourceManual,
	RelSourceDiscovered,
	RelSourceImported,
}

// IsValidRelationshipSource checks if the given source is valid.
func IsValidRelationshipSource(s RelationshipSource) bool {
	for _, v := range ValidRelationshipSources {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Relationship Model
// ============================================================================

// Relationship is a directed edge in the contact graph. A mutual edge is
// stored as one logical row with IsMutual set; neighbor views derive the
// reverse direction rather than duplicating the row.
type Relationship struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	ContactID        uuid.UUID `json:"contact_id"`
	RelatedContactID uuid.UUID `json:"related_contact_id"`

	Type     RelationshipType   `json:"type"`
	Strength float64            `json:"strength"` // 0.0-1.0
	Notes    *string            `json:"notes,omitempty"`
	Source   RelationshipSource `json:"source"`

	IsVerified bool `json:"is_verified"`
	IsMutual   bool `json:"is_mutual"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connects returns true if the edge touches the given contact in either
// direction (mutual edges are navigable both ways).
func (r *Relationship) Connects(contactID uuid.UUID) bool {
	if r.ContactID == contactID {
		return true
	}
	return r.IsMutual && r.RelatedContactID == contactID
}

// OtherEnd returns the contact on the far side of the edge from the given
// contact. Returns uuid.Nil if the edge does not touch the contact.
func (r *Relationship) OtherEnd(contactID uuid.UUID) uuid.UUID {
	switch contactID {
	case r.ContactID:
		return r.RelatedContactID
	case r.RelatedContactID:
		return r.ContactID
	}
	return uuid.Nil
}
