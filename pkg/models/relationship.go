package models

// ============================================================================
// Resolved Relationships
// ============================================================================

// CascadeBehavior is the delete behavior of a relationship on the target
// platform.
type CascadeBehavior string

const (
	// CascadeBehaviorCascade deletes referencing records when the referenced
	// record is deleted. At most one incoming cascade relationship is allowed
	// per entity.
	CascadeBehaviorCascade CascadeBehavior = "Cascade"
	// CascadeBehaviorRemoveLink clears the lookup on referencing records.
	CascadeBehaviorRemoveLink CascadeBehavior = "RemoveLink"
	// CascadeBehaviorRestrict blocks deletion while referencing records exist.
	CascadeBehaviorRestrict CascadeBehavior = "Restrict"
)

// ValidCascadeBehaviors contains all valid cascade behavior values.
var ValidCascadeBehaviors = []CascadeBehavior{
	CascadeBehaviorCascade,
	CascadeBehaviorRemoveLink,
	CascadeBehaviorRestrict,
}

// IsValidCascadeBehavior checks if the given behavior is valid.
func IsValidCascadeBehavior(b CascadeBehavior) bool {
	for _, v := range ValidCascadeBehaviors {
		if v == b {
			return true
		}
	}
	return false
}

// RelationshipRecord is a platform-ready relationship, built after the caller
// has resolved each entity to CDM or custom. Immutable once validated.
type RelationshipRecord struct {
	ReferencingEntity string          `json:"referencingEntity" validate:"required"`
	ReferencedEntity  string          `json:"referencedEntity" validate:"required"`
	SchemaName        string          `json:"schemaName" validate:"required"`
	CascadeDelete     CascadeBehavior `json:"cascadeDelete"`
	LookupFieldName   string          `json:"lookupFieldName"`
	IsRequired        bool            `json:"isRequired"`
}

// IsParental reports whether the relationship cascades deletes from the
// referenced entity to the referencing entity.
func (r RelationshipRecord) IsParental() bool {
	return r.CascadeDelete == CascadeBehaviorCascade
}

// IsSelfReferencing reports whether both endpoints are the same entity.
func (r RelationshipRecord) IsSelfReferencing() bool {
	return r.ReferencingEntity == r.ReferencedEntity
}
