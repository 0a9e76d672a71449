package models

// ============================================================================
// Parsed Diagram Input
// ============================================================================

// DiagramAttribute is a single attribute of a parsed diagram entity.
type DiagramAttribute struct {
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
}

// DiagramEntity is an entity as produced by the external diagram parser.
// The engine treats it as read-only input.
type DiagramEntity struct {
	Name       string             `json:"name" validate:"required"`
	Attributes []DiagramAttribute `json:"attributes" validate:"dive"`
}

// Cardinality describes the multiplicity of a diagram relationship.
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "one-to-one"
	CardinalityOneToMany  Cardinality = "one-to-many"
	CardinalityManyToMany Cardinality = "many-to-many"
)

// DiagramRelationship is a relationship as produced by the external diagram
// parser. FromEntity is the referenced ("one") side, ToEntity the referencing
// ("many") side.
type DiagramRelationship struct {
	FromEntity    string      `json:"fromEntity" validate:"required"`
	ToEntity      string      `json:"toEntity" validate:"required"`
	Cardinality   Cardinality `json:"cardinality"`
	IsIdentifying bool        `json:"isIdentifying"`
}
