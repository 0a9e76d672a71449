package models

// ============================================================================
// Catalog Matching
// ============================================================================

// RegistryEntity is one record of the standard-entity catalog. The registry
// is an external data source loaded once per process; records are immutable.
type RegistryEntity struct {
	LogicalName   string   `json:"logicalName" yaml:"logical_name"`
	DisplayName   string   `json:"displayName" yaml:"display_name"`
	Aliases       []string `json:"aliases" yaml:"aliases"`
	KeyAttributes []string `json:"keyAttributes" yaml:"key_attributes"`
	Category      string   `json:"category" yaml:"category"`
}

// MatchType classifies how a diagram entity matched a registry entity.
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeAlias MatchType = "alias"
	MatchTypeFuzzy MatchType = "fuzzy"
)

// MatchResult records a single diagram entity's match against the registry.
// Confidence ordering is exact (1.0) > alias (fixed constant) > fuzzy
// (score-dependent, always below the alias constant).
type MatchResult struct {
	Entity     DiagramEntity  `json:"entity"`
	Registry   RegistryEntity `json:"registry"`
	MatchType  MatchType      `json:"matchType"`
	Confidence float64        `json:"confidence"`
}

// ConfidenceLabel is a coarse aggregate of match confidences.
type ConfidenceLabel string

const (
	ConfidenceHigh ConfidenceLabel = "high"
	ConfidenceMed  ConfidenceLabel = "medium"
	ConfidenceLow  ConfidenceLabel = "low"
	ConfidenceNone ConfidenceLabel = "none"
)

// DetectionSummary aggregates per-entity classification counts. It is derived
// data, recomputed on every detection call.
type DetectionSummary struct {
	TotalEntities   int             `json:"totalEntities"`
	MatchedEntities int             `json:"matchedEntities"`
	CustomEntities  int             `json:"customEntities"`
	Confidence      ConfidenceLabel `json:"confidence"`
}

// DetectionResult is the full output of a catalog detection pass. Entities
// with no registry hit appear only in the summary's custom count.
type DetectionResult struct {
	Matches []MatchResult    `json:"matches"`
	Summary DetectionSummary `json:"summary"`
}
