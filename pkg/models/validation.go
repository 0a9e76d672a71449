package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// Validation Issues
// ============================================================================

// IssueCode identifies the kind of a validation error or warning.
type IssueCode string

const (
	IssueMultipleParentalRelationships IssueCode = "MULTIPLE_PARENTAL_RELATIONSHIPS"
	IssueCircularCascadeDelete         IssueCode = "CIRCULAR_CASCADE_DELETE"
	IssueSelfReferencingParental       IssueCode = "SELF_REFERENCING_PARENTAL"
	IssueSelfReferencingRequired       IssueCode = "SELF_REFERENCING_REQUIRED"
	IssueDuplicateSchemaName           IssueCode = "DUPLICATE_SCHEMA_NAME"
	IssueDuplicateLookupName           IssueCode = "DUPLICATE_LOOKUP_NAME"
)

// ValidationIssue is a structural problem found in the relationship graph.
// Concrete implementations carry the structured payload for their kind so
// callers can handle them programmatically instead of parsing messages.
type ValidationIssue interface {
	Code() IssueCode
	Message() string
}

// MultiParentError reports an entity with more than one incoming parental
// (cascade delete) relationship. Parents are listed in discovery order.
type MultiParentError struct {
	Entity  string   `json:"entity"`
	Parents []string `json:"parents"`
}

func (e MultiParentError) Code() IssueCode { return IssueMultipleParentalRelationships }

func (e MultiParentError) Message() string {
	return fmt.Sprintf("entity %q has %d parental relationships (from %s); the platform allows at most one",
		e.Entity, len(e.Parents), strings.Join(e.Parents, ", "))
}

// CycleError reports a cycle composed solely of cascade-delete edges. The
// cycle lists entity names in traversal order with the first entity repeated
// at the end to show closure.
type CycleError struct {
	Cycle []string `json:"cycle"`
}

func (e CycleError) Code() IssueCode { return IssueCircularCascadeDelete }

func (e CycleError) Message() string {
	return fmt.Sprintf("cascade delete cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// SelfRefKind distinguishes the two self-reference warning variants.
type SelfRefKind string

const (
	SelfRefParental SelfRefKind = "parental"
	SelfRefRequired SelfRefKind = "required"
)

// SelfRefWarning reports a relationship whose both endpoints are the same
// entity and whose configuration is risky (cascading or required).
type SelfRefWarning struct {
	Entity     string      `json:"entity"`
	SchemaName string      `json:"schemaName"`
	Kind       SelfRefKind `json:"kind"`
}

func (w SelfRefWarning) Code() IssueCode {
	if w.Kind == SelfRefRequired {
		return IssueSelfReferencingRequired
	}
	return IssueSelfReferencingParental
}

func (w SelfRefWarning) Message() string {
	if w.Kind == SelfRefRequired {
		return fmt.Sprintf("self-referencing relationship %q on %q is required; the first record of the entity can never be created",
			w.SchemaName, w.Entity)
	}
	return fmt.Sprintf("self-referencing relationship %q on %q cascades deletes; deleting one record may delete an entire subtree",
		w.SchemaName, w.Entity)
}

// NamingConflictKind distinguishes duplicate schema names from duplicate
// lookup field names.
type NamingConflictKind string

const (
	NamingConflictSchemaName  NamingConflictKind = "schema_name"
	NamingConflictLookupField NamingConflictKind = "lookup_field"
)

// NamingConflictWarning reports duplicate relationship schema names, or
// duplicate lookup field names on the same referencing entity.
type NamingConflictWarning struct {
	Kind NamingConflictKind `json:"kind"`
	// Name is the colliding schema name, or the colliding lookup field name.
	Name string `json:"name"`
	// Entity is set for lookup field collisions: the referencing entity that
	// would receive two fields with the same name.
	Entity string `json:"entity,omitempty"`
	Count  int    `json:"count"`
}

func (w NamingConflictWarning) Code() IssueCode {
	if w.Kind == NamingConflictLookupField {
		return IssueDuplicateLookupName
	}
	return IssueDuplicateSchemaName
}

func (w NamingConflictWarning) Message() string {
	if w.Kind == NamingConflictLookupField {
		return fmt.Sprintf("entity %q has %d relationships using lookup field name %q", w.Entity, w.Count, w.Name)
	}
	return fmt.Sprintf("schema name %q is used by %d relationships", w.Name, w.Count)
}

// ============================================================================
// Suggestions
// ============================================================================

// SuggestionKind identifies the kind of a remediation suggestion.
type SuggestionKind string

const (
	SuggestionResolveMultiParent SuggestionKind = "RESOLVE_MULTI_PARENT"
	SuggestionBreakCascadeCycle  SuggestionKind = "BREAK_CASCADE_CYCLE"
	SuggestionConvertToLookup    SuggestionKind = "CONVERT_TO_LOOKUP"
	SuggestionMakeLookupOptional SuggestionKind = "MAKE_LOOKUP_OPTIONAL"
)

// Suggestion is an actionable remediation for a validation issue.
type Suggestion interface {
	Kind() SuggestionKind
	Message() string
}

// ParentOption is one way to resolve a multi-parent conflict. An empty
// KeepParent means no relationship stays parental.
type ParentOption struct {
	KeepParent  string `json:"keepParent,omitempty"`
	Description string `json:"description"`
}

// MultiParentSuggestion offers the resolution options for an entity with
// multiple parental relationships: keep exactly one parental (the rest become
// lookups), or make all of them lookups.
type MultiParentSuggestion struct {
	Entity  string         `json:"entity"`
	Options []ParentOption `json:"options"`
}

func (s MultiParentSuggestion) Kind() SuggestionKind { return SuggestionResolveMultiParent }

func (s MultiParentSuggestion) Message() string {
	return fmt.Sprintf("keep at most one parental relationship on %q and convert the others to lookups", s.Entity)
}

// CycleEdge identifies one cascade edge on a cycle.
type CycleEdge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	SchemaName string `json:"schemaName"`
}

// BreakCycleSuggestion offers to break a cascade cycle by converting any one
// of its edges to a lookup.
type BreakCycleSuggestion struct {
	Cycle []string    `json:"cycle"`
	Edges []CycleEdge `json:"edges"`
}

func (s BreakCycleSuggestion) Kind() SuggestionKind { return SuggestionBreakCascadeCycle }

func (s BreakCycleSuggestion) Message() string {
	return fmt.Sprintf("convert any one edge of the cycle %s from cascade to lookup", strings.Join(s.Cycle, " -> "))
}

// ConvertToLookupSuggestion offers to change a self-referencing parental
// relationship to RemoveLink behavior.
type ConvertToLookupSuggestion struct {
	Entity     string `json:"entity"`
	SchemaName string `json:"schemaName"`
}

func (s ConvertToLookupSuggestion) Kind() SuggestionKind { return SuggestionConvertToLookup }

func (s ConvertToLookupSuggestion) Message() string {
	return fmt.Sprintf("change the delete behavior of %q to RemoveLink", s.SchemaName)
}

// MakeLookupOptionalSuggestion offers to relax a required self-referencing
// lookup so the first record of the entity can be created.
type MakeLookupOptionalSuggestion struct {
	Entity          string `json:"entity"`
	SchemaName      string `json:"schemaName"`
	LookupFieldName string `json:"lookupFieldName"`
}

func (s MakeLookupOptionalSuggestion) Kind() SuggestionKind { return SuggestionMakeLookupOptional }

func (s MakeLookupOptionalSuggestion) Message() string {
	return fmt.Sprintf("make the lookup %q on %q optional", s.LookupFieldName, s.Entity)
}

// ============================================================================
// Validation Result
// ============================================================================

// ValidationSummary holds aggregate counts over a validation pass.
type ValidationSummary struct {
	TotalRelationships    int `json:"totalRelationships"`
	ParentalRelationships int `json:"parentalRelationships"`
	LookupRelationships   int `json:"lookupRelationships"`
	ErrorCount            int `json:"errorCount"`
	WarningCount          int `json:"warningCount"`
}

// ValidationResult is the outcome of a relationship validation pass. The
// validator reports problems but never mutates the input;
// ResolvedRelationships is the untouched input list and resolution is the
// caller's responsibility.
type ValidationResult struct {
	IsValid               bool
	Errors                []ValidationIssue
	Warnings              []ValidationIssue
	Suggestions           []Suggestion
	ResolvedRelationships []RelationshipRecord
	Summary               ValidationSummary
}

// issueEnvelope is the wire form of a ValidationIssue.
type issueEnvelope struct {
	Type    IssueCode       `json:"type"`
	Message string          `json:"message"`
	Payload ValidationIssue `json:"payload"`
}

// suggestionEnvelope is the wire form of a Suggestion.
type suggestionEnvelope struct {
	Type    SuggestionKind `json:"type"`
	Message string         `json:"message"`
	Payload Suggestion     `json:"payload"`
}

// MarshalJSON serializes issues and suggestions with an explicit type tag so
// API consumers can dispatch without inspecting payload shapes.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	issues := func(list []ValidationIssue) []issueEnvelope {
		out := make([]issueEnvelope, 0, len(list))
		for _, i := range list {
			out = append(out, issueEnvelope{Type: i.Code(), Message: i.Message(), Payload: i})
		}
		return out
	}

	suggestions := make([]suggestionEnvelope, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		suggestions = append(suggestions, suggestionEnvelope{Type: s.Kind(), Message: s.Message(), Payload: s})
	}

	return json.Marshal(struct {
		IsValid               bool                 `json:"isValid"`
		Errors                []issueEnvelope      `json:"errors"`
		Warnings              []issueEnvelope      `json:"warnings"`
		Suggestions           []suggestionEnvelope `json:"suggestions"`
		ResolvedRelationships []RelationshipRecord `json:"resolvedRelationships"`
		Summary               ValidationSummary    `json:"summary"`
	}{
		IsValid:               r.IsValid,
		Errors:                issues(r.Errors),
		Warnings:              issues(r.Warnings),
		Suggestions:           suggestions,
		ResolvedRelationships: r.ResolvedRelationships,
		Summary:               r.Summary,
	})
}
