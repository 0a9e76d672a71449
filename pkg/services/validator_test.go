package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

func newTestValidator() ValidatorService {
	return NewValidatorService(zap.NewNop())
}

func TestValidatorService_Validate_EmptyIsValid(t *testing.T) {
	result := newTestValidator().Validate(nil, nil)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 0, result.Summary.TotalRelationships)
}

func TestValidatorService_Validate_AcyclicGraphHasNoErrors(t *testing.T) {
	// account -> order -> orderline, plus a lookup back to account.
	records := []models.RelationshipRecord{
		parentalRecord("account", "order", "new_account_order"),
		parentalRecord("order", "orderline", "new_order_orderline"),
		lookupRecord("account", "orderline", "new_account_orderline"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Summary.ParentalRelationships)
	assert.Equal(t, 1, result.Summary.LookupRelationships)
}

func TestValidatorService_Validate_MultiParent(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("account", "order", "new_account_order"),
		parentalRecord("contact", "order", "new_contact_order"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)

	multiParent, ok := result.Errors[0].(models.MultiParentError)
	require.True(t, ok)
	assert.Equal(t, models.IssueMultipleParentalRelationships, multiParent.Code())
	assert.Equal(t, "order", multiParent.Entity)
	assert.ElementsMatch(t, []string{"account", "contact"}, multiParent.Parents)

	// One keep-parent option per parent plus the all-lookup option.
	require.Len(t, result.Suggestions, 1)
	suggestion, ok := result.Suggestions[0].(models.MultiParentSuggestion)
	require.True(t, ok)
	assert.Equal(t, models.SuggestionResolveMultiParent, suggestion.Kind())
	assert.Len(t, suggestion.Options, 3)
}

func TestValidatorService_Validate_MultiParentLookupsDoNotCount(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("account", "order", "new_account_order"),
		lookupRecord("contact", "order", "new_contact_order"),
		lookupRecord("systemuser", "order", "new_systemuser_order"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidatorService_Validate_CascadeCycle(t *testing.T) {
	// a -> b -> c -> a, all cascading.
	records := []models.RelationshipRecord{
		parentalRecord("a", "b", "new_a_b"),
		parentalRecord("b", "c", "new_b_c"),
		parentalRecord("c", "a", "new_c_a"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)

	cycle, ok := result.Errors[0].(models.CycleError)
	require.True(t, ok)
	assert.Equal(t, models.IssueCircularCascadeDelete, cycle.Code())
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Cycle)

	require.Len(t, result.Suggestions, 1)
	suggestion, ok := result.Suggestions[0].(models.BreakCycleSuggestion)
	require.True(t, ok)
	require.Len(t, suggestion.Edges, 3)
	assert.Equal(t, models.CycleEdge{From: "a", To: "b", SchemaName: "new_a_b"}, suggestion.Edges[0])
	assert.Equal(t, models.CycleEdge{From: "b", To: "c", SchemaName: "new_b_c"}, suggestion.Edges[1])
	assert.Equal(t, models.CycleEdge{From: "c", To: "a", SchemaName: "new_c_a"}, suggestion.Edges[2])
}

func TestValidatorService_Validate_LookupEdgeBreaksCycle(t *testing.T) {
	// The c -> a edge is a lookup, so the cascade subgraph is acyclic.
	records := []models.RelationshipRecord{
		parentalRecord("a", "b", "new_a_b"),
		parentalRecord("b", "c", "new_b_c"),
		lookupRecord("c", "a", "new_c_a"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidatorService_Validate_IndependentCyclesAllReported(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("a", "b", "new_a_b"),
		parentalRecord("b", "a", "new_b_a"),
		parentalRecord("x", "y", "new_x_y"),
		parentalRecord("y", "x", "new_y_x"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.False(t, result.IsValid)
	cycleCount := 0
	for _, err := range result.Errors {
		if _, ok := err.(models.CycleError); ok {
			cycleCount++
		}
	}
	assert.Equal(t, 2, cycleCount)
}

func TestValidatorService_Validate_SelfReferencingParental(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("category", "category", "new_category_category"),
	}

	result := newTestValidator().Validate(records, nil)

	// Warning, not error: the deployment may proceed.
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)

	warning, ok := result.Warnings[0].(models.SelfRefWarning)
	require.True(t, ok)
	assert.Equal(t, models.IssueSelfReferencingParental, warning.Code())
	assert.Equal(t, "category", warning.Entity)

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, models.SuggestionConvertToLookup, result.Suggestions[0].Kind())
}

func TestValidatorService_Validate_SelfReferencingRequiredLookup(t *testing.T) {
	records := []models.RelationshipRecord{
		{
			ReferencingEntity: "employee",
			ReferencedEntity:  "employee",
			SchemaName:        "new_employee_manager",
			CascadeDelete:     models.CascadeBehaviorRemoveLink,
			LookupFieldName:   "new_managerid",
			IsRequired:        true,
		},
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)

	warning, ok := result.Warnings[0].(models.SelfRefWarning)
	require.True(t, ok)
	assert.Equal(t, models.IssueSelfReferencingRequired, warning.Code())

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, models.SuggestionMakeLookupOptional, result.Suggestions[0].Kind())
}

func TestValidatorService_Validate_SelfReferencingParentalAndRequired(t *testing.T) {
	records := []models.RelationshipRecord{
		{
			ReferencingEntity: "category",
			ReferencedEntity:  "category",
			SchemaName:        "new_category_parent",
			CascadeDelete:     models.CascadeBehaviorCascade,
			LookupFieldName:   "new_parentid",
			IsRequired:        true,
		},
	}

	result := newTestValidator().Validate(records, nil)

	// Both warning variants fire for the same record.
	assert.True(t, result.IsValid)
	assert.Len(t, result.Warnings, 2)
	assert.Len(t, result.Suggestions, 2)
}

func TestValidatorService_Validate_SelfLoopDoesNotReportCycle(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("category", "category", "new_category_category"),
	}

	result := newTestValidator().Validate(records, nil)

	for _, err := range result.Errors {
		_, isCycle := err.(models.CycleError)
		assert.False(t, isCycle, "self-loops are warnings, not cycle errors")
	}
}

func TestValidatorService_Validate_DuplicateSchemaName(t *testing.T) {
	records := []models.RelationshipRecord{
		parentalRecord("account", "order", "new_dup"),
		lookupRecord("contact", "invoice", "new_dup"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)

	warning, ok := result.Warnings[0].(models.NamingConflictWarning)
	require.True(t, ok)
	assert.Equal(t, models.IssueDuplicateSchemaName, warning.Code())
	assert.Equal(t, "new_dup", warning.Name)
	assert.Equal(t, 2, warning.Count)
}

func TestValidatorService_Validate_DuplicateLookupFieldName(t *testing.T) {
	records := []models.RelationshipRecord{
		{
			ReferencingEntity: "order",
			ReferencedEntity:  "account",
			SchemaName:        "new_account_order",
			CascadeDelete:     models.CascadeBehaviorRemoveLink,
			LookupFieldName:   "new_accountid",
		},
		{
			ReferencingEntity: "order",
			ReferencedEntity:  "account",
			SchemaName:        "new_account_order_billing",
			CascadeDelete:     models.CascadeBehaviorRemoveLink,
			LookupFieldName:   "new_accountid",
		},
	}

	result := newTestValidator().Validate(records, nil)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)

	warning, ok := result.Warnings[0].(models.NamingConflictWarning)
	require.True(t, ok)
	assert.Equal(t, models.IssueDuplicateLookupName, warning.Code())
	assert.Equal(t, "new_accountid", warning.Name)
	assert.Equal(t, "order", warning.Entity)
}

func TestValidatorService_Validate_SameLookupNameOnDifferentEntities(t *testing.T) {
	records := []models.RelationshipRecord{
		{
			ReferencingEntity: "order",
			ReferencedEntity:  "account",
			SchemaName:        "new_account_order",
			CascadeDelete:     models.CascadeBehaviorRemoveLink,
			LookupFieldName:   "new_accountid",
		},
		{
			ReferencingEntity: "invoice",
			ReferencedEntity:  "account",
			SchemaName:        "new_account_invoice",
			CascadeDelete:     models.CascadeBehaviorRemoveLink,
			LookupFieldName:   "new_accountid",
		},
	}

	result := newTestValidator().Validate(records, nil)

	assert.Empty(t, result.Warnings, "lookup names only collide on the same referencing entity")
}

func TestValidatorService_Validate_AllChecksRunInOnePass(t *testing.T) {
	records := []models.RelationshipRecord{
		// Multi-parent on order.
		parentalRecord("account", "order", "new_account_order"),
		parentalRecord("contact", "order", "new_contact_order"),
		// Cycle a -> b -> a.
		parentalRecord("a", "b", "new_a_b"),
		parentalRecord("b", "a", "new_b_a"),
		// Self-referencing parental.
		parentalRecord("category", "category", "new_category_category"),
	}

	result := newTestValidator().Validate(records, nil)

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 2, "multi-parent and cycle both reported")
	assert.Len(t, result.Warnings, 1)
	assert.Equal(t, 5, result.Summary.TotalRelationships)
	assert.Equal(t, 5, result.Summary.ParentalRelationships)
	assert.Equal(t, 2, result.Summary.ErrorCount)
	assert.Equal(t, 1, result.Summary.WarningCount)
}
