package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/catalog"
	"github.com/erdflow/erdflow-engine/pkg/models"
)

func testRegistry() *catalog.Registry {
	return catalog.New([]models.RegistryEntity{
		{LogicalName: "account", DisplayName: "Account", Aliases: []string{"company", "organization"}},
		{LogicalName: "contact", DisplayName: "Contact", Aliases: []string{"person"}},
		{LogicalName: "salesorder", DisplayName: "Order", Aliases: []string{"sales order"}},
	})
}

func newTestMatcher() MatcherService {
	return NewMatcherService(testRegistry(), DefaultMatcherOptions(), zap.NewNop())
}

func TestMatcherService_Detect_ExactMatch(t *testing.T) {
	svc := newTestMatcher()

	result := svc.Detect([]models.DiagramEntity{{Name: "Account"}})
	require.Len(t, result.Matches, 1)

	match := result.Matches[0]
	assert.Equal(t, models.MatchTypeExact, match.MatchType)
	assert.Equal(t, "account", match.Registry.LogicalName)
	assert.Equal(t, 1.0, match.Confidence)
	assert.Equal(t, models.ConfidenceHigh, result.Summary.Confidence)
}

func TestMatcherService_Detect_ExactMatchIgnoresCaseAndPunctuation(t *testing.T) {
	svc := newTestMatcher()

	// "Sales Order" normalizes to the logical name "salesorder".
	result := svc.Detect([]models.DiagramEntity{{Name: "Sales_Order"}})
	require.Len(t, result.Matches, 1)
	assert.Equal(t, models.MatchTypeExact, result.Matches[0].MatchType)
	assert.Equal(t, "salesorder", result.Matches[0].Registry.LogicalName)
}

func TestMatcherService_Detect_ExactMatchOnDisplayName(t *testing.T) {
	svc := newTestMatcher()

	// "Order" is a display name only; the logical-name lookup misses and the
	// display-name scan must still classify it as exact.
	result := svc.Detect([]models.DiagramEntity{{Name: "Order"}})
	require.Len(t, result.Matches, 1)
	assert.Equal(t, models.MatchTypeExact, result.Matches[0].MatchType)
	assert.Equal(t, "salesorder", result.Matches[0].Registry.LogicalName)
	assert.Equal(t, 1.0, result.Matches[0].Confidence)
}

func TestMatcherService_Detect_AliasMatch(t *testing.T) {
	svc := newTestMatcher()

	result := svc.Detect([]models.DiagramEntity{{Name: "Company"}})
	require.Len(t, result.Matches, 1)

	match := result.Matches[0]
	assert.Equal(t, models.MatchTypeAlias, match.MatchType)
	assert.Equal(t, "account", match.Registry.LogicalName)
	assert.Equal(t, 0.9, match.Confidence)
}

func TestMatcherService_Detect_FuzzyMatch(t *testing.T) {
	svc := newTestMatcher()

	// One edit away from "account".
	result := svc.Detect([]models.DiagramEntity{{Name: "Acount"}})
	require.Len(t, result.Matches, 1)

	match := result.Matches[0]
	assert.Equal(t, models.MatchTypeFuzzy, match.MatchType)
	assert.Equal(t, "account", match.Registry.LogicalName)
	assert.GreaterOrEqual(t, match.Confidence, 0.6)
	assert.Less(t, match.Confidence, 0.9, "fuzzy confidence must rank below alias matches")
}

func TestMatcherService_Detect_NoMatchIsCustom(t *testing.T) {
	svc := newTestMatcher()

	result := svc.Detect([]models.DiagramEntity{{Name: "WidgetFactoryConfiguration"}})
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, result.Summary.CustomEntities)
	assert.Equal(t, models.ConfidenceNone, result.Summary.Confidence)
}

func TestMatcherService_Detect_EmptyNameIsCustom(t *testing.T) {
	svc := newTestMatcher()

	result := svc.Detect([]models.DiagramEntity{{Name: "---"}})
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, result.Summary.CustomEntities)
}

func TestMatcherService_Detect_SummaryCounts(t *testing.T) {
	svc := newTestMatcher()

	result := svc.Detect([]models.DiagramEntity{
		{Name: "Account"},
		{Name: "Person"},
		{Name: "WidgetFactoryConfiguration"},
	})

	assert.Equal(t, 3, result.Summary.TotalEntities)
	assert.Equal(t, 2, result.Summary.MatchedEntities)
	assert.Equal(t, 1, result.Summary.CustomEntities)
	assert.Len(t, result.Matches, 2)
}

func TestMatcherService_Detect_ExactBeatsAlias(t *testing.T) {
	registry := catalog.New([]models.RegistryEntity{
		{LogicalName: "account", DisplayName: "Account"},
		{LogicalName: "lead", DisplayName: "Lead", Aliases: []string{"account"}},
	})
	svc := NewMatcherService(registry, DefaultMatcherOptions(), zap.NewNop())

	result := svc.Detect([]models.DiagramEntity{{Name: "Account"}})
	require.Len(t, result.Matches, 1)
	assert.Equal(t, models.MatchTypeExact, result.Matches[0].MatchType)
	assert.Equal(t, "account", result.Matches[0].Registry.LogicalName)
}

func TestMatcherService_Detect_Deterministic(t *testing.T) {
	svc := newTestMatcher()
	entities := []models.DiagramEntity{{Name: "Acount"}, {Name: "Person"}, {Name: "Order"}}

	first := svc.Detect(entities)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, svc.Detect(entities))
	}
}
