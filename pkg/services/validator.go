package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

// ValidatorService runs the platform's structural constraints over a resolved
// relationship set. It reports problems but never mutates or auto-resolves
// the input; resolution is the caller's responsibility.
type ValidatorService interface {
	Validate(relationships []models.RelationshipRecord, entities []models.DiagramEntity) *models.ValidationResult
}

type validatorService struct {
	logger *zap.Logger
}

// NewValidatorService creates a new ValidatorService.
func NewValidatorService(logger *zap.Logger) ValidatorService {
	return &validatorService{logger: logger.Named("validator")}
}

var _ ValidatorService = (*validatorService)(nil)

// Validate runs all structural checks over the relationship graph. Checks
// never short-circuit: every problem surfaces in a single pass. Warnings
// never block validity.
func (s *validatorService) Validate(relationships []models.RelationshipRecord, entities []models.DiagramEntity) *models.ValidationResult {
	result := &models.ValidationResult{
		Errors:                []models.ValidationIssue{},
		Warnings:              []models.ValidationIssue{},
		Suggestions:           []models.Suggestion{},
		ResolvedRelationships: relationships,
	}

	graph := BuildRelationshipGraph(relationships)

	s.checkUnknownEntities(relationships, entities)
	s.checkMultiParent(graph, result)
	s.checkCascadeCycles(graph, result)
	s.checkSelfReferences(relationships, result)
	s.checkNamingCollisions(relationships, result)

	result.IsValid = len(result.Errors) == 0
	result.Summary = summarize(relationships, result)

	s.logger.Info("Relationship validation complete",
		zap.Int("relationships", len(relationships)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Bool("is_valid", result.IsValid))

	return result
}

// checkUnknownEntities logs relationships whose endpoints are not in the
// diagram entity list. The parser normally guarantees consistency, so this is
// diagnostic only and produces no issue.
func (s *validatorService) checkUnknownEntities(relationships []models.RelationshipRecord, entities []models.DiagramEntity) {
	if len(entities) == 0 {
		return
	}
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		known[NormalizeName(e.Name)] = true
	}
	for _, r := range relationships {
		for _, endpoint := range []string{r.ReferencingEntity, r.ReferencedEntity} {
			if !known[NormalizeName(endpoint)] {
				s.logger.Warn("Relationship references entity absent from diagram",
					zap.String("schema_name", r.SchemaName),
					zap.String("entity", endpoint))
			}
		}
	}
}

// checkMultiParent reports every entity with more than one incoming parental
// relationship. The platform allows at most one cascade parent per entity.
func (s *validatorService) checkMultiParent(graph *RelationshipGraph, result *models.ValidationResult) {
	for _, entity := range sortedEntities(graph) {
		node := graph.Node(entity)
		if len(node.IncomingParental) <= 1 {
			continue
		}

		// Parents in discovery order (input record order).
		parents := make([]string, 0, len(node.IncomingParental))
		for _, edge := range node.IncomingParental {
			parents = append(parents, edge.OtherEntity)
		}

		result.Errors = append(result.Errors, models.MultiParentError{
			Entity:  entity,
			Parents: parents,
		})

		options := make([]models.ParentOption, 0, len(parents)+1)
		for _, parent := range parents {
			options = append(options, models.ParentOption{
				KeepParent:  parent,
				Description: fmt.Sprintf("keep %s parental, convert the others to lookups", parent),
			})
		}
		options = append(options, models.ParentOption{
			Description: "convert all parental relationships to lookups",
		})
		result.Suggestions = append(result.Suggestions, models.MultiParentSuggestion{
			Entity:  entity,
			Options: options,
		})
	}
}

// dfsColor is the visit state of the three-color cycle detection.
type dfsColor int

const (
	colorWhite dfsColor = iota
	colorGray
	colorBlack
)

// checkCascadeCycles finds cycles in the parental-only subgraph with
// depth-first traversal. A back-edge to a gray node closes a cycle; the path
// from that node to the closing edge is reported with the first entity
// repeated at the end. Traversal continues from every unvisited root so
// independent cycles are all reported. Parental self-loops are covered by the
// self-reference check and skipped here.
func (s *validatorService) checkCascadeCycles(graph *RelationshipGraph, result *models.ValidationResult) {
	colors := make(map[string]dfsColor, graph.Len())
	var path []string
	var pathEdges []models.RelationshipRecord

	var visit func(entity string)
	visit = func(entity string) {
		colors[entity] = colorGray
		path = append(path, entity)

		for _, edge := range graph.Node(entity).OutgoingParental {
			next := edge.OtherEntity
			if next == entity {
				continue
			}
			switch colors[next] {
			case colorWhite:
				pathEdges = append(pathEdges, edge.Record)
				visit(next)
				pathEdges = pathEdges[:len(pathEdges)-1]
			case colorGray:
				s.reportCycle(path, pathEdges, edge.Record, next, result)
			}
		}

		colors[entity] = colorBlack
		path = path[:len(path)-1]
	}

	for _, entity := range sortedEntities(graph) {
		if colors[entity] == colorWhite {
			visit(entity)
		}
	}
}

// reportCycle reconstructs the cycle that the back edge closingEdge closes at
// cycleStart and emits the error plus its break-edge suggestion.
func (s *validatorService) reportCycle(path []string, pathEdges []models.RelationshipRecord,
	closingEdge models.RelationshipRecord, cycleStart string, result *models.ValidationResult) {

	start := 0
	for i, entity := range path {
		if entity == cycleStart {
			start = i
			break
		}
	}

	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	cycle = append(cycle, cycleStart)

	edges := make([]models.CycleEdge, 0, len(cycle)-1)
	for i := start; i < len(path)-1; i++ {
		edges = append(edges, models.CycleEdge{
			From:       path[i],
			To:         path[i+1],
			SchemaName: pathEdges[i].SchemaName,
		})
	}
	edges = append(edges, models.CycleEdge{
		From:       path[len(path)-1],
		To:         cycleStart,
		SchemaName: closingEdge.SchemaName,
	})

	result.Errors = append(result.Errors, models.CycleError{Cycle: cycle})
	result.Suggestions = append(result.Suggestions, models.BreakCycleSuggestion{
		Cycle: cycle,
		Edges: edges,
	})
}

// checkSelfReferences warns about self-referencing relationships that cascade
// (risk of unintended subtree deletion) or are required (the first record of
// the entity could never be created). A single record can trigger both.
func (s *validatorService) checkSelfReferences(relationships []models.RelationshipRecord, result *models.ValidationResult) {
	for _, record := range relationships {
		if !record.IsSelfReferencing() {
			continue
		}
		if record.IsParental() {
			result.Warnings = append(result.Warnings, models.SelfRefWarning{
				Entity:     record.ReferencingEntity,
				SchemaName: record.SchemaName,
				Kind:       models.SelfRefParental,
			})
			result.Suggestions = append(result.Suggestions, models.ConvertToLookupSuggestion{
				Entity:     record.ReferencingEntity,
				SchemaName: record.SchemaName,
			})
		}
		if record.IsRequired {
			result.Warnings = append(result.Warnings, models.SelfRefWarning{
				Entity:     record.ReferencingEntity,
				SchemaName: record.SchemaName,
				Kind:       models.SelfRefRequired,
			})
			result.Suggestions = append(result.Suggestions, models.MakeLookupOptionalSuggestion{
				Entity:          record.ReferencingEntity,
				SchemaName:      record.SchemaName,
				LookupFieldName: record.LookupFieldName,
			})
		}
	}
}

// checkNamingCollisions warns about duplicate relationship schema names and
// duplicate lookup field names on the same referencing entity. One warning
// per colliding name, in first-seen order.
func (s *validatorService) checkNamingCollisions(relationships []models.RelationshipRecord, result *models.ValidationResult) {
	schemaCounts := make(map[string]int)
	var schemaOrder []string
	for _, record := range relationships {
		if schemaCounts[record.SchemaName] == 0 {
			schemaOrder = append(schemaOrder, record.SchemaName)
		}
		schemaCounts[record.SchemaName]++
	}
	for _, name := range schemaOrder {
		if schemaCounts[name] > 1 {
			result.Warnings = append(result.Warnings, models.NamingConflictWarning{
				Kind:  models.NamingConflictSchemaName,
				Name:  name,
				Count: schemaCounts[name],
			})
		}
	}

	type lookupKey struct {
		entity string
		field  string
	}
	lookupCounts := make(map[lookupKey]int)
	var lookupOrder []lookupKey
	for _, record := range relationships {
		if record.LookupFieldName == "" {
			continue
		}
		key := lookupKey{entity: record.ReferencingEntity, field: record.LookupFieldName}
		if lookupCounts[key] == 0 {
			lookupOrder = append(lookupOrder, key)
		}
		lookupCounts[key]++
	}
	for _, key := range lookupOrder {
		if lookupCounts[key] > 1 {
			result.Warnings = append(result.Warnings, models.NamingConflictWarning{
				Kind:   models.NamingConflictLookupField,
				Name:   key.field,
				Entity: key.entity,
				Count:  lookupCounts[key],
			})
		}
	}
}

// sortedEntities returns graph entities in lexical order so issue ordering is
// deterministic across runs.
func sortedEntities(graph *RelationshipGraph) []string {
	entities := make([]string, 0, graph.Len())
	for entity := range graph.Nodes() {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	return entities
}

func summarize(relationships []models.RelationshipRecord, result *models.ValidationResult) models.ValidationSummary {
	summary := models.ValidationSummary{
		TotalRelationships: len(relationships),
		ErrorCount:         len(result.Errors),
		WarningCount:       len(result.Warnings),
	}
	for _, r := range relationships {
		if r.IsParental() {
			summary.ParentalRelationships++
		} else {
			summary.LookupRelationships++
		}
	}
	return summary
}
