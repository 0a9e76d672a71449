package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/apperrors"
	"github.com/erdflow/erdflow-engine/pkg/models"
)

// ResolveInput carries everything needed to turn a parsed diagram plus the
// caller's CDM-vs-custom decisions into a deployable spec.
type ResolveInput struct {
	Entities      []models.DiagramEntity
	Relationships []models.DiagramRelationship
	// Matches is the catalog matcher's output for Entities.
	Matches []models.MatchResult
	// Decisions maps an entity name to the caller's choice for a detected
	// match: true deploys the CDM entity, false keeps the entity custom.
	// Matched entities without a decision default to CDM.
	Decisions map[string]bool
	Publisher models.PublisherSpec
	Solution  models.SolutionSpec
	// GlobalChoices pass through to the deployment spec unchanged.
	GlobalChoices []models.GlobalChoiceSpec
}

// ResolverService applies catalog decisions to a parsed diagram and produces
// the platform-ready deployment spec.
type ResolverService interface {
	Resolve(input ResolveInput) (*models.DeploymentSpec, error)
}

type resolverService struct {
	logger *zap.Logger
}

// NewResolverService creates a new ResolverService.
func NewResolverService(logger *zap.Logger) ResolverService {
	return &resolverService{logger: logger.Named("resolver")}
}

var _ ResolverService = (*resolverService)(nil)

func (s *resolverService) Resolve(input ResolveInput) (*models.DeploymentSpec, error) {
	if len(input.Entities) == 0 {
		return nil, fmt.Errorf("%w: diagram contains no entities", apperrors.ErrInvalidInput)
	}
	prefix := input.Publisher.Prefix
	if prefix == "" {
		return nil, fmt.Errorf("%w: publisher prefix is required", apperrors.ErrInvalidInput)
	}

	matchByName := make(map[string]models.MatchResult, len(input.Matches))
	for _, m := range input.Matches {
		matchByName[NormalizeName(m.Entity.Name)] = m
	}

	// Resolve each entity to its platform logical name.
	logicalByName := make(map[string]string, len(input.Entities))
	entities := make([]models.EntitySpec, 0, len(input.Entities))
	for _, entity := range input.Entities {
		normalized := NormalizeName(entity.Name)
		if normalized == "" {
			return nil, fmt.Errorf("%w: entity name %q normalizes to empty", apperrors.ErrInvalidInput, entity.Name)
		}
		if _, dup := logicalByName[normalized]; dup {
			return nil, fmt.Errorf("%w: duplicate entity name %q", apperrors.ErrInvalidInput, entity.Name)
		}

		match, matched := matchByName[normalized]
		useCDM := matched
		if decision, ok := input.Decisions[entity.Name]; ok {
			useCDM = matched && decision
		}

		if useCDM {
			logicalByName[normalized] = match.Registry.LogicalName
			entities = append(entities, models.EntitySpec{
				LogicalName: match.Registry.LogicalName,
				DisplayName: match.Registry.DisplayName,
				IsCDM:       true,
			})
			continue
		}

		logical := DeriveLogicalName(prefix, entity.Name)
		logicalByName[normalized] = logical
		attrs := make([]models.AttributeSpec, 0, len(entity.Attributes))
		for _, a := range entity.Attributes {
			attrs = append(attrs, models.AttributeSpec{
				SchemaName:   DeriveAttributeSchemaName(prefix, a.Name),
				DisplayName:  a.Name,
				Type:         a.Type,
				IsPrimaryKey: a.IsPrimaryKey,
			})
		}
		entities = append(entities, models.EntitySpec{
			LogicalName: logical,
			DisplayName: entity.Name,
			Attributes:  attrs,
		})
	}

	// Resolve relationships against the entity logical names.
	records := make([]models.RelationshipRecord, 0, len(input.Relationships))
	for _, rel := range input.Relationships {
		if rel.Cardinality == models.CardinalityManyToMany {
			return nil, fmt.Errorf("%w: many-to-many relationship %s-%s requires an explicit junction entity",
				apperrors.ErrInvalidInput, rel.FromEntity, rel.ToEntity)
		}

		referenced, ok := logicalByName[NormalizeName(rel.FromEntity)]
		if !ok {
			return nil, fmt.Errorf("%w: relationship references unknown entity %q", apperrors.ErrInvalidInput, rel.FromEntity)
		}
		referencing, ok := logicalByName[NormalizeName(rel.ToEntity)]
		if !ok {
			return nil, fmt.Errorf("%w: relationship references unknown entity %q", apperrors.ErrInvalidInput, rel.ToEntity)
		}

		cascade := models.CascadeBehaviorRemoveLink
		if rel.IsIdentifying {
			cascade = models.CascadeBehaviorCascade
		}

		records = append(records, models.RelationshipRecord{
			ReferencingEntity: referencing,
			ReferencedEntity:  referenced,
			SchemaName:        DeriveSchemaName(prefix, referenced, referencing),
			CascadeDelete:     cascade,
			LookupFieldName:   DeriveLookupFieldName(prefix, referenced),
			IsRequired:        rel.IsIdentifying,
		})
	}

	s.logger.Info("Diagram resolved",
		zap.Int("entities", len(entities)),
		zap.Int("relationships", len(records)))

	return &models.DeploymentSpec{
		Publisher:     input.Publisher,
		Solution:      input.Solution,
		GlobalChoices: input.GlobalChoices,
		Entities:      entities,
		Relationships: records,
	}, nil
}
