package services

import (
	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/catalog"
	"github.com/erdflow/erdflow-engine/pkg/models"
)

// MatcherOptions configure catalog matching thresholds. AliasConfidence must
// stay above FuzzyThreshold so the confidence ordering exact > alias > fuzzy
// holds for every accepted match.
type MatcherOptions struct {
	AliasConfidence float64
	FuzzyThreshold  float64
}

// DefaultMatcherOptions returns the standard matching thresholds.
func DefaultMatcherOptions() MatcherOptions {
	return MatcherOptions{
		AliasConfidence: 0.9,
		FuzzyThreshold:  0.6,
	}
}

// MatcherService classifies diagram entities against the standard-entity
// registry.
type MatcherService interface {
	// Detect classifies each entity as an exact/alias/fuzzy match or custom.
	// Pure function over the input entities and the registry snapshot.
	Detect(entities []models.DiagramEntity) *models.DetectionResult
}

type matcherService struct {
	registry *catalog.Registry
	opts     MatcherOptions
	logger   *zap.Logger
}

// NewMatcherService creates a new MatcherService over a registry snapshot.
func NewMatcherService(registry *catalog.Registry, opts MatcherOptions, logger *zap.Logger) MatcherService {
	return &matcherService{
		registry: registry,
		opts:     opts,
		logger:   logger.Named("matcher"),
	}
}

var _ MatcherService = (*matcherService)(nil)

func (s *matcherService) Detect(entities []models.DiagramEntity) *models.DetectionResult {
	result := &models.DetectionResult{
		Matches: []models.MatchResult{},
		Summary: models.DetectionSummary{TotalEntities: len(entities)},
	}

	var confidenceSum float64
	for _, entity := range entities {
		match, ok := s.matchEntity(entity)
		if !ok {
			result.Summary.CustomEntities++
			continue
		}
		result.Matches = append(result.Matches, match)
		result.Summary.MatchedEntities++
		confidenceSum += match.Confidence
	}

	result.Summary.Confidence = confidenceLabel(confidenceSum, result.Summary.MatchedEntities)

	s.logger.Info("Catalog detection complete",
		zap.Int("total", result.Summary.TotalEntities),
		zap.Int("matched", result.Summary.MatchedEntities),
		zap.Int("custom", result.Summary.CustomEntities),
		zap.String("confidence", string(result.Summary.Confidence)))

	return result
}

// matchEntity runs the three matching tiers in order. Within a tier the first
// registry entry encountered wins; the registry iterates in stable order, so
// results are deterministic.
func (s *matcherService) matchEntity(entity models.DiagramEntity) (models.MatchResult, bool) {
	normalized := NormalizeName(entity.Name)
	if normalized == "" {
		return models.MatchResult{}, false
	}

	// Tier 1: exact match on logical or display name. Registry logical names
	// are already normalized, so a binary-search lookup answers most exact
	// matches; the scan below covers display names.
	if reg, ok := s.registry.Lookup(normalized); ok {
		return models.MatchResult{
			Entity:     entity,
			Registry:   reg,
			MatchType:  models.MatchTypeExact,
			Confidence: 1.0,
		}, true
	}
	for _, reg := range s.registry.Entities() {
		if normalized == NormalizeName(reg.LogicalName) || normalized == NormalizeName(reg.DisplayName) {
			return models.MatchResult{
				Entity:     entity,
				Registry:   reg,
				MatchType:  models.MatchTypeExact,
				Confidence: 1.0,
			}, true
		}
	}

	// Tier 2: alias match.
	for _, reg := range s.registry.Entities() {
		for _, alias := range reg.Aliases {
			if normalized == NormalizeName(alias) {
				return models.MatchResult{
					Entity:     entity,
					Registry:   reg,
					MatchType:  models.MatchTypeAlias,
					Confidence: s.opts.AliasConfidence,
				}, true
			}
		}
	}

	// Tier 3: fuzzy match on Levenshtein similarity. Strictly-greater
	// comparison keeps the first best-scoring entry on ties.
	var (
		best      models.RegistryEntity
		bestScore float64
	)
	for _, reg := range s.registry.Entities() {
		score := similarity(normalized, NormalizeName(reg.LogicalName))
		if ds := similarity(normalized, NormalizeName(reg.DisplayName)); ds > score {
			score = ds
		}
		if score > bestScore {
			bestScore = score
			best = reg
		}
	}
	if bestScore >= s.opts.FuzzyThreshold {
		// Fuzzy confidence must rank below alias matches.
		confidence := bestScore
		if confidence >= s.opts.AliasConfidence {
			confidence = s.opts.AliasConfidence - 0.01
		}
		return models.MatchResult{
			Entity:     entity,
			Registry:   best,
			MatchType:  models.MatchTypeFuzzy,
			Confidence: confidence,
		}, true
	}

	return models.MatchResult{}, false
}

// similarity is the normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

// confidenceLabel derives the coarse summary label from the mean match
// confidence.
func confidenceLabel(sum float64, matched int) models.ConfidenceLabel {
	if matched == 0 {
		return models.ConfidenceNone
	}
	mean := sum / float64(matched)
	switch {
	case mean >= 0.9:
		return models.ConfidenceHigh
	case mean >= 0.7:
		return models.ConfidenceMed
	default:
		return models.ConfidenceLow
	}
}
