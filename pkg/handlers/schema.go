package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/apperrors"
	"github.com/erdflow/erdflow-engine/pkg/models"
	"github.com/erdflow/erdflow-engine/pkg/services"
)

// validate checks request DTOs against their struct tags.
var validate = validator.New()

// DetectRequest is the payload for catalog detection.
type DetectRequest struct {
	Entities []models.DiagramEntity `json:"entities" validate:"min=1,dive"`
}

// ValidateRequest is the payload for relationship validation. The publisher
// prefix is required because schema and lookup names are derived before the
// graph checks run.
type ValidateRequest struct {
	Entities      []models.DiagramEntity       `json:"entities" validate:"min=1,dive"`
	Relationships []models.DiagramRelationship `json:"relationships" validate:"dive"`
	Publisher     models.PublisherSpec         `json:"publisher" validate:"required"`
	// Decisions maps entity names to the caller's CDM-vs-custom choice.
	Decisions map[string]bool `json:"decisions"`
}

// SchemaHandler handles catalog detection and relationship validation.
type SchemaHandler struct {
	matcher   services.MatcherService
	validator services.ValidatorService
	resolver  services.ResolverService
	logger    *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(
	matcher services.MatcherService,
	validatorSvc services.ValidatorService,
	resolver services.ResolverService,
	logger *zap.Logger,
) *SchemaHandler {
	return &SchemaHandler{
		matcher:   matcher,
		validator: validatorSvc,
		resolver:  resolver,
		logger:    logger,
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/schema/detect", h.Detect)
	mux.HandleFunc("POST /api/schema/validate", h.Validate)
}

// Detect handles POST /api/schema/detect.
// Classifies each diagram entity against the standard entity registry.
func (h *SchemaHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result := h.matcher.Detect(req.Entities)

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Validate handles POST /api/schema/validate.
// Resolves the diagram into relationship records and runs the graph checks.
func (h *SchemaHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	detection := h.matcher.Detect(req.Entities)

	spec, err := h.resolver.Resolve(services.ResolveInput{
		Entities:      req.Entities,
		Relationships: req.Relationships,
		Matches:       detection.Matches,
		Decisions:     req.Decisions,
		Publisher:     req.Publisher,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_diagram", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to resolve diagram", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "resolve_failed", "Failed to resolve diagram"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result := h.validator.Validate(spec.Relationships, req.Entities)

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeRequest decodes and validates a JSON request body. Returns false
// after writing an error response when the body is malformed or invalid.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	if err := validate.Struct(req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
