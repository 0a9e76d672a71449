package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/apperrors"
	"github.com/erdflow/erdflow-engine/pkg/models"
	"github.com/erdflow/erdflow-engine/pkg/services"
)

// DeployRequest is the payload for starting a deployment.
type DeployRequest struct {
	Entities      []models.DiagramEntity       `json:"entities" validate:"min=1,dive"`
	Relationships []models.DiagramRelationship `json:"relationships" validate:"dive"`
	Publisher     models.PublisherSpec         `json:"publisher" validate:"required"`
	Solution      models.SolutionSpec          `json:"solution" validate:"required"`
	GlobalChoices []models.GlobalChoiceSpec    `json:"globalChoices" validate:"dive"`
	// Decisions maps entity names to the caller's CDM-vs-custom choice.
	Decisions map[string]bool `json:"decisions"`
}

// RollbackStartedResponse acknowledges an accepted rollback request.
type RollbackStartedResponse struct {
	RollbackID string `json:"rollbackId"`
}

// DeploymentHandler handles deployment and rollback endpoints.
type DeploymentHandler struct {
	matcher  services.MatcherService
	resolver services.ResolverService
	deployer services.DeploymentService
	rollback services.RollbackService
	logger   *zap.Logger
}

// NewDeploymentHandler creates a new DeploymentHandler.
func NewDeploymentHandler(
	matcher services.MatcherService,
	resolver services.ResolverService,
	deployer services.DeploymentService,
	rollback services.RollbackService,
	logger *zap.Logger,
) *DeploymentHandler {
	return &DeploymentHandler{
		matcher:  matcher,
		resolver: resolver,
		deployer: deployer,
		rollback: rollback,
		logger:   logger,
	}
}

// RegisterRoutes registers the deployment handler's routes on the given mux.
func (h *DeploymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/deployments", h.Deploy)
	mux.HandleFunc("GET /api/deployments", h.ListDeployments)
	mux.HandleFunc("GET /api/deployments/{id}", h.GetDeployment)
	mux.HandleFunc("GET /api/deployments/{id}/rollback-eligibility", h.RollbackEligibility)
	mux.HandleFunc("POST /api/deployments/{id}/rollback", h.StartRollback)
	mux.HandleFunc("GET /api/deployments/{id}/rollbacks", h.ListRollbacks)
	mux.HandleFunc("GET /api/rollbacks/{id}", h.GetRollback)
}

// Deploy handles POST /api/deployments.
// This endpoint uses Server-Sent Events (SSE) to stream pipeline progress;
// the stream ends with a single final event carrying the completed record.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
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
		Solution:      req.Solution,
		GlobalChoices: req.GlobalChoices,
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

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	events := make(chan models.ProgressEvent, 100)

	// Run the pipeline in background; the service emits the final event
	// itself before returning an error.
	go func() {
		defer close(events)
		if _, err := h.deployer.Deploy(r.Context(), spec, events); err != nil {
			h.logger.Error("Deployment failed", zap.Error(err))
		}
	}()

	// Stream events to client
	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if event.Type == models.ProgressEventFinal {
			break
		}
	}
}

// ListDeployments handles GET /api/deployments
// Supports an optional ?limit= query parameter; the repository default applies
// when it is absent or invalid.
func (h *DeploymentHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	records, err := h.deployer.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list deployments", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_failed", "Failed to list deployments"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, records); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetDeployment handles GET /api/deployments/{id}
func (h *DeploymentHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	deploymentID, ok := ParseDeploymentID(w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.deployer.Get(r.Context(), deploymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "deployment_not_found", "Deployment not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get deployment",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_failed", "Failed to get deployment"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RollbackEligibility handles GET /api/deployments/{id}/rollback-eligibility
func (h *DeploymentHandler) RollbackEligibility(w http.ResponseWriter, r *http.Request) {
	deploymentID, ok := ParseDeploymentID(w, r, h.logger)
	if !ok {
		return
	}

	eligibility, err := h.rollback.CanRollback(r.Context(), deploymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "deployment_not_found", "Deployment not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to check rollback eligibility",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "eligibility_failed", "Failed to check rollback eligibility"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, eligibility); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// StartRollback handles POST /api/deployments/{id}/rollback
// Returns 202 Accepted immediately; the deletion pipeline runs in background
// and its progress is polled via GET /api/rollbacks/{id}.
func (h *DeploymentHandler) StartRollback(w http.ResponseWriter, r *http.Request) {
	deploymentID, ok := ParseDeploymentID(w, r, h.logger)
	if !ok {
		return
	}

	rollbackID, err := h.rollback.Rollback(r.Context(), deploymentID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "deployment_not_found", "Deployment not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotRollbackable):
			if err := ErrorResponse(w, http.StatusConflict, "not_rollbackable", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to start rollback",
				zap.String("deployment_id", deploymentID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "rollback_failed", "Failed to start rollback"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, RollbackStartedResponse{RollbackID: rollbackID.String()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListRollbacks handles GET /api/deployments/{id}/rollbacks
func (h *DeploymentHandler) ListRollbacks(w http.ResponseWriter, r *http.Request) {
	deploymentID, ok := ParseDeploymentID(w, r, h.logger)
	if !ok {
		return
	}

	records, err := h.rollback.History(r.Context(), deploymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "deployment_not_found", "Deployment not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list rollbacks",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_failed", "Failed to list rollbacks"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, records); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetRollback handles GET /api/rollbacks/{id}
func (h *DeploymentHandler) GetRollback(w http.ResponseWriter, r *http.Request) {
	rollbackID, ok := ParseRollbackID(w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.rollback.Status(r.Context(), rollbackID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "rollback_not_found", "Rollback not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get rollback",
			zap.String("rollback_id", rollbackID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_failed", "Failed to get rollback"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
