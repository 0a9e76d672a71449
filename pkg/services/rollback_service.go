package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/apperrors"
	"github.com/erdflow/erdflow-engine/pkg/logging"
	"github.com/erdflow/erdflow-engine/pkg/models"
	"github.com/erdflow/erdflow-engine/pkg/platform"
	"github.com/erdflow/erdflow-engine/pkg/repositories"
)

// RollbackEligibility is the outcome of a CanRollback check.
type RollbackEligibility struct {
	CanRollback bool   `json:"canRollback"`
	Reason      string `json:"reason,omitempty"`

	// blocker is the sentinel behind an ineligible result.
	blocker error
}

// RollbackService undoes prior deployments by executing the inverse deletion
// pipeline over a deployment record's created objects.
type RollbackService interface {
	// CanRollback reports whether the deployment can be rolled back:
	// its record must be success or partial and not already rolled back.
	CanRollback(ctx context.Context, deploymentID uuid.UUID) (*RollbackEligibility, error)

	// Rollback starts the deletion pipeline in the background and returns
	// the rollback id immediately. There is no mid-pipeline cancellation;
	// once started, a rollback runs to completion or failure.
	Rollback(ctx context.Context, deploymentID uuid.UUID) (uuid.UUID, error)

	// Status returns the current rollback state, preferring the in-memory
	// tracker and falling back to the history store.
	Status(ctx context.Context, rollbackID uuid.UUID) (*models.RollbackRecord, error)

	// History returns all rollback attempts for a deployment, newest first.
	// Failed attempts leave the deployment eligible for another rollback, so
	// a deployment can accumulate several records.
	History(ctx context.Context, deploymentID uuid.UUID) ([]*models.RollbackRecord, error)
}

type rollbackService struct {
	client      platform.Client
	deployments repositories.DeploymentRepository
	rollbacks   repositories.RollbackRepository
	tracker     *RollbackTracker
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewRollbackService creates a new RollbackService.
func NewRollbackService(
	client platform.Client,
	deployments repositories.DeploymentRepository,
	rollbacks repositories.RollbackRepository,
	tracker *RollbackTracker,
	callTimeout time.Duration,
	logger *zap.Logger,
) RollbackService {
	return &rollbackService{
		client:      client,
		deployments: deployments,
		rollbacks:   rollbacks,
		tracker:     tracker,
		callTimeout: callTimeout,
		logger:      logger.Named("rollback"),
	}
}

var _ RollbackService = (*rollbackService)(nil)

func (s *rollbackService) CanRollback(ctx context.Context, deploymentID uuid.UUID) (*RollbackEligibility, error) {
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	if deployment == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.eligibility(deployment), nil
}

func (s *rollbackService) eligibility(deployment *models.DeploymentRecord) *RollbackEligibility {
	switch deployment.Status {
	case models.DeploymentStatusSuccess, models.DeploymentStatusPartial:
	default:
		return &RollbackEligibility{
			Reason:  fmt.Sprintf("deployment status is %s; only success or partial deployments can be rolled back", deployment.Status),
			blocker: apperrors.ErrNotRollbackable,
		}
	}
	if deployment.RollbackID != nil {
		return &RollbackEligibility{
			Reason:  fmt.Sprintf("deployment was already rolled back by %s", deployment.RollbackID),
			blocker: apperrors.ErrAlreadyRolledBack,
		}
	}
	if rollbackID, active := s.tracker.ActiveForDeployment(deployment.ID); active {
		return &RollbackEligibility{
			Reason:  fmt.Sprintf("rollback %s is already in progress", rollbackID),
			blocker: apperrors.ErrRollbackInFlight,
		}
	}
	return &RollbackEligibility{CanRollback: true}
}

func (s *rollbackService) Rollback(ctx context.Context, deploymentID uuid.UUID) (uuid.UUID, error) {
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get deployment: %w", err)
	}
	if deployment == nil {
		return uuid.Nil, apperrors.ErrNotFound
	}
	if eligibility := s.eligibility(deployment); !eligibility.CanRollback {
		return uuid.Nil, fmt.Errorf("%w: %s", eligibility.blocker, eligibility.Reason)
	}

	record := &models.RollbackRecord{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		Status:       models.RollbackStatusRunning,
		Counts:       make(map[models.ObjectKind]models.DeletionCounts),
		StartedAt:    time.Now(),
	}

	if err := s.rollbacks.Create(ctx, record); err != nil {
		return uuid.Nil, fmt.Errorf("create rollback record: %w", err)
	}
	s.tracker.Put(*record)

	s.logger.Info("Rollback started",
		zap.String("rollback_id", record.ID.String()),
		zap.String("deployment_id", deploymentID.String()))

	// The pipeline runs detached from the request context: there is no
	// mid-pipeline cancellation, only per-call timeouts.
	go s.execute(context.Background(), record, deployment)

	return record.ID, nil
}

func (s *rollbackService) Status(ctx context.Context, rollbackID uuid.UUID) (*models.RollbackRecord, error) {
	if record, ok := s.tracker.Get(rollbackID); ok {
		return &record, nil
	}
	record, err := s.rollbacks.GetByID(ctx, rollbackID)
	if err != nil {
		return nil, fmt.Errorf("get rollback: %w", err)
	}
	if record == nil {
		return nil, apperrors.ErrNotFound
	}
	return record, nil
}

func (s *rollbackService) History(ctx context.Context, deploymentID uuid.UUID) ([]*models.RollbackRecord, error) {
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	if deployment == nil {
		return nil, apperrors.ErrNotFound
	}
	records, err := s.rollbacks.GetByDeploymentID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get rollback history: %w", err)
	}
	return records, nil
}

// deletionStep is one stage of the inverse pipeline: the object kind plus the
// per-object delete call.
type deletionStep struct {
	kind    models.ObjectKind
	targets []string
	remove  func(ctx context.Context, target string) error
}

// execute runs the deletion pipeline best-effort: an individual failure is
// counted and the pipeline continues so cleanup is never left entirely
// undone. Objects that are already absent count as satisfied.
func (s *rollbackService) execute(ctx context.Context, record *models.RollbackRecord, deployment *models.DeploymentRecord) {
	created := deployment.CreatedObjects

	for _, step := range s.deletionPipeline(created) {
		counts := record.Counts[step.kind]
		for _, target := range step.targets {
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			err := step.remove(callCtx, target)
			cancel()

			switch {
			case err == nil:
				counts.Deleted++
			case platform.IsNotFound(err):
				counts.Skipped++
				s.logger.Debug("Rollback target already absent",
					zap.String("rollback_id", record.ID.String()),
					zap.String("kind", string(step.kind)),
					zap.String("target", target))
			default:
				counts.Failed++
				s.logger.Warn("Rollback deletion failed, continuing",
					zap.String("rollback_id", record.ID.String()),
					zap.String("kind", string(step.kind)),
					zap.String("target", target),
					zap.String("error", logging.SanitizeError(err)))
			}
		}
		record.Counts[step.kind] = counts
		s.tracker.Put(*record)
	}

	s.finalize(ctx, record, deployment)
}

func (s *rollbackService) finalize(ctx context.Context, record *models.RollbackRecord, deployment *models.DeploymentRecord) {
	totals := record.Totals()
	switch {
	case totals.Failed == 0:
		record.Status = models.RollbackStatusSuccess
	case totals.Deleted == 0:
		record.Status = models.RollbackStatusFailed
		record.Error = fmt.Sprintf("no deletions succeeded (%d failed)", totals.Failed)
	default:
		record.Status = models.RollbackStatusPartial
		record.Error = fmt.Sprintf("%d of %d deletions failed", totals.Failed, totals.Failed+totals.Deleted)
	}
	now := time.Now()
	record.CompletedAt = &now

	if err := s.rollbacks.Update(ctx, record); err != nil {
		s.logger.Error("Failed to persist rollback record",
			zap.String("rollback_id", record.ID.String()),
			zap.Error(err))
	}
	s.tracker.Put(*record)

	// A failed rollback deleted nothing, so the deployment stays
	// rollbackable for another attempt.
	if record.Status != models.RollbackStatusFailed {
		if err := s.deployments.MarkRolledBack(ctx, deployment.ID, record.ID); err != nil {
			s.logger.Error("Failed to mark deployment rolled back",
				zap.String("deployment_id", deployment.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Rollback completed",
		zap.String("rollback_id", record.ID.String()),
		zap.String("deployment_id", deployment.ID.String()),
		zap.String("status", string(record.Status)),
		zap.Int("deleted", totals.Deleted),
		zap.Int("skipped", totals.Skipped),
		zap.Int("failed", totals.Failed))
}

// deletionPipeline is the reverse of the deployment pipeline:
// relationships, custom entities, CDM entities removed from the solution,
// global choices, solution, publisher.
func (s *rollbackService) deletionPipeline(created models.CreatedObjects) []deletionStep {
	solution := created.SolutionUniqueName

	steps := []deletionStep{
		{
			kind:    models.ObjectKindRelationship,
			targets: created.RelationshipSchemaNames,
			remove:  s.client.DeleteRelationship,
		},
		{
			kind:    models.ObjectKindEntity,
			targets: created.EntityLogicalNames,
			remove:  s.client.DeleteEntity,
		},
		{
			kind:    models.ObjectKindSolutionComponent,
			targets: created.CDMEntityLogicalNames,
			remove: func(ctx context.Context, target string) error {
				return s.client.RemoveSolutionComponent(ctx, target, solution)
			},
		},
		{
			kind:    models.ObjectKindGlobalChoice,
			targets: created.GlobalChoiceNames,
			remove:  s.client.DeleteGlobalChoice,
		},
	}

	if created.SolutionID != "" {
		steps = append(steps, deletionStep{
			kind:    models.ObjectKindSolution,
			targets: []string{created.SolutionID},
			remove:  s.client.DeleteSolution,
		})
	}
	if created.PublisherID != "" {
		steps = append(steps, deletionStep{
			kind:    models.ObjectKindPublisher,
			targets: []string{created.PublisherID},
			remove:  s.client.DeletePublisher,
		})
	}

	return steps
}
