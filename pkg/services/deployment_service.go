package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/apperrors"
	"github.com/erdflow/erdflow-engine/pkg/models"
	"github.com/erdflow/erdflow-engine/pkg/platform"
	"github.com/erdflow/erdflow-engine/pkg/repositories"
)

// stepLabels are the human-readable names of the pipeline steps.
var stepLabels = map[models.StepID]string{
	models.StepValidate:      "Validate schema",
	models.StepPublisher:     "Create publisher",
	models.StepSolution:      "Create solution",
	models.StepGlobalChoices: "Create global choices",
	models.StepEntities:      "Create entities",
	models.StepRelationships: "Create relationships",
	models.StepFinalize:      "Publish customizations",
}

// DeploymentService executes the schema deployment pipeline against the
// remote platform.
type DeploymentService interface {
	// Deploy runs the ordered creation pipeline. Progress and log events are
	// sent to events (may be nil) and strictly precede the single final
	// event, which carries the completed record. The returned record is
	// always non-nil once the run was registered; err reports the failing
	// step, if any.
	//
	// Steps never run concurrently and step N+1 never starts unless step N
	// succeeded. Failed steps are not retried: these are mutating
	// administrative calls, and a blind retry could create duplicate objects.
	Deploy(ctx context.Context, spec *models.DeploymentSpec, events chan<- models.ProgressEvent) (*models.DeploymentRecord, error)

	// Get returns a deployment record by id.
	Get(ctx context.Context, deploymentID uuid.UUID) (*models.DeploymentRecord, error)

	// List returns the most recent deployment records, newest first.
	List(ctx context.Context, limit int) ([]*models.DeploymentRecord, error)
}

type deploymentService struct {
	client      platform.Client
	validator   ValidatorService
	deployments repositories.DeploymentRepository
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewDeploymentService creates a new DeploymentService.
func NewDeploymentService(
	client platform.Client,
	validator ValidatorService,
	deployments repositories.DeploymentRepository,
	callTimeout time.Duration,
	logger *zap.Logger,
) DeploymentService {
	return &deploymentService{
		client:      client,
		validator:   validator,
		deployments: deployments,
		callTimeout: callTimeout,
		logger:      logger.Named("deployment"),
	}
}

var _ DeploymentService = (*deploymentService)(nil)

func (s *deploymentService) Get(ctx context.Context, deploymentID uuid.UUID) (*models.DeploymentRecord, error) {
	record, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	if record == nil {
		return nil, apperrors.ErrNotFound
	}
	return record, nil
}

func (s *deploymentService) List(ctx context.Context, limit int) ([]*models.DeploymentRecord, error) {
	records, err := s.deployments.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return records, nil
}

// pipelineStep is one ordered stage of the deployment. run returns a
// human-readable completion detail.
type pipelineStep struct {
	id  models.StepID
	run func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error)
}

func (s *deploymentService) Deploy(ctx context.Context, spec *models.DeploymentSpec, events chan<- models.ProgressEvent) (*models.DeploymentRecord, error) {
	// There is no mid-pipeline cancellation: a caller disconnect must not
	// interrupt mutating platform calls or the terminal persist. Only the
	// per-call timeout bounds individual steps.
	ctx = context.WithoutCancel(ctx)

	record := newDeploymentRecord()

	emit := func(e models.ProgressEvent) {
		if events != nil {
			events <- e
		}
	}

	if err := s.deployments.Create(ctx, record); err != nil {
		s.logger.Error("Failed to persist deployment record", zap.Error(err))
		// The stream contract still holds: a subscriber always gets exactly
		// one final event, even when the run never got registered.
		record.Status = models.DeploymentStatusFailed
		record.Error = fmt.Sprintf("create deployment record: %v", err)
		now := time.Now()
		record.CompletedAt = &now
		for i := range record.Steps {
			record.Steps[i].Status = models.StepStatusSkipped
		}
		emit(models.ProgressEvent{
			Type:   models.ProgressEventFinal,
			Record: record,
		})
		return nil, fmt.Errorf("create deployment record: %w", err)
	}

	s.logger.Info("Deployment started",
		zap.String("deployment_id", record.ID.String()),
		zap.Int("entities", len(spec.Entities)),
		zap.Int("relationships", len(spec.Relationships)))

	steps := s.pipeline(spec)
	total := len(steps)

	for i, step := range steps {
		label := stepLabels[step.id]
		recordStep := record.StepByID(step.id)
		recordStep.Status = models.StepStatusRunning

		emit(models.ProgressEvent{
			Type:       models.ProgressEventProgress,
			StepID:     step.id,
			Label:      label,
			Percentage: i * 100 / total,
			Status:     models.StepStatusRunning,
		})

		detail, err := step.run(ctx, record, emit)
		if err != nil {
			recordStep.Status = models.StepStatusFailed
			recordStep.Detail = err.Error()
			s.failRemainingSteps(record, i+1, steps)
			s.finalizeFailure(ctx, record, step.id, err)

			emit(models.ProgressEvent{
				Type:       models.ProgressEventLog,
				StepID:     step.id,
				Label:      label,
				Percentage: i * 100 / total,
				Status:     models.StepStatusFailed,
				Message:    fmt.Sprintf("step %s failed: %v", step.id, err),
			})
			emit(models.ProgressEvent{
				Type:       models.ProgressEventFinal,
				Percentage: i * 100 / total,
				Record:     record,
			})
			return record, fmt.Errorf("step %s: %w", step.id, err)
		}

		recordStep.Status = models.StepStatusCompleted
		recordStep.Detail = detail

		// Persist created objects before the next step starts so a later
		// failure still leaves a rollback-capable record.
		if err := s.deployments.Update(ctx, record); err != nil {
			s.logger.Error("Failed to persist deployment progress",
				zap.String("deployment_id", record.ID.String()),
				zap.Error(err))
		}

		emit(models.ProgressEvent{
			Type:       models.ProgressEventProgress,
			StepID:     step.id,
			Label:      label,
			Percentage: (i + 1) * 100 / total,
			Status:     models.StepStatusCompleted,
			Message:    detail,
		})
	}

	record.Status = models.DeploymentStatusSuccess
	now := time.Now()
	record.CompletedAt = &now
	if err := s.deployments.Update(ctx, record); err != nil {
		s.logger.Error("Failed to persist completed deployment",
			zap.String("deployment_id", record.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("Deployment completed",
		zap.String("deployment_id", record.ID.String()))

	emit(models.ProgressEvent{
		Type:       models.ProgressEventFinal,
		Percentage: 100,
		Record:     record,
	})
	return record, nil
}

func newDeploymentRecord() *models.DeploymentRecord {
	steps := make([]models.DeploymentStep, 0, len(models.PipelineSteps))
	for _, id := range models.PipelineSteps {
		steps = append(steps, models.DeploymentStep{
			ID:     id,
			Label:  stepLabels[id],
			Status: models.StepStatusPending,
		})
	}
	return &models.DeploymentRecord{
		ID:        uuid.New(),
		Status:    models.DeploymentStatusPending,
		Steps:     steps,
		CreatedAt: time.Now(),
	}
}

// failRemainingSteps marks steps after the failing one as skipped.
func (s *deploymentService) failRemainingSteps(record *models.DeploymentRecord, from int, steps []pipelineStep) {
	for _, step := range steps[from:] {
		if rs := record.StepByID(step.id); rs != nil {
			rs.Status = models.StepStatusSkipped
		}
	}
}

// finalizeFailure moves the record to its terminal failure state: failed if
// nothing durable was created, partial otherwise.
func (s *deploymentService) finalizeFailure(ctx context.Context, record *models.DeploymentRecord, stepID models.StepID, stepErr error) {
	if record.CreatedObjects.IsEmpty() {
		record.Status = models.DeploymentStatusFailed
	} else {
		record.Status = models.DeploymentStatusPartial
	}
	record.Error = fmt.Sprintf("step %s: %v", stepID, stepErr)
	now := time.Now()
	record.CompletedAt = &now

	if err := s.deployments.Update(ctx, record); err != nil {
		s.logger.Error("Failed to persist failed deployment",
			zap.String("deployment_id", record.ID.String()),
			zap.Error(err))
	}

	s.logger.Error("Deployment failed",
		zap.String("deployment_id", record.ID.String()),
		zap.String("step", string(stepID)),
		zap.String("status", string(record.Status)),
		zap.Error(stepErr))
}

// call bounds a single platform call with the configured timeout. A timeout
// is treated identically to any other step failure.
func (s *deploymentService) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func (s *deploymentService) pipeline(spec *models.DeploymentSpec) []pipelineStep {
	return []pipelineStep{
		{id: models.StepValidate, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			for _, rel := range spec.Relationships {
				if !models.IsValidCascadeBehavior(rel.CascadeDelete) {
					return "", fmt.Errorf("%w: relationship %s has unknown cascade behavior %q",
						apperrors.ErrConflict, rel.SchemaName, rel.CascadeDelete)
				}
			}
			result := s.validator.Validate(spec.Relationships, nil)
			if !result.IsValid {
				return "", fmt.Errorf("%w: %s", apperrors.ErrConflict, result.Errors[0].Message())
			}
			return fmt.Sprintf("%d relationships validated, %d warnings",
				result.Summary.TotalRelationships, result.Summary.WarningCount), nil
		}},
		{id: models.StepPublisher, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			var created platform.CreatedPublisher
			err := s.call(ctx, func(ctx context.Context) error {
				var err error
				created, err = s.client.CreatePublisher(ctx, spec.Publisher)
				return err
			})
			if err != nil {
				return "", fmt.Errorf("create publisher: %w", err)
			}
			record.CreatedObjects.PublisherID = created.ID
			record.CreatedObjects.PublisherUniqueName = created.UniqueName
			return fmt.Sprintf("publisher %s", created.UniqueName), nil
		}},
		{id: models.StepSolution, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			var created platform.CreatedSolution
			err := s.call(ctx, func(ctx context.Context) error {
				var err error
				created, err = s.client.CreateSolution(ctx, spec.Solution, record.CreatedObjects.PublisherID)
				return err
			})
			if err != nil {
				return "", fmt.Errorf("create solution: %w", err)
			}
			record.CreatedObjects.SolutionID = created.ID
			record.CreatedObjects.SolutionUniqueName = created.UniqueName
			return fmt.Sprintf("solution %s", created.UniqueName), nil
		}},
		{id: models.StepGlobalChoices, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			solution := record.CreatedObjects.SolutionUniqueName
			for _, choice := range spec.GlobalChoices {
				err := s.call(ctx, func(ctx context.Context) error {
					return s.client.CreateGlobalChoice(ctx, choice, solution)
				})
				if err != nil {
					return "", fmt.Errorf("create global choice %s: %w", choice.Name, err)
				}
				record.CreatedObjects.GlobalChoiceNames = append(record.CreatedObjects.GlobalChoiceNames, choice.Name)
				emit(models.ProgressEvent{
					Type:    models.ProgressEventLog,
					StepID:  models.StepGlobalChoices,
					Message: fmt.Sprintf("created global choice %s", choice.Name),
				})
			}
			return fmt.Sprintf("%d global choices", len(spec.GlobalChoices)), nil
		}},
		{id: models.StepEntities, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			solution := record.CreatedObjects.SolutionUniqueName
			for _, entity := range spec.Entities {
				if entity.IsCDM {
					err := s.call(ctx, func(ctx context.Context) error {
						return s.client.AddSolutionComponent(ctx, entity.LogicalName, solution)
					})
					if err != nil {
						return "", fmt.Errorf("add entity %s to solution: %w", entity.LogicalName, err)
					}
					record.CreatedObjects.CDMEntityLogicalNames = append(record.CreatedObjects.CDMEntityLogicalNames, entity.LogicalName)
					emit(models.ProgressEvent{
						Type:    models.ProgressEventLog,
						StepID:  models.StepEntities,
						Message: fmt.Sprintf("added standard entity %s to solution", entity.LogicalName),
					})
					continue
				}

				err := s.call(ctx, func(ctx context.Context) error {
					return s.client.CreateEntity(ctx, entity, solution)
				})
				if err != nil {
					return "", fmt.Errorf("create entity %s: %w", entity.LogicalName, err)
				}
				record.CreatedObjects.EntityLogicalNames = append(record.CreatedObjects.EntityLogicalNames, entity.LogicalName)
				emit(models.ProgressEvent{
					Type:    models.ProgressEventLog,
					StepID:  models.StepEntities,
					Message: fmt.Sprintf("created entity %s", entity.LogicalName),
				})
			}
			return fmt.Sprintf("%d entities", len(spec.Entities)), nil
		}},
		{id: models.StepRelationships, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			solution := record.CreatedObjects.SolutionUniqueName
			for _, rel := range spec.Relationships {
				err := s.call(ctx, func(ctx context.Context) error {
					return s.client.CreateRelationship(ctx, rel, solution)
				})
				if err != nil {
					return "", fmt.Errorf("create relationship %s: %w", rel.SchemaName, err)
				}
				record.CreatedObjects.RelationshipSchemaNames = append(record.CreatedObjects.RelationshipSchemaNames, rel.SchemaName)
				emit(models.ProgressEvent{
					Type:    models.ProgressEventLog,
					StepID:  models.StepRelationships,
					Message: fmt.Sprintf("created relationship %s", rel.SchemaName),
				})
			}
			return fmt.Sprintf("%d relationships", len(spec.Relationships)), nil
		}},
		{id: models.StepFinalize, run: func(ctx context.Context, record *models.DeploymentRecord, emit func(models.ProgressEvent)) (string, error) {
			err := s.call(ctx, func(ctx context.Context) error {
				return s.client.PublishCustomizations(ctx, record.CreatedObjects.SolutionUniqueName)
			})
			if err != nil {
				return "", fmt.Errorf("publish customizations: %w", err)
			}
			return "customizations published", nil
		}},
	}
}
