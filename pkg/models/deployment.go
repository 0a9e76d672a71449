package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Deployment Spec
// ============================================================================

// PublisherSpec describes the publisher that owns the deployed schema.
// Prefix is prepended to all custom schema object names.
type PublisherSpec struct {
	UniqueName   string `json:"uniqueName" validate:"required"`
	FriendlyName string `json:"friendlyName"`
	Prefix       string `json:"prefix" validate:"required,alphanum,min=2,max=8"`
}

// SolutionSpec describes the solution that groups the deployed objects.
type SolutionSpec struct {
	UniqueName   string `json:"uniqueName" validate:"required"`
	FriendlyName string `json:"friendlyName"`
}

// GlobalChoiceOption is one option of a global choice set.
type GlobalChoiceOption struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// GlobalChoiceSpec describes a platform-level reusable option set.
type GlobalChoiceSpec struct {
	Name    string               `json:"name" validate:"required"`
	Options []GlobalChoiceOption `json:"options" validate:"min=1"`
}

// AttributeSpec describes one attribute of an entity to create.
type AttributeSpec struct {
	SchemaName   string `json:"schemaName"`
	DisplayName  string `json:"displayName"`
	Type         string `json:"type"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
}

// EntitySpec describes an entity to deploy. CDM entities already exist on the
// platform and are only added to the solution; custom entities are created.
type EntitySpec struct {
	LogicalName string          `json:"logicalName" validate:"required"`
	DisplayName string          `json:"displayName"`
	IsCDM       bool            `json:"isCDM"`
	Attributes  []AttributeSpec `json:"attributes"`
}

// DeploymentSpec is the full, resolved input to a deployment run.
type DeploymentSpec struct {
	Publisher     PublisherSpec        `json:"publisher" validate:"required"`
	Solution      SolutionSpec         `json:"solution" validate:"required"`
	GlobalChoices []GlobalChoiceSpec   `json:"globalChoices" validate:"dive"`
	Entities      []EntitySpec         `json:"entities" validate:"min=1,dive"`
	Relationships []RelationshipRecord `json:"relationships" validate:"dive"`
}

// ============================================================================
// Deployment Record
// ============================================================================

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusPending DeploymentStatus = "pending"
	DeploymentStatusSuccess DeploymentStatus = "success"
	DeploymentStatusPartial DeploymentStatus = "partial"
	DeploymentStatusFailed  DeploymentStatus = "failed"
)

// IsTerminal returns true if the deployment has finished (successfully or not).
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentStatusSuccess || s == DeploymentStatusPartial || s == DeploymentStatusFailed
}

// StepID identifies one stage of the deployment pipeline.
type StepID string

const (
	StepValidate      StepID = "validate"
	StepPublisher     StepID = "publisher"
	StepSolution      StepID = "solution"
	StepGlobalChoices StepID = "globalChoices"
	StepEntities      StepID = "entities"
	StepRelationships StepID = "relationships"
	StepFinalize      StepID = "finalize"
)

// PipelineSteps lists the deployment steps in execution order.
var PipelineSteps = []StepID{
	StepValidate,
	StepPublisher,
	StepSolution,
	StepGlobalChoices,
	StepEntities,
	StepRelationships,
	StepFinalize,
}

// StepStatus is the state of a single deployment step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// DeploymentStep records the outcome of one pipeline stage.
type DeploymentStep struct {
	ID     StepID     `json:"id"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// CreatedObjects lists every durable object a deployment created, keyed the
// way the platform identifies them. It is the sole input to rollback, so it
// must be appended to as soon as each object exists, not at pipeline end.
type CreatedObjects struct {
	PublisherID         string   `json:"publisherId,omitempty"`
	PublisherUniqueName string   `json:"publisherUniqueName,omitempty"`
	SolutionID          string   `json:"solutionId,omitempty"`
	SolutionUniqueName  string   `json:"solutionUniqueName,omitempty"`
	GlobalChoiceNames   []string `json:"globalChoiceNames,omitempty"`
	// EntityLogicalNames are custom entities created by the deployment.
	EntityLogicalNames []string `json:"entityLogicalNames,omitempty"`
	// CDMEntityLogicalNames are standard entities added to the solution.
	CDMEntityLogicalNames   []string `json:"cdmEntityLogicalNames,omitempty"`
	RelationshipSchemaNames []string `json:"relationshipSchemaNames,omitempty"`
}

// IsEmpty reports whether the deployment created any durable object.
func (c CreatedObjects) IsEmpty() bool {
	return c.PublisherID == "" && c.SolutionID == "" &&
		len(c.GlobalChoiceNames) == 0 && len(c.EntityLogicalNames) == 0 &&
		len(c.CDMEntityLogicalNames) == 0 && len(c.RelationshipSchemaNames) == 0
}

// DeploymentRecord is the persistent history of one deployment run. It is
// created at deployment start and immutable once its status is terminal.
type DeploymentRecord struct {
	ID             uuid.UUID        `json:"deploymentId"`
	Status         DeploymentStatus `json:"status"`
	Steps          []DeploymentStep `json:"steps"`
	CreatedObjects CreatedObjects   `json:"createdObjects"`
	Error          string           `json:"error,omitempty"`
	// RollbackID is set once a rollback has consumed this record.
	RollbackID  *uuid.UUID `json:"rollbackId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// StepByID returns a pointer to the step with the given id, or nil.
func (r *DeploymentRecord) StepByID(id StepID) *DeploymentStep {
	for i := range r.Steps {
		if r.Steps[i].ID == id {
			return &r.Steps[i]
		}
	}
	return nil
}

// ============================================================================
// Progress Events
// ============================================================================

// ProgressEventType is the type of a streamed pipeline event.
type ProgressEventType string

const (
	ProgressEventProgress ProgressEventType = "progress"
	ProgressEventLog      ProgressEventType = "log"
	ProgressEventFinal    ProgressEventType = "final"
)

// ProgressEvent is one event of a deployment or rollback progress stream.
// Progress and log events strictly precede the single final event, which
// carries the completed record.
type ProgressEvent struct {
	Type       ProgressEventType `json:"type"`
	StepID     StepID            `json:"stepId,omitempty"`
	Label      string            `json:"label,omitempty"`
	Percentage int               `json:"percentage"`
	Status     StepStatus        `json:"status,omitempty"`
	Message    string            `json:"message,omitempty"`
	Record     *DeploymentRecord `json:"record,omitempty"`
}
