package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Rollback
// ============================================================================

// RollbackStatus is the lifecycle state of a rollback run. Running is only
// ever observed through the status tracker; persisted records are terminal.
type RollbackStatus string

const (
	RollbackStatusRunning RollbackStatus = "running"
	RollbackStatusSuccess RollbackStatus = "success"
	RollbackStatusPartial RollbackStatus = "partial"
	RollbackStatusFailed  RollbackStatus = "failed"
)

// IsTerminal returns true if the rollback has finished.
func (s RollbackStatus) IsTerminal() bool {
	return s == RollbackStatusSuccess || s == RollbackStatusPartial || s == RollbackStatusFailed
}

// ObjectKind identifies a class of platform object handled by rollback.
type ObjectKind string

const (
	ObjectKindRelationship      ObjectKind = "relationships"
	ObjectKindEntity            ObjectKind = "entities"
	ObjectKindSolutionComponent ObjectKind = "solutionComponents"
	ObjectKindGlobalChoice      ObjectKind = "globalChoices"
	ObjectKindSolution          ObjectKind = "solutions"
	ObjectKindPublisher         ObjectKind = "publishers"
)

// DeletionCounts tallies rollback outcomes for one object kind. Skipped
// covers objects that were already absent, which rollback treats as
// satisfied rather than failed.
type DeletionCounts struct {
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RollbackRecord is the persistent history of one rollback run. Created at
// rollback start and finalized at completion.
type RollbackRecord struct {
	ID           uuid.UUID                     `json:"rollbackId"`
	DeploymentID uuid.UUID                     `json:"deploymentId"`
	Status       RollbackStatus                `json:"status"`
	Counts       map[ObjectKind]DeletionCounts `json:"counts"`
	Error        string                        `json:"error,omitempty"`
	StartedAt    time.Time                     `json:"startedAt"`
	CompletedAt  *time.Time                    `json:"completedAt,omitempty"`
}

// Totals sums deletion counts across all object kinds.
func (r *RollbackRecord) Totals() DeletionCounts {
	var total DeletionCounts
	for _, c := range r.Counts {
		total.Deleted += c.Deleted
		total.Skipped += c.Skipped
		total.Failed += c.Failed
	}
	return total
}
