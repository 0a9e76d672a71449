// Package platform defines the contract between the deployment engine and
// the remote data platform's administration API. The engine issues ordered
// create/delete intents through the Client interface and consumes one
// success/failure result per call; the transport and wire format are supplied
// by the embedding application.
package platform

import (
	"context"
	"errors"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

// ErrNotFound is returned by delete operations when the target object does
// not exist. Rollback treats it as already-satisfied, not as a failure.
var ErrNotFound = errors.New("platform object not found")

// IsNotFound reports whether err indicates an absent platform object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CreatedPublisher identifies a publisher on the platform.
type CreatedPublisher struct {
	ID         string
	UniqueName string
}

// CreatedSolution identifies a solution on the platform.
type CreatedSolution struct {
	ID         string
	UniqueName string
}

// Client is the remote platform's administration API as used by the
// deployment and rollback pipelines. Create calls are create-or-reuse: if the
// object already exists, implementations return its identifiers without error.
// All calls block until the platform responds; callers bound them with a
// context deadline.
type Client interface {
	CreatePublisher(ctx context.Context, spec models.PublisherSpec) (CreatedPublisher, error)
	CreateSolution(ctx context.Context, spec models.SolutionSpec, publisherID string) (CreatedSolution, error)
	CreateGlobalChoice(ctx context.Context, spec models.GlobalChoiceSpec, solution string) error
	CreateEntity(ctx context.Context, spec models.EntitySpec, solution string) error
	// AddSolutionComponent adds an existing (CDM) entity to a solution.
	AddSolutionComponent(ctx context.Context, entityLogicalName, solution string) error
	CreateRelationship(ctx context.Context, record models.RelationshipRecord, solution string) error
	// PublishCustomizations makes deployed schema changes visible to consumers.
	PublishCustomizations(ctx context.Context, solution string) error

	DeleteRelationship(ctx context.Context, schemaName string) error
	DeleteEntity(ctx context.Context, logicalName string) error
	// RemoveSolutionComponent detaches a CDM entity from a solution without
	// deleting the entity itself.
	RemoveSolutionComponent(ctx context.Context, entityLogicalName, solution string) error
	DeleteGlobalChoice(ctx context.Context, name string) error
	DeleteSolution(ctx context.Context, solutionID string) error
	DeletePublisher(ctx context.Context, publisherID string) error
}
