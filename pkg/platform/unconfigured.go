package platform

import (
	"context"
	"errors"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

// ErrNotConfigured is returned by every call of the unconfigured client.
var ErrNotConfigured = errors.New("platform client not configured")

// Unconfigured returns a Client whose every call fails with
// ErrNotConfigured. The server wires it when no platform connection is
// configured so that validation-only endpoints keep working while deployment
// requests fail fast with a clear message.
func Unconfigured() Client {
	return unconfiguredClient{}
}

type unconfiguredClient struct{}

var _ Client = unconfiguredClient{}

func (unconfiguredClient) CreatePublisher(context.Context, models.PublisherSpec) (CreatedPublisher, error) {
	return CreatedPublisher{}, ErrNotConfigured
}

func (unconfiguredClient) CreateSolution(context.Context, models.SolutionSpec, string) (CreatedSolution, error) {
	return CreatedSolution{}, ErrNotConfigured
}

func (unconfiguredClient) CreateGlobalChoice(context.Context, models.GlobalChoiceSpec, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) CreateEntity(context.Context, models.EntitySpec, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) AddSolutionComponent(context.Context, string, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) CreateRelationship(context.Context, models.RelationshipRecord, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) PublishCustomizations(context.Context, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) DeleteRelationship(context.Context, string) error { return ErrNotConfigured }

func (unconfiguredClient) DeleteEntity(context.Context, string) error { return ErrNotConfigured }

func (unconfiguredClient) RemoveSolutionComponent(context.Context, string, string) error {
	return ErrNotConfigured
}

func (unconfiguredClient) DeleteGlobalChoice(context.Context, string) error { return ErrNotConfigured }

func (unconfiguredClient) DeleteSolution(context.Context, string) error { return ErrNotConfigured }

func (unconfiguredClient) DeletePublisher(context.Context, string) error { return ErrNotConfigured }
