package repository

import (
	"context"

	"github.com/taskmarket/backend/domain"
)

type TaskRepository interface {
	// Create persists a task together with its location and actions as a
	// single unit.
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// FindByIDs returns full task aggregates (location, actions, responses)
	// for the requested identifiers. An empty request yields an empty
	// result, not an error.
	FindByIDs(ctx context.Context, ids []string) ([]domain.Task, error)
	// FindForResponse returns the task with its responses ordered
	// newest-first, the consistent view the coordinator needs for the
	// acceptance decision.
	FindForResponse(ctx context.Context, id string) (*domain.Task, error)
	// Delete removes the task and everything it owns. It reports whether a
	// row was actually removed so callers can stay idempotent without
	// logging phantom deletions.
	Delete(ctx context.Context, id string) (bool, error)
}
