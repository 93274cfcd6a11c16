package repository

import (
	"context"

	"github.com/taskmarket/backend/domain"
)

// SubmitResult carries the durable effects of an accepted response.
type SubmitResult struct {
	Response         *domain.TaskResponse
	ResponderBalance int64
	OwnerBalance     int64
}

type ResponseRepository interface {
	// Submit reserves one answer slot, transfers the task's cost from owner
	// to responder, and persists the response aggregate, all inside one
	// transaction. It fails with domain.ErrTaskExhausted when no slot
	// remains at decision time; two concurrent submissions to a task with a
	// single slot left yield exactly one success.
	Submit(ctx context.Context, task *domain.Task, response *domain.TaskResponse) (*SubmitResult, error)
	// ListByTask returns response aggregates for a task, newest first.
	ListByTask(ctx context.Context, taskID string) ([]domain.TaskResponse, error)
}
