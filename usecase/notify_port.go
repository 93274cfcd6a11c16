package usecase

import (
	"context"

	"github.com/taskmarket/backend/domain"
)

// NotificationPublisher abstracts the push channel so use cases stay
// transport-agnostic. Publishing is fire-and-forget: the coordinator logs a
// failed publish and moves on, it never fails the operation that caused it.
type NotificationPublisher interface {
	PublishTaskCreated(ctx context.Context, task *domain.Task) error
	PublishTaskAnswered(ctx context.Context, task *domain.Task, ownerBalance int64) error
}
