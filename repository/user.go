package repository

import (
	"context"

	"github.com/taskmarket/backend/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
	// ListNotifyTargets returns all users with a notification address set.
	ListNotifyTargets(ctx context.Context) ([]domain.User, error)
}
