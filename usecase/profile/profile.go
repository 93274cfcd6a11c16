package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

// UpdateNotifyURL changes where the user's push payloads are delivered.
// Balance is never writable through this path.
func (uc *UseCase) UpdateNotifyURL(ctx context.Context, userID, notifyURL string) (*domain.User, error) {
	user := &domain.User{
		ID:        userID,
		NotifyURL: notifyURL,
	}
	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
