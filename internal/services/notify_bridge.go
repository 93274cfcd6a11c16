package services

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/internal/infrastructure/notify"
	"github.com/taskmarket/backend/repository"
)

// NotifyBridge resolves notification targets and hands payloads to the
// dispatcher queue. It implements usecase.NotificationPublisher.
type NotifyBridge struct {
	dispatcher *NotifyDispatcher
	users      repository.UserRepository
	logger     *zap.Logger
}

func NewNotifyBridge(dispatcher *NotifyDispatcher, users repository.UserRepository, logger *zap.Logger) *NotifyBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifyBridge{
		dispatcher: dispatcher,
		users:      users,
		logger:     logger,
	}
}

type taskCreatedPayload struct {
	Event       string `json:"event"`
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	Cost        int64  `json:"cost"`
	AnswersLeft int    `json:"answers_left"`
}

type taskAnsweredPayload struct {
	Event       string `json:"event"`
	TaskID      string `json:"task_id"`
	AnswersLeft int    `json:"answers_left"`
	Balance     int64  `json:"balance"`
}

// PublishTaskCreated fans a new-task announcement out to every user with a
// notification address.
func (b *NotifyBridge) PublishTaskCreated(ctx context.Context, task *domain.Task) error {
	if b.dispatcher == nil || task == nil {
		return domain.ErrInvalidPayload
	}

	targets, err := b.users.ListNotifyTargets(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(taskCreatedPayload{
		Event:       notify.EventTaskCreated,
		TaskID:      task.ID,
		Name:        task.Name,
		Cost:        task.Cost,
		AnswersLeft: task.AnswersLeft,
	})
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, target := range targets {
		item := notify.Item{
			TaskID:  task.ID,
			Event:   notify.EventTaskCreated,
			Target:  target.NotifyURL,
			Payload: payload,
		}
		if err := b.dispatcher.Enqueue(item); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// PublishTaskAnswered tells the task owner that a slot was consumed and what
// their balance is now.
func (b *NotifyBridge) PublishTaskAnswered(ctx context.Context, task *domain.Task, ownerBalance int64) error {
	if b.dispatcher == nil || task == nil {
		return domain.ErrInvalidPayload
	}

	owner, err := b.users.GetByID(ctx, task.OwnerID)
	if err != nil {
		return err
	}
	if !owner.CanNotify() {
		b.logger.Debug("task owner has no notification address", zap.String("owner_id", task.OwnerID))
		return nil
	}

	payload, err := json.Marshal(taskAnsweredPayload{
		Event:       notify.EventTaskAnswered,
		TaskID:      task.ID,
		AnswersLeft: task.AnswersLeft,
		Balance:     ownerBalance,
	})
	if err != nil {
		return err
	}

	return b.dispatcher.Enqueue(notify.Item{
		TaskID:   task.ID,
		Event:    notify.EventTaskAnswered,
		Target:   owner.NotifyURL,
		Payload:  payload,
		Priority: 2,
	})
}
