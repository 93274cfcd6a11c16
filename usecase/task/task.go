package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
	"github.com/taskmarket/backend/usecase"
)

// UseCase orchestrates the task lifecycle: creation, response acceptance,
// and deletion, each followed by a change-log append and a best-effort
// notification. Balance and slot mutations happen only inside these
// operations.
type UseCase struct {
	tasks     repository.TaskRepository
	responses repository.ResponseRepository
	changeLog repository.ChangeLogRepository
	cursor    repository.SyncCursorCache
	notify    usecase.NotificationPublisher
	logger    *zap.Logger
}

func New(
	tasks repository.TaskRepository,
	responses repository.ResponseRepository,
	changeLog repository.ChangeLogRepository,
	cursor repository.SyncCursorCache,
	notify usecase.NotificationPublisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:     tasks,
		responses: responses,
		changeLog: changeLog,
		cursor:    cursor,
		notify:    notify,
		logger:    logger,
	}
}

// RespondResult is what a successful response acceptance reports back.
type RespondResult struct {
	Response *domain.TaskResponse
	Balance  int64
}

// Create persists the task aggregate, then records the transition and
// announces the task. A failed create aborts the whole operation; a failed
// append or announcement after a committed create is logged and tolerated,
// since the primary read paths re-fetch by id and sync catches up on the
// next entry.
func (uc *UseCase) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	uc.recordChange(ctx, created.ID, domain.ChangeCreated)

	if uc.notify != nil {
		if err := uc.notify.PublishTaskCreated(ctx, created); err != nil {
			uc.logger.Warn("task announcement dropped", zap.String("task_id", created.ID), zap.Error(err))
		}
	}
	return created, nil
}

// Respond accepts one answer session for the task. The fast-path check
// rejects obviously exhausted tasks without touching the counter; the
// authoritative decision is the conditional decrement inside Submit, which
// also moves the funds and persists the response in the same transaction.
func (uc *UseCase) Respond(ctx context.Context, taskID, userID string, answers []domain.TaskActionResponse) (*RespondResult, error) {
	if taskID == "" || userID == "" {
		return nil, domain.ErrInvalidPayload
	}

	task, err := uc.tasks.FindForResponse(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Exhausted() {
		return nil, domain.ErrTaskExhausted
	}

	response := &domain.TaskResponse{
		TaskID:  taskID,
		UserID:  userID,
		Answers: answers,
	}

	result, err := uc.responses.Submit(ctx, task, response)
	if err != nil {
		return nil, err
	}

	uc.recordChange(ctx, taskID, domain.ChangeUpdated)

	if uc.notify != nil {
		updated := *task
		if updated.AnswersLeft > 0 {
			updated.AnswersLeft--
		}
		if err := uc.notify.PublishTaskAnswered(ctx, &updated, result.OwnerBalance); err != nil {
			uc.logger.Warn("owner notification dropped", zap.String("task_id", taskID), zap.Error(err))
		}
	}

	return &RespondResult{
		Response: result.Response,
		Balance:  result.ResponderBalance,
	}, nil
}

// Delete removes the task and everything it owns. Missing tasks report
// success without logging a phantom transition, so the operation is
// idempotent from the caller's perspective.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidPayload
	}

	removed, err := uc.tasks.Delete(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		uc.recordChange(ctx, id, domain.ChangeDeleted)
	}
	return nil
}

// Fetch returns full task aggregates for the requested ids.
func (uc *UseCase) Fetch(ctx context.Context, ids []string) ([]domain.Task, error) {
	return uc.tasks.FindByIDs(ctx, ids)
}

// Responses returns the response aggregates of a task, newest first.
func (uc *UseCase) Responses(ctx context.Context, taskID string) ([]domain.TaskResponse, error) {
	if taskID == "" {
		return nil, domain.ErrInvalidPayload
	}
	return uc.responses.ListByTask(ctx, taskID)
}

// recordChange appends to the change log after the causing mutation has
// committed, so an entry can never be observed before its effects. An
// append failure is an anomaly, not a rollback: sync stays stale until the
// next successful entry.
//
// The cursor cache is advanced before the append so a cached value is
// always an upper bound on the log. A cache that runs ahead only costs
// readers one extra change-log query; a cache that ran behind could hide a
// committed entry, which is why a failed advance clears the key instead of
// leaving the old value in place.
func (uc *UseCase) recordChange(ctx context.Context, taskID string, status domain.ChangeStatus) {
	entry := &domain.ChangeLogEntry{
		TaskID:    taskID,
		Status:    status,
		CreatedAt: time.Now().UnixMilli(),
	}

	if uc.cursor != nil {
		if err := uc.cursor.Advance(ctx, entry.CreatedAt); err != nil {
			uc.logger.Warn("sync cursor cache advance failed", zap.Error(err))
			if err := uc.cursor.Invalidate(ctx); err != nil {
				uc.logger.Error("sync cursor cache invalidation failed", zap.Error(err))
			}
		}
	}

	if _, err := uc.changeLog.Append(ctx, entry); err != nil {
		uc.logger.Error("change log append failed",
			zap.String("task_id", taskID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
