package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository returns a Postgres-backed implementation of ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) repository.ResponseRepository {
	return &responseRepository{pool: pool}
}

// Submit runs the reservation, the balance transfer, and the response insert
// as one transaction: either all three commit or none do. The slot
// reservation is a conditional decrement on the task row, so concurrent
// submissions serialize on that row and the counter can never go negative.
func (r *responseRepository) Submit(ctx context.Context, task *domain.Task, response *domain.TaskResponse) (*repository.SubmitResult, error) {
	if task == nil || response == nil {
		return nil, domain.ErrInvalidPayload
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Quota gate. The predicate answers_left > 0 is the whole check: with
	// one slot left, exactly one of two racing transactions matches it and
	// the other sees zero rows.
	const reserve = `
	UPDATE tasks
	SET answers_left = answers_left - 1,
		updated_at = NOW()
	WHERE id = $1 AND answers_left > 0
	RETURNING answers_left
	`
	var left int
	if err := tx.QueryRow(ctx, reserve, task.ID).Scan(&left); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyReserveMiss(ctx, tx, task.ID)
		}
		return nil, err
	}

	ownerBalance, responderBalance, err := applyTransfer(ctx, tx, task.OwnerID, response.UserID, task.Cost)
	if err != nil {
		return nil, err
	}

	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	response.TaskID = task.ID

	const insertResponse = `
	INSERT INTO task_responses (id, task_id, user_id)
	VALUES ($1, $2, $3)
	RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insertResponse,
		response.ID, response.TaskID, response.UserID,
	).Scan(&response.CreatedAt); err != nil {
		return nil, err
	}

	const insertAnswer = `
	INSERT INTO task_action_responses (id, response_id, action_id, user_id, value)
	VALUES ($1, $2, $3, $4, $5)
	`
	for i := range response.Answers {
		answer := &response.Answers[i]
		if answer.ID == "" {
			answer.ID = uuid.NewString()
		}
		answer.ResponseID = response.ID
		answer.UserID = response.UserID
		if _, err := tx.Exec(ctx, insertAnswer,
			answer.ID, answer.ResponseID, answer.ActionID, answer.UserID, answer.Value,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &repository.SubmitResult{
		Response:         response,
		ResponderBalance: responderBalance,
		OwnerBalance:     ownerBalance,
	}, nil
}

// classifyReserveMiss distinguishes an exhausted task from a missing one
// after the conditional decrement matched nothing.
func (r *responseRepository) classifyReserveMiss(ctx context.Context, tx pgx.Tx, taskID string) error {
	const query = `SELECT 1 FROM tasks WHERE id = $1`
	var one int
	if err := tx.QueryRow(ctx, query, taskID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}
	return domain.ErrTaskExhausted
}

func (r *responseRepository) ListByTask(ctx context.Context, taskID string) ([]domain.TaskResponse, error) {
	const query = `
	SELECT r.id, r.task_id, r.user_id, r.created_at,
		a.id, a.response_id, a.action_id, a.user_id, a.value
	FROM task_responses r
	LEFT JOIN task_action_responses a ON a.response_id = r.id
	WHERE r.task_id = $1
	ORDER BY r.created_at DESC, r.id, a.id
	`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		responses []domain.TaskResponse
		index     = make(map[string]int)
	)
	for rows.Next() {
		var (
			resp   domain.TaskResponse
			answer scannedAnswer
		)
		if err := rows.Scan(
			&resp.ID, &resp.TaskID, &resp.UserID, &resp.CreatedAt,
			&answer.ID, &answer.ResponseID, &answer.ActionID, &answer.UserID, &answer.Value,
		); err != nil {
			return nil, err
		}
		pos, ok := index[resp.ID]
		if !ok {
			responses = append(responses, resp)
			pos = len(responses) - 1
			index[resp.ID] = pos
		}
		if answer.ID != nil {
			responses[pos].Answers = append(responses[pos].Answers, domain.TaskActionResponse{
				ID:         *answer.ID,
				ResponseID: deref(answer.ResponseID),
				ActionID:   deref(answer.ActionID),
				UserID:     deref(answer.UserID),
				Value:      deref(answer.Value),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []domain.TaskResponse{}
	}
	return responses, nil
}
