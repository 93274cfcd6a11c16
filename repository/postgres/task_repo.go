package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const insertTask = `
	INSERT INTO tasks (id, owner_id, name, cost, expires_at, refresh_rate, answers_left)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at
	`

	var expires interface{}
	if task.ExpiresAt != nil {
		expires = *task.ExpiresAt
	}

	if err := tx.QueryRow(ctx, insertTask,
		task.ID,
		task.OwnerID,
		task.Name,
		task.Cost,
		expires,
		task.RefreshRate,
		task.AnswersLeft,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	if loc := task.Location; loc != nil {
		if loc.ID == "" {
			loc.ID = uuid.NewString()
		}
		loc.TaskID = task.ID
		const insertLocation = `
		INSERT INTO task_locations (id, task_id, name, lat, lng, radius)
		VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, insertLocation,
			loc.ID, loc.TaskID, loc.Name, loc.Lat, loc.Lng, loc.Radius,
		); err != nil {
			return nil, err
		}
	}

	const insertAction = `
	INSERT INTO task_actions (id, task_id, position, description, kind)
	VALUES ($1, $2, $3, $4, $5)
	`
	for i := range task.Actions {
		action := &task.Actions[i]
		if action.ID == "" {
			action.ID = uuid.NewString()
		}
		action.TaskID = task.ID
		if _, err := tx.Exec(ctx, insertAction,
			action.ID, action.TaskID, i, action.Description, action.Kind,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Task, error) {
	if len(ids) == 0 {
		return []domain.Task{}, nil
	}

	const query = `
	SELECT id, owner_id, name, cost, expires_at, refresh_rate, answers_left, created_at, updated_at
	FROM tasks
	WHERE id = ANY($1::uuid[])
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	index := make(map[string]*domain.Task)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tasks {
		index[tasks[i].ID] = &tasks[i]
	}

	if err := r.attachLocations(ctx, ids, index); err != nil {
		return nil, err
	}
	if err := r.attachActions(ctx, ids, index); err != nil {
		return nil, err
	}
	if err := r.attachResponses(ctx, ids, index); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (r *taskRepository) FindForResponse(ctx context.Context, id string) (*domain.Task, error) {
	const query = `
	SELECT id, owner_id, name, cost, expires_at, refresh_rate, answers_left, created_at, updated_at
	FROM tasks
	WHERE id = $1
	`
	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	const responses = `
	SELECT id, task_id, user_id, created_at
	FROM task_responses
	WHERE task_id = $1
	ORDER BY created_at DESC, id
	`
	rows, err := r.pool.Query(ctx, responses, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp domain.TaskResponse
		if err := rows.Scan(&resp.ID, &resp.TaskID, &resp.UserID, &resp.CreatedAt); err != nil {
			return nil, err
		}
		task.Responses = append(task.Responses, resp)
	}
	return task, rows.Err()
}

func (r *taskRepository) Delete(ctx context.Context, id string) (bool, error) {
	// Location, actions, responses, and action responses cascade at the
	// schema level; change-log rows reference the task by id only and stay.
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *taskRepository) attachLocations(ctx context.Context, ids []string, index map[string]*domain.Task) error {
	const query = `
	SELECT id, task_id, name, lat, lng, radius
	FROM task_locations
	WHERE task_id = ANY($1::uuid[])
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.TaskID, &loc.Name, &loc.Lat, &loc.Lng, &loc.Radius); err != nil {
			return err
		}
		if task, ok := index[loc.TaskID]; ok {
			l := loc
			task.Location = &l
		}
	}
	return rows.Err()
}

func (r *taskRepository) attachActions(ctx context.Context, ids []string, index map[string]*domain.Task) error {
	const query = `
	SELECT id, task_id, description, kind
	FROM task_actions
	WHERE task_id = ANY($1::uuid[])
	ORDER BY task_id, position
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var action domain.TaskAction
		if err := rows.Scan(&action.ID, &action.TaskID, &action.Description, &action.Kind); err != nil {
			return err
		}
		if task, ok := index[action.TaskID]; ok {
			task.Actions = append(task.Actions, action)
		}
	}
	return rows.Err()
}

func (r *taskRepository) attachResponses(ctx context.Context, ids []string, index map[string]*domain.Task) error {
	const query = `
	SELECT r.id, r.task_id, r.user_id, r.created_at,
		a.id, a.response_id, a.action_id, a.user_id, a.value
	FROM task_responses r
	LEFT JOIN task_action_responses a ON a.response_id = r.id
	WHERE r.task_id = ANY($1::uuid[])
	ORDER BY r.created_at DESC, r.id, a.id
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	responses := make(map[string]*domain.TaskResponse)
	var order []string
	for rows.Next() {
		var (
			resp   domain.TaskResponse
			answer scannedAnswer
		)
		if err := rows.Scan(
			&resp.ID, &resp.TaskID, &resp.UserID, &resp.CreatedAt,
			&answer.ID, &answer.ResponseID, &answer.ActionID, &answer.UserID, &answer.Value,
		); err != nil {
			return err
		}
		current, ok := responses[resp.ID]
		if !ok {
			responses[resp.ID] = &resp
			order = append(order, resp.ID)
			current = &resp
		}
		if answer.ID != nil {
			current.Answers = append(current.Answers, domain.TaskActionResponse{
				ID:         *answer.ID,
				ResponseID: deref(answer.ResponseID),
				ActionID:   deref(answer.ActionID),
				UserID:     deref(answer.UserID),
				Value:      deref(answer.Value),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range order {
		resp := responses[id]
		if task, ok := index[resp.TaskID]; ok {
			task.Responses = append(task.Responses, *resp)
		}
	}
	return nil
}

type scannedAnswer struct {
	ID         *string
	ResponseID *string
	ActionID   *string
	UserID     *string
	Value      *string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var expires *time.Time

	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Name,
		&task.Cost,
		&expires,
		&task.RefreshRate,
		&task.AnswersLeft,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.ExpiresAt = expires
	return &task, nil
}
