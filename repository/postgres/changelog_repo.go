package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmarket/backend/domain"
	"github.com/taskmarket/backend/repository"
)

type changeLogRepository struct {
	pool *pgxpool.Pool
}

// NewChangeLogRepository returns a Postgres-backed implementation of ChangeLogRepository.
func NewChangeLogRepository(pool *pgxpool.Pool) repository.ChangeLogRepository {
	return &changeLogRepository{pool: pool}
}

func (r *changeLogRepository) Append(ctx context.Context, entry *domain.ChangeLogEntry) (*domain.ChangeLogEntry, error) {
	if entry == nil || entry.TaskID == "" || !entry.Status.Valid() {
		return nil, domain.ErrInvalidPayload
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().UnixMilli()
	}

	const query = `
	INSERT INTO change_log (task_id, status, created_at)
	VALUES ($1, $2, $3)
	RETURNING id
	`
	if err := r.pool.QueryRow(ctx, query, entry.TaskID, entry.Status, entry.CreatedAt).Scan(&entry.ID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *changeLogRepository) EntriesSince(ctx context.Context, sinceMillis int64) ([]domain.ChangeLogEntry, error) {
	const query = `
	SELECT id, task_id, status, created_at
	FROM change_log
	WHERE created_at > $1
	ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, sinceMillis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ChangeLogEntry
	for rows.Next() {
		var entry domain.ChangeLogEntry
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Status, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
