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

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
	SELECT id, balance, notify_url, created_at, updated_at
	FROM users
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var user domain.User
	if err := row.Scan(&user.ID, &user.Balance, &user.NotifyURL, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	// Balance is intentionally absent from the update set: it is mutated
	// only through ledger transfers.
	const query = `
	INSERT INTO users (id, balance, notify_url)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET notify_url = EXCLUDED.notify_url,
		updated_at = NOW()
	RETURNING balance, created_at, updated_at
	`

	var (
		balance              int64
		createdAt, updatedAt time.Time
	)
	if err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Balance,
		user.NotifyURL,
	).Scan(&balance, &createdAt, &updatedAt); err != nil {
		return err
	}

	user.Balance = balance
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return nil
}

func (r *userRepository) ListNotifyTargets(ctx context.Context) ([]domain.User, error) {
	const query = `
	SELECT id, balance, notify_url, created_at, updated_at
	FROM users
	WHERE notify_url <> ''
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Balance, &user.NotifyURL, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
