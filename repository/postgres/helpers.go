package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/taskmarket/backend/domain"
)

// applyBalanceDelta adjusts a user's balance inside an open transaction and
// returns the balance after the change. There is no lower bound on the
// result: a payer may be driven negative.
func applyBalanceDelta(ctx context.Context, tx pgx.Tx, userID string, delta int64) (int64, error) {
	const query = `
	UPDATE users
	SET balance = balance + $2,
		updated_at = NOW()
	WHERE id = $1
	RETURNING balance
	`
	var balance int64
	if err := tx.QueryRow(ctx, query, userID, delta).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// applyTransfer debits amount from the payer and credits it to the payee.
// Both rows change inside the caller's transaction, so the transfer commits
// or rolls back together with whatever triggered it. Rows are locked in id
// order: two crossing transfers over the same pair of users would deadlock
// if each grabbed its payer row first.
func applyTransfer(ctx context.Context, tx pgx.Tx, payerID, payeeID string, amount int64) (payerBalance, payeeBalance int64, err error) {
	for _, step := range transferSteps(payerID, payeeID, amount) {
		balance, err := applyBalanceDelta(ctx, tx, step.userID, step.delta)
		if err != nil {
			return 0, 0, err
		}
		if step.delta < 0 {
			payerBalance = balance
		} else {
			payeeBalance = balance
		}
	}
	return payerBalance, payeeBalance, nil
}

type balanceStep struct {
	userID string
	delta  int64
}

func transferSteps(payerID, payeeID string, amount int64) [2]balanceStep {
	steps := [2]balanceStep{
		{userID: payerID, delta: -amount},
		{userID: payeeID, delta: amount},
	}
	if payerID > payeeID {
		steps[0], steps[1] = steps[1], steps[0]
	}
	return steps
}
