package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

// Move moves money safely. Both rows are locked with FOR UPDATE in a fixed
// order so opposing transfers cannot deadlock, and the balance is re-read
// under the lock.
func (r *AccountRepository) Move(ctx context.Context, fromID, toID uuid.UUID, amount int64) (*domain.Account, *domain.Account, error) {
	if fromID == toID {
		return nil, nil, domain.ErrSelfTransfer
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback(ctx)

	firstID, secondID := domain.LockOrder(fromID, toID)
	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{firstID, secondID} {
		var balance int64
		err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock account %s: %w", id, err)
		}
		balances[id] = balance
	}

	if balances[fromID] < amount {
		return nil, nil, domain.ErrInsufficientFunds
	}

	from, err := scanAccount(tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2 RETURNING `+accountColumns, amount, fromID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to debit account %s: %w", fromID, err)
	}

	to, err := scanAccount(tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING `+accountColumns, amount, toID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to credit account %s: %w", toID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit failed: %w", err)
	}
	return from, to, nil
}

// Credit adds money to an account (operator top-up)
func (r *AccountRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0 RETURNING `+accountColumns,
		amount, id))
	if errors.Is(err, domain.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, domain.ErrInsufficientFunds
		}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit account %s: %w", id, err)
	}
	return acc, nil
}
