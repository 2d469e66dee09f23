package domain

import (
	"context"

	"github.com/google/uuid"
)

// AccountStore is the single source of truth for balances.
//
// Lookups return ErrNotFound on a miss. Inserts return ErrDuplicateCard or
// ErrDuplicateEmail when a unique constraint is violated.
type AccountStore interface {
	CreateAccount(ctx context.Context, acc NewAccount) (*Account, error)

	// CreateCardAccount inserts acc unless an account already holds
	// acc.CardUID, in which case that account is returned with created=false.
	// Concurrent calls for one card yield exactly one account.
	CreateCardAccount(ctx context.Context, acc NewAccount) (account *Account, created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByCardUID(ctx context.Context, uid string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Move debits from and credits to by amount as one atomic unit. It locks
	// both accounts, re-checks the balance under the lock and returns
	// ErrInsufficientFunds without changing anything if it is short.
	Move(ctx context.Context, fromID, toID uuid.UUID, amount int64) (from *Account, to *Account, err error)

	// Credit adds amount to an account. Used by operator top-ups only.
	Credit(ctx context.Context, id uuid.UUID, amount int64) (*Account, error)
}

// LockOrder returns a and b ordered so that every store locks rows in the
// same sequence, which rules out deadlocks between opposing transfers.
func LockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
