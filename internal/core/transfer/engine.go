// Package transfer moves money between two accounts.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
)

// Result holds both accounts as they were right after the move.
type Result struct {
	Source *domain.Account
	Dest   *domain.Account
	Amount int64
}

type Engine struct {
	store  domain.AccountStore
	events notifications.Publisher
	logger *slog.Logger
}

func NewEngine(store domain.AccountStore, events notifications.Publisher, logger *slog.Logger) *Engine {
	if events == nil {
		events = notifications.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, events: events, logger: logger}
}

// Transfer converts a major-unit amount to minor units and runs TransferMinor.
func (e *Engine) Transfer(ctx context.Context, src, dst domain.AccountRef, amount decimal.Decimal) (*Result, error) {
	minor, err := domain.ToMinor(amount)
	if err != nil {
		return nil, err
	}
	return e.TransferMinor(ctx, src, dst, minor)
}

// TransferMinor validates the request in a fixed order, failing on the first
// broken rule, then moves amount from src to dst atomically.
func (e *Engine) TransferMinor(ctx context.Context, src, dst domain.AccountRef, amount int64) (*Result, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	from, err := e.Lookup(ctx, src, domain.ErrSourceNotFound)
	if err != nil {
		return nil, err
	}
	to, err := e.Lookup(ctx, dst, domain.ErrDestNotFound)
	if err != nil {
		return nil, err
	}
	if from.ID == to.ID || from.SameCard(to) {
		return nil, domain.ErrSelfTransfer
	}
	if from.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}

	// The store re-checks the balance under its row locks.
	fromID := from.ID
	from, to, err = e.store.Move(ctx, fromID, to.ID, amount)
	if errors.Is(err, domain.ErrNotFound) {
		// An account was removed after validation.
		if _, serr := e.store.GetByID(ctx, fromID); errors.Is(serr, domain.ErrNotFound) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, domain.ErrDestNotFound
	}
	if err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return nil, err
		}
		return nil, fmt.Errorf("transfer failed: %w", err)
	}

	e.logger.Info("💸 Transfer completed",
		"from_account_id", from.ID,
		"to_account_id", to.ID,
		"amount", amount,
	)
	e.emit(ctx, from, to, amount)

	return &Result{Source: from, Dest: to, Amount: amount}, nil
}

// Lookup resolves ref to an active account, reporting notFound otherwise.
func (e *Engine) Lookup(ctx context.Context, ref domain.AccountRef, notFound error) (*domain.Account, error) {
	var (
		acc *domain.Account
		err error
	)
	switch ref.Kind {
	case domain.RefByID:
		acc, err = e.store.GetByID(ctx, ref.ID)
	case domain.RefByCard:
		uid, nerr := domain.NormalizeCardUID(ref.CardUID)
		if nerr != nil {
			return nil, notFound
		}
		acc, err = e.store.GetByCardUID(ctx, uid)
	case domain.RefByEmail:
		acc, err = e.store.GetByEmail(ctx, domain.NormalizeEmail(ref.Email))
	default:
		return nil, notFound
	}

	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", ref, err)
	}
	if !acc.Active() {
		return nil, notFound
	}
	return acc, nil
}

func (e *Engine) emit(ctx context.Context, from, to *domain.Account, amount int64) {
	ev := notifications.NewEvent(notifications.TransferCompleted, to.ID, notifications.TransferData{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        amount,
		FromBalance:   from.Balance,
		ToBalance:     to.Balance,
	})
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.Warn("failed to publish transfer event", "event_id", ev.ID, "error", err)
	}
}
