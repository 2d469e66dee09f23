// Package identity maps tapped cards and registrations onto accounts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

// Mode decides what happens when an unknown card is tapped.
type Mode int

const (
	// Strict fails with ErrCardNotFound; cards must be registered first.
	Strict Mode = iota
	// AutoProvision creates an account with a random starter balance.
	AutoProvision
)

type Config struct {
	Mode                     Mode
	Currency                 domain.Currency
	StarterBalanceMinCents   int64
	StarterBalanceMaxCents   int64
	RegistrationBalanceCents int64
}

type Resolver struct {
	store  domain.AccountStore
	cfg    Config
	logger *slog.Logger

	// randInt64N returns a value in [0, n). Swapped in tests.
	randInt64N func(n int64) int64
}

func NewResolver(store domain.AccountStore, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = domain.CAD
	}
	return &Resolver{
		store:      store,
		cfg:        cfg,
		logger:     logger,
		randInt64N: rand.Int64N,
	}
}

// Find returns the account bound to uid. uid must already be normalised.
func (r *Resolver) Find(ctx context.Context, uid string) (*domain.Account, error) {
	acc, err := r.store.GetByCardUID(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up card: %w", err)
	}
	return acc, nil
}

// CreateIfAbsent provisions an account for uid under the store's unique
// card constraint. created is false when another tap won the race.
func (r *Resolver) CreateIfAbsent(ctx context.Context, uid string) (*domain.Account, bool, error) {
	acc, created, err := r.store.CreateCardAccount(ctx, domain.NewAccount{
		ID:        uuid.New(),
		OwnerName: "Card ****" + domain.LastFour(uid),
		CardUID:   uid,
		Balance:   r.between(r.cfg.StarterBalanceMinCents, r.cfg.StarterBalanceMaxCents),
		Currency:  r.cfg.Currency,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to provision card: %w", err)
	}
	if created {
		r.logger.Info("💳 New card provisioned", "account_id", acc.ID, "card", domain.LastFour(uid), "balance", acc.Balance)
	}
	return acc, created, nil
}

// Resolve is Find followed, in AutoProvision mode, by CreateIfAbsent.
// existing reports whether the card was known before this call.
func (r *Resolver) Resolve(ctx context.Context, rawUID string) (acc *domain.Account, existing bool, err error) {
	uid, err := domain.NormalizeCardUID(rawUID)
	if err != nil {
		return nil, false, err
	}

	acc, err = r.Find(ctx, uid)
	if err == nil {
		return acc, true, nil
	}
	if !errors.Is(err, domain.ErrCardNotFound) || r.cfg.Mode != AutoProvision {
		return nil, false, err
	}

	acc, created, err := r.CreateIfAbsent(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	return acc, !created, nil
}

// Register creates an account for a signed-up user.
func (r *Resolver) Register(ctx context.Context, reg domain.Registration) (*domain.Account, error) {
	name := strings.TrimSpace(reg.OwnerName)
	if name == "" {
		return nil, domain.InvalidInput("Owner name is required")
	}
	email := domain.NormalizeEmail(reg.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.InvalidInput("A valid email is required")
	}

	var uid string
	if reg.CardUID != "" {
		var err error
		if uid, err = domain.NormalizeCardUID(reg.CardUID); err != nil {
			return nil, err
		}
	}

	acc, err := r.store.CreateAccount(ctx, domain.NewAccount{
		ID:        uuid.New(),
		OwnerName: name,
		Email:     email,
		CardUID:   uid,
		Balance:   r.between(0, r.cfg.RegistrationBalanceCents),
		Currency:  r.cfg.Currency,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("✅ Account registered", "account_id", acc.ID, "email", acc.Email)
	return acc, nil
}

// between returns a value in [lo, hi].
func (r *Resolver) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + r.randInt64N(hi-lo+1)
}
