// Package memory holds process-local stores. They back tests and the
// STORAGE_DRIVER=memory mode used for demos.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

type record struct {
	mu  sync.Mutex
	acc domain.Account
}

// AccountStore keeps accounts in maps. The maps are guarded by mu; each
// account's balance is guarded by its own record mutex, so transfers that
// touch disjoint accounts do not contend.
type AccountStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*record
	byCard  map[string]uuid.UUID
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[uuid.UUID]*record),
		byCard:  make(map[string]uuid.UUID),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *AccountStore) CreateAccount(ctx context.Context, acc domain.NewAccount) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.CardUID != "" {
		if _, ok := s.byCard[acc.CardUID]; ok {
			return nil, domain.ErrDuplicateCard
		}
	}
	if acc.Email != "" {
		if _, ok := s.byEmail[acc.Email]; ok {
			return nil, domain.ErrDuplicateEmail
		}
	}
	return s.insertLocked(acc), nil
}

func (s *AccountStore) CreateCardAccount(ctx context.Context, acc domain.NewAccount) (*domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byCard[acc.CardUID]; ok {
		return s.snapshot(s.byID[id]), false, nil
	}
	if acc.Email != "" {
		if _, ok := s.byEmail[acc.Email]; ok {
			return nil, false, domain.ErrDuplicateEmail
		}
	}
	return s.insertLocked(acc), true, nil
}

func (s *AccountStore) insertLocked(acc domain.NewAccount) *domain.Account {
	id := acc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	rec := &record{acc: domain.Account{
		ID:        id,
		OwnerName: acc.OwnerName,
		Email:     acc.Email,
		CardUID:   acc.CardUID,
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		Status:    domain.StatusActive,
		CreatedAt: s.now().UTC(),
	}}
	s.byID[id] = rec
	if acc.CardUID != "" {
		s.byCard[acc.CardUID] = id
	}
	if acc.Email != "" {
		s.byEmail[acc.Email] = id
	}
	out := rec.acc
	return &out
}

func (s *AccountStore) snapshot(rec *record) *domain.Account {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := rec.acc
	return &out
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.snapshot(rec), nil
}

func (s *AccountStore) GetByCardUID(ctx context.Context, uid string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byCard[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) Move(ctx context.Context, fromID, toID uuid.UUID, amount int64) (*domain.Account, *domain.Account, error) {
	if fromID == toID {
		return nil, nil, domain.ErrSelfTransfer
	}

	s.mu.RLock()
	from, okFrom := s.byID[fromID]
	to, okTo := s.byID[toID]
	s.mu.RUnlock()
	if !okFrom || !okTo {
		return nil, nil, domain.ErrNotFound
	}

	firstID, _ := domain.LockOrder(fromID, toID)
	first, second := from, to
	if firstID != fromID {
		first, second = to, from
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if from.acc.Balance < amount {
		return nil, nil, domain.ErrInsufficientFunds
	}

	from.acc.Balance -= amount
	to.acc.Balance += amount

	fromOut, toOut := from.acc, to.acc
	return &fromOut, &toOut, nil
}

func (s *AccountStore) Credit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.acc.Balance+amount < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	rec.acc.Balance += amount
	out := rec.acc
	return &out, nil
}

// SetStatus changes an account's status. Only tests and the memory demo mode
// use it; SQL backends change status through migrations or operators.
func (s *AccountStore) SetStatus(id uuid.UUID, status domain.AccountStatus) error {
	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	rec.mu.Lock()
	rec.acc.Status = status
	rec.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *AccountStore) Ping(ctx context.Context) error {
	return nil
}
