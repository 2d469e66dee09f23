package transfer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
)

type capture struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (c *capture) Publish(_ context.Context, ev notifications.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

type fixture struct {
	store    *memory.AccountStore
	engine   *Engine
	events   *capture
	customer *domain.Account
	merchant *domain.Account
}

func setup(t *testing.T, customerBalance, merchantBalance int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewAccountStore()

	customer, err := store.CreateAccount(ctx, domain.NewAccount{
		ID:        uuid.New(),
		OwnerName: "Customer",
		Email:     "customer@example.com",
		CardUID:   "04A22B9C",
		Balance:   customerBalance,
		Currency:  domain.CAD,
	})
	require.NoError(t, err)
	merchant, err := store.CreateAccount(ctx, domain.NewAccount{
		ID:        uuid.New(),
		OwnerName: "Bean Bar",
		Email:     "till@beanbar.example",
		Balance:   merchantBalance,
		Currency:  domain.CAD,
	})
	require.NoError(t, err)

	events := &capture{}
	return &fixture{
		store:    store,
		engine:   NewEngine(store, events, nil),
		events:   events,
		customer: customer,
		merchant: merchant,
	}
}

func (f *fixture) balances(t *testing.T) (int64, int64) {
	t.Helper()
	c, err := f.store.GetByID(context.Background(), f.customer.ID)
	require.NoError(t, err)
	m, err := f.store.GetByID(context.Background(), f.merchant.ID)
	require.NoError(t, err)
	return c.Balance, m.Balance
}

func TestTransferTapExample(t *testing.T) {
	f := setup(t, 5000, 0)

	res, err := f.engine.Transfer(context.Background(),
		domain.ByCard("04:a2:2b:9c"),
		domain.ByEmail("Till@BeanBar.example"),
		decimal.RequireFromString("12.34"),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), res.Amount)
	assert.Equal(t, "$37.66", domain.FormatMajor(res.Source.Balance))
	assert.Equal(t, "$12.34", domain.FormatMajor(res.Dest.Balance))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, notifications.TransferCompleted, f.events.events[0].Type)
}

func TestTransferConservesTotal(t *testing.T) {
	f := setup(t, 10_000, 2_500)
	ctx := context.Background()

	for _, amt := range []int64{1, 99, 1234, 5000} {
		_, err := f.engine.TransferMinor(ctx, domain.ByID(f.customer.ID), domain.ByID(f.merchant.ID), amt)
		require.NoError(t, err)
		c, m := f.balances(t)
		assert.Equal(t, int64(12_500), c+m)
		assert.GreaterOrEqual(t, c, int64(0))
	}
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name    string
		src     func(f *fixture) domain.AccountRef
		dst     func(f *fixture) domain.AccountRef
		amount  string
		wantErr error
	}{
		{
			name:    "zero amount",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.merchant.ID) },
			amount:  "0",
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.merchant.ID) },
			amount:  "-5",
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "rounds to zero",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.merchant.ID) },
			amount:  "0.004",
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown source",
			src:     func(f *fixture) domain.AccountRef { return domain.ByCard("FFFF0000") },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.merchant.ID) },
			amount:  "1",
			wantErr: domain.ErrSourceNotFound,
		},
		{
			name:    "unknown destination",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByEmail("nobody@example.com") },
			amount:  "1",
			wantErr: domain.ErrDestNotFound,
		},
		{
			name:    "self by id",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			amount:  "1",
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "self by card and email",
			src:     func(f *fixture) domain.AccountRef { return domain.ByCard("04a22b9c") },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByEmail("customer@example.com") },
			amount:  "1",
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "insufficient funds",
			src:     func(f *fixture) domain.AccountRef { return domain.ByID(f.customer.ID) },
			dst:     func(f *fixture) domain.AccountRef { return domain.ByID(f.merchant.ID) },
			amount:  "50.01",
			wantErr: domain.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, 5000, 0)

			_, err := f.engine.Transfer(context.Background(), tt.src(f), tt.dst(f), decimal.RequireFromString(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)

			c, m := f.balances(t)
			assert.Equal(t, int64(5000), c)
			assert.Zero(t, m)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestTransferChecksAmountFirst(t *testing.T) {
	f := setup(t, 5000, 0)
	// amount is checked before anything else
	_, err := f.engine.TransferMinor(context.Background(), domain.ByCard("FFFF0000"), domain.ByID(f.merchant.ID), 0)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestTransferSkipsInactiveAccounts(t *testing.T) {
	f := setup(t, 5000, 0)
	require.NoError(t, f.store.SetStatus(f.merchant.ID, domain.StatusSuspended))

	_, err := f.engine.TransferMinor(context.Background(), domain.ByID(f.customer.ID), domain.ByID(f.merchant.ID), 100)
	require.ErrorIs(t, err, domain.ErrDestNotFound)
}

func TestConcurrentTransfers(t *testing.T) {
	run := func(t *testing.T, n, workers int) (ok, short int64) {
		f := setup(t, int64(n)*100, 0)
		var wg sync.WaitGroup
		var okCount, shortCount atomic.Int64
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.Transfer(context.Background(),
					domain.ByID(f.customer.ID), domain.ByID(f.merchant.ID), decimal.NewFromInt(1))
				switch {
				case err == nil:
					okCount.Add(1)
				case assert.ErrorIs(t, err, domain.ErrInsufficientFunds):
					shortCount.Add(1)
				}
			}()
		}
		wg.Wait()

		c, m := f.balances(t)
		assert.Zero(t, c)
		assert.Equal(t, int64(n)*100, m)
		return okCount.Load(), shortCount.Load()
	}

	t.Run("N transfers drain exactly", func(t *testing.T) {
		ok, short := run(t, 20, 20)
		assert.Equal(t, int64(20), ok)
		assert.Zero(t, short)
	})

	t.Run("N+1 transfers leave one rejected", func(t *testing.T) {
		ok, short := run(t, 20, 21)
		assert.Equal(t, int64(20), ok)
		assert.Equal(t, int64(1), short)
	})
}

// vanishingStore drops one account at the moment Move runs.
type vanishingStore struct {
	*memory.AccountStore
	gone  uuid.UUID
	moved atomic.Bool
}

func (s *vanishingStore) Move(ctx context.Context, fromID, toID uuid.UUID, amount int64) (*domain.Account, *domain.Account, error) {
	s.moved.Store(true)
	return nil, nil, domain.ErrNotFound
}

func (s *vanishingStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if s.moved.Load() && id == s.gone {
		return nil, domain.ErrNotFound
	}
	return s.AccountStore.GetByID(ctx, id)
}

func TestTransferReportsAccountRemovedDuringMove(t *testing.T) {
	f := setup(t, 5000, 0)

	tests := []struct {
		name    string
		gone    uuid.UUID
		wantErr error
	}{
		{name: "source", gone: f.customer.ID, wantErr: domain.ErrSourceNotFound},
		{name: "destination", gone: f.merchant.ID, wantErr: domain.ErrDestNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &vanishingStore{AccountStore: f.store, gone: tt.gone}
			engine := NewEngine(store, f.events, nil)

			_, err := engine.TransferMinor(context.Background(), domain.ByID(f.customer.ID), domain.ByID(f.merchant.ID), 100)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.KindAccountNotFound, domain.KindOf(err))
			assert.Empty(t, f.events.events)
		})
	}
}
