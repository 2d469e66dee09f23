package payreq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
	"github.com/ibrahimkeyboad/tappay/internal/core/transfer"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu    sync.Mutex
	types []notifications.EventType
}

func (r *recorder) Publish(_ context.Context, ev notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.Type)
	return nil
}

type env struct {
	store    *memory.AccountStore
	broker   *Broker
	clock    *clock
	events   *recorder
	merchant *domain.Account
	customer *domain.Account
}

func newEnv(t *testing.T, customerBalance int64, opts ...Option) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewAccountStore()

	merchant, err := store.CreateAccount(ctx, domain.NewAccount{ID: uuid.New(), OwnerName: "Bean Bar", Currency: domain.CAD})
	require.NoError(t, err)
	customer, err := store.CreateAccount(ctx, domain.NewAccount{
		ID: uuid.New(), OwnerName: "Ada", CardUID: "04A22B9C", Balance: customerBalance, Currency: domain.CAD,
	})
	require.NoError(t, err)

	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &recorder{}
	base := []Option{WithClock(c.Now), WithPublisher(events), WithTTL(2 * time.Minute)}
	broker := NewBroker(transfer.NewEngine(store, nil, nil), append(base, opts...)...)

	return &env{store: store, broker: broker, clock: c, events: events, merchant: merchant, customer: customer}
}

func (e *env) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	acc, err := e.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAcceptLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	req, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("12.34"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, req.Status)
	assert.Equal(t, int64(1234), req.Amount)
	assert.Equal(t, "Bean Bar", req.MerchantName)
	assert.Equal(t, "Ada", req.CustomerName)

	checked, ok := e.broker.Check(ctx, e.customer.ID)
	require.True(t, ok)
	assert.Equal(t, req.ID, checked.ID)

	polled, ok := e.broker.Status(ctx, e.customer.ID, nil)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentPending, polled.Status)

	resp, err := e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentAccepted, resp.Request.Status)
	require.NotNil(t, resp.Request.CompletedAt)
	assert.Equal(t, int64(3766), resp.Customer.Balance)
	assert.Equal(t, int64(1234), e.balance(t, e.merchant.ID))

	// the customer still sees the outcome until the merchant collects it
	checked, ok = e.broker.Check(ctx, e.customer.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentAccepted, checked.Status)

	polled, ok = e.broker.Status(ctx, e.customer.ID, nil)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentAccepted, polled.Status)

	_, ok = e.broker.Status(ctx, e.customer.ID, nil)
	assert.False(t, ok, "terminal request is evicted after the merchant reads it")

	assert.Equal(t, []notifications.EventType{
		notifications.PaymentRequestCreated,
		notifications.PaymentRequestAccepted,
	}, e.events.types)
}

func TestDecline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("10"))
	require.NoError(t, err)

	resp, err := e.broker.Respond(ctx, e.customer.ID, domain.ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentDeclined, resp.Request.Status)
	assert.Nil(t, resp.Customer)
	assert.Equal(t, int64(5000), e.balance(t, e.customer.ID))

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	tests := []struct {
		name     string
		merchant uuid.UUID
		customer uuid.UUID
		amount   string
		wantErr  error
	}{
		{"zero", e.merchant.ID, e.customer.ID, "0", domain.ErrInvalidAmount},
		{"over cap", e.merchant.ID, e.customer.ID, "10000", domain.ErrAmountTooLarge},
		{"unknown merchant", uuid.New(), e.customer.ID, "1", domain.ErrMerchantNotFound},
		{"unknown customer", e.merchant.ID, uuid.New(), "1", domain.ErrCustomerNotFound},
		{"self", e.customer.ID, e.customer.ID, "1", domain.ErrSelfTransfer},
		{"short", e.merchant.ID, e.customer.ID, "50.01", domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.broker.Create(ctx, tt.merchant, tt.customer, amount(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, ok := e.broker.Check(ctx, e.customer.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, domain.ErrAmountTooLarge, domain.ErrInvalidAmount)
}

func TestCreateOverwritesPendingRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	first, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("5"))
	require.NoError(t, err)
	second, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("7.50"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	checked, ok := e.broker.Check(ctx, e.customer.ID)
	require.True(t, ok)
	assert.Equal(t, second.ID, checked.ID)
	assert.Equal(t, int64(750), checked.Amount)

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, int64(4250), e.balance(t, e.customer.ID))
}

func TestRespondErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNoActiveRequest)

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.PaymentAction("maybe"))
	require.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestLateShortfallLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("40"))
	require.NoError(t, err)

	// the customer spends most of the balance elsewhere before answering
	other, err := e.store.CreateAccount(ctx, domain.NewAccount{ID: uuid.New(), OwnerName: "Elsewhere", Currency: domain.CAD})
	require.NoError(t, err)
	_, _, err = e.store.Move(ctx, e.customer.ID, other.ID, 2000)
	require.NoError(t, err)

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	checked, ok := e.broker.Check(ctx, e.customer.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentPending, checked.Status)
	assert.Equal(t, int64(3000), e.balance(t, e.customer.ID))

	// the customer can still decline
	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionDecline)
	require.NoError(t, err)
}

func TestConcurrentRespondHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("10"))
	require.NoError(t, err)

	var wins, processed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrAlreadyProcessed):
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), processed.Load())
	assert.Equal(t, int64(4000), e.balance(t, e.customer.ID))
}

func TestCreateRacingRespondSettlesOnce(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		e := newEnv(t, 5000)
		first, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("10"))
		require.NoError(t, err)

		var (
			wg                   sync.WaitGroup
			second               *domain.PaymentRequest
			resp                 *Response
			createErr, answerErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			second, createErr = e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("5"))
		}()
		go func() {
			defer wg.Done()
			resp, answerErr = e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
		}()
		wg.Wait()
		require.NoError(t, createErr)
		require.NoError(t, answerErr)

		current, ok := e.broker.Check(ctx, e.customer.ID)
		require.True(t, ok)
		assert.Equal(t, second.ID, current.ID, "the newest request always owns the slot")

		switch resp.Request.ID {
		case first.ID:
			// the answer settled the old request, the new one waits for the customer
			assert.Equal(t, domain.PaymentPending, current.Status)
			assert.Equal(t, int64(4000), e.balance(t, e.customer.ID))
			assert.Equal(t, int64(1000), e.balance(t, e.merchant.ID))
		case second.ID:
			// the new request replaced the old one before the answer arrived
			assert.Equal(t, domain.PaymentAccepted, current.Status)
			assert.Equal(t, int64(4500), e.balance(t, e.customer.ID))
			assert.Equal(t, int64(500), e.balance(t, e.merchant.ID))
		default:
			t.Fatalf("accepted unknown request %s", resp.Request.ID)
		}
	}
}

func TestEmptiedSlotsAreRemoved(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, e.broker.reg.size())

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionDecline)
	require.NoError(t, err)
	_, ok := e.broker.Status(ctx, e.customer.ID, nil)
	require.True(t, ok)
	assert.Zero(t, e.broker.reg.size(), "merchant read")

	_, err = e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)
	e.clock.Advance(2 * time.Minute)
	_, ok = e.broker.Check(ctx, e.customer.ID)
	require.False(t, ok)
	assert.Zero(t, e.broker.reg.size(), "lazy expiry")

	_, err = e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, e.broker.Sweep(e.clock.Now().Add(2*time.Minute)))
	assert.Zero(t, e.broker.reg.size(), "sweep")
}

func TestCreateRacingEvictionKeepsNewRequest(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		e := newEnv(t, 5000)
		_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
		require.NoError(t, err)
		_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionDecline)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var next *domain.PaymentRequest
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.broker.Status(ctx, e.customer.ID, nil)
		}()
		go func() {
			defer wg.Done()
			next, err = e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("2"))
		}()
		wg.Wait()
		require.NoError(t, err)

		current, ok := e.broker.Check(ctx, e.customer.ID)
		require.True(t, ok, "a new request is never lost to eviction")
		assert.Equal(t, next.ID, current.ID)
		assert.Equal(t, domain.PaymentPending, current.Status)
	}
}

func TestStatusFiltersByMerchant(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)

	stranger := uuid.New()
	_, ok := e.broker.Status(ctx, e.customer.ID, &stranger)
	assert.False(t, ok)

	_, ok = e.broker.Status(ctx, e.customer.ID, &e.merchant.ID)
	assert.True(t, ok)
}

func TestPendingRequestExpires(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	_, ok := e.broker.Check(ctx, e.customer.ID)
	require.True(t, ok)

	e.clock.Advance(time.Minute)
	_, ok = e.broker.Check(ctx, e.customer.ID)
	assert.False(t, ok)

	_, err = e.broker.Respond(ctx, e.customer.ID, domain.ActionAccept)
	require.ErrorIs(t, err, domain.ErrNoActiveRequest)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000)

	second, err := e.store.CreateAccount(ctx, domain.NewAccount{ID: uuid.New(), OwnerName: "Bob", Balance: 5000, Currency: domain.CAD})
	require.NoError(t, err)

	_, err = e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)
	_, err = e.broker.Create(ctx, e.merchant.ID, second.ID, amount("1"))
	require.NoError(t, err)
	_, err = e.broker.Respond(ctx, second.ID, domain.ActionDecline)
	require.NoError(t, err)

	assert.Zero(t, e.broker.Sweep(e.clock.Now().Add(time.Minute)))
	assert.Equal(t, 2, e.broker.Sweep(e.clock.Now().Add(3*time.Minute)))

	_, ok := e.broker.Status(ctx, second.ID, nil)
	assert.False(t, ok)
}

func TestZeroTTLDisablesExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5000, WithTTL(0))

	_, err := e.broker.Create(ctx, e.merchant.ID, e.customer.ID, amount("1"))
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)
	assert.Zero(t, e.broker.Sweep(e.clock.Now()))
	_, ok := e.broker.Check(ctx, e.customer.ID)
	assert.True(t, ok)
}
