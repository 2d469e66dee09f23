// Package storetest is a behavioural contract every account store must meet.
// Backends call RunAccountStoreContract from their own tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

type SetupFunc func(t *testing.T) domain.AccountStore

// IdempotencyStore mirrors middleware.IdempotencyStore without importing it.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (int, []byte, bool, error)
	Save(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

func newAccount(balance int64) domain.NewAccount {
	id := uuid.New()
	return domain.NewAccount{
		ID:        id,
		OwnerName: "Test " + id.String()[:8],
		Email:     fmt.Sprintf("%s@example.com", id.String()[:8]),
		CardUID:   "CARD" + strings.ToUpper(id.String()[:8]),
		Balance:   balance,
		Currency:  domain.CAD,
	}
}

func RunAccountStoreContract(t *testing.T, setup SetupFunc) {
	ctx := context.Background()

	t.Run("CreateAndLookup", func(t *testing.T) {
		store := setup(t)
		in := newAccount(5000)
		acc, err := store.CreateAccount(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ID, acc.ID)
		assert.Equal(t, int64(5000), acc.Balance)
		assert.Equal(t, domain.StatusActive, acc.Status)

		byID, err := store.GetByID(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, in.CardUID, byID.CardUID)

		byCard, err := store.GetByCardUID(ctx, in.CardUID)
		require.NoError(t, err)
		assert.Equal(t, in.ID, byCard.ID)

		byEmail, err := store.GetByEmail(ctx, in.Email)
		require.NoError(t, err)
		assert.Equal(t, in.ID, byEmail.ID)
	})

	t.Run("LookupMiss", func(t *testing.T) {
		store := setup(t)
		_, err := store.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetByCardUID(ctx, "NOSUCHCARD")
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AccountWithoutCardOrEmail", func(t *testing.T) {
		store := setup(t)
		a := newAccount(0)
		a.CardUID, a.Email = "", ""
		b := newAccount(0)
		b.CardUID, b.Email = "", ""

		_, err := store.CreateAccount(ctx, a)
		require.NoError(t, err)
		_, err = store.CreateAccount(ctx, b)
		require.NoError(t, err, "empty card and email must not collide")
	})

	t.Run("DuplicateCard", func(t *testing.T) {
		store := setup(t)
		first := newAccount(0)
		_, err := store.CreateAccount(ctx, first)
		require.NoError(t, err)

		second := newAccount(0)
		second.CardUID = first.CardUID
		_, err = store.CreateAccount(ctx, second)
		require.ErrorIs(t, err, domain.ErrDuplicateCard)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		store := setup(t)
		first := newAccount(0)
		_, err := store.CreateAccount(ctx, first)
		require.NoError(t, err)

		second := newAccount(0)
		second.Email = first.Email
		_, err = store.CreateAccount(ctx, second)
		require.ErrorIs(t, err, domain.ErrDuplicateEmail)
	})

	t.Run("CreateCardAccountIsFindOrCreate", func(t *testing.T) {
		store := setup(t)
		in := newAccount(1234)
		in.Email = ""

		acc, created, err := store.CreateCardAccount(ctx, in)
		require.NoError(t, err)
		require.True(t, created)

		again := newAccount(9999)
		again.Email = ""
		again.CardUID = in.CardUID
		existing, created, err := store.CreateCardAccount(ctx, again)
		require.NoError(t, err)
		require.False(t, created)
		assert.Equal(t, acc.ID, existing.ID)
		assert.Equal(t, int64(1234), existing.Balance)
	})

	t.Run("ConcurrentFirstTaps", func(t *testing.T) {
		store := setup(t)
		uid := "TAP" + uuid.NewString()[:8]

		const taps = 16
		ids := make([]uuid.UUID, taps)
		createdCount := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < taps; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				in := newAccount(100)
				in.Email = ""
				in.CardUID = uid
				acc, created, err := store.CreateCardAccount(ctx, in)
				assert.NoError(t, err)
				if err != nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[i] = acc.ID
				if created {
					createdCount++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, createdCount)
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("Move", func(t *testing.T) {
		store := setup(t)
		from, err := store.CreateAccount(ctx, newAccount(5000))
		require.NoError(t, err)
		to, err := store.CreateAccount(ctx, newAccount(100))
		require.NoError(t, err)

		gotFrom, gotTo, err := store.Move(ctx, from.ID, to.ID, 1234)
		require.NoError(t, err)
		assert.Equal(t, int64(3766), gotFrom.Balance)
		assert.Equal(t, int64(1334), gotTo.Balance)

		reread, err := store.GetByID(ctx, from.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3766), reread.Balance)
	})

	t.Run("MoveInsufficientLeavesBalances", func(t *testing.T) {
		store := setup(t)
		from, err := store.CreateAccount(ctx, newAccount(100))
		require.NoError(t, err)
		to, err := store.CreateAccount(ctx, newAccount(0))
		require.NoError(t, err)

		_, _, err = store.Move(ctx, from.ID, to.ID, 101)
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		a, err := store.GetByID(ctx, from.ID)
		require.NoError(t, err)
		b, err := store.GetByID(ctx, to.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), a.Balance)
		assert.Equal(t, int64(0), b.Balance)
	})

	t.Run("MoveUnknownAccount", func(t *testing.T) {
		store := setup(t)
		from, err := store.CreateAccount(ctx, newAccount(100))
		require.NoError(t, err)

		_, _, err = store.Move(ctx, from.ID, uuid.New(), 1)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ConcurrentMovesNeverOverdraw", func(t *testing.T) {
		store := setup(t)
		const n = 20
		from, err := store.CreateAccount(ctx, newAccount(n*100))
		require.NoError(t, err)
		to, err := store.CreateAccount(ctx, newAccount(0))
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		failures := 0
		for i := 0; i < n+1; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := store.Move(ctx, from.ID, to.ID, 100)
				if err != nil {
					assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
					mu.Lock()
					failures++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, failures)
		a, err := store.GetByID(ctx, from.ID)
		require.NoError(t, err)
		b, err := store.GetByID(ctx, to.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), a.Balance)
		assert.Equal(t, int64(n*100), b.Balance)
	})

	t.Run("OpposingMovesDoNotDeadlock", func(t *testing.T) {
		store := setup(t)
		a, err := store.CreateAccount(ctx, newAccount(10000))
		require.NoError(t, err)
		b, err := store.CreateAccount(ctx, newAccount(10000))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _, err := store.Move(ctx, a.ID, b.ID, 10)
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, _, err := store.Move(ctx, b.ID, a.ID, 10)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		gotA, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		gotB, err := store.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20000), gotA.Balance+gotB.Balance)
	})

	t.Run("Credit", func(t *testing.T) {
		store := setup(t)
		acc, err := store.CreateAccount(ctx, newAccount(100))
		require.NoError(t, err)

		got, err := store.Credit(ctx, acc.ID, 900)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.Balance)

		_, err = store.Credit(ctx, uuid.New(), 1)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func RunIdempotencyContract(t *testing.T, store IdempotencyStore) {
	ctx := context.Background()

	t.Run("ReserveSaveReplay", func(t *testing.T) {
		key := "idem-" + uuid.NewString()

		_, _, found, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		require.False(t, found)

		ok, err := store.Reserve(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.Reserve(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "second reserve loses")

		status, _, found, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Zero(t, status, "reserved key is pending")

		require.NoError(t, store.Save(ctx, key, 200, []byte(`{"ok":true}`)))
		require.NoError(t, store.Save(ctx, key, 201, []byte(`{"ok":false}`)), "second save is a no-op")
		require.NoError(t, store.Release(ctx, key), "release keeps a saved response")

		status, body, found, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 200, status)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("ReleaseFreesKey", func(t *testing.T) {
		key := "idem-" + uuid.NewString()

		ok, err := store.Reserve(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.Release(ctx, key))

		_, _, found, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)

		ok, err = store.Reserve(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ConcurrentReserveHasOneWinner", func(t *testing.T) {
		key := "idem-" + uuid.NewString()
		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Reserve(ctx, key)
				if assert.NoError(t, err) && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
