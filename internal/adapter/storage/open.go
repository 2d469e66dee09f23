package storage

import (
	"context"
	"fmt"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/mysqlstore"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// AccountBackend is an account store that can report its health.
type AccountBackend interface {
	domain.AccountStore
	Ping(ctx context.Context) error
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Lookup(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Save(ctx context.Context, key string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// Backend bundles the stores of one storage driver.
type Backend struct {
	Driver      string
	Accounts    AccountBackend
	Idempotency IdempotencyStore

	close func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured driver and makes sure its schema exists.
func Open(ctx context.Context, driver, databaseURL string) (*Backend, error) {
	switch driver {
	case DriverPostgres:
		pool, err := ConnectDB(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Driver:      driver,
			Accounts:    NewAccountRepository(pool),
			Idempotency: NewIdempotencyRepository(pool),
			close:       pool.Close,
		}, nil

	case DriverMySQL:
		db, err := mysqlstore.Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := mysqlstore.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{
			Driver:      driver,
			Accounts:    mysqlstore.NewAccountRepository(db),
			Idempotency: mysqlstore.NewIdempotencyRepository(db),
			close:       func() { db.Close() },
		}, nil

	case DriverMemory:
		return &Backend{
			Driver:      driver,
			Accounts:    memory.NewAccountStore(),
			Idempotency: memory.NewIdempotencyStore(),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
