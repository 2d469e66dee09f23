package mysqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/mysqlstore"
	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/storetest"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

// TEST_MYSQL_DSN=root:root@tcp(localhost:3306)/tappay_test
func connect(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := mysqlstore.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, mysqlstore.Migrate(ctx, db))
	return db
}

func TestAccountRepository(t *testing.T) {
	db := connect(t)
	storetest.RunAccountStoreContract(t, func(t *testing.T) domain.AccountStore {
		return mysqlstore.NewAccountRepository(db)
	})
}

func TestIdempotencyRepository(t *testing.T) {
	db := connect(t)
	storetest.RunIdempotencyContract(t, mysqlstore.NewIdempotencyRepository(db))
}

func TestConnectRejectsBadDSN(t *testing.T) {
	_, err := mysqlstore.Connect(context.Background(), "")
	require.Error(t, err)

	_, err = mysqlstore.Connect(context.Background(), "not a dsn")
	require.Error(t, err)
	var cfgErr *mysql.MySQLError
	assert.False(t, errors.As(err, &cfgErr), "parse failures happen before any server round trip")
}
