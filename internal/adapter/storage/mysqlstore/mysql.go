// Package mysqlstore is the MySQL account store. It mirrors the Postgres
// repository with database/sql and InnoDB row locks.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id          CHAR(36) PRIMARY KEY,
		owner_name  VARCHAR(255) NOT NULL,
		email       VARCHAR(255) NULL,
		card_uid    VARCHAR(64) NULL,
		balance     BIGINT NOT NULL DEFAULT 0,
		currency    VARCHAR(3) NOT NULL,
		status      VARCHAR(16) NOT NULL DEFAULT 'active',
		created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_accounts_email (email),
		UNIQUE KEY uq_accounts_card_uid (card_uid),
		CONSTRAINT chk_accounts_balance CHECK (balance >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key_id           VARCHAR(255) PRIMARY KEY,
		response_status  INT NOT NULL,
		response_body    MEDIUMBLOB NOT NULL,
		created_at       DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB`,
}

// Connect opens a pool for a go-sql-driver DSN such as
// user:pass@tcp(localhost:3306)/tappay. parseTime is forced on.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to mysql: %w", err)
	}

	slog.Info("✅ Connected to MySQL", "addr", cfg.Addr, "db", cfg.DBName)
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

const errDuplicateEntry = 1062

// duplicateKey reports which unique key a 1062 error hit, or "".
func duplicateKey(err error) string {
	var merr *mysql.MySQLError
	if !errors.As(err, &merr) || merr.Number != errDuplicateEntry {
		return ""
	}
	switch {
	case strings.Contains(merr.Message, "uq_accounts_card_uid"):
		return "card_uid"
	case strings.Contains(merr.Message, "uq_accounts_email"):
		return "email"
	case strings.Contains(merr.Message, "PRIMARY"):
		return "id"
	}
	return ""
}
