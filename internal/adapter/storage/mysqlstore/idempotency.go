package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IdempotencyRepository stores one row per key. A reserved key holds
// response_status 0 until Save writes the real response.
type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Reserve(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO idempotency_keys (key_id, response_status, response_body) VALUES (?, 0, ?)",
		key, []byte{})
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return n == 1, nil
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	var status int
	var body []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = ?", key).Scan(&status, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return status, body, true, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, key string, status int, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	// The IF keeps a response that is already stored.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			response_body = IF(response_status = 0, VALUES(response_body), response_body),
			response_status = IF(response_status = 0, VALUES(response_status), response_status)`,
		key, status, body)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM idempotency_keys WHERE key_id = ? AND response_status = 0", key)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
