package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository stores one row per key. A reserved key holds
// response_status 0 until Save writes the real response.
type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Reserve(ctx context.Context, key string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, 0, ''::bytea) ON CONFLICT DO NOTHING",
		key)
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	var status int
	var body []byte
	err := r.db.QueryRow(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1",
		key).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3)
		ON CONFLICT (key_id) DO UPDATE
		SET response_status = EXCLUDED.response_status, response_body = EXCLUDED.response_body
		WHERE idempotency_keys.response_status = 0`,
		key, status, body)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM idempotency_keys WHERE key_id = $1 AND response_status = 0", key)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
