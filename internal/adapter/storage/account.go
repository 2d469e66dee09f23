package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

const accountColumns = `id, owner_name, email, card_uid, balance, currency, status, created_at`

const uniqueViolation = "23505"

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	var email, cardUID *string
	err := row.Scan(
		&acc.ID, &acc.OwnerName, &email, &cardUID, &acc.Balance, &acc.Currency, &acc.Status, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if email != nil {
		acc.Email = *email
	}
	if cardUID != nil {
		acc.CardUID = *cardUID
	}
	return &acc, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// uniqueErr maps a unique-constraint violation onto the domain error for
// the column that collided.
func uniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "accounts_card_uid_key":
		return domain.ErrDuplicateCard
	case "accounts_email_key":
		return domain.ErrDuplicateEmail
	}
	return err
}

// CreateAccount
func (r *AccountRepository) CreateAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, owner_name, email, card_uid, balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRow(ctx, query,
		in.ID, in.OwnerName, nullable(in.Email), nullable(in.CardUID), in.Balance, in.Currency,
	))
	if err != nil {
		if mapped := uniqueErr(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// CreateCardAccount relies on the card_uid unique constraint: a losing
// concurrent insert returns no row and reads the winner instead.
func (r *AccountRepository) CreateCardAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, bool, error) {
	query := `
		INSERT INTO accounts (id, owner_name, email, card_uid, balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (card_uid) DO NOTHING
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRow(ctx, query,
		in.ID, in.OwnerName, nullable(in.Email), in.CardUID, in.Balance, in.Currency,
	))
	switch {
	case err == nil:
		return acc, true, nil
	case errors.Is(err, domain.ErrNotFound):
		existing, err := r.GetByCardUID(ctx, in.CardUID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read existing card account: %w", err)
		}
		return existing, false, nil
	default:
		if mapped := uniqueErr(err); mapped != err {
			return nil, false, mapped
		}
		return nil, false, fmt.Errorf("failed to provision card account: %w", err)
	}
}

// GetByID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *AccountRepository) GetByCardUID(ctx context.Context, uid string) (*domain.Account, error) {
	return r.getBy(ctx, "card_uid", uid)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getBy(ctx, "email", email)
}

// getBy is only called with fixed column names.
func (r *AccountRepository) getBy(ctx context.Context, column string, value any) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = $1`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, value))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch account by %s: %w", column, err)
	}
	return acc, err
}
