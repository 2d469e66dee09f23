package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

const accountColumns = `id, owner_name, email, card_uid, balance, currency, status, created_at`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var acc domain.Account
	var email, cardUID sql.NullString
	err := row.Scan(&acc.ID, &acc.OwnerName, &email, &cardUID, &acc.Balance, &acc.Currency, &acc.Status, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Email = email.String
	acc.CardUID = cardUID.String
	return &acc, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func getBy(ctx context.Context, q querier, column string, value any) (*domain.Account, error) {
	acc, err := scanAccount(q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch account by %s: %w", column, err)
	}
	return acc, err
}

func (r *AccountRepository) insert(ctx context.Context, in domain.NewAccount) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_name, email, card_uid, balance, currency)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.OwnerName, nullable(in.Email), nullable(in.CardUID), in.Balance, in.Currency)
	return err
}

func (r *AccountRepository) CreateAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	if err := r.insert(ctx, in); err != nil {
		switch duplicateKey(err) {
		case "card_uid":
			return nil, domain.ErrDuplicateCard
		case "email":
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return r.GetByID(ctx, in.ID)
}

// CreateCardAccount inserts and, when the card_uid key is already taken,
// returns the row that won.
func (r *AccountRepository) CreateCardAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, bool, error) {
	err := r.insert(ctx, in)
	switch {
	case err == nil:
		acc, err := r.GetByID(ctx, in.ID)
		return acc, err == nil, err
	case duplicateKey(err) == "card_uid":
		existing, err := r.GetByCardUID(ctx, in.CardUID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read existing card account: %w", err)
		}
		return existing, false, nil
	case duplicateKey(err) == "email":
		return nil, false, domain.ErrDuplicateEmail
	}
	return nil, false, fmt.Errorf("failed to provision card account: %w", err)
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return getBy(ctx, r.db, "id", id)
}

func (r *AccountRepository) GetByCardUID(ctx context.Context, uid string) (*domain.Account, error) {
	return getBy(ctx, r.db, "card_uid", uid)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return getBy(ctx, r.db, "email", email)
}

func (r *AccountRepository) Move(ctx context.Context, fromID, toID uuid.UUID, amount int64) (*domain.Account, *domain.Account, error) {
	if fromID == toID {
		return nil, nil, domain.ErrSelfTransfer
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	// Deadlock prevention: consistent lock order
	firstID, secondID := domain.LockOrder(fromID, toID)
	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{firstID, secondID} {
		var balance int64
		err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ? FOR UPDATE`, id).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock account %s: %w", id, err)
		}
		balances[id] = balance
	}

	if balances[fromID] < amount {
		return nil, nil, domain.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance - ? WHERE id = ?`, amount, fromID); err != nil {
		return nil, nil, fmt.Errorf("failed to debit account %s: %w", fromID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + ? WHERE id = ?`, amount, toID); err != nil {
		return nil, nil, fmt.Errorf("failed to credit account %s: %w", toID, err)
	}

	from, err := getBy(ctx, tx, "id", fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := getBy(ctx, tx, "id", toID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit failed: %w", err)
	}
	return from, to, nil
}

func (r *AccountRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (*domain.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ? AND balance + ? >= 0`, amount, id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit account %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientFunds
	}
	return r.GetByID(ctx, id)
}
