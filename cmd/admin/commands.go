package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

// storeFunc and currencyFunc defer reading storage and config until the
// command actually runs.
type (
	storeFunc    func() domain.AccountStore
	currencyFunc func() domain.Currency
)

func seedCmd(store storeFunc, configured currencyFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo card accounts FAKEUID010, FAKEUID011, ...",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			currency := configured()
			if flag, _ := cmd.Flags().GetString("currency"); flag != "" {
				currency = domain.Currency(strings.ToUpper(flag))
			}
			return seed(cmd.Context(), store(), cmd.OutOrStdout(), count, currency, rand.Int64N)
		},
	}
	cmd.Flags().IntP("count", "n", 2, "Number of accounts to create")
	cmd.Flags().String("currency", "", "Account currency (defaults to CURRENCY)")
	return cmd
}

func balanceCmd(store storeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account-id | card-uid | email]",
		Short: "Show an account and its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showBalance(cmd.Context(), store(), cmd.OutOrStdout(), args[0])
		},
	}
}

func topupCmd(store storeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "topup [account-id] [amount]",
		Short: "Credit an account, amount in dollars",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return topUp(cmd.Context(), store(), cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func seed(ctx context.Context, store domain.AccountStore, out io.Writer, count int, currency domain.Currency, randN func(int64) int64) error {
	if count < 1 {
		return errors.New("count must be at least 1")
	}
	if currency == "" {
		return errors.New("currency is required")
	}
	for i := 0; i < count; i++ {
		uid := fmt.Sprintf("FAKEUID%03d", i+10)
		acc, created, err := store.CreateCardAccount(ctx, domain.NewAccount{
			ID:        uuid.New(),
			OwnerName: fmt.Sprintf("Test User%d", 1000+randN(9000)),
			CardUID:   uid,
			Balance:   randN(100_001), // $0 to $1000
			Currency:  currency,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", uid, err)
		}
		if !created {
			fmt.Fprintf(out, "Account with card_uid %s already exists (%s)\n", uid, acc.ID)
			continue
		}
		fmt.Fprintf(out, "Inserted %s with card_uid %s, balance %s %s\n", acc.ID, uid, domain.FormatMajor(acc.Balance), acc.Currency)
	}
	return nil
}

// lookup accepts an account id, a card uid or an email.
func lookup(ctx context.Context, store domain.AccountStore, ref string) (*domain.Account, error) {
	var (
		acc *domain.Account
		err error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		acc, err = store.GetByID(ctx, id)
	} else if uid, nerr := domain.NormalizeCardUID(ref); nerr == nil {
		acc, err = store.GetByCardUID(ctx, uid)
	} else {
		acc, err = store.GetByEmail(ctx, domain.NormalizeEmail(ref))
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no account matches %q", ref)
	}
	return acc, err
}

func showBalance(ctx context.Context, store domain.AccountStore, out io.Writer, ref string) error {
	acc, err := lookup(ctx, store, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ID:       %s\n", acc.ID)
	fmt.Fprintf(out, "Owner:    %s\n", acc.OwnerName)
	if acc.Email != "" {
		fmt.Fprintf(out, "Email:    %s\n", acc.Email)
	}
	if acc.CardUID != "" {
		fmt.Fprintf(out, "Card:     ****%s\n", domain.LastFour(acc.CardUID))
	}
	fmt.Fprintf(out, "Status:   %s\n", acc.Status)
	fmt.Fprintf(out, "Balance:  %s %s\n", domain.FormatMajor(acc.Balance), acc.Currency)
	return nil
}

func topUp(ctx context.Context, store domain.AccountStore, out io.Writer, rawID, rawAmount string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid account id %q", rawID)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", rawAmount)
	}
	minor, err := domain.ToMinor(amount)
	if err != nil {
		return err
	}
	if minor <= 0 {
		return domain.ErrInvalidAmount
	}

	acc, err := store.Credit(ctx, id, minor)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no account with id %s", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Credited %s to %s, new balance %s\n", domain.FormatMajor(minor), acc.OwnerName, domain.FormatMajor(acc.Balance))
	return nil
}
