package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage"
	"github.com/ibrahimkeyboad/tappay/internal/core/config"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

var Version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	var (
		cfg     *config.Config
		backend *storage.Backend
	)
	rootCmd := &cobra.Command{
		Use:     "tappay-admin",
		Short:   "Operator tools for the TapPay wallet",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return err
			}
			backend, err = storage.Open(cmd.Context(), cfg.StorageDriver, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if backend != nil {
				backend.Close()
			}
		},
		SilenceUsage: true,
	}

	store := func() domain.AccountStore { return backend.Accounts }
	currency := func() domain.Currency { return domain.Currency(cfg.Currency) }
	rootCmd.AddCommand(seedCmd(store, currency))
	rootCmd.AddCommand(balanceCmd(store))
	rootCmd.AddCommand(topupCmd(store))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
