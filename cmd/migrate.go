package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the ledger and auth schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		ledgerStore, authStore, err := initStores(ctx)
		if err != nil {
			return err
		}
		defer ledgerStore.Close()
		defer authStore.Close()

		if err := ledgerStore.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate ledger store")
		}
		if err := authStore.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate auth store")
		}

		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
