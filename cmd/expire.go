package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beroe-labs/abi/internal/ledger"
)

var expireCmd = &cobra.Command{
	Use:   "expire-requests",
	Short: "Expire overdue upgrade requests and release their holds",
	Long:  "Scans pending upgrade requests, expires any past their decision deadline, releases the credit holds, and flags requests entering the escalation window. Intended to run from cron.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("expire-requests"); err != nil {
			return err
		}

		ctx := cmd.Context()
		ledgerStore, authStore, err := initStores(ctx)
		if err != nil {
			return err
		}
		defer ledgerStore.Close()
		defer authStore.Close()

		svc := ledger.NewService(ledgerStore, cfg.Credits)
		expired, err := svc.SweepExpired(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("expiry sweep complete", zap.Int("expired", expired))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expireCmd)
}
