package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voteledger/internal/app/bootstrap"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the outbox relay and tally sync loops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.BuildWorker()
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				log.Printf("worker shutdown close failed: %v", err)
			}
		}()
		return app.Run(ctx)
	},
}
