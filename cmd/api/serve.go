package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"voteledger/internal/app/bootstrap"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voting ledger API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.BuildAPI()
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				log.Printf("api shutdown close failed: %v", err)
			}
		}()
		return app.Run(context.Background())
	},
}
