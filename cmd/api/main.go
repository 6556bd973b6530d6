package main

import (
	"log"

	"github.com/spf13/cobra"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
var rootCmd = &cobra.Command{
	Use:   "voteledger-api",
	Short: "Voting ledger HTTP API service",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("voteledger api failed: %v", err)
	}
}
