package main

import (
	"log"

	"github.com/spf13/cobra"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start consumers/schedulers (outbox relay, tally sync).
var rootCmd = &cobra.Command{
	Use:   "voteledger-worker",
	Short: "Voting ledger background worker",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("voteledger worker failed: %v", err)
	}
}
