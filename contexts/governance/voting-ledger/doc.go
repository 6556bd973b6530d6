// Package votingledger implements the voting ledger inside the governance
// context.
//
// The module records polls, candidate registrations, and ballots at
// deterministic content-derived addresses. Atomic create-if-absent on those
// addresses is the only uniqueness mechanism: poll initialization is
// replay-tolerant, while duplicate candidate registrations and repeat ballots
// are rejected. Candidate tallies are projections reconciled from the ballot
// records by a background worker. Business rules live in application/domain
// layers; infrastructure stays behind ports and adapters.
package votingledger
