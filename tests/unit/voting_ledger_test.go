package unit

import (
	"context"
	"errors"
	"testing"

	votingledger "voteledger/contexts/governance/voting-ledger"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

func TestLedgerPollInitializeReplay(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)

	first, err := module.Handler.InitializePollHandler(context.Background(), httptransport.CreatePollRequest{
		PollID:         42,
		Description:    "Best peanut butter",
		CandidateCount: 2,
		StartTime:      1700000000000,
		EndTime:        1700086400000,
	})
	if err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first initialization to claim the slot")
	}

	replay, err := module.Handler.InitializePollHandler(context.Background(), httptransport.CreatePollRequest{
		PollID:      42,
		Description: "different setup payload",
	})
	if err != nil {
		t.Fatalf("replayed initialization failed: %v", err)
	}
	if replay.Created {
		t.Fatal("expected replay to reuse the stored record")
	}
	if replay.Description != "Best peanut butter" || replay.Address != first.Address {
		t.Fatalf("expected the original record back, got %+v", replay)
	}
}

func TestLedgerCandidateAndVoteFlow(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializePollHandler(ctx, httptransport.CreatePollRequest{
		PollID:         42,
		Description:    "Best peanut butter",
		CandidateCount: 2,
	}); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}

	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "skippy", httptransport.RegisterCandidateRequest{
		Name: "Skippy",
	}); err != nil {
		t.Fatalf("register skippy failed: %v", err)
	}
	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "skippy", httptransport.RegisterCandidateRequest{
		Name: "Second Registration",
	}); !errors.Is(err, domainerrors.ErrDuplicateCandidate) {
		t.Fatalf("expected duplicate candidate rejection, got %v", err)
	}
	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "jif", httptransport.RegisterCandidateRequest{
		Name: "Jif",
	}); err != nil {
		t.Fatalf("register jif failed: %v", err)
	}

	vote, err := module.Handler.CastVoteHandler(ctx, 42, "voter-1", httptransport.CastVoteRequest{
		CandidateID: "skippy",
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if vote.CandidateID != "skippy" {
		t.Fatalf("unexpected ballot %+v", vote)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, 42, "voter-1", httptransport.CastVoteRequest{
		CandidateID: "jif",
	}); !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected second ballot rejection, got %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, 42, "voter-2", httptransport.CastVoteRequest{
		CandidateID: "jif",
	}); err != nil {
		t.Fatalf("second voter ballot failed: %v", err)
	}

	results, err := module.Handler.PollResultsHandler(ctx, 42)
	if err != nil {
		t.Fatalf("poll results failed: %v", err)
	}
	if results.TotalVotes != 2 {
		t.Fatalf("expected total 2, got %d", results.TotalVotes)
	}
	if len(results.Standings) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(results.Standings))
	}
	// One vote each: candidate id breaks the tie.
	if results.Standings[0].CandidateID != "jif" || results.Standings[0].Rank != 1 {
		t.Fatalf("unexpected leader %+v", results.Standings[0])
	}

	ballot, err := module.Handler.GetVoteHandler(ctx, 42, "voter-1")
	if err != nil {
		t.Fatalf("get ballot failed: %v", err)
	}
	if ballot.CandidateID != "skippy" {
		t.Fatalf("expected the first ballot preserved, got %+v", ballot)
	}
}

func TestLedgerVoteRequiresRegisteredCandidate(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializePollHandler(ctx, httptransport.CreatePollRequest{PollID: 7}); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, 7, "voter-1", httptransport.CastVoteRequest{
		CandidateID: "nobody",
	}); !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected unknown candidate rejection, got %v", err)
	}
	if _, err := module.Handler.GetVoteHandler(ctx, 7, "voter-1"); !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected no ballot recorded, got %v", err)
	}
}
