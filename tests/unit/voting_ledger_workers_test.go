package unit

import (
	"context"
	"encoding/json"
	"testing"

	votingledger "voteledger/contexts/governance/voting-ledger"
	ledgerworkers "voteledger/contexts/governance/voting-ledger/application/workers"
	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	"voteledger/contexts/governance/voting-ledger/ports"
	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

type ledgerCapturePublisher struct {
	topics []string
}

func (p *ledgerCapturePublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	return nil
}

func httpCreatePoll(pollID uint64) httptransport.CreatePollRequest {
	return httptransport.CreatePollRequest{
		PollID:         pollID,
		Description:    "Best peanut butter",
		CandidateCount: 2,
	}
}

func httpRegisterCandidate(name string) httptransport.RegisterCandidateRequest {
	return httptransport.RegisterCandidateRequest{Name: name}
}

func httpCastVote(candidateID string) httptransport.CastVoteRequest {
	return httptransport.CastVoteRequest{CandidateID: candidateID}
}

func TestLedgerOutboxRelayDrainsCommandEvents(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializePollHandler(ctx, httpCreatePoll(42)); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "skippy", httpRegisterCandidate("Skippy")); err != nil {
		t.Fatalf("register candidate failed: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, 42, "voter-1", httpCastVote("skippy")); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	pub := &ledgerCapturePublisher{}
	relay := ledgerworkers.OutboxRelay{Outbox: module.Store, Publisher: pub}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	seen := map[string]bool{}
	for _, topic := range pub.topics {
		seen[topic] = true
	}
	for _, want := range []string{"poll.initialized", "candidate.registered", "vote.recorded"} {
		if !seen[want] {
			t.Fatalf("expected %s published, got %v", want, pub.topics)
		}
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox after relay failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %d rows", len(pending))
	}
}

func TestLedgerTallySweepRepairsMissedBump(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializePollHandler(ctx, httpCreatePoll(42)); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "skippy", httpRegisterCandidate("Skippy")); err != nil {
		t.Fatalf("register candidate failed: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, 42, "voter-1", httpCastVote("skippy")); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	// A ballot written without its counter bump, as when the increment fails
	// after the record landed.
	if _, _, err := module.Store.CreateVote(ctx, address.ForVote(42, "voter-2"), entities.VoteRecord{
		Voter:     "voter-2",
		PollID:    42,
		Candidate: "skippy",
	}); err != nil {
		t.Fatalf("seed orphan ballot failed: %v", err)
	}

	before, err := module.Handler.GetCandidateHandler(ctx, 42, "skippy")
	if err != nil {
		t.Fatalf("load candidate failed: %v", err)
	}
	if before.VoteCount != 1 {
		t.Fatalf("expected counter 1 before sweep, got %d", before.VoteCount)
	}

	sweep := ledgerworkers.TallySync{Polls: module.Store, Candidates: module.Store, Votes: module.Store}
	if err := sweep.RunOnce(ctx); err != nil {
		t.Fatalf("tally sweep failed: %v", err)
	}

	after, err := module.Handler.GetCandidateHandler(ctx, 42, "skippy")
	if err != nil {
		t.Fatalf("reload candidate failed: %v", err)
	}
	if after.VoteCount != 2 {
		t.Fatalf("expected counter repaired to 2, got %d", after.VoteCount)
	}

	results, err := module.Handler.PollResultsHandler(ctx, 42)
	if err != nil {
		t.Fatalf("poll results failed: %v", err)
	}
	if results.TotalVotes != 2 {
		t.Fatalf("expected total 2 after repair, got %d", results.TotalVotes)
	}
}

func TestLedgerVoteEventCarriesBallotFields(t *testing.T) {
	module := votingledger.NewInMemoryModule(nil)
	ctx := context.Background()

	if _, err := module.Handler.InitializePollHandler(ctx, httpCreatePoll(42)); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if _, err := module.Handler.RegisterCandidateHandler(ctx, 42, "skippy", httpRegisterCandidate("Skippy")); err != nil {
		t.Fatalf("register candidate failed: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, 42, "voter-1", httpCastVote("skippy")); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	found := false
	for _, row := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope failed: %v", err)
		}
		if envelope.EventType != "vote.recorded" {
			continue
		}
		found = true
		if envelope.SourceService != "voting-ledger" || envelope.SchemaVersion != 1 {
			t.Fatalf("unexpected envelope metadata %+v", envelope)
		}
		if envelope.PartitionKey != address.ForPoll(42).String() {
			t.Fatalf("expected poll address partition key, got %s", envelope.PartitionKey)
		}
		var data struct {
			PollID      uint64 `json:"poll_id"`
			CandidateID string `json:"candidate_id"`
			VoterID     string `json:"voter_id"`
		}
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			t.Fatalf("decode event data failed: %v", err)
		}
		if data.PollID != 42 || data.CandidateID != "skippy" || data.VoterID != "voter-1" {
			t.Fatalf("unexpected event data %+v", data)
		}
	}
	if !found {
		t.Fatal("expected vote.recorded event in outbox")
	}
}
