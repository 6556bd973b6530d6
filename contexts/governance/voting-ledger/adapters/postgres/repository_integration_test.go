//go:build integration

package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("voteledger"),
		tcpostgres.WithUsername("voteledger"),
		tcpostgres.WithPassword("voteledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute)),
	)
	if err != nil {
		t.Fatalf("start postgres container failed: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string failed: %v", err)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open gorm failed: %v", err)
	}
	repo := NewRepository(db, nil)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return repo
}

func TestPostgresLedgerRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	pollAddr := address.ForPoll(42)
	poll := entities.Poll{
		PollID:         42,
		Description:    "Best peanut butter",
		CandidateCount: 2,
		StartTime:      1700000000000,
		EndTime:        1700086400000,
	}
	stored, created, err := repo.CreatePoll(ctx, pollAddr, poll)
	if err != nil || !created {
		t.Fatalf("create poll failed: created=%v err=%v", created, err)
	}
	if stored != poll {
		t.Fatalf("unexpected stored poll %+v", stored)
	}

	replayed, created, err := repo.CreatePoll(ctx, pollAddr, entities.Poll{PollID: 42, Description: "changed"})
	if err != nil {
		t.Fatalf("replay create poll failed: %v", err)
	}
	if created {
		t.Fatal("expected replay to lose the slot")
	}
	if replayed.Description != "Best peanut butter" {
		t.Fatalf("expected the original record back, got %q", replayed.Description)
	}

	candidateAddr := address.ForCandidate(42, "skippy")
	if _, created, err := repo.CreateCandidate(ctx, candidateAddr, entities.Candidate{
		CandidateID: "skippy",
		PollID:      42,
		Name:        "Skippy",
	}); err != nil || !created {
		t.Fatalf("create candidate failed: created=%v err=%v", created, err)
	}
	if _, created, err := repo.CreateCandidate(ctx, candidateAddr, entities.Candidate{
		CandidateID: "skippy",
		PollID:      42,
		Name:        "Duplicate",
	}); err != nil || created {
		t.Fatalf("expected duplicate candidate to lose the slot: created=%v err=%v", created, err)
	}

	voteAddr := address.ForVote(42, "voter-1")
	if _, created, err := repo.CreateVote(ctx, voteAddr, entities.VoteRecord{
		Voter:     "voter-1",
		PollID:    42,
		Candidate: "skippy",
	}); err != nil || !created {
		t.Fatalf("create vote failed: created=%v err=%v", created, err)
	}
	if _, created, err := repo.CreateVote(ctx, voteAddr, entities.VoteRecord{
		Voter:     "voter-1",
		PollID:    42,
		Candidate: "jif",
	}); err != nil || created {
		t.Fatalf("expected second ballot to lose the slot: created=%v err=%v", created, err)
	}
	ballot, err := repo.GetVote(ctx, voteAddr)
	if err != nil {
		t.Fatalf("load ballot failed: %v", err)
	}
	if ballot.Candidate != "skippy" {
		t.Fatalf("expected original ballot to survive, got %q", ballot.Candidate)
	}

	if err := repo.IncrementVoteCount(ctx, candidateAddr); err != nil {
		t.Fatalf("increment tally failed: %v", err)
	}
	candidate, err := repo.GetCandidate(ctx, candidateAddr)
	if err != nil {
		t.Fatalf("load candidate failed: %v", err)
	}
	if candidate.VoteCount != 1 {
		t.Fatalf("expected tally 1, got %d", candidate.VoteCount)
	}

	if err := repo.RaiseVoteCount(ctx, candidateAddr, 5); err != nil {
		t.Fatalf("raise tally failed: %v", err)
	}
	if err := repo.RaiseVoteCount(ctx, candidateAddr, 2); err != nil {
		t.Fatalf("raise below current failed: %v", err)
	}
	candidate, err = repo.GetCandidate(ctx, candidateAddr)
	if err != nil {
		t.Fatalf("reload candidate failed: %v", err)
	}
	if candidate.VoteCount != 5 {
		t.Fatalf("expected tally held at 5, got %d", candidate.VoteCount)
	}
	if err := repo.RaiseVoteCount(ctx, address.ForCandidate(42, "ghost"), 1); !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected candidate not found for missing slot, got %v", err)
	}

	count, err := repo.CountVotesForCandidate(ctx, 42, "skippy")
	if err != nil {
		t.Fatalf("count votes failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ballot, got %d", count)
	}

	listed, err := repo.ListCandidatesByPoll(ctx, 42)
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if len(listed) != 1 || listed[0].CandidateID != "skippy" {
		t.Fatalf("unexpected candidate list %+v", listed)
	}
}

func TestPostgresOutboxRows(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	envelope := ports.EventEnvelope{
		EventID:       "event-1",
		EventType:     "vote.recorded",
		OccurredAt:    base,
		SourceService: "voting-ledger",
		SchemaVersion: 1,
		PartitionKey:  address.ForPoll(42).String(),
		Data:          json.RawMessage(`{"poll_id":42}`),
	}
	if err := repo.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
	// The same envelope appended twice stays one row.
	if err := repo.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("replayed append failed: %v", err)
	}
	mutated := envelope
	mutated.Data = json.RawMessage(`{"poll_id":43}`)
	if err := repo.AppendOutbox(ctx, mutated); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict for mutated payload, got %v", err)
	}

	pending, err := repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "event-1" {
		t.Fatalf("unexpected pending rows %+v", pending)
	}
	var decoded ports.EventEnvelope
	if err := json.Unmarshal(pending[0].Payload, &decoded); err != nil {
		t.Fatalf("decode stored payload failed: %v", err)
	}
	if decoded.EventType != "vote.recorded" {
		t.Fatalf("unexpected stored envelope %+v", decoded)
	}

	if err := repo.MarkOutboxPublished(ctx, "event-1", base.Add(time.Minute)); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending after mark failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows, got %d", len(pending))
	}
	if err := repo.MarkOutboxPublished(ctx, "event-404", base); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict for unknown outbox id, got %v", err)
	}
}
