package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "voteledger/contexts/governance/voting-ledger/application"
	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"
)

// CastVoteCommand is the write-model input for recording a ballot.
// VoterID is the voting party's identity key.
type CastVoteCommand struct {
	PollID      uint64
	VoterID     string
	CandidateID string
}

// VoteUseCase orchestrates ballot recording. One ballot per voter per poll:
// the vote slot is keyed by voter only, so a second ballot from the same
// voter collides regardless of which candidate it names.
type VoteUseCase struct {
	Polls      ports.PollRepository
	Candidates ports.CandidateRepository
	Votes      ports.VoteRepository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// CastVote records a ballot for (poll, voter) after confirming the poll and
// the named candidate both exist. The candidate tally bump is best effort;
// the ballot record itself is the source of truth for recounts.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.VoteRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	candidateID := strings.TrimSpace(cmd.CandidateID)
	logger.Info("vote cast processing started",
		"event", "ledger_vote_cast_started",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", cmd.PollID,
		"voter_id", voterID,
		"candidate_id", candidateID,
	)
	if voterID == "" || candidateID == "" {
		logger.Warn("vote cast validation failed",
			"event", "ledger_vote_cast_validation_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"candidate_id", candidateID,
		)
		return entities.VoteRecord{}, domainerrors.ErrInvalidInput
	}

	if _, err := uc.Polls.GetPoll(ctx, address.ForPoll(cmd.PollID)); err != nil {
		logger.Warn("vote cast poll lookup failed",
			"event", "ledger_vote_cast_poll_missing",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return entities.VoteRecord{}, err
	}

	candidateAddr := address.ForCandidate(cmd.PollID, candidateID)
	if _, err := uc.Candidates.GetCandidate(ctx, candidateAddr); err != nil {
		logger.Warn("vote cast candidate lookup failed",
			"event", "ledger_vote_cast_candidate_missing",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"candidate_id", candidateID,
			"error", err.Error(),
		)
		return entities.VoteRecord{}, err
	}

	voteAddr := address.ForVote(cmd.PollID, voterID)
	record := entities.VoteRecord{
		Voter:     voterID,
		PollID:    cmd.PollID,
		Candidate: candidateID,
	}
	stored, created, err := uc.Votes.CreateVote(ctx, voteAddr, record)
	if err != nil {
		logger.Error("vote cast store failed",
			"event", "ledger_vote_cast_store_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"address", voteAddr.String(),
			"error", err.Error(),
		)
		return entities.VoteRecord{}, err
	}
	if !created {
		logger.Warn("vote cast rejected duplicate",
			"event", "ledger_vote_cast_duplicate",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"prior_candidate_id", stored.Candidate,
			"address", voteAddr.String(),
		)
		return entities.VoteRecord{}, domainerrors.ErrDuplicateVote
	}

	// The ballot is durable at this point. A failed tally bump is repaired by
	// the tally sync worker recounting from the vote records.
	if err := uc.Candidates.IncrementVoteCount(ctx, candidateAddr); err != nil {
		logger.Warn("vote tally increment failed",
			"event", "ledger_vote_tally_increment_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_id", candidateID,
			"address", candidateAddr.String(),
			"error", err.Error(),
		)
	}

	now := uc.now()
	if err := appendLedgerEvent(ctx, uc.Outbox, uc.IDGen, TopicVoteRecorded, address.ForPoll(cmd.PollID).String(), now, map[string]any{
		"poll_id":      stored.PollID,
		"candidate_id": stored.Candidate,
		"voter_id":     stored.Voter,
	}); err != nil {
		logger.Warn("vote recorded event append failed",
			"event", "ledger_vote_cast_event_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", stored.PollID,
			"voter_id", stored.Voter,
			"error", err.Error(),
		)
	}

	logger.Info("vote recorded",
		"event", "ledger_vote_recorded",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", stored.PollID,
		"voter_id", stored.Voter,
		"candidate_id", stored.Candidate,
		"address", voteAddr.String(),
	)
	return stored, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
