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

// RegisterCandidateCommand is the write-model input for candidate
// registration. CandidateID is the registering party's identity key.
type RegisterCandidateCommand struct {
	PollID      uint64
	CandidateID string
	Name        string
	Description string
}

// CandidateUseCase orchestrates candidate registration. Duplicates are hard
// failures: votes reference a candidate by its derived slot, so re-registering
// with different details must never overwrite the recorded identity.
type CandidateUseCase struct {
	Polls      ports.PollRepository
	Candidates ports.CandidateRepository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// RegisterCandidate claims the candidate slot for (poll, candidateID) after
// confirming the poll exists.
func (uc CandidateUseCase) RegisterCandidate(ctx context.Context, cmd RegisterCandidateCommand) (entities.Candidate, error) {
	logger := application.ResolveLogger(uc.Logger)
	candidateID := strings.TrimSpace(cmd.CandidateID)
	logger.Info("candidate register processing started",
		"event", "ledger_candidate_register_started",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_id", candidateID,
	)
	if candidateID == "" ||
		len(cmd.Name) > entities.MaxTextLen ||
		len(cmd.Description) > entities.MaxTextLen {
		logger.Warn("candidate register validation failed",
			"event", "ledger_candidate_register_validation_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_id", candidateID,
		)
		return entities.Candidate{}, domainerrors.ErrInvalidInput
	}

	if _, err := uc.Polls.GetPoll(ctx, address.ForPoll(cmd.PollID)); err != nil {
		logger.Warn("candidate register poll lookup failed",
			"event", "ledger_candidate_register_poll_missing",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_id", candidateID,
			"error", err.Error(),
		)
		return entities.Candidate{}, err
	}

	addr := address.ForCandidate(cmd.PollID, candidateID)
	candidate := entities.Candidate{
		CandidateID: candidateID,
		PollID:      cmd.PollID,
		Name:        cmd.Name,
		Description: cmd.Description,
	}
	stored, created, err := uc.Candidates.CreateCandidate(ctx, addr, candidate)
	if err != nil {
		logger.Error("candidate register store failed",
			"event", "ledger_candidate_register_store_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_id", candidateID,
			"address", addr.String(),
			"error", err.Error(),
		)
		return entities.Candidate{}, err
	}
	if !created {
		logger.Warn("candidate register rejected duplicate",
			"event", "ledger_candidate_register_duplicate",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_id", candidateID,
			"address", addr.String(),
		)
		return entities.Candidate{}, domainerrors.ErrDuplicateCandidate
	}

	now := uc.now()
	if err := appendLedgerEvent(ctx, uc.Outbox, uc.IDGen, TopicCandidateRegistered, address.ForPoll(cmd.PollID).String(), now, map[string]any{
		"poll_id":      stored.PollID,
		"candidate_id": stored.CandidateID,
		"name":         stored.Name,
	}); err != nil {
		logger.Warn("candidate registered event append failed",
			"event", "ledger_candidate_register_event_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", stored.PollID,
			"candidate_id", stored.CandidateID,
			"error", err.Error(),
		)
	}

	logger.Info("candidate registered",
		"event", "ledger_candidate_registered",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", stored.PollID,
		"candidate_id", stored.CandidateID,
		"address", addr.String(),
	)
	return stored, nil
}

func (uc CandidateUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
