package commands

import (
	"context"
	"log/slog"
	"time"

	application "voteledger/contexts/governance/voting-ledger/application"
	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"
)

// InitializePollCommand is the write-model input for poll creation.
// Start/end times are epoch milliseconds and stored as given.
type InitializePollCommand struct {
	PollID         uint64
	Description    string
	CandidateCount uint64
	StartTime      uint64
	EndTime        uint64
}

// InitializePollResult reports the stored poll plus whether this call claimed
// the slot. Created=false means the poll already existed and the returned
// record is the original one, unmodified.
type InitializePollResult struct {
	Poll    entities.Poll
	Created bool
}

// PollUseCase orchestrates poll creation. Duplicate initialization is
// deliberately soft: the slot is claimed exactly once and later attempts get
// the stored record back without error, so replayed setup calls cannot
// corrupt a live poll.
type PollUseCase struct {
	Polls  ports.PollRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// InitializePoll claims the derived poll slot, or returns the existing record
// when the slot is already occupied.
func (uc PollUseCase) InitializePoll(ctx context.Context, cmd InitializePollCommand) (InitializePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll initialize processing started",
		"event", "ledger_poll_initialize_started",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", cmd.PollID,
	)
	if len(cmd.Description) > entities.MaxTextLen {
		logger.Warn("poll initialize validation failed",
			"event", "ledger_poll_initialize_validation_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"description_len", len(cmd.Description),
		)
		return InitializePollResult{}, domainerrors.ErrInvalidInput
	}

	addr := address.ForPoll(cmd.PollID)
	poll := entities.Poll{
		PollID:         cmd.PollID,
		Description:    cmd.Description,
		CandidateCount: cmd.CandidateCount,
		StartTime:      cmd.StartTime,
		EndTime:        cmd.EndTime,
	}
	stored, created, err := uc.Polls.CreatePoll(ctx, addr, poll)
	if err != nil {
		logger.Error("poll initialize store failed",
			"event", "ledger_poll_initialize_store_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", cmd.PollID,
			"address", addr.String(),
			"error", err.Error(),
		)
		return InitializePollResult{}, err
	}
	if !created {
		logger.Info("poll initialize reused existing record",
			"event", "ledger_poll_initialize_reused",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", stored.PollID,
			"address", addr.String(),
		)
		return InitializePollResult{Poll: stored}, nil
	}

	now := uc.now()
	if err := appendLedgerEvent(ctx, uc.Outbox, uc.IDGen, TopicPollInitialized, addr.String(), now, map[string]any{
		"poll_id":         stored.PollID,
		"description":     stored.Description,
		"candidate_count": stored.CandidateCount,
		"start_time":      stored.StartTime,
		"end_time":        stored.EndTime,
	}); err != nil {
		// The record is durable; a lost event only delays downstream
		// projections until the tally sweep runs.
		logger.Warn("poll initialized event append failed",
			"event", "ledger_poll_initialize_event_failed",
			"module", "governance/voting-ledger",
			"layer", "application",
			"poll_id", stored.PollID,
			"error", err.Error(),
		)
	}

	logger.Info("poll initialized",
		"event", "ledger_poll_initialized",
		"module", "governance/voting-ledger",
		"layer", "application",
		"poll_id", stored.PollID,
		"address", addr.String(),
		"candidate_count", stored.CandidateCount,
	)
	return InitializePollResult{Poll: stored, Created: true}, nil
}

func (uc PollUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
