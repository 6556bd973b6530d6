package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	application "voteledger/contexts/governance/voting-ledger/application"
	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/ports"
)

const (
	voteRecordedTopic = "vote.recorded"
	defaultTallyCG    = "voting-ledger-tally-cg"
)

// TallySync reconciles candidate vote counters against the vote records.
// The write path bumps the counter best effort; this worker recounts from
// the ballots and raises any counter that fell behind. Counters are never
// lowered, so replayed events and concurrent bumps stay safe.
type TallySync struct {
	Subscriber    ports.EventSubscriber
	Polls         ports.PollRepository
	Candidates    ports.CandidateRepository
	Votes         ports.VoteRepository
	ConsumerGroup string
	Logger        *slog.Logger
}

// Start subscribes the tally reconciler to recorded votes.
func (s TallySync) Start(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	group := strings.TrimSpace(s.ConsumerGroup)
	if group == "" {
		group = defaultTallyCG
	}
	logger.Info("tally sync starting subscriptions",
		"event", "ledger_tally_sync_starting",
		"module", "governance/voting-ledger",
		"layer", "worker",
		"consumer_group", group,
	)
	if err := s.Subscriber.Subscribe(ctx, voteRecordedTopic, group, s.handleVoteRecorded); err != nil {
		logger.Error("tally sync subscribe failed",
			"event", "ledger_tally_sync_subscribe_failed",
			"module", "governance/voting-ledger",
			"layer", "worker",
			"topic", voteRecordedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("tally sync subscriptions active",
		"event", "ledger_tally_sync_started",
		"module", "governance/voting-ledger",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (s TallySync) handleVoteRecorded(ctx context.Context, event ports.EventEnvelope) error {
	// Recount then raise is idempotent, so replayed events need no dedupe gate.
	logger := application.ResolveLogger(s.Logger)
	var payload struct {
		PollID      uint64 `json:"poll_id"`
		CandidateID string `json:"candidate_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("vote.recorded payload decode failed",
			"event", "ledger_tally_sync_decode_failed",
			"module", "governance/voting-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	candidateID := strings.TrimSpace(payload.CandidateID)
	if candidateID == "" {
		logger.Warn("vote.recorded payload missing candidate",
			"event", "ledger_tally_sync_payload_invalid",
			"module", "governance/voting-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"poll_id", payload.PollID,
		)
		return nil
	}
	if err := s.reconcileCandidate(ctx, payload.PollID, candidateID); err != nil {
		logger.Error("vote.recorded tally reconcile failed",
			"event", "ledger_tally_sync_reconcile_failed",
			"module", "governance/voting-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"poll_id", payload.PollID,
			"candidate_id", candidateID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vote.recorded consumed",
		"event", "ledger_tally_sync_consumed",
		"module", "governance/voting-ledger",
		"layer", "worker",
		"event_id", event.EventID,
		"poll_id", payload.PollID,
		"candidate_id", candidateID,
	)
	return nil
}

// RunOnce sweeps every candidate of every poll and raises stale counters.
// The sweep backstops events lost before the outbox append succeeded.
func (s TallySync) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	logger.Info("tally sweep cycle started",
		"event", "ledger_tally_sweep_started",
		"module", "governance/voting-ledger",
		"layer", "worker",
	)

	polls, err := s.Polls.ListPolls(ctx)
	if err != nil {
		logger.Error("tally sweep poll list failed",
			"event", "ledger_tally_sweep_list_failed",
			"module", "governance/voting-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	reconciled := 0
	for _, poll := range polls {
		candidates, err := s.Candidates.ListCandidatesByPoll(ctx, poll.PollID)
		if err != nil {
			logger.Error("tally sweep candidate list failed",
				"event", "ledger_tally_sweep_candidates_failed",
				"module", "governance/voting-ledger",
				"layer", "worker",
				"poll_id", poll.PollID,
				"error", err.Error(),
			)
			return err
		}
		for _, candidate := range candidates {
			if err := s.reconcileCandidate(ctx, poll.PollID, candidate.CandidateID); err != nil {
				logger.Error("tally sweep reconcile failed",
					"event", "ledger_tally_sweep_reconcile_failed",
					"module", "governance/voting-ledger",
					"layer", "worker",
					"poll_id", poll.PollID,
					"candidate_id", candidate.CandidateID,
					"error", err.Error(),
				)
				return err
			}
			reconciled++
		}
	}

	logger.Info("tally sweep cycle completed",
		"event", "ledger_tally_sweep_completed",
		"module", "governance/voting-ledger",
		"layer", "worker",
		"candidate_count", reconciled,
	)
	return nil
}

func (s TallySync) reconcileCandidate(ctx context.Context, pollID uint64, candidateID string) error {
	count, err := s.Votes.CountVotesForCandidate(ctx, pollID, candidateID)
	if err != nil {
		return err
	}
	return s.Candidates.RaiseVoteCount(ctx, address.ForCandidate(pollID, candidateID), count)
}
