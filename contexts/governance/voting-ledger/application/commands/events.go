package commands

import (
	"context"
	"encoding/json"
	"time"

	"voteledger/contexts/governance/voting-ledger/ports"
)

const (
	TopicPollInitialized     = "poll.initialized"
	TopicCandidateRegistered = "candidate.registered"
	TopicVoteRecorded        = "vote.recorded"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	pollAddress string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by poll address so poll-scoped
	// consumers observe a stable order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_address",
		PartitionKey:     pollAddress,
		Data:             payload,
	}, nil
}

// appendLedgerEvent writes one envelope to the outbox. A nil writer is a
// no-op so pure read/test wiring needs no outbox.
func appendLedgerEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	pollAddress string,
	occurredAt time.Time,
	data map[string]any,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newLedgerEnvelope(eventID, eventType, pollAddress, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}
