package ports

import (
	"context"
	"encoding/json"
	"time"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
)

// Repositories expose create-if-absent semantics: the bool reports whether
// the slot was claimed by this call. When it is false the returned record is
// the one already stored, untouched. Duplicate policy (soft for polls, hard
// for candidates and votes) belongs to the application layer, not here.

type PollRepository interface {
	CreatePoll(ctx context.Context, addr address.Address, poll entities.Poll) (entities.Poll, bool, error)
	GetPoll(ctx context.Context, addr address.Address) (entities.Poll, error)
	ListPolls(ctx context.Context) ([]entities.Poll, error)
}

type CandidateRepository interface {
	CreateCandidate(ctx context.Context, addr address.Address, candidate entities.Candidate) (entities.Candidate, bool, error)
	GetCandidate(ctx context.Context, addr address.Address) (entities.Candidate, error)
	ListCandidatesByPoll(ctx context.Context, pollID uint64) ([]entities.Candidate, error)
	IncrementVoteCount(ctx context.Context, addr address.Address) error
	RaiseVoteCount(ctx context.Context, addr address.Address, atLeast uint64) error
}

type VoteRepository interface {
	CreateVote(ctx context.Context, addr address.Address, vote entities.VoteRecord) (entities.VoteRecord, bool, error)
	GetVote(ctx context.Context, addr address.Address) (entities.VoteRecord, error)
	CountVotesForCandidate(ctx context.Context, pollID uint64, candidateID string) (uint64, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope is the canonical event shape relayed from the outbox to the
// bus. Data carries the topic-specific payload.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// OutboxMessage is one persisted, not-yet-published envelope.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}
