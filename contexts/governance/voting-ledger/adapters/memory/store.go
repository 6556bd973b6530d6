package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store keeps ledger records in per-slot atomic maps. Create-if-absent and
// counter updates go through LoadOrStore and CompareAndSwap, so operations on
// distinct slots never contend on a shared lock.
type Store struct {
	polls      sync.Map
	candidates sync.Map
	votes      sync.Map

	mu     sync.RWMutex
	outbox map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		outbox: make(map[string]outboxRecord),
	}
}

func (s *Store) CreatePoll(_ context.Context, addr address.Address, poll entities.Poll) (entities.Poll, bool, error) {
	existing, loaded := s.polls.LoadOrStore(addr.String(), poll)
	if loaded {
		return existing.(entities.Poll), false, nil
	}
	return poll, true, nil
}

func (s *Store) GetPoll(_ context.Context, addr address.Address) (entities.Poll, error) {
	value, ok := s.polls.Load(addr.String())
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return value.(entities.Poll), nil
}

func (s *Store) ListPolls(_ context.Context) ([]entities.Poll, error) {
	items := make([]entities.Poll, 0)
	s.polls.Range(func(_, value any) bool {
		items = append(items, value.(entities.Poll))
		return true
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].PollID < items[j].PollID
	})
	return items, nil
}

func (s *Store) CreateCandidate(_ context.Context, addr address.Address, candidate entities.Candidate) (entities.Candidate, bool, error) {
	existing, loaded := s.candidates.LoadOrStore(addr.String(), candidate)
	if loaded {
		return existing.(entities.Candidate), false, nil
	}
	return candidate, true, nil
}

func (s *Store) GetCandidate(_ context.Context, addr address.Address) (entities.Candidate, error) {
	value, ok := s.candidates.Load(addr.String())
	if !ok {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	return value.(entities.Candidate), nil
}

func (s *Store) ListCandidatesByPoll(_ context.Context, pollID uint64) ([]entities.Candidate, error) {
	items := make([]entities.Candidate, 0)
	s.candidates.Range(func(_, value any) bool {
		candidate := value.(entities.Candidate)
		if candidate.PollID == pollID {
			items = append(items, candidate)
		}
		return true
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) IncrementVoteCount(_ context.Context, addr address.Address) error {
	key := addr.String()
	for {
		value, ok := s.candidates.Load(key)
		if !ok {
			return domainerrors.ErrCandidateNotFound
		}
		current := value.(entities.Candidate)
		next := current
		next.VoteCount++
		if s.candidates.CompareAndSwap(key, current, next) {
			return nil
		}
	}
}

func (s *Store) RaiseVoteCount(_ context.Context, addr address.Address, atLeast uint64) error {
	key := addr.String()
	for {
		value, ok := s.candidates.Load(key)
		if !ok {
			return domainerrors.ErrCandidateNotFound
		}
		current := value.(entities.Candidate)
		if current.VoteCount >= atLeast {
			return nil
		}
		next := current
		next.VoteCount = atLeast
		if s.candidates.CompareAndSwap(key, current, next) {
			return nil
		}
	}
}

func (s *Store) CreateVote(_ context.Context, addr address.Address, record entities.VoteRecord) (entities.VoteRecord, bool, error) {
	existing, loaded := s.votes.LoadOrStore(addr.String(), record)
	if loaded {
		return existing.(entities.VoteRecord), false, nil
	}
	return record, true, nil
}

func (s *Store) GetVote(_ context.Context, addr address.Address) (entities.VoteRecord, error) {
	value, ok := s.votes.Load(addr.String())
	if !ok {
		return entities.VoteRecord{}, domainerrors.ErrVoteNotFound
	}
	return value.(entities.VoteRecord), nil
}

func (s *Store) CountVotesForCandidate(_ context.Context, pollID uint64, candidateID string) (uint64, error) {
	candidateID = strings.TrimSpace(candidateID)
	var count uint64
	s.votes.Range(func(_, value any) bool {
		record := value.(entities.VoteRecord)
		if record.PollID == pollID && record.Candidate == candidateID {
			count++
		}
		return true
	})
	return count, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PollRepository = (*Store)(nil)
var _ ports.CandidateRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
