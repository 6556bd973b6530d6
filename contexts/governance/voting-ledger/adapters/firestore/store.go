package firestoreadapter

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	domainerrors "voteledger/contexts/governance/voting-ledger/domain/errors"
	"voteledger/contexts/governance/voting-ledger/ports"
)

const (
	pollCollection      = "polls"
	candidateCollection = "candidates"
	voteCollection      = "votes"
)

// Store keeps ledger records in Firestore documents keyed by the derived slot.
// Document Create rejects an existing ID atomically, which is the same
// create-if-absent primitive the other backends provide.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewStore(client *firestore.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		logger: logger,
	}
}

func (s *Store) CreatePoll(ctx context.Context, addr address.Address, poll entities.Poll) (entities.Poll, bool, error) {
	ref := s.client.Collection(pollCollection).Doc(addr.String())
	if _, err := ref.Create(ctx, pollDocFrom(poll)); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return entities.Poll{}, false, s.logError("ledger_firestore_create_poll_failed", err,
				"slot", addr.String(),
				"poll_id", poll.PollID,
			)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return entities.Poll{}, false, s.logError("ledger_firestore_create_poll_load_existing_failed", err,
				"slot", addr.String(),
				"poll_id", poll.PollID,
			)
		}
		var doc pollDoc
		if err := snap.DataTo(&doc); err != nil {
			return entities.Poll{}, false, s.logError("ledger_firestore_create_poll_decode_failed", err,
				"slot", addr.String(),
				"poll_id", poll.PollID,
			)
		}
		return doc.toEntity(), false, nil
	}
	return poll, true, nil
}

func (s *Store) GetPoll(ctx context.Context, addr address.Address) (entities.Poll, error) {
	snap, err := s.client.Collection(pollCollection).Doc(addr.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, s.logError("ledger_firestore_get_poll_failed", err, "slot", addr.String())
	}
	var doc pollDoc
	if err := snap.DataTo(&doc); err != nil {
		return entities.Poll{}, s.logError("ledger_firestore_get_poll_decode_failed", err, "slot", addr.String())
	}
	return doc.toEntity(), nil
}

func (s *Store) ListPolls(ctx context.Context) ([]entities.Poll, error) {
	iter := s.client.Collection(pollCollection).Documents(ctx)
	defer iter.Stop()

	items := make([]entities.Poll, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.logError("ledger_firestore_list_polls_failed", err)
		}
		var doc pollDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, s.logError("ledger_firestore_list_polls_decode_failed", err, "slot", snap.Ref.ID)
		}
		items = append(items, doc.toEntity())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PollID < items[j].PollID
	})
	return items, nil
}

func (s *Store) CreateCandidate(ctx context.Context, addr address.Address, candidate entities.Candidate) (entities.Candidate, bool, error) {
	ref := s.client.Collection(candidateCollection).Doc(addr.String())
	if _, err := ref.Create(ctx, candidateDocFrom(candidate)); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return entities.Candidate{}, false, s.logError("ledger_firestore_create_candidate_failed", err,
				"slot", addr.String(),
				"poll_id", candidate.PollID,
				"candidate_id", strings.TrimSpace(candidate.CandidateID),
			)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return entities.Candidate{}, false, s.logError("ledger_firestore_create_candidate_load_existing_failed", err,
				"slot", addr.String(),
				"poll_id", candidate.PollID,
			)
		}
		var doc candidateDoc
		if err := snap.DataTo(&doc); err != nil {
			return entities.Candidate{}, false, s.logError("ledger_firestore_create_candidate_decode_failed", err,
				"slot", addr.String(),
				"poll_id", candidate.PollID,
			)
		}
		return doc.toEntity(), false, nil
	}
	return candidate, true, nil
}

func (s *Store) GetCandidate(ctx context.Context, addr address.Address) (entities.Candidate, error) {
	snap, err := s.client.Collection(candidateCollection).Doc(addr.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return entities.Candidate{}, domainerrors.ErrCandidateNotFound
		}
		return entities.Candidate{}, s.logError("ledger_firestore_get_candidate_failed", err, "slot", addr.String())
	}
	var doc candidateDoc
	if err := snap.DataTo(&doc); err != nil {
		return entities.Candidate{}, s.logError("ledger_firestore_get_candidate_decode_failed", err, "slot", addr.String())
	}
	return doc.toEntity(), nil
}

func (s *Store) ListCandidatesByPoll(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	iter := s.client.Collection(candidateCollection).
		Where("poll_id", "==", int64(pollID)).
		Documents(ctx)
	defer iter.Stop()

	items := make([]entities.Candidate, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.logError("ledger_firestore_list_candidates_failed", err, "poll_id", pollID)
		}
		var doc candidateDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, s.logError("ledger_firestore_list_candidates_decode_failed", err, "slot", snap.Ref.ID)
		}
		items = append(items, doc.toEntity())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) IncrementVoteCount(ctx context.Context, addr address.Address) error {
	ref := s.client.Collection(candidateCollection).Doc(addr.String())
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "vote_count", Value: firestore.Increment(1)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domainerrors.ErrCandidateNotFound
		}
		return s.logError("ledger_firestore_increment_vote_count_failed", err, "slot", addr.String())
	}
	return nil
}

func (s *Store) RaiseVoteCount(ctx context.Context, addr address.Address, atLeast uint64) error {
	ref := s.client.Collection(candidateCollection).Doc(addr.String())
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc candidateDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.VoteCount >= int64(atLeast) {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "vote_count", Value: int64(atLeast)},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domainerrors.ErrCandidateNotFound
		}
		return s.logError("ledger_firestore_raise_vote_count_failed", err,
			"slot", addr.String(),
			"at_least", atLeast,
		)
	}
	return nil
}

func (s *Store) CreateVote(ctx context.Context, addr address.Address, record entities.VoteRecord) (entities.VoteRecord, bool, error) {
	ref := s.client.Collection(voteCollection).Doc(addr.String())
	if _, err := ref.Create(ctx, voteDocFrom(record)); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return entities.VoteRecord{}, false, s.logError("ledger_firestore_create_vote_failed", err,
				"slot", addr.String(),
				"poll_id", record.PollID,
				"voter_id", strings.TrimSpace(record.Voter),
			)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return entities.VoteRecord{}, false, s.logError("ledger_firestore_create_vote_load_existing_failed", err,
				"slot", addr.String(),
				"poll_id", record.PollID,
			)
		}
		var doc voteDoc
		if err := snap.DataTo(&doc); err != nil {
			return entities.VoteRecord{}, false, s.logError("ledger_firestore_create_vote_decode_failed", err,
				"slot", addr.String(),
				"poll_id", record.PollID,
			)
		}
		return doc.toEntity(), false, nil
	}
	return record, true, nil
}

func (s *Store) GetVote(ctx context.Context, addr address.Address) (entities.VoteRecord, error) {
	snap, err := s.client.Collection(voteCollection).Doc(addr.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return entities.VoteRecord{}, domainerrors.ErrVoteNotFound
		}
		return entities.VoteRecord{}, s.logError("ledger_firestore_get_vote_failed", err, "slot", addr.String())
	}
	var doc voteDoc
	if err := snap.DataTo(&doc); err != nil {
		return entities.VoteRecord{}, s.logError("ledger_firestore_get_vote_decode_failed", err, "slot", addr.String())
	}
	return doc.toEntity(), nil
}

func (s *Store) CountVotesForCandidate(ctx context.Context, pollID uint64, candidateID string) (uint64, error) {
	iter := s.client.Collection(voteCollection).
		Where("poll_id", "==", int64(pollID)).
		Where("candidate_id", "==", strings.TrimSpace(candidateID)).
		Documents(ctx)
	defer iter.Stop()

	var count uint64
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, s.logError("ledger_firestore_count_votes_failed", err,
				"poll_id", pollID,
				"candidate_id", strings.TrimSpace(candidateID),
			)
		}
		count++
	}
	return count, nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/voting-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("ledger firestore operation failed", fields...)
	return err
}

// Firestore stores integers as int64, so the unsigned entity fields are
// narrowed on write and widened on read.
type pollDoc struct {
	PollID         int64  `firestore:"poll_id"`
	Description    string `firestore:"description"`
	CandidateCount int64  `firestore:"candidate_count"`
	StartTime      int64  `firestore:"start_time"`
	EndTime        int64  `firestore:"end_time"`
}

func pollDocFrom(poll entities.Poll) pollDoc {
	return pollDoc{
		PollID:         int64(poll.PollID),
		Description:    poll.Description,
		CandidateCount: int64(poll.CandidateCount),
		StartTime:      int64(poll.StartTime),
		EndTime:        int64(poll.EndTime),
	}
}

func (d pollDoc) toEntity() entities.Poll {
	return entities.Poll{
		PollID:         uint64(d.PollID),
		Description:    d.Description,
		CandidateCount: uint64(d.CandidateCount),
		StartTime:      uint64(d.StartTime),
		EndTime:        uint64(d.EndTime),
	}
}

type candidateDoc struct {
	PollID      int64  `firestore:"poll_id"`
	CandidateID string `firestore:"candidate_id"`
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	VoteCount   int64  `firestore:"vote_count"`
}

func candidateDocFrom(candidate entities.Candidate) candidateDoc {
	return candidateDoc{
		PollID:      int64(candidate.PollID),
		CandidateID: strings.TrimSpace(candidate.CandidateID),
		Name:        candidate.Name,
		Description: candidate.Description,
		VoteCount:   int64(candidate.VoteCount),
	}
}

func (d candidateDoc) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: d.CandidateID,
		PollID:      uint64(d.PollID),
		Name:        d.Name,
		Description: d.Description,
		VoteCount:   uint64(d.VoteCount),
	}
}

type voteDoc struct {
	PollID      int64  `firestore:"poll_id"`
	VoterID     string `firestore:"voter_id"`
	CandidateID string `firestore:"candidate_id"`
}

func voteDocFrom(record entities.VoteRecord) voteDoc {
	return voteDoc{
		PollID:      int64(record.PollID),
		VoterID:     strings.TrimSpace(record.Voter),
		CandidateID: strings.TrimSpace(record.Candidate),
	}
}

func (d voteDoc) toEntity() entities.VoteRecord {
	return entities.VoteRecord{
		Voter:     d.VoterID,
		PollID:    uint64(d.PollID),
		Candidate: d.CandidateID,
	}
}

var _ ports.PollRepository = (*Store)(nil)
var _ ports.CandidateRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
