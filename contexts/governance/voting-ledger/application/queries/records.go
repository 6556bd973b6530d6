package queries

import (
	"context"
	"strings"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	"voteledger/contexts/governance/voting-ledger/ports"
)

// RecordsUseCase reads ledger records back by their natural keys. Identity
// keys are trimmed the same way the write side trims them, so a read for
// " alice " finds the record written for "alice".
type RecordsUseCase struct {
	Polls      ports.PollRepository
	Candidates ports.CandidateRepository
	Votes      ports.VoteRepository
}

func (uc RecordsUseCase) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	return uc.Polls.GetPoll(ctx, address.ForPoll(pollID))
}

func (uc RecordsUseCase) GetCandidate(ctx context.Context, pollID uint64, candidateID string) (entities.Candidate, error) {
	return uc.Candidates.GetCandidate(ctx, address.ForCandidate(pollID, strings.TrimSpace(candidateID)))
}

func (uc RecordsUseCase) GetVote(ctx context.Context, pollID uint64, voterID string) (entities.VoteRecord, error) {
	return uc.Votes.GetVote(ctx, address.ForVote(pollID, strings.TrimSpace(voterID)))
}

func (uc RecordsUseCase) ListPolls(ctx context.Context) ([]entities.Poll, error) {
	return uc.Polls.ListPolls(ctx)
}

func (uc RecordsUseCase) ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	candidates, err := uc.Candidates.ListCandidatesByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)
	return candidates, nil
}
