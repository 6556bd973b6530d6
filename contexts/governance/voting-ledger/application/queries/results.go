package queries

import (
	"context"
	"sort"

	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	"voteledger/contexts/governance/voting-ledger/ports"
)

// PollResults is the read model for a poll's standings. Standings are ordered
// by vote count descending with candidate ID as the tiebreak, so equal tallies
// render in a stable order.
type PollResults struct {
	Poll       entities.Poll
	Standings  []entities.Candidate
	TotalVotes uint64
}

type ResultsUseCase struct {
	Polls      ports.PollRepository
	Candidates ports.CandidateRepository
}

func (uc ResultsUseCase) PollResults(ctx context.Context, pollID uint64) (PollResults, error) {
	poll, err := uc.Polls.GetPoll(ctx, address.ForPoll(pollID))
	if err != nil {
		return PollResults{}, err
	}
	candidates, err := uc.Candidates.ListCandidatesByPoll(ctx, pollID)
	if err != nil {
		return PollResults{}, err
	}
	sortCandidates(candidates)
	results := PollResults{
		Poll:      poll,
		Standings: candidates,
	}
	for _, candidate := range candidates {
		results.TotalVotes += candidate.VoteCount
	}
	return results, nil
}

func sortCandidates(candidates []entities.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].VoteCount == candidates[j].VoteCount {
			return candidates[i].CandidateID < candidates[j].CandidateID
		}
		return candidates[i].VoteCount > candidates[j].VoteCount
	})
}
