package httpadapter

import (
	"context"
	"log/slog"

	"voteledger/contexts/governance/voting-ledger/application/commands"
	"voteledger/contexts/governance/voting-ledger/application/queries"
	"voteledger/contexts/governance/voting-ledger/domain/address"
	"voteledger/contexts/governance/voting-ledger/domain/entities"
	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

type Handler struct {
	Polls      commands.PollUseCase
	Candidates commands.CandidateUseCase
	Votes      commands.VoteUseCase
	Records    queries.RecordsUseCase
	Results    queries.ResultsUseCase
	Logger     *slog.Logger
}

func (h Handler) InitializePollHandler(ctx context.Context, req httptransport.CreatePollRequest) (httptransport.PollResponse, error) {
	result, err := h.Polls.InitializePoll(ctx, commands.InitializePollCommand{
		PollID:         req.PollID,
		Description:    req.Description,
		CandidateCount: req.CandidateCount,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	response := mapPoll(result.Poll)
	response.Created = result.Created
	return response, nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID uint64) (httptransport.PollResponse, error) {
	poll, err := h.Records.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll), nil
}

func (h Handler) ListPollsHandler(ctx context.Context) (httptransport.PollListResponse, error) {
	polls, err := h.Records.ListPolls(ctx)
	if err != nil {
		return httptransport.PollListResponse{}, err
	}
	items := make([]httptransport.PollResponse, 0, len(polls))
	for _, poll := range polls {
		items = append(items, mapPoll(poll))
	}
	return httptransport.PollListResponse{Items: items}, nil
}

func (h Handler) RegisterCandidateHandler(
	ctx context.Context,
	pollID uint64,
	candidateID string,
	req httptransport.RegisterCandidateRequest,
) (httptransport.CandidateResponse, error) {
	candidate, err := h.Candidates.RegisterCandidate(ctx, commands.RegisterCandidateCommand{
		PollID:      pollID,
		CandidateID: candidateID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return mapCandidate(candidate), nil
}

func (h Handler) GetCandidateHandler(ctx context.Context, pollID uint64, candidateID string) (httptransport.CandidateResponse, error) {
	candidate, err := h.Records.GetCandidate(ctx, pollID, candidateID)
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return mapCandidate(candidate), nil
}

func (h Handler) ListCandidatesHandler(ctx context.Context, pollID uint64) (httptransport.CandidateListResponse, error) {
	candidates, err := h.Records.ListCandidates(ctx, pollID)
	if err != nil {
		return httptransport.CandidateListResponse{}, err
	}
	items := make([]httptransport.CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, mapCandidate(candidate))
	}
	return httptransport.CandidateListResponse{Items: items}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	pollID uint64,
	voterID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	record, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PollID:      pollID,
		VoterID:     voterID,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(record), nil
}

func (h Handler) GetVoteHandler(ctx context.Context, pollID uint64, voterID string) (httptransport.VoteResponse, error) {
	record, err := h.Records.GetVote(ctx, pollID, voterID)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVote(record), nil
}

func (h Handler) PollResultsHandler(ctx context.Context, pollID uint64) (httptransport.PollResultsResponse, error) {
	results, err := h.Results.PollResults(ctx, pollID)
	if err != nil {
		return httptransport.PollResultsResponse{}, err
	}
	return httptransport.PollResultsResponse{
		PollID:      results.Poll.PollID,
		Description: results.Poll.Description,
		TotalVotes:  results.TotalVotes,
		Standings:   mapStandings(results.Standings),
	}, nil
}

func mapPoll(poll entities.Poll) httptransport.PollResponse {
	return httptransport.PollResponse{
		PollID:         poll.PollID,
		Address:        address.ForPoll(poll.PollID).String(),
		Description:    poll.Description,
		CandidateCount: poll.CandidateCount,
		StartTime:      poll.StartTime,
		EndTime:        poll.EndTime,
	}
}

func mapCandidate(candidate entities.Candidate) httptransport.CandidateResponse {
	return httptransport.CandidateResponse{
		CandidateID: candidate.CandidateID,
		PollID:      candidate.PollID,
		Address:     address.ForCandidate(candidate.PollID, candidate.CandidateID).String(),
		Name:        candidate.Name,
		Description: candidate.Description,
		VoteCount:   candidate.VoteCount,
	}
}

func mapVote(record entities.VoteRecord) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		VoterID:     record.Voter,
		PollID:      record.PollID,
		CandidateID: record.Candidate,
		Address:     address.ForVote(record.PollID, record.Voter).String(),
	}
}

func mapStandings(candidates []entities.Candidate) []httptransport.StandingItem {
	items := make([]httptransport.StandingItem, 0, len(candidates))
	for i, candidate := range candidates {
		items = append(items, httptransport.StandingItem{
			CandidateID: candidate.CandidateID,
			Name:        candidate.Name,
			VoteCount:   candidate.VoteCount,
			Rank:        i + 1,
		})
	}
	return items
}
