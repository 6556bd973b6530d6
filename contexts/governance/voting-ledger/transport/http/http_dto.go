package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	PollID         uint64 `json:"poll_id"`
	Description    string `json:"description"`
	CandidateCount uint64 `json:"candidate_count"`
	StartTime      uint64 `json:"start_time"`
	EndTime        uint64 `json:"end_time"`
}

type PollResponse struct {
	PollID         uint64 `json:"poll_id"`
	Address        string `json:"address"`
	Description    string `json:"description"`
	CandidateCount uint64 `json:"candidate_count"`
	StartTime      uint64 `json:"start_time"`
	EndTime        uint64 `json:"end_time"`
	Created        bool   `json:"created,omitempty"`
}

type PollListResponse struct {
	Items []PollResponse `json:"items"`
}

type RegisterCandidateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CandidateResponse struct {
	CandidateID string `json:"candidate_id"`
	PollID      uint64 `json:"poll_id"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	VoteCount   uint64 `json:"vote_count"`
}

type CandidateListResponse struct {
	Items []CandidateResponse `json:"items"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

type VoteResponse struct {
	VoterID     string `json:"voter_id"`
	PollID      uint64 `json:"poll_id"`
	CandidateID string `json:"candidate_id"`
	Address     string `json:"address"`
}

type StandingItem struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	VoteCount   uint64 `json:"vote_count"`
	Rank        int    `json:"rank"`
}

type PollResultsResponse struct {
	PollID      uint64         `json:"poll_id"`
	Description string         `json:"description"`
	TotalVotes  uint64         `json:"total_votes"`
	Standings   []StandingItem `json:"standings"`
}
