package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid ledger input")
	ErrPollNotFound       = errors.New("poll not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrDuplicateCandidate = errors.New("candidate already registered for poll")
	ErrDuplicateVote      = errors.New("voter already voted in poll")
	ErrConflict           = errors.New("ledger record conflict")
)
