package entities

// MaxTextLen bounds every free-text field stored in a ledger record. The
// limit matches the fixed record layout reserved per slot.
const MaxTextLen = 280

// Poll is the root record of one vote event. Times are epoch milliseconds
// and advisory: the ledger stores them for external policy but never gates
// an operation on them. CandidateCount is the declared field size, not an
// enforced cap.
type Poll struct {
	PollID         uint64
	Description    string
	CandidateCount uint64
	StartTime      uint64
	EndTime        uint64
}

// Candidate is an entrant in one poll. Identity fields are immutable after
// registration; only VoteCount moves, and only upward.
type Candidate struct {
	CandidateID string
	PollID      uint64
	Name        string
	Description string
	VoteCount   uint64
}

// VoteRecord is the durable receipt that Voter cast a ballot for Candidate
// in PollID. One receipt per (poll, voter), never updated, never deleted.
type VoteRecord struct {
	Voter     string
	PollID    uint64
	Candidate string
}
