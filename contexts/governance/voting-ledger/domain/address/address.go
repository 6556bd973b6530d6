package address

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Kind tags one of the record families stored by the ledger. Records of
// different kinds never share a storage slot even when their key bytes match,
// because the tag is hashed ahead of the keys.
type Kind string

const (
	KindPoll      Kind = "poll"
	KindCandidate Kind = "candidate"
	KindVote      Kind = "vote"
)

// Address is a derived storage slot. Every record's location is a pure
// function of its logical key, so lookups never consult an index.
type Address [32]byte

// String renders the address as 64 lowercase hex characters, the form
// adapters use as their slot key.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ForPoll derives the slot owning the poll record for pollID.
func ForPoll(pollID uint64) Address {
	return derive(KindPoll, pollID)
}

// ForCandidate derives the slot owning the candidate record identified by
// candidateID within pollID.
func ForCandidate(pollID uint64, candidateID string) Address {
	return derive(KindCandidate, pollID, []byte(candidateID))
}

// ForVote derives the slot owning the vote receipt of voterID within pollID.
func ForVote(pollID uint64, voterID string) Address {
	return derive(KindVote, pollID, []byte(voterID))
}

// derive hashes the kind tag, the little-endian poll id, and any secondary
// key bytes in order. The poll id is fixed-width so adjacent ids can never
// alias by concatenation.
func derive(kind Kind, pollID uint64, keys ...[]byte) Address {
	h := sha256.New()
	h.Write([]byte(kind))

	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], pollID)
	h.Write(id[:])

	for _, key := range keys {
		h.Write(key)
	}

	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}
