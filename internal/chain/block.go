package chain

import (
	"math"
	"time"
)

// GenesisPreviousHash is the sentinel previous_hash carried by the genesis block.
const GenesisPreviousHash = "0"

// GenesisProof is the fixed proof of the genesis block; no work is performed for it.
const GenesisProof = 1

// Timestamp is a wall-clock instant in float seconds since the Unix epoch,
// the representation used by the persisted ledger file.
type Timestamp float64

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts t to a Timestamp with microsecond resolution.
func FromTime(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixMicro()) / 1e6)
}

// Time converts ts back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	sec, frac := math.Modf(float64(ts))
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// Vote is a single ballot. It is immutable once created.
type Vote struct {
	VoterID     string    `json:"voter_id"`
	CandidateID string    `json:"candidate_id"`
	Timestamp   Timestamp `json:"timestamp"`
}

// Block is a sealed batch of votes. Blocks are never mutated after they are
// appended to the chain.
type Block struct {
	Index        int64     `json:"index"`
	Timestamp    Timestamp `json:"timestamp"`
	Votes        []Vote    `json:"votes"`
	Proof        int64     `json:"proof"`
	PreviousHash string    `json:"previous_hash"`
}

// NewGenesis returns the fixed first block of every chain.
func NewGenesis(ts Timestamp) Block {
	return Block{
		Index:        1,
		Timestamp:    ts,
		Votes:        []Vote{},
		Proof:        GenesisProof,
		PreviousHash: GenesisPreviousHash,
	}
}

// Clone returns a copy of b whose vote slice does not alias b's.
func (b Block) Clone() Block {
	votes := make([]Vote, len(b.Votes))
	copy(votes, b.Votes)
	b.Votes = votes
	return b
}

// IsGenesis reports whether b has the shape of the genesis block.
func (b Block) IsGenesis() bool {
	return b.Index == 1 && b.PreviousHash == GenesisPreviousHash
}
