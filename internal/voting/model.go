package voting

import (
	"time"

	"github.com/google/uuid"
)

// Voter is a registered elector.
type Voter struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	HasVoted     bool      `json:"has_voted"`
	RegisteredAt time.Time `json:"registration_time"`
}

// Candidate is a registered contender.
type Candidate struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Party        string    `json:"party"`
	RegisteredAt time.Time `json:"registration_time"`
}

// Result is a candidate's sealed vote count.
type Result struct {
	Candidate Candidate `json:"candidate"`
	VoteCount int       `json:"vote_count"`
}

// Election is the voting window. Votes are accepted in [Start, Start+Duration].
type Election struct {
	Start    time.Time
	Duration time.Duration
}

// DefaultElectionDuration is the voting window used when none is configured.
const DefaultElectionDuration = 24 * time.Hour

// End returns the instant the election closes.
func (e Election) End() time.Time {
	return e.Start.Add(e.Duration)
}
