// Package store persists the ledger's full state: the sealed chain and the
// pending vote pool.
//
// Three implementations of the Store interface are provided:
//   - FileStore: a single JSON document, replaced atomically on every save.
//   - MemoryStore: in-process, for tests and throwaway deployments.
//   - PostgresStore: durable, for deployments that already run PostgreSQL.
package store

import (
	"context"
	"errors"

	"github.com/jmerrifield20/VoteChain/internal/chain"
)

// ErrNoState is returned by Load when nothing has been persisted yet.
var ErrNoState = errors.New("no persisted ledger state")

// ErrCorrupt is returned by Load when the persisted state cannot be decoded
// or is structurally invalid.
var ErrCorrupt = errors.New("persisted ledger state is corrupt")

// ErrDiverged is returned by Save when the state being saved does not extend
// the chain already persisted.
var ErrDiverged = errors.New("ledger state diverges from the persisted chain")

// State is the persisted form of a ledger. Field names are part of the
// on-disk format and must not change.
type State struct {
	Chain        []chain.Block `json:"chain"`
	PendingVotes []chain.Vote  `json:"pending_votes"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{
		Chain:        make([]chain.Block, len(s.Chain)),
		PendingVotes: make([]chain.Vote, len(s.PendingVotes)),
	}
	for i, b := range s.Chain {
		out.Chain[i] = b.Clone()
	}
	copy(out.PendingVotes, s.PendingVotes)
	return out
}

// Store loads and saves ledger state.
type Store interface {
	// Load returns the persisted state, ErrNoState when nothing was saved
	// yet, or an error wrapping ErrCorrupt when the state is unreadable.
	Load(ctx context.Context) (*State, error)

	// Save replaces the persisted state with s.
	Save(ctx context.Context, s *State) error
}
