// Package ledger implements the vote chain: an append-only sequence of
// proof-of-work-sealed blocks plus a pool of votes awaiting the next block.
//
// Votes accumulate in the pending pool until BatchThreshold of them are
// waiting; the vote that reaches the threshold seals them into a new block
// on the submitting goroutine. Every mutation is persisted through a
// store.Store on a best-effort basis: a failed save is logged and the
// in-memory state stays authoritative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/jmerrifield20/VoteChain/internal/store"
	"go.uber.org/zap"
)

// DefaultBatchThreshold is the number of pending votes that triggers a seal.
const DefaultBatchThreshold = 5

// ErrBlockNotFound is returned by Block for an index outside the chain.
var ErrBlockNotFound = errors.New("block not found")

// Config holds ledger tuning parameters. Zero values select the defaults.
type Config struct {
	BatchThreshold int
	Difficulty     int
}

// Receipt describes the outcome of AddVote.
type Receipt struct {
	// Vote is the vote as recorded, including its timestamp.
	Vote chain.Vote `json:"vote"`
	// Tip is the chain tip after the call.
	Tip chain.Block `json:"tip"`
	// Sealed is true when this call sealed the pending pool into Tip.
	Sealed bool `json:"sealed"`
}

// SealRecordFunc is an optional callback invoked after a block is sealed,
// with the time spent searching for its proof.
type SealRecordFunc func(b chain.Block, powDuration time.Duration)

// Ledger is the single authoritative vote chain of a process. It is safe
// for concurrent use: mutations are serialised and readers never observe a
// drained pool whose block has not been appended yet.
type Ledger struct {
	mu        sync.RWMutex
	blocks    []chain.Block
	pending   []chain.Vote
	threshold int
	pow       *chain.ProofOfWork
	store     store.Store
	onSeal    SealRecordFunc
	now       func() chain.Timestamp
	logger    *zap.Logger
}

// New creates a Ledger backed by st. Persisted state is loaded when
// available; a missing or unreadable state starts a fresh chain instead of
// failing.
func New(ctx context.Context, st store.Store, cfg Config, logger *zap.Logger) *Ledger {
	if cfg.BatchThreshold < 1 {
		cfg.BatchThreshold = DefaultBatchThreshold
	}
	l := &Ledger{
		pending:   []chain.Vote{},
		threshold: cfg.BatchThreshold,
		pow:       chain.NewProofOfWork(cfg.Difficulty),
		store:     st,
		now:       chain.Now,
		logger:    logger,
	}

	// An unreadable state is left on disk until the next mutation overwrites
	// it, so it can still be inspected.
	unreadable := false
	state, err := st.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNoState):
		logger.Info("no persisted ledger found, creating new chain")
	case err != nil:
		unreadable = true
		logger.Warn("cannot load persisted ledger, creating new chain", zap.Error(err))
	default:
		l.blocks = state.Chain
		if state.PendingVotes != nil {
			l.pending = state.PendingVotes
		}
	}

	if len(l.blocks) == 0 {
		l.createGenesis()
		if !unreadable {
			l.persist(ctx)
		}
	}

	logger.Info("ledger ready",
		zap.Int("blocks", len(l.blocks)),
		zap.Int("pending", len(l.pending)),
		zap.Int("batch_threshold", l.threshold),
		zap.Int("difficulty", l.pow.Difficulty()),
	)
	return l
}

// SetSealHook registers fn to be called after every sealed block.
func (l *Ledger) SetSealHook(fn SealRecordFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSeal = fn
}

// Difficulty returns the proof-of-work difficulty in use.
func (l *Ledger) Difficulty() int {
	return l.pow.Difficulty()
}

// BatchThreshold returns the pool size that triggers a seal.
func (l *Ledger) BatchThreshold() int {
	return l.threshold
}

// createGenesis appends the fixed genesis block. Callers hold l.mu or own l exclusively.
func (l *Ledger) createGenesis() {
	l.blocks = append(l.blocks, chain.NewGenesis(l.now()))
}

// AddVote records a vote in the pending pool and seals the pool into a new
// block once it holds BatchThreshold votes. No validation of the
// identifiers happens here.
func (l *Ledger) AddVote(ctx context.Context, voterID, candidateID string) Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	vote := chain.Vote{VoterID: voterID, CandidateID: candidateID, Timestamp: l.now()}
	l.pending = append(l.pending, vote)

	sealed := false
	if len(l.pending) >= l.threshold {
		l.seal()
		sealed = true
	}
	l.persist(ctx)

	return Receipt{
		Vote:   vote,
		Tip:    l.blocks[len(l.blocks)-1].Clone(),
		Sealed: sealed,
	}
}

// Seal seals the pending pool into a new block regardless of its size.
// It returns false when there was nothing to seal.
func (l *Ledger) Seal(ctx context.Context) (chain.Block, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return chain.Block{}, false
	}
	b := l.seal()
	l.persist(ctx)
	return b.Clone(), true
}

// seal moves the pending pool into a new block on top of the current tip.
// Callers must hold l.mu for writing.
func (l *Ledger) seal() chain.Block {
	tip := l.blocks[len(l.blocks)-1]

	start := time.Now()
	proof := l.pow.FindProof(tip.Proof)
	elapsed := time.Since(start)

	votes := make([]chain.Vote, len(l.pending))
	copy(votes, l.pending)

	b := chain.Block{
		Index:        int64(len(l.blocks) + 1),
		Timestamp:    l.now(),
		Votes:        votes,
		Proof:        proof,
		PreviousHash: chain.Digest(tip),
	}
	l.blocks = append(l.blocks, b)
	l.pending = []chain.Vote{}

	l.logger.Info("block sealed",
		zap.Int64("index", b.Index),
		zap.Int("votes", len(b.Votes)),
		zap.Int64("proof", b.Proof),
		zap.Duration("pow", elapsed),
	)
	if l.onSeal != nil {
		l.onSeal(b, elapsed)
	}
	return b
}

// persist saves the current state. Failures are logged, never returned.
// Callers must hold l.mu.
func (l *Ledger) persist(ctx context.Context) {
	if err := l.store.Save(ctx, l.snapshot()); err != nil {
		l.logger.Error("failed to persist ledger; in-memory state remains authoritative",
			zap.Int("blocks", len(l.blocks)),
			zap.Int("pending", len(l.pending)),
			zap.Error(err),
		)
	}
}

// snapshot returns a deep copy of the ledger state. Callers must hold l.mu.
func (l *Ledger) snapshot() *store.State {
	return (&store.State{Chain: l.blocks, PendingVotes: l.pending}).Clone()
}

// Snapshot returns a deep copy of the chain and pending pool.
func (l *Ledger) Snapshot() *store.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot()
}

// Tip returns the most recent block.
func (l *Ledger) Tip() chain.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1].Clone()
}

// Block returns the block at the given 1-based index.
func (l *Ledger) Block(index int) (chain.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 1 || index > len(l.blocks) {
		return chain.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return l.blocks[index-1].Clone(), nil
}

// Blocks returns a copy of the whole chain.
func (l *Ledger) Blocks() []chain.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot().Chain
}

// PendingVotes returns a copy of the votes waiting to be sealed.
func (l *Ledger) PendingVotes() []chain.Vote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chain.Vote, len(l.pending))
	copy(out, l.pending)
	return out
}

// TotalBlocks returns the chain length, genesis included.
func (l *Ledger) TotalBlocks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// SerializedSizeBytes returns the size of the canonical serialization of the chain.
func (l *Ledger) SerializedSizeBytes() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(chain.CanonicalChain(l.blocks))
}
