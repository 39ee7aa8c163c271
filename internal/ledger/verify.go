package ledger

import (
	"errors"
	"fmt"

	"github.com/jmerrifield20/VoteChain/internal/chain"
)

var (
	// ErrBrokenLink means a block's previous_hash does not match its predecessor's digest.
	ErrBrokenLink = errors.New("previous hash does not match predecessor digest")
	// ErrInvalidProof means a block's proof fails the proof-of-work predicate.
	ErrInvalidProof = errors.New("proof of work is invalid")
	// ErrIndexMismatch means a block's index is not its position in the chain.
	ErrIndexMismatch = errors.New("index does not match chain position")
)

// IntegrityError identifies the first block that failed verification.
type IntegrityError struct {
	Index int // 1-based chain position
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Index, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Verify walks the chain from the second block onwards and returns an
// *IntegrityError for the first block whose linkage or proof is wrong.
// A broken chain is only reported, never repaired.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyBlocks(l.blocks, l.pow)
}

// Validate reports whether the whole chain verifies.
func (l *Ledger) Validate() bool {
	return l.Verify() == nil
}

// VerifyBlocks checks blocks as a standalone chain at the given difficulty.
func VerifyBlocks(blocks []chain.Block, difficulty int) error {
	return verifyBlocks(blocks, chain.NewProofOfWork(difficulty))
}

func verifyBlocks(blocks []chain.Block, pow *chain.ProofOfWork) error {
	for i := 1; i < len(blocks); i++ {
		prev, curr := blocks[i-1], blocks[i]
		pos := i + 1

		if curr.Index != int64(pos) {
			return &IntegrityError{Index: pos, Err: ErrIndexMismatch}
		}
		if curr.PreviousHash != chain.Digest(prev) {
			return &IntegrityError{Index: pos, Err: ErrBrokenLink}
		}
		if !pow.Verify(curr.Proof, prev.Proof) {
			return &IntegrityError{Index: pos, Err: ErrInvalidProof}
		}
	}
	return nil
}
