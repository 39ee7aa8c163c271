package chain

import (
	"math/big"
	"strconv"
	"strings"
)

// DefaultDifficulty is the number of leading '0' hex characters a proof
// digest must carry.
const DefaultDifficulty = 4

// squareLimit bounds |x| so that x*x - y*y cannot overflow int64.
const squareLimit = 2_000_000_000

// ProofOfWork searches for and verifies block proofs at a fixed difficulty.
// It is stateless after construction and safe for concurrent use.
type ProofOfWork struct {
	difficulty int
	prefix     string
}

// NewProofOfWork returns a ProofOfWork requiring difficulty leading zeros.
// Values below 1 select DefaultDifficulty.
func NewProofOfWork(difficulty int) *ProofOfWork {
	if difficulty < 1 {
		difficulty = DefaultDifficulty
	}
	return &ProofOfWork{
		difficulty: difficulty,
		prefix:     strings.Repeat("0", difficulty),
	}
}

// Difficulty returns the configured number of leading zeros.
func (p *ProofOfWork) Difficulty() int {
	return p.difficulty
}

// FindProof returns the smallest positive proof that satisfies Verify
// against previousProof. The search is unbounded.
func (p *ProofOfWork) FindProof(previousProof int64) int64 {
	candidate := int64(1)
	for !p.Verify(candidate, previousProof) {
		candidate++
	}
	return candidate
}

// Verify reports whether proof is valid after previousProof.
func (p *ProofOfWork) Verify(proof, previousProof int64) bool {
	return strings.HasPrefix(sha256Hex([]byte(powInput(proof, previousProof))), p.prefix)
}

// powInput returns the decimal form of proof² − previousProof².
func powInput(proof, previousProof int64) string {
	if abs(proof) < squareLimit && abs(previousProof) < squareLimit {
		return strconv.FormatInt(proof*proof-previousProof*previousProof, 10)
	}
	a := big.NewInt(proof)
	b := big.NewInt(previousProof)
	a.Mul(a, a)
	b.Mul(b, b)
	return a.Sub(a, b).String()
}

func abs(x int64) int64 {
	if x < 0 {
		if x == -x { // math.MinInt64
			return squareLimit
		}
		return -x
	}
	return x
}
