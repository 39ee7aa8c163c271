package ledger

import "github.com/jmerrifield20/VoteChain/internal/chain"

// VotesForCandidate returns every sealed vote for candidateID in chain
// order, then insertion order within each block. Pending votes are not
// included.
func (l *Ledger) VotesForCandidate(candidateID string) []chain.Vote {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var votes []chain.Vote
	for _, b := range l.blocks {
		for _, v := range b.Votes {
			if v.CandidateID == candidateID {
				votes = append(votes, v)
			}
		}
	}
	return votes
}

// Tally returns the number of sealed votes per candidate.
func (l *Ledger) Tally() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return TallyBlocks(l.blocks)
}

// TallyBlocks counts the votes per candidate across blocks.
func TallyBlocks(blocks []chain.Block) map[string]int {
	counts := make(map[string]int)
	for _, b := range blocks {
		for _, v := range b.Votes {
			counts[v.CandidateID]++
		}
	}
	return counts
}

// SealedVoteCount returns the number of votes in sealed blocks.
func (l *Ledger) SealedVoteCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, b := range l.blocks {
		n += len(b.Votes)
	}
	return n
}
