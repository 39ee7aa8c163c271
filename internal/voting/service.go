// Package voting is the gateway in front of the ledger: it registers voters
// and candidates, enforces one vote per voter inside the election window and
// tallies results from the sealed chain.
package voting

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"go.uber.org/zap"
)

var (
	ErrMissingField       = errors.New("required field is missing")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrElectionNotStarted = errors.New("voting period has not started")
	ErrElectionClosed     = errors.New("voting period has ended")
	ErrInvalidVoter       = errors.New("invalid voter or already voted")
	ErrUnknownCandidate   = errors.New("invalid candidate")

	// ErrAlreadyVoted matches ErrInvalidVoter under errors.Is.
	ErrAlreadyVoted = fmt.Errorf("%w: already voted", ErrInvalidVoter)
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether addr looks like an email address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// voteLedger is the subset of the ledger consumed by Gateway.
type voteLedger interface {
	AddVote(ctx context.Context, voterID, candidateID string) ledger.Receipt
	VotesForCandidate(candidateID string) []chain.Vote
}

// Gateway implements registration and vote-casting rules in front of the ledger.
// Registrations live in memory only.
type Gateway struct {
	mu         sync.RWMutex
	voters     []*Voter
	byID       map[uuid.UUID]*Voter
	byEmail    map[string]*Voter
	candidates []*Candidate
	ledger     voteLedger
	election   Election
	now        func() time.Time
	logger     *zap.Logger
}

// NewGateway creates a Gateway submitting accepted votes to l. A zero
// election start means "now"; a zero duration selects DefaultElectionDuration.
func NewGateway(l voteLedger, election Election, logger *zap.Logger) *Gateway {
	if election.Start.IsZero() {
		election.Start = time.Now()
	}
	if election.Duration <= 0 {
		election.Duration = DefaultElectionDuration
	}
	return &Gateway{
		byID:     make(map[uuid.UUID]*Voter),
		byEmail:  make(map[string]*Voter),
		ledger:   l,
		election: election,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the time source used for the election window.
func (g *Gateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Election returns the configured voting window.
func (g *Gateway) Election() Election {
	return g.election
}

// ElectionOpen reports whether votes are currently accepted.
func (g *Gateway) ElectionOpen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.windowErr() == nil
}

// windowErr returns the reason votes are refused right now, if any.
// Callers must hold g.mu.
func (g *Gateway) windowErr() error {
	now := g.now()
	if now.Before(g.election.Start) {
		return ErrElectionNotStarted
	}
	if now.After(g.election.End()) {
		return ErrElectionClosed
	}
	return nil
}

// RegisterVoter registers a new voter and assigns it a random ID.
func (g *Gateway) RegisterVoter(_ context.Context, name, email string) (*Voter, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := g.byEmail[key]; exists {
		return nil, ErrDuplicateEmail
	}

	v := &Voter{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		RegisteredAt: g.now().UTC(),
	}
	g.voters = append(g.voters, v)
	g.byID[v.ID] = v
	g.byEmail[key] = v

	g.logger.Info("voter registered", zap.String("voter_id", v.ID.String()))
	cp := *v
	return &cp, nil
}

// RegisterCandidate registers a new candidate.
func (g *Gateway) RegisterCandidate(_ context.Context, name, party string) (*Candidate, error) {
	name, party = strings.TrimSpace(name), strings.TrimSpace(party)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c := &Candidate{
		ID:           uuid.New(),
		Name:         name,
		Party:        party,
		RegisteredAt: g.now().UTC(),
	}
	g.candidates = append(g.candidates, c)

	g.logger.Info("candidate registered",
		zap.String("candidate_id", c.ID.String()),
		zap.String("party", c.Party),
	)
	cp := *c
	return &cp, nil
}

// CastVote checks the election window, the voter and the candidate, marks
// the voter as having voted and submits the vote to the ledger.
func (g *Gateway) CastVote(ctx context.Context, voterID, candidateID string) (ledger.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.windowErr(); err != nil {
		return ledger.Receipt{}, err
	}

	vid, err := uuid.Parse(voterID)
	if err != nil {
		return ledger.Receipt{}, ErrInvalidVoter
	}
	voter, ok := g.byID[vid]
	if !ok {
		return ledger.Receipt{}, ErrInvalidVoter
	}
	if voter.HasVoted {
		return ledger.Receipt{}, ErrAlreadyVoted
	}

	cid, err := uuid.Parse(candidateID)
	if err != nil || g.candidate(cid) == nil {
		return ledger.Receipt{}, ErrUnknownCandidate
	}

	voter.HasVoted = true
	receipt := g.ledger.AddVote(ctx, vid.String(), cid.String())

	g.logger.Info("vote cast",
		zap.String("voter_id", vid.String()),
		zap.Bool("sealed", receipt.Sealed),
		zap.Int64("tip", receipt.Tip.Index),
	)
	return receipt, nil
}

// candidate returns the candidate with the given ID. Callers must hold g.mu.
func (g *Gateway) candidate(id uuid.UUID) *Candidate {
	for _, c := range g.candidates {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Results returns every candidate with its sealed vote count, highest
// first. Ties keep registration order.
func (g *Gateway) Results() []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()

	results := make([]Result, len(g.candidates))
	for i, c := range g.candidates {
		results[i] = Result{
			Candidate: *c,
			VoteCount: len(g.ledger.VotesForCandidate(c.ID.String())),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].VoteCount > results[j].VoteCount
	})
	return results
}

// Candidates returns all registered candidates in registration order.
func (g *Gateway) Candidates() []Candidate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Candidate, len(g.candidates))
	for i, c := range g.candidates {
		out[i] = *c
	}
	return out
}

// Voters returns all registered voters in registration order.
func (g *Gateway) Voters() []Voter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Voter, len(g.voters))
	for i, v := range g.voters {
		out[i] = *v
	}
	return out
}

// VoterCount returns the number of registered voters.
func (g *Gateway) VoterCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.voters)
}

// CandidateCount returns the number of registered candidates.
func (g *Gateway) CandidateCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.candidates)
}

// SeedSample registers three demo candidates and five demo voters when no
// candidates or voters exist yet.
func (g *Gateway) SeedSample(ctx context.Context) error {
	if g.CandidateCount() == 0 {
		for _, c := range [][2]string{
			{"Alice Johnson", "Progressive Party"},
			{"Bob Smith", "Conservative Party"},
			{"Charlie Brown", "Independent"},
		} {
			if _, err := g.RegisterCandidate(ctx, c[0], c[1]); err != nil {
				return fmt.Errorf("seed candidate %q: %w", c[0], err)
			}
		}
	}
	if g.VoterCount() == 0 {
		for i := 1; i <= 5; i++ {
			if _, err := g.RegisterVoter(ctx, fmt.Sprintf("Voter %d", i), fmt.Sprintf("voter%d@example.com", i)); err != nil {
				return fmt.Errorf("seed voter %d: %w", i, err)
			}
		}
	}
	return nil
}
