// cmd/seed populates a running votechaind with sample candidates and voters
// for development, and optionally casts votes to drive block sealing.
//
// Running twice is safe: voters whose email is already registered are
// skipped, and candidates are only created when none exist.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -server http://localhost:5000 -token "$ADMIN_TOKEN" -votes 10
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jmerrifield20/VoteChain/pkg/client"
)

type seedCandidate struct {
	Name  string
	Party string
}

var candidates = []seedCandidate{
	{Name: "Alice Johnson", Party: "Progressive Party"},
	{Name: "Bob Smith", Party: "Conservative Party"},
	{Name: "Charlie Brown", Party: "Independent"},
}

func main() {
	server := flag.String("server", envOr("VOTECHAIN_SERVER_URL", "http://localhost:5000"), "votechaind base URL")
	token := flag.String("token", os.Getenv("VOTECHAIN_ADMIN_TOKEN"), "admin bearer token")
	voters := flag.Int("voters", 5, "number of sample voters to register")
	votes := flag.Int("votes", 0, "number of registered voters that cast a vote")
	flag.Parse()

	if err := run(*server, *token, *voters, *votes); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(server, token string, nVoters, nVotes int) error {
	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	c, err := client.New(server, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cands, err := seedCandidates(ctx, c)
	if err != nil {
		return fmt.Errorf("seed candidates: %w", err)
	}
	voterIDs, err := seedVoters(ctx, c, nVoters)
	if err != nil {
		return fmt.Errorf("seed voters: %w", err)
	}
	if nVotes > 0 {
		if err := castVotes(ctx, c, voterIDs, cands, nVotes); err != nil {
			return fmt.Errorf("cast votes: %w", err)
		}
	}

	fmt.Println("\nseed complete")
	return nil
}

// ── Candidates ───────────────────────────────────────────────────────────────

func seedCandidates(ctx context.Context, c *client.Client) ([]client.Candidate, error) {
	existing, err := c.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		fmt.Printf("  skip  %d candidate(s) already registered\n", len(existing))
		return existing, nil
	}

	out := make([]client.Candidate, 0, len(candidates))
	for _, sc := range candidates {
		cand, err := c.RegisterCandidate(ctx, sc.Name, sc.Party)
		if err != nil {
			if client.IsStatus(err, http.StatusUnauthorized) {
				return nil, errors.New("server requires an admin token: pass -token or set VOTECHAIN_ADMIN_TOKEN")
			}
			return nil, fmt.Errorf("%s: %w", sc.Name, err)
		}
		fmt.Printf("  candidate  %-15s %s\n", cand.Name, cand.ID)
		out = append(out, *cand)
	}
	return out, nil
}

// ── Voters ───────────────────────────────────────────────────────────────────

// seedVoters registers voterN@example.com for N in [1, n] and returns the
// IDs of the voters created by this run.
func seedVoters(ctx context.Context, c *client.Client, n int) ([]string, error) {
	var ids []string
	for i := 1; i <= n; i++ {
		email := fmt.Sprintf("voter%d@example.com", i)
		v, err := c.RegisterVoter(ctx, fmt.Sprintf("Voter %d", i), email)
		if client.IsStatus(err, http.StatusConflict) {
			fmt.Printf("  skip  %s (already registered)\n", email)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", email, err)
		}
		fmt.Printf("  voter  %-22s %s\n", email, v.ID)
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// ── Votes ────────────────────────────────────────────────────────────────────

func castVotes(ctx context.Context, c *client.Client, voterIDs []string, cands []client.Candidate, n int) error {
	if len(cands) == 0 {
		return errors.New("no candidates registered")
	}
	if n > len(voterIDs) {
		fmt.Printf("  only %d new voter(s) available, casting %d vote(s)\n", len(voterIDs), len(voterIDs))
		n = len(voterIDs)
	}

	for i := 0; i < n; i++ {
		cand := cands[i%len(cands)]
		r, err := c.CastVote(ctx, voterIDs[i], cand.ID)
		if err != nil {
			return err
		}
		state := "pending"
		if r.Sealed {
			state = fmt.Sprintf("sealed block #%d", r.TipIndex)
		}
		fmt.Printf("  vote   %s -> %-15s %s\n", voterIDs[i], cand.Name, state)
	}
	return nil
}
