package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/VoteChain/internal/handler"
	"github.com/jmerrifield20/VoteChain/internal/identity"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"github.com/jmerrifield20/VoteChain/internal/store"
	"github.com/jmerrifield20/VoteChain/internal/voting"
	"github.com/jmerrifield20/VoteChain/pkg/client"
	"go.uber.org/zap"
)

// ── Test server ─────────────────────────────────────────────────────────

func newServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.New(context.Background(), store.NewMemoryStore(),
		ledger.Config{BatchThreshold: 2, Difficulty: 2}, zap.NewNop())
	gw := voting.NewGateway(l, voting.Election{}, zap.NewNop())
	admin := identity.NewAdminTokenIssuer(secret)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewLedgerHandler(l, admin, zap.NewNop()).Register(v1)
	handler.NewVotingHandler(gw, admin, zap.NewNop()).Register(v1)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestNew_invalidURL(t *testing.T) {
	if _, err := client.New("not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
	if _, err := client.New("http://localhost", client.WithCacheTTL(0)); err == nil {
		t.Error("expected error for zero cache ttl")
	}
}

func TestClient_fullElection(t *testing.T) {
	srv := newServer(t, "")
	ctx := context.Background()
	c := client.MustNew(srv.URL)

	cand, err := c.RegisterCandidate(ctx, "Alice", "Independent")
	if err != nil {
		t.Fatalf("RegisterCandidate: %v", err)
	}
	var receipts []*client.Receipt
	for _, email := range []string{"a@example.com", "b@example.com"} {
		v, err := c.RegisterVoter(ctx, "Voter", email)
		if err != nil {
			t.Fatalf("RegisterVoter: %v", err)
		}
		r, err := c.CastVote(ctx, v.ID, cand.ID)
		if err != nil {
			t.Fatalf("CastVote: %v", err)
		}
		receipts = append(receipts, r)
	}
	if receipts[0].Sealed || !receipts[1].Sealed || receipts[1].TipIndex != 2 {
		t.Errorf("unexpected receipts: %+v %+v", receipts[0], receipts[1])
	}

	ov, err := c.Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Blocks != 2 || ov.Pending != 0 || ov.TipHash == "" {
		t.Errorf("overview = %+v", ov)
	}

	b, err := c.Block(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Votes) != 2 || b.Hash != ov.TipHash {
		t.Errorf("block 2 = %+v", b)
	}

	vr, err := c.Verify(ctx)
	if err != nil || !vr.Valid {
		t.Errorf("Verify = %+v, %v", vr, err)
	}

	res, err := c.Results(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalVotes != 2 || res.Results[0].Candidate.ID != cand.ID {
		t.Errorf("results = %+v", res)
	}

	cands, err := c.Candidates(ctx)
	if err != nil || len(cands) != 1 {
		t.Errorf("Candidates = %v, %v", cands, err)
	}

	e, err := c.Election(ctx)
	if err != nil || !e.Open || e.Voters != 2 {
		t.Errorf("Election = %+v, %v", e, err)
	}
}

func TestClient_statusErrors(t *testing.T) {
	srv := newServer(t, "")
	ctx := context.Background()
	c := client.MustNew(srv.URL)

	if _, err := c.RegisterVoter(ctx, "Ann", "ann@example.com"); err != nil {
		t.Fatal(err)
	}
	_, err := c.RegisterVoter(ctx, "Ann", "ann@example.com")
	if !client.IsStatus(err, http.StatusConflict) {
		t.Errorf("duplicate voter err = %v, want 409", err)
	}
	var se *client.StatusError
	if !errors.As(err, &se) || se.Message == "" {
		t.Errorf("expected StatusError with message, got %v", err)
	}

	if _, err := c.Block(ctx, 99); !client.IsStatus(err, http.StatusNotFound) {
		t.Errorf("missing block err = %v, want 404", err)
	}
}

func TestClient_adminToken(t *testing.T) {
	srv := newServer(t, "s3cret")
	ctx := context.Background()

	if _, err := client.MustNew(srv.URL).RegisterCandidate(ctx, "Alice", ""); !client.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 without token, got %v", err)
	}

	tok, err := identity.NewAdminTokenIssuer("s3cret").Issue(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	admin := client.MustNew(srv.URL, client.WithBearerToken(tok))
	if _, err := admin.RegisterCandidate(ctx, "Alice", ""); err != nil {
		t.Fatalf("RegisterCandidate with token: %v", err)
	}
	if _, sealed, err := admin.Seal(ctx); err != nil || sealed {
		t.Errorf("Seal on empty pool = %v, %v", sealed, err)
	}
	if _, err := admin.Voters(ctx); err != nil {
		t.Errorf("Voters: %v", err)
	}
}

func TestClient_resultsCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}, "total_votes": 0, "election_open": true})
	}))
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := c.Results(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestClient_resultsCacheReturnsCopies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{"candidate": map[string]any{"id": "c1", "name": "Alice Johnson"}, "vote_count": 2},
			},
			"total_votes":   2,
			"election_open": true,
		})
	}))
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))
	first, err := c.Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first.TotalVotes = 99
	first.Results[0].VoteCount = 99
	first.Results[0].Candidate.Name = "changed"

	second, err := c.Results(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalVotes != 2 || second.Results[0].VoteCount != 2 || second.Results[0].Candidate.Name != "Alice Johnson" {
		t.Errorf("cached results were mutated by a caller: %+v", second)
	}

	second.Results[0].VoteCount = 7
	third, _ := c.Results(context.Background())
	if third.Results[0].VoteCount != 2 {
		t.Errorf("cache hit shares state with an earlier hit: %+v", third)
	}
}
