package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/jmerrifield20/VoteChain/internal/handler"
	"github.com/jmerrifield20/VoteChain/internal/identity"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"github.com/jmerrifield20/VoteChain/internal/store"
	"github.com/jmerrifield20/VoteChain/internal/voting"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "test-admin-secret"

// testEnv is a router wired to a real ledger and gateway.
type testEnv struct {
	router  *gin.Engine
	ledger  *ledger.Ledger
	gateway *voting.Gateway
	token   string
}

func setupRouter(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.New(context.Background(), store.NewMemoryStore(),
		ledger.Config{BatchThreshold: 2, Difficulty: 2}, zap.NewNop())
	gw := voting.NewGateway(l, voting.Election{Start: time.Now().Add(-time.Minute), Duration: time.Hour}, zap.NewNop())
	admin := identity.NewAdminTokenIssuer(secret)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewLedgerHandler(l, admin, zap.NewNop()).Register(v1)
	handler.NewVotingHandler(gw, admin, zap.NewNop()).Register(v1)

	env := &testEnv{router: r, ledger: l, gateway: gw}
	if secret != "" {
		tok, err := admin.Issue(time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		env.token = tok
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestLedgerOverview_200(t *testing.T) {
	env := setupRouter(t, "")
	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if blocks := int(resp["blocks"].(float64)); blocks != 1 {
		t.Errorf("expected 1 block (genesis), got %d", blocks)
	}
	if resp["tip_hash"] != chain.Digest(env.ledger.Tip()) {
		t.Errorf("tip_hash = %v", resp["tip_hash"])
	}
	if int(resp["size_bytes"].(float64)) != env.ledger.SerializedSizeBytes() {
		t.Errorf("size_bytes = %v", resp["size_bytes"])
	}
}

func TestLedgerVerify_200(t *testing.T) {
	env := setupRouter(t, "")
	env.ledger.AddVote(context.Background(), "v1", "c1")
	env.ledger.AddVote(context.Background(), "v2", "c1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger/verify", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestLedgerVerify_reportsBrokenChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := store.NewMemoryStore()
	l := ledger.New(context.Background(), mem, ledger.Config{BatchThreshold: 1, Difficulty: 2}, zap.NewNop())
	l.AddVote(context.Background(), "v1", "c1")
	l.AddVote(context.Background(), "v2", "c1")

	st := l.Snapshot()
	st.Chain[1].Votes[0].CandidateID = "c2"
	if err := mem.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	tampered := ledger.New(context.Background(), mem, ledger.Config{BatchThreshold: 1, Difficulty: 2}, zap.NewNop())

	r := gin.New()
	handler.NewLedgerHandler(tampered, nil, zap.NewNop()).Register(r.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != false {
		t.Fatalf("expected valid=false, got %v", resp)
	}
	if int(resp["index"].(float64)) != 3 {
		t.Errorf("expected broken link at block 3, got %v", resp["index"])
	}
}

func TestLedgerGetBlock_200_genesis(t *testing.T) {
	env := setupRouter(t, "")
	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger/blocks/1", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["previous_hash"] != "0" || resp["proof"].(float64) != 1 {
		t.Errorf("unexpected genesis: %v", resp)
	}
	if resp["hash"] != chain.Digest(env.ledger.Tip()) {
		t.Errorf("hash = %v", resp["hash"])
	}
}

func TestLedgerGetBlock_errors(t *testing.T) {
	env := setupRouter(t, "")
	cases := map[string]int{
		"/api/v1/ledger/blocks/0":   http.StatusBadRequest,
		"/api/v1/ledger/blocks/abc": http.StatusBadRequest,
		"/api/v1/ledger/blocks/999": http.StatusNotFound,
	}
	for path, want := range cases {
		if w, _ := env.do(t, http.MethodGet, path, "", ""); w.Code != want {
			t.Errorf("GET %s: expected %d, got %d", path, want, w.Code)
		}
	}
}

func TestLedgerListBlocks(t *testing.T) {
	env := setupRouter(t, "")
	env.ledger.AddVote(context.Background(), "v1", "c1")
	env.ledger.AddVote(context.Background(), "v2", "c1")

	w, resp := env.do(t, http.MethodGet, "/api/v1/ledger/blocks", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if int(resp["length"].(float64)) != 2 || len(resp["chain"].([]any)) != 2 {
		t.Errorf("unexpected chain listing: %v", resp)
	}
}

func TestLedgerPendingAndCandidateVotes(t *testing.T) {
	env := setupRouter(t, "")
	ctx := context.Background()
	env.ledger.AddVote(ctx, "v1", "c1")
	env.ledger.AddVote(ctx, "v2", "c2")
	env.ledger.AddVote(ctx, "v3", "c1")

	_, pending := env.do(t, http.MethodGet, "/api/v1/ledger/pending", "", "")
	if int(pending["count"].(float64)) != 1 {
		t.Errorf("pending count = %v, want 1", pending["count"])
	}

	_, votes := env.do(t, http.MethodGet, "/api/v1/ledger/candidates/c1/votes", "", "")
	if int(votes["count"].(float64)) != 1 {
		t.Errorf("sealed votes for c1 = %v, want 1 (the second is pending)", votes["count"])
	}

	_, none := env.do(t, http.MethodGet, "/api/v1/ledger/candidates/nobody/votes", "", "")
	if got, ok := none["votes"].([]any); !ok || len(got) != 0 {
		t.Errorf("expected empty votes array, got %v", none["votes"])
	}
}

func TestLedgerSeal_requiresAdmin(t *testing.T) {
	env := setupRouter(t, testSecret)
	env.ledger.AddVote(context.Background(), "v1", "c1")

	if w, _ := env.do(t, http.MethodPost, "/api/v1/ledger/seal", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if env.ledger.TotalBlocks() != 1 {
		t.Fatal("unauthorised seal changed the chain")
	}

	w, resp := env.do(t, http.MethodPost, "/api/v1/ledger/seal", "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["sealed"] != true || env.ledger.TotalBlocks() != 2 {
		t.Errorf("seal did not append a block: %v", resp)
	}

	_, resp = env.do(t, http.MethodPost, "/api/v1/ledger/seal", "", env.token)
	if resp["sealed"] != false {
		t.Errorf("sealing an empty pool: %v", resp)
	}
}
