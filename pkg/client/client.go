package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Vote is a single ballot as recorded on the chain.
type Vote struct {
	VoterID     string  `json:"voter_id"`
	CandidateID string  `json:"candidate_id"`
	Timestamp   float64 `json:"timestamp"`
}

// Block is a sealed block with its digest.
type Block struct {
	Index        int64   `json:"index"`
	Timestamp    float64 `json:"timestamp"`
	Votes        []Vote  `json:"votes"`
	Proof        int64   `json:"proof"`
	PreviousHash string  `json:"previous_hash"`
	Hash         string  `json:"hash"`
}

// Overview is the ledger summary returned by GET /api/v1/ledger.
type Overview struct {
	Blocks         int    `json:"blocks"`
	Pending        int    `json:"pending"`
	SizeBytes      int    `json:"size_bytes"`
	TipIndex       int64  `json:"tip_index"`
	TipHash        string `json:"tip_hash"`
	Difficulty     int    `json:"difficulty"`
	BatchThreshold int    `json:"batch_threshold"`
}

// VerifyResult is the outcome of a server-side chain validation.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Index int    `json:"index,omitempty"`
}

// Voter is a registered voter.
type Voter struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	HasVoted     bool      `json:"has_voted"`
	RegisteredAt time.Time `json:"registration_time"`
}

// Candidate is a registered candidate.
type Candidate struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Party        string    `json:"party"`
	RegisteredAt time.Time `json:"registration_time"`
}

// Receipt is returned by CastVote.
type Receipt struct {
	Sealed   bool  `json:"sealed"`
	TipIndex int64 `json:"tip_index"`
	Vote     Vote  `json:"vote"`
}

// Result is one row of the election results.
type Result struct {
	Candidate Candidate `json:"candidate"`
	VoteCount int       `json:"vote_count"`
}

// Results is the tally returned by GET /api/v1/results.
type Results struct {
	Results      []Result `json:"results"`
	TotalVotes   int      `json:"total_votes"`
	ElectionOpen bool     `json:"election_open"`
}

// Election describes the voting window.
type Election struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Open       bool      `json:"open"`
	Voters     int       `json:"voters"`
	Candidates int       `json:"candidates"`
}

// Client talks to a votechaind server.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	cache       *resultsCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an admin token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCacheTTL caches Results responses for ttl.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive, got %s", ttl)
		}
		c.cache = &resultsCache{ttl: ttl}
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:5000".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Overview returns the ledger summary.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the server to validate its chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Block returns the block at the given 1-based index.
func (c *Client) Block(ctx context.Context, index int64) (*Block, error) {
	var out Block
	path := "/api/v1/ledger/blocks/" + strconv.FormatInt(index, 10)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Seal forces the pending pool into a block. It reports false when the pool was empty.
func (c *Client) Seal(ctx context.Context) (*Block, bool, error) {
	var out struct {
		Sealed bool   `json:"sealed"`
		Block  *Block `json:"block"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/ledger/seal", nil, &out); err != nil {
		return nil, false, err
	}
	return out.Block, out.Sealed, nil
}

// Election returns the voting window and registration counts.
func (c *Client) Election(ctx context.Context) (*Election, error) {
	var out Election
	if err := c.call(ctx, http.MethodGet, "/api/v1/election", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterVoter registers a voter.
func (c *Client) RegisterVoter(ctx context.Context, name, email string) (*Voter, error) {
	var out Voter
	body := map[string]string{"name": name, "email": email}
	if err := c.call(ctx, http.MethodPost, "/api/v1/voters", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterCandidate registers a candidate. Requires an admin token when the
// server has one configured.
func (c *Client) RegisterCandidate(ctx context.Context, name, party string) (*Candidate, error) {
	var out Candidate
	body := map[string]string{"name": name, "party": party}
	if err := c.call(ctx, http.MethodPost, "/api/v1/candidates", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Candidates lists registered candidates.
func (c *Client) Candidates(ctx context.Context) ([]Candidate, error) {
	var out struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/candidates", nil, &out); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

// Voters lists registered voters (admin).
func (c *Client) Voters(ctx context.Context) ([]Voter, error) {
	var out struct {
		Voters []Voter `json:"voters"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/voters", nil, &out); err != nil {
		return nil, err
	}
	return out.Voters, nil
}

// CastVote submits a vote.
func (c *Client) CastVote(ctx context.Context, voterID, candidateID string) (*Receipt, error) {
	var out Receipt
	body := map[string]string{"voter_id": voterID, "candidate_id": candidateID}
	if err := c.call(ctx, http.MethodPost, "/api/v1/votes", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results returns the sealed tally, served from the cache when enabled.
func (c *Client) Results(ctx context.Context) (*Results, error) {
	if c.cache != nil {
		if r, ok := c.cache.get(); ok {
			return r, nil
		}
	}
	var out Results
	if err := c.call(ctx, http.MethodGet, "/api/v1/results", nil, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(&out)
	}
	return &out, nil
}

// call performs a JSON request against path and decodes the response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// --- simple in-memory results cache ---

type resultsCache struct {
	mu        sync.RWMutex
	result    Results
	cached    bool
	expiresAt time.Time
	ttl       time.Duration
}

// get returns a copy of the cached results so callers cannot mutate the cache.
func (rc *resultsCache) get() (*Results, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if !rc.cached || time.Now().After(rc.expiresAt) {
		return nil, false
	}
	out := rc.result.clone()
	return &out, true
}

func (rc *resultsCache) set(r *Results) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.result = r.clone()
	rc.cached = true
	rc.expiresAt = time.Now().Add(rc.ttl)
}

func (r Results) clone() Results {
	if r.Results != nil {
		r.Results = append([]Result(nil), r.Results...)
	}
	return r
}
