package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/VoteChain/internal/identity"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"github.com/jmerrifield20/VoteChain/internal/voting"
	"go.uber.org/zap"
)

// votingSvc is the subset of voting.Gateway used by VotingHandler.
type votingSvc interface {
	RegisterVoter(ctx context.Context, name, email string) (*voting.Voter, error)
	RegisterCandidate(ctx context.Context, name, party string) (*voting.Candidate, error)
	CastVote(ctx context.Context, voterID, candidateID string) (ledger.Receipt, error)
	Results() []voting.Result
	Candidates() []voting.Candidate
	Voters() []voting.Voter
	VoterCount() int
	CandidateCount() int
	ElectionOpen() bool
	Election() voting.Election
}

// VotingHandler handles registration, vote casting and results.
type VotingHandler struct {
	svc    votingSvc
	admin  *identity.AdminTokenIssuer
	logger *zap.Logger
}

// NewVotingHandler creates a new VotingHandler.
func NewVotingHandler(svc votingSvc, admin *identity.AdminTokenIssuer, logger *zap.Logger) *VotingHandler {
	return &VotingHandler{svc: svc, admin: admin, logger: logger}
}

// Register mounts the voting routes on the given router group.
func (h *VotingHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/election", h.Election)
	rg.POST("/voters", h.RegisterVoter)
	rg.GET("/voters", requireAdmin(h.admin), h.ListVoters)
	rg.POST("/candidates", requireAdmin(h.admin), h.RegisterCandidate)
	rg.GET("/candidates", h.ListCandidates)
	rg.POST("/votes", h.CastVote)
	rg.GET("/results", h.Results)
}

type registerVoterRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type registerCandidateRequest struct {
	Name  string `json:"name" binding:"required"`
	Party string `json:"party"`
}

type castVoteRequest struct {
	VoterID     string `json:"voter_id" binding:"required"`
	CandidateID string `json:"candidate_id" binding:"required"`
}

// Election handles GET /election: the voting window and registration counts.
func (h *VotingHandler) Election(c *gin.Context) {
	e := h.svc.Election()
	c.JSON(http.StatusOK, gin.H{
		"start":      e.Start.UTC().Format(time.RFC3339),
		"end":        e.End().UTC().Format(time.RFC3339),
		"open":       h.svc.ElectionOpen(),
		"voters":     h.svc.VoterCount(),
		"candidates": h.svc.CandidateCount(),
	})
}

// RegisterVoter handles POST /voters.
func (h *VotingHandler) RegisterVoter(c *gin.Context) {
	var req registerVoterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.svc.RegisterVoter(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, voting.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, voting.ErrInvalidEmail), errors.Is(err, voting.ErrMissingField):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("register voter", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register voter"})
		}
		return
	}

	RecordRegistration("voter")
	c.JSON(http.StatusCreated, v)
}

// ListVoters handles GET /voters (admin).
func (h *VotingHandler) ListVoters(c *gin.Context) {
	voters := h.svc.Voters()
	c.JSON(http.StatusOK, gin.H{"voters": voters, "count": len(voters)})
}

// RegisterCandidate handles POST /candidates (admin).
func (h *VotingHandler) RegisterCandidate(c *gin.Context) {
	var req registerCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cand, err := h.svc.RegisterCandidate(c.Request.Context(), req.Name, req.Party)
	if err != nil {
		if errors.Is(err, voting.ErrMissingField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("register candidate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register candidate"})
		return
	}

	RecordRegistration("candidate")
	c.JSON(http.StatusCreated, cand)
}

// ListCandidates handles GET /candidates.
func (h *VotingHandler) ListCandidates(c *gin.Context) {
	cands := h.svc.Candidates()
	c.JSON(http.StatusOK, gin.H{"candidates": cands, "count": len(cands)})
}

// CastVote handles POST /votes.
func (h *VotingHandler) CastVote(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RecordVote("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.svc.CastVote(c.Request.Context(), req.VoterID, req.CandidateID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, voting.ErrElectionClosed), errors.Is(err, voting.ErrElectionNotStarted):
			status = http.StatusForbidden
		case errors.Is(err, voting.ErrAlreadyVoted):
			status = http.StatusConflict
		case errors.Is(err, voting.ErrInvalidVoter), errors.Is(err, voting.ErrUnknownCandidate):
			status = http.StatusNotFound
		}
		RecordVote("rejected")
		if status == http.StatusInternalServerError {
			h.logger.Error("cast vote", zap.Error(err))
			c.JSON(status, gin.H{"error": "failed to cast vote"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	RecordVote("accepted")
	c.JSON(http.StatusCreated, gin.H{
		"sealed":    receipt.Sealed,
		"tip_index": receipt.Tip.Index,
		"vote":      receipt.Vote,
	})
}

// Results handles GET /results: sealed vote counts per candidate.
func (h *VotingHandler) Results(c *gin.Context) {
	results := h.svc.Results()
	total := 0
	for _, r := range results {
		total += r.VoteCount
	}
	c.JSON(http.StatusOK, gin.H{
		"results":       results,
		"total_votes":   total,
		"election_open": h.svc.ElectionOpen(),
	})
}
