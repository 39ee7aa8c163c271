package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/jmerrifield20/VoteChain/internal/identity"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"go.uber.org/zap"
)

// VoteLedger is the ledger surface used by the HTTP layer.
type VoteLedger interface {
	LedgerStats
	Tip() chain.Block
	Block(index int) (chain.Block, error)
	Blocks() []chain.Block
	Verify() error
	Seal(ctx context.Context) (chain.Block, bool)
	VotesForCandidate(candidateID string) []chain.Vote
	Difficulty() int
	BatchThreshold() int
}

// blockView is a block as served over HTTP, with its digest.
type blockView struct {
	chain.Block
	Hash string `json:"hash"`
}

func viewOf(b chain.Block) blockView {
	return blockView{Block: b, Hash: chain.Digest(b)}
}

// LedgerHandler exposes HTTP endpoints for the vote chain.
type LedgerHandler struct {
	ledger VoteLedger
	admin  *identity.AdminTokenIssuer
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l VoteLedger, admin *identity.AdminTokenIssuer, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, admin: admin, logger: logger}
}

// requireAdmin returns the RequireAdmin middleware when an issuer is
// configured, or a no-op middleware otherwise.
func requireAdmin(a *identity.AdminTokenIssuer) gin.HandlerFunc {
	if a == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireAdmin(a)
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/blocks", h.ListBlocks)
		l.GET("/blocks/:index", h.GetBlock)
		l.GET("/pending", h.Pending)
		l.GET("/candidates/:id/votes", h.CandidateVotes)
		l.POST("/seal", requireAdmin(h.admin), h.Seal)
	}
}

// Overview handles GET /ledger: chain length, pool size and tip digest.
func (h *LedgerHandler) Overview(c *gin.Context) {
	tip := h.ledger.Tip()
	c.JSON(http.StatusOK, gin.H{
		"blocks":          h.ledger.TotalBlocks(),
		"pending":         len(h.ledger.PendingVotes()),
		"size_bytes":      h.ledger.SerializedSizeBytes(),
		"tip_index":       tip.Index,
		"tip_hash":        chain.Digest(tip),
		"difficulty":      h.ledger.Difficulty(),
		"batch_threshold": h.ledger.BatchThreshold(),
	})
}

// Verify handles GET /ledger/verify: walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.ledger.Verify(); err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		resp := gin.H{
			"valid": false,
			"error": err.Error(),
		}
		var ie *ledger.IntegrityError
		if errors.As(err, &ie) {
			resp["index"] = ie.Index
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListBlocks handles GET /ledger/blocks: the whole chain.
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	blocks := h.ledger.Blocks()
	views := make([]blockView, len(blocks))
	for i, b := range blocks {
		views[i] = viewOf(b)
	}
	c.JSON(http.StatusOK, gin.H{"chain": views, "length": len(views)})
}

// GetBlock handles GET /ledger/blocks/:index: a single block by 1-based index.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a positive integer"})
		return
	}

	b, err := h.ledger.Block(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}

	c.JSON(http.StatusOK, viewOf(b))
}

// Pending handles GET /ledger/pending: votes not yet sealed.
func (h *LedgerHandler) Pending(c *gin.Context) {
	votes := h.ledger.PendingVotes()
	c.JSON(http.StatusOK, gin.H{"pending_votes": votes, "count": len(votes)})
}

// CandidateVotes handles GET /ledger/candidates/:id/votes: sealed votes for one candidate.
func (h *LedgerHandler) CandidateVotes(c *gin.Context) {
	votes := h.ledger.VotesForCandidate(c.Param("id"))
	if votes == nil {
		votes = []chain.Vote{}
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes, "count": len(votes)})
}

// Seal handles POST /ledger/seal: seals the pending pool regardless of its size.
func (h *LedgerHandler) Seal(c *gin.Context) {
	b, ok := h.ledger.Seal(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"sealed": false})
		return
	}

	h.logger.Info("pending pool sealed on request", zap.Int64("index", b.Index))
	c.JSON(http.StatusOK, gin.H{"sealed": true, "block": viewOf(b)})
}
