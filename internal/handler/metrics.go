package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	votechainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votechain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	votechainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "votechain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	votechainBlocksSealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "votechain_blocks_sealed_total",
		Help: "Total blocks sealed since process start.",
	})

	votechainSealedVotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "votechain_sealed_votes_total",
		Help: "Total votes sealed into blocks since process start.",
	})

	votechainPowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "votechain_pow_duration_seconds",
		Help:    "Time spent searching for a block proof.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	votechainVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votechain_votes_total",
		Help: "Vote submissions by outcome.",
	}, []string{"result"})

	votechainRegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votechain_registrations_total",
		Help: "Successful registrations by kind.",
	}, []string{"kind"})

	votechainAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "votechain_integrity_audits_total",
		Help: "Periodic chain integrity audits by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		votechainRequestsTotal.WithLabelValues(method, path, status).Inc()
		votechainRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBlockSealed records a sealed block. Its signature matches
// ledger.SealRecordFunc so it can be installed with Ledger.SetSealHook.
func RecordBlockSealed(b chain.Block, powDuration time.Duration) {
	votechainBlocksSealedTotal.Inc()
	votechainSealedVotesTotal.Add(float64(len(b.Votes)))
	votechainPowDuration.Observe(powDuration.Seconds())
}

// RecordVote records a vote submission outcome ("accepted", "rejected", ...).
func RecordVote(result string) {
	votechainVotesTotal.WithLabelValues(result).Inc()
}

// RecordRegistration records a successful voter or candidate registration.
func RecordRegistration(kind string) {
	votechainRegistrationsTotal.WithLabelValues(kind).Inc()
}

// RecordAudit records a chain integrity audit. Its signature matches
// health.MetricsRecordFunc.
func RecordAudit(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	votechainAuditsTotal.WithLabelValues(result).Inc()
}

// LedgerStats is the read side of the ledger sampled by the gauges.
type LedgerStats interface {
	TotalBlocks() int
	PendingVotes() []chain.Vote
	SerializedSizeBytes() int
}

// RegisterLedgerGauges registers gauges sampling l on every scrape.
func RegisterLedgerGauges(reg prometheus.Registerer, l LedgerStats) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "votechain_chain_length",
		Help: "Number of blocks in the chain, genesis included.",
	}, func() float64 { return float64(l.TotalBlocks()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "votechain_pending_votes",
		Help: "Votes waiting to be sealed.",
	}, func() float64 { return float64(len(l.PendingVotes())) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "votechain_chain_size_bytes",
		Help: "Size of the canonical chain serialization.",
	}, func() float64 { return float64(l.SerializedSizeBytes()) })
}
