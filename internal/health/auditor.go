// Package health runs periodic integrity audits of the vote chain and
// exposes the resulting status to the health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds audit configuration.
type Config struct {
	Interval      time.Duration
	FailThreshold int
}

// Verifier validates the chain; a nil error means intact.
type Verifier interface {
	Verify() error
}

// MetricsRecordFunc is an optional callback for recording audit results.
type MetricsRecordFunc func(valid bool)

// Report is the outcome of the most recent audit.
type Report struct {
	Status      string    `json:"status"`
	LastAuditAt time.Time `json:"last_audit_at"`
	FailCount   int       `json:"fail_count"`
	LastError   string    `json:"last_error,omitempty"`
}

// Auditor re-verifies the chain on a fixed interval. It reports degraded
// after FailThreshold consecutive failed audits and healthy again after the
// first success.
type Auditor struct {
	verifier  Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu     sync.RWMutex
	report Report
}

// New creates a new Auditor.
func New(v Verifier, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 1
	}
	return &Auditor{
		verifier: v,
		cfg:      cfg,
		logger:   logger,
		report:   Report{Status: StatusHealthy},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// Start runs the audit loop until ctx is done. The first audit runs
// immediately.
func (a *Auditor) Start(ctx context.Context) {
	a.Audit()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Audit()
		case <-ctx.Done():
			return
		}
	}
}

// Audit verifies the chain once and updates the report.
func (a *Auditor) Audit() Report {
	err := a.verifier.Verify()
	if a.onMetrics != nil {
		a.onMetrics(err == nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.report
	a.report.LastAuditAt = time.Now().UTC()

	if err == nil {
		a.report.FailCount = 0
		a.report.LastError = ""
		a.report.Status = StatusHealthy
		if prev.Status == StatusDegraded {
			a.logger.Info("health: chain integrity recovered")
		}
		return a.report
	}

	a.report.FailCount++
	a.report.LastError = err.Error()
	if a.report.FailCount == a.cfg.FailThreshold {
		a.report.Status = StatusDegraded
		a.logger.Warn("health: chain integrity degraded",
			zap.Int("fail_count", a.report.FailCount),
			zap.Error(err),
		)
	}
	return a.report
}

// Report returns the outcome of the most recent audit.
func (a *Auditor) Report() Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report
}

// Healthy reports whether the chain is currently considered intact.
func (a *Auditor) Healthy() bool {
	return a.Report().Status == StatusHealthy
}
