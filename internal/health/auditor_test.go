package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubVerifier struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubVerifier) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubVerifier) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubVerifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestAudit_healthy(t *testing.T) {
	a := New(&stubVerifier{}, Config{}, zap.NewNop())
	r := a.Audit()
	if r.Status != StatusHealthy || r.LastAuditAt.IsZero() {
		t.Errorf("report = %+v", r)
	}
}

func TestAudit_degradesAfterThreshold(t *testing.T) {
	v := &stubVerifier{err: errors.New("block 3: broken hash link")}
	a := New(v, Config{FailThreshold: 3}, zap.NewNop())

	for i := 1; i <= 2; i++ {
		if r := a.Audit(); r.Status != StatusHealthy || r.FailCount != i {
			t.Fatalf("audit %d: report = %+v, want still healthy", i, r)
		}
	}
	r := a.Audit()
	if r.Status != StatusDegraded || r.FailCount != 3 || r.LastError == "" {
		t.Errorf("report = %+v, want degraded", r)
	}
	if a.Healthy() {
		t.Error("Healthy() = true after threshold")
	}

	// One more failure keeps it degraded.
	if r := a.Audit(); r.Status != StatusDegraded {
		t.Errorf("report = %+v, want degraded", r)
	}
}

func TestAudit_recovers(t *testing.T) {
	v := &stubVerifier{err: errors.New("broken")}
	a := New(v, Config{FailThreshold: 1}, zap.NewNop())
	if a.Audit().Status != StatusDegraded {
		t.Fatal("expected degraded")
	}

	v.set(nil)
	r := a.Audit()
	if r.Status != StatusHealthy || r.FailCount != 0 || r.LastError != "" {
		t.Errorf("report = %+v, want healthy", r)
	}
}

func TestAudit_recordsMetrics(t *testing.T) {
	v := &stubVerifier{}
	a := New(v, Config{}, zap.NewNop())
	var got []bool
	a.SetMetricsRecord(func(valid bool) { got = append(got, valid) })

	a.Audit()
	v.set(errors.New("broken"))
	a.Audit()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("metrics = %v, want [true false]", got)
	}
}

func TestStart_auditsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := &stubVerifier{}
	a := New(v, Config{Interval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for v.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d audits ran", v.count())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}
