package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) Sweep(context.Context) (*service.SweepReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &service.SweepReport{Activated: []uuid.UUID{uuid.New()}}, nil
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeLeases struct {
	mu       sync.Mutex
	held     bool
	acquires int
	releases int
}

func (f *fakeLeases) AcquireSweepLease(context.Context, time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token", true, nil
}

func (f *fakeLeases) ReleaseSweepLease(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.held = false
	return nil
}

func testScheduler(sweeper Sweeper, leases LeaseStore) *Scheduler {
	cfg := &config.Config{
		Auction: config.AuctionConfig{
			SweepInterval: 10 * time.Millisecond,
			SweepLeaseTTL: time.Second,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sweeper, leases, cfg, logger)
}

func TestRunNow(t *testing.T) {
	sweeper := &countingSweeper{}
	leases := &fakeLeases{}
	s := testScheduler(sweeper, leases)

	report, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if len(report.Activated) != 1 {
		t.Errorf("report = %+v, want one activation", report)
	}
	if report.Skipped {
		t.Error("report marked skipped on a run that executed")
	}
	if sweeper.count() != 1 {
		t.Errorf("sweeps = %d, want 1", sweeper.count())
	}
	if leases.releases != 1 {
		t.Errorf("lease releases = %d, want 1", leases.releases)
	}
}

func TestRunNow_SkipsWhenLeaseHeld(t *testing.T) {
	sweeper := &countingSweeper{}
	leases := &fakeLeases{held: true}
	s := testScheduler(sweeper, leases)

	report, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if sweeper.count() != 0 {
		t.Errorf("sweeps = %d, want 0 while lease held elsewhere", sweeper.count())
	}
	if len(report.Activated)+len(report.Closed) != 0 {
		t.Errorf("skipped run must report nothing, got %+v", report)
	}
	if !report.Skipped {
		t.Error("report.Skipped = false, caller cannot tell this run never swept")
	}
}

func TestStart_TicksUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	leases := &fakeLeases{}
	s := testScheduler(sweeper, leases)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for sweeper.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps before deadline", sweeper.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	// Every acquired lease must be released again.
	time.Sleep(20 * time.Millisecond)
	leases.mu.Lock()
	defer leases.mu.Unlock()
	if leases.held {
		t.Error("lease still held after shutdown")
	}
}
