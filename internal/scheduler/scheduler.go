// Package scheduler runs the periodic auction lifecycle sweep: every tick it
// takes the cross-process sweep lease, activates due PENDING auctions and
// closes expired ACTIVE ones, then releases the lease.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Consumer interfaces
// ──────────────────────────────────────────────────────────────────────────────

// Sweeper is the lifecycle engine surface the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// LeaseStore grants the sweep lease that keeps concurrent sweepers from
// racing each other.  livebid.Store satisfies it.
type LeaseStore interface {
	AcquireSweepLease(ctx context.Context, ttl time.Duration) (string, bool, error)
	ReleaseSweepLease(ctx context.Context, token string) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler ticks the lifecycle sweep.  Call Start(ctx) once from main();
// cancel the context to shut it down gracefully.
type Scheduler struct {
	sweeper Sweeper
	leases  LeaseStore
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Scheduler.
func New(sweeper Sweeper, leases LeaseStore, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		leases:  leases,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the sweep loop goroutine.  It returns immediately; the loop
// runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.sweepLoop(ctx)
	s.logger.Info("scheduler started", "interval", s.cfg.Auction.SweepInterval)
}

// ──────────────────────────────────────────────────────────────────────────────
// sweepLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.recoverAndLog("sweepLoop")

	ticker := time.NewTicker(s.cfg.Auction.SweepInterval)
	defer ticker.Stop()

	// One immediate sweep at boot catches anything that became due while
	// the process was down.
	s.runSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweepLoop: shutting down")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep performs one lease-guarded sweep.  A held lease means another
// sweeper (or a still-running previous tick) owns this round; skipping is the
// correct behavior, the auctions stay due until someone gets to them.
func (s *Scheduler) runSweep(ctx context.Context) {
	token, ok, err := s.leases.AcquireSweepLease(ctx, s.cfg.Auction.SweepLeaseTTL)
	if err != nil {
		s.logger.Error("sweepLoop: lease acquire failed", "err", err)
		return
	}
	if !ok {
		s.logger.Debug("sweepLoop: lease held elsewhere, skipping tick")
		return
	}
	defer func() {
		if err := s.leases.ReleaseSweepLease(ctx, token); err != nil {
			s.logger.Warn("sweepLoop: lease release failed", "err", err)
		}
	}()

	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.Error("sweepLoop: sweep failed", "err", err)
	}
}

// RunNow triggers one lease-guarded sweep outside the schedule and returns
// its report.  Used by the admin endpoint and the one-shot sweeper binary.
// A lease held elsewhere does not error: the report comes back marked
// Skipped so callers can tell "not run" from "nothing was due".
func (s *Scheduler) RunNow(ctx context.Context) (*service.SweepReport, error) {
	token, ok, err := s.leases.AcquireSweepLease(ctx, s.cfg.Auction.SweepLeaseTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &service.SweepReport{Skipped: true}, nil
	}
	defer func() {
		if err := s.leases.ReleaseSweepLease(ctx, token); err != nil {
			s.logger.Warn("RunNow: lease release failed", "err", err)
		}
	}()
	return s.sweeper.Sweep(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside the loop goroutine to catch unexpected
// panics, log them, and keep the process alive.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
