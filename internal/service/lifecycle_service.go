package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Consumer interfaces
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStore is what the lifecycle engine needs from the auctions table.
// UpdateFieldsIfStatus is the transition write: it applies only while the row
// still has the expected status and reports whether it did.
type AuctionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	QueryByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, fields map[string]any, expected domain.AuctionStatus) (bool, error)
}

// BidLog is the durable bid history read side used during closure.
type BidLog interface {
	ListAll(ctx context.Context, auctionID uuid.UUID) ([]*domain.BidRecord, error)
}

// LiveStore is what the engine needs from the live bid store: the per-auction
// live entry plus the event channel watchers subscribe to.
type LiveStore interface {
	Create(ctx context.Context, id uuid.UUID, startPrice decimal.Decimal, at time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*domain.LiveBidState, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PublishStarted(ctx context.Context, id uuid.UUID, startPrice decimal.Decimal, endTime time.Time) error
	PublishFinished(ctx context.Context, id uuid.UUID, status domain.AuctionStatus, finalPrice *decimal.Decimal, winnerID *string) error
}

// ──────────────────────────────────────────────────────────────────────────────
// LifecycleService
// ──────────────────────────────────────────────────────────────────────────────

// LifecycleService drives auctions through the
// PENDING → ACTIVE → FINISHED / NO_BID state machine.  Transitions happen
// either on the periodic sweep or through the manual Activate / Close
// overrides; both paths enforce the same ordering (no state is ever skipped).
type LifecycleService struct {
	auctions AuctionStore
	bidLog   BidLog
	live     LiveStore
	clk      clock.Clock
	logger   *slog.Logger
}

// NewLifecycleService builds a LifecycleService.
func NewLifecycleService(
	auctions AuctionStore,
	bidLog BidLog,
	live LiveStore,
	clk clock.Clock,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		auctions: auctions,
		bidLog:   bidLog,
		live:     live,
		clk:      clk,
		logger:   logger,
	}
}

// SweepReport summarises one sweep pass.  Skipped is set by callers whose
// pass never ran because the sweep lease was held elsewhere; an empty
// non-skipped report means nothing was due.
type SweepReport struct {
	Activated []uuid.UUID
	Closed    []uuid.UUID
	Failures  map[uuid.UUID]error
	Skipped   bool
}

func newSweepReport() *SweepReport {
	return &SweepReport{Failures: make(map[uuid.UUID]error)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep — called by the Scheduler every tick
// ──────────────────────────────────────────────────────────────────────────────

// Sweep activates every PENDING auction whose start time has arrived and
// closes every ACTIVE auction whose end time has passed.  A single failing
// auction does NOT abort the others; its error lands in the report instead.
// Sweep is idempotent: re-running it over the same set is harmless.
func (s *LifecycleService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := newSweepReport()
	now := s.clk.Now()

	// Both worklists are captured up front: an auction activated in this
	// pass is never closed by the same pass, it gets a full tick of ACTIVE
	// first.
	pending, err := s.auctions.QueryByStatus(ctx, domain.StatusPending)
	if err != nil {
		return report, fmt.Errorf("lifecycle_service.Sweep: query pending: %w", err)
	}
	active, err := s.auctions.QueryByStatus(ctx, domain.StatusActive)
	if err != nil {
		return report, fmt.Errorf("lifecycle_service.Sweep: query active: %w", err)
	}

	// ── Activation pass ──────────────────────────────────────────────────────
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, a := range pending {
		if !a.DueForActivation(now) {
			continue
		}
		wg.Add(1)
		go func(a *domain.Auction) {
			defer wg.Done()
			err := s.activateOne(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if domain.IsConflict(err) {
					// Another actor got there first; nothing to repair.
					s.logger.Debug("sweep: auction already transitioned", "auction_id", a.ID)
					return
				}
				report.Failures[a.ID] = err
				s.logger.Error("sweep: activation failed", "auction_id", a.ID, "err", err)
				return
			}
			report.Activated = append(report.Activated, a.ID)
		}(a)
	}
	wg.Wait()

	// ── Closure pass ─────────────────────────────────────────────────────────
	for _, a := range active {
		if !a.DueForClosure(now) {
			continue
		}
		wg.Add(1)
		go func(a *domain.Auction) {
			defer wg.Done()
			err := s.closeOne(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if domain.IsConflict(err) {
					s.logger.Debug("sweep: auction already transitioned", "auction_id", a.ID)
					return
				}
				report.Failures[a.ID] = err
				s.logger.Error("sweep: closure failed", "auction_id", a.ID, "err", err)
				return
			}
			report.Closed = append(report.Closed, a.ID)
		}(a)
	}
	wg.Wait()

	if len(report.Activated) > 0 || len(report.Closed) > 0 {
		s.logger.Info("sweep complete",
			"activated", len(report.Activated),
			"closed", len(report.Closed),
			"failed", len(report.Failures))
	}
	return report, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Activation
// ──────────────────────────────────────────────────────────────────────────────

// activateOne flips a single PENDING auction to ACTIVE.  The live bid entry is
// seeded FIRST so a bid arriving the instant the record flips always finds
// live state waiting.  If the record update then fails, the seed is rolled
// back and the auction stays PENDING for the next sweep.  The flip itself is
// conditional on the row still being PENDING, so two racing actors produce
// exactly one transition.
func (s *LifecycleService) activateOne(ctx context.Context, a *domain.Auction) error {
	if err := s.live.Create(ctx, a.ID, a.StartPrice, s.clk.Now()); err != nil {
		return fmt.Errorf("lifecycle_service.activateOne %s: seed live state: %w", a.ID, err)
	}

	now := s.clk.Now()
	applied, err := s.auctions.UpdateFieldsIfStatus(ctx, a.ID, map[string]any{
		"status":        domain.StatusActive,
		"activated_at":  now,
		"current_price": a.StartPrice,
	}, domain.StatusPending)
	if err != nil {
		if delErr := s.live.Delete(ctx, a.ID); delErr != nil {
			s.logger.Warn("activateOne: compensating delete failed",
				"auction_id", a.ID, "err", delErr)
		}
		return fmt.Errorf("lifecycle_service.activateOne %s: update record: %w", a.ID, err)
	}
	if !applied {
		// Lost the race: someone else already moved the auction on.  The live
		// entry now belongs to that transition, so no compensating delete.
		return s.transitionConflict(ctx, a.ID, domain.StatusPending)
	}

	if err := s.live.PublishStarted(ctx, a.ID, a.StartPrice, a.EndTime); err != nil {
		s.logger.Warn("activateOne: started event publish failed",
			"auction_id", a.ID, "err", err)
	}

	s.logger.Info("auction activated", "auction_id", a.ID, "start_price", a.StartPrice)
	return nil
}

// Activate is the manual override for a single auction.  It enforces the
// status guard itself; unlike the sweep it ignores the schedule, so an
// operator can open an auction early.
func (s *LifecycleService) Activate(ctx context.Context, id uuid.UUID) error {
	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lifecycle_service.Activate: %w", err)
	}
	if a.Status != domain.StatusPending {
		return &domain.InvalidTransitionError{Expected: domain.StatusPending, Actual: a.Status}
	}
	return s.activateOne(ctx, a)
}

// ──────────────────────────────────────────────────────────────────────────────
// Closure
// ──────────────────────────────────────────────────────────────────────────────

// closeOne settles a single ACTIVE auction: reconcile the durable bid history
// against the live state, persist the outcome, then tear down the live entry.
// The live entry is deleted LAST so a crash between the two writes leaves a
// settled record plus a stale live key, which a later sweep cleans up, rather
// than an open auction with no live state.  The settlement write is
// conditional on the row still being ACTIVE: racing closures settle once,
// finished_at is never overwritten.
func (s *LifecycleService) closeOne(ctx context.Context, a *domain.Auction) error {
	history, err := s.bidLog.ListAll(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("lifecycle_service.closeOne %s: load history: %w", a.ID, err)
	}

	live, err := s.live.Get(ctx, a.ID)
	if err != nil {
		// A missing live entry is survivable: the durable history still
		// determines the outcome.  Anything else aborts the closure.
		if !errors.Is(err, domain.ErrAuctionNotActive) {
			return fmt.Errorf("lifecycle_service.closeOne %s: read live state: %w", a.ID, err)
		}
		live = nil
	}

	outcome := Reconcile(history, live)

	now := s.clk.Now()
	fields := map[string]any{
		"status":      outcome.Status,
		"final_price": outcome.FinalPrice,
		"winner_id":   outcome.WinnerID,
		"finished_at": now,
	}
	if outcome.FinalPrice != nil {
		fields["current_price"] = *outcome.FinalPrice
	}
	applied, err := s.auctions.UpdateFieldsIfStatus(ctx, a.ID, fields, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("lifecycle_service.closeOne %s: persist outcome: %w", a.ID, err)
	}
	if !applied {
		// Another closure settled the auction first; its outcome stands and
		// it owns the live entry teardown.
		return s.transitionConflict(ctx, a.ID, domain.StatusActive)
	}

	if err := s.live.Delete(ctx, a.ID); err != nil {
		// The record is already settled; log and move on.  Late bids are
		// rejected by status checks regardless of this key.
		s.logger.Warn("closeOne: live state delete failed",
			"auction_id", a.ID, "err", err)
	}

	if err := s.live.PublishFinished(ctx, a.ID, outcome.Status, outcome.FinalPrice, outcome.WinnerID); err != nil {
		s.logger.Warn("closeOne: finished event publish failed",
			"auction_id", a.ID, "err", err)
	}

	if outcome.Status == domain.StatusFinished {
		s.logger.Info("auction finished",
			"auction_id", a.ID,
			"final_price", outcome.FinalPrice,
			"winner_id", *outcome.WinnerID)
	} else {
		s.logger.Info("auction closed with no bids", "auction_id", a.ID)
	}
	return nil
}

// transitionConflict builds the error for a transition write that found the
// row no longer in its expected status.  The fresh status is re-read so the
// caller sees where the auction actually went.
func (s *LifecycleService) transitionConflict(ctx context.Context, id uuid.UUID, expected domain.AuctionStatus) error {
	actual := domain.AuctionStatus("")
	if fresh, err := s.auctions.GetByID(ctx, id); err == nil {
		actual = fresh.Status
	}
	return &domain.InvalidTransitionError{Expected: expected, Actual: actual}
}

// Close is the manual override for a single auction.  Like Activate it skips
// the schedule check but never the status guard: only ACTIVE auctions close.
func (s *LifecycleService) Close(ctx context.Context, id uuid.UUID) error {
	a, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lifecycle_service.Close: %w", err)
	}
	if a.Status != domain.StatusActive {
		return &domain.InvalidTransitionError{Expected: domain.StatusActive, Actual: a.Status}
	}
	return s.closeOne(ctx, a)
}
