package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/livebid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Consumer interfaces
// ──────────────────────────────────────────────────────────────────────────────

// BidStore is the conditional-write surface the bid protocol runs against.
type BidStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.LiveBidState, error)
	PlaceBid(ctx context.Context, id uuid.UUID, bidderID string, amount decimal.Decimal, at time.Time) (*livebid.BidOutcome, error)
	PublishUpdate(ctx context.Context, id uuid.UUID, state domain.LiveBidState) error
}

// BidHistory is the append side of the durable bid log.
type BidHistory interface {
	Append(ctx context.Context, rec *domain.BidRecord) error
	ListAll(ctx context.Context, auctionID uuid.UUID) ([]*domain.BidRecord, error)
}

// PriceMirror updates the denormalised current price on the auction record.
type PriceMirror interface {
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// ──────────────────────────────────────────────────────────────────────────────
// BidService
// ──────────────────────────────────────────────────────────────────────────────

// BidService implements the bid acceptance protocol.  The accept-or-reject
// decision lives entirely in the live store's conditional write; everything
// after a successful write (history append, price mirror, fanout) is
// best-effort and never un-accepts a bid.
type BidService struct {
	live    BidStore
	history BidHistory
	mirror  PriceMirror
	clk     clock.Clock
	cfg     *config.Config
	logger  *slog.Logger
}

// NewBidService builds a BidService.
func NewBidService(
	live BidStore,
	history BidHistory,
	mirror PriceMirror,
	clk clock.Clock,
	cfg *config.Config,
	logger *slog.Logger,
) *BidService {
	return &BidService{
		live:    live,
		history: history,
		mirror:  mirror,
		clk:     clk,
		cfg:     cfg,
		logger:  logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBid
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBid runs one bid through the acceptance protocol and returns the
// recorded bid on success.
//
// Rejections come back as domain errors: ErrAuctionNotActive when no live
// entry exists, *BidTooLowError (with the exact minimum) when the amount does
// not beat the standing price.  A store that signals a lost write race with
// ErrBidConflict is retried up to the configured bound before the conflict is
// surfaced to the caller.
func (s *BidService) PlaceBid(ctx context.Context, auctionID uuid.UUID, bidderID string, amount decimal.Decimal) (*domain.BidRecord, error) {
	if bidderID == "" || bidderID == domain.SentinelBidder {
		return nil, fmt.Errorf("bid_service.PlaceBid: invalid bidder id %q", bidderID)
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidBidAmount
	}

	var outcome *livebid.BidOutcome
	var placedAt time.Time
	for attempt := 1; ; attempt++ {
		placedAt = s.clk.Now()
		var err error
		outcome, err = s.live.PlaceBid(ctx, auctionID, bidderID, amount, placedAt)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrBidConflict) && attempt < s.cfg.Auction.BidMaxRetries {
			s.logger.Debug("bid write race, retrying",
				"auction_id", auctionID, "attempt", attempt)
			continue
		}
		return nil, fmt.Errorf("bid_service.PlaceBid %s: %w", auctionID, err)
	}

	if !outcome.Accepted {
		return nil, domain.NewBidTooLowError(outcome.CurrentPrice)
	}

	rec := &domain.BidRecord{
		AuctionID: auctionID,
		Seq:       outcome.Seq,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  placedAt,
	}

	// The bid is already accepted; a history write failure loses an audit
	// entry, not the auction outcome, because the live state still carries
	// the leader and reconciliation trusts whichever is higher.
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error("bid accepted but history append failed",
			"auction_id", auctionID, "seq", rec.Seq, "err", err)
	}

	if err := s.mirror.UpdateFields(ctx, auctionID, map[string]any{
		"current_price": amount,
	}); err != nil {
		s.logger.Warn("current price mirror update failed",
			"auction_id", auctionID, "err", err)
	}

	state := domain.LiveBidState{
		CurrentPrice: amount,
		LastBidderID: bidderID,
		LastBidAt:    placedAt,
	}
	if err := s.live.PublishUpdate(ctx, auctionID, state); err != nil {
		s.logger.Warn("bid fanout publish failed",
			"auction_id", auctionID, "err", err)
	}

	s.logger.Info("bid accepted",
		"auction_id", auctionID, "bidder_id", bidderID,
		"amount", amount, "seq", rec.Seq)
	return rec, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetLive returns the current leader state for an ACTIVE auction.
func (s *BidService) GetLive(ctx context.Context, auctionID uuid.UUID) (*domain.LiveBidState, error) {
	state, err := s.live.Get(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotActive) {
			return nil, err
		}
		return nil, fmt.Errorf("bid_service.GetLive %s: %w", auctionID, err)
	}
	return state, nil
}

// ListHistory returns every recorded bid for an auction in acceptance order.
func (s *BidService) ListHistory(ctx context.Context, auctionID uuid.UUID) ([]*domain.BidRecord, error) {
	recs, err := s.history.ListAll(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bid_service.ListHistory %s: %w", auctionID, err)
	}
	return recs, nil
}

// SuggestedNextBid returns the UI hint for the next bid: the standing price
// plus the configured step.  The protocol floor stays current price plus
// MinIncrement regardless of this value.
func (s *BidService) SuggestedNextBid(ctx context.Context, auctionID uuid.UUID) (decimal.Decimal, error) {
	state, err := s.GetLive(ctx, auctionID)
	if err != nil {
		return decimal.Zero, err
	}
	step := decimal.NewFromInt(s.cfg.Auction.SuggestedIncrement)
	return state.CurrentPrice.Add(step), nil
}
