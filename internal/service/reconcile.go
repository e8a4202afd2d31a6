package service

import (
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/shopspring/decimal"
)

// Outcome is the canonical result of closing one auction: the terminal
// status plus final price and winner, which are both nil or both set.
type Outcome struct {
	Status     domain.AuctionStatus
	FinalPrice *decimal.Decimal
	WinnerID   *string
}

// Reconcile derives the canonical winner and final price from the bid
// history, cross-checked against the live bid state when one still exists.
// Invoked exactly once per auction, at closure.
//
// The history log is authoritative: the winning entry is the maximum amount,
// ties broken by the earliest timestamp and then the lowest sequence.  Ties
// cannot be produced by the acceptance protocol (strictly-greater rule), but
// the tie-break is deterministic regardless of the store's ordering.
//
// If the live state carries a strictly higher price than anything in the
// history, the log missed a write: the live entry was the last committed
// atomic write, so it wins over a possibly incomplete history read.
func Reconcile(history []*domain.BidRecord, live *domain.LiveBidState) Outcome {
	best := bestBid(history)

	liveHasBid := live != nil && live.HasBid()
	if best == nil && !liveHasBid {
		return Outcome{Status: domain.StatusNoBid}
	}

	if liveHasBid && (best == nil || live.CurrentPrice.GreaterThan(best.Amount)) {
		price := live.CurrentPrice
		winner := live.LastBidderID
		return Outcome{Status: domain.StatusFinished, FinalPrice: &price, WinnerID: &winner}
	}

	price := best.Amount
	winner := best.BidderID
	return Outcome{Status: domain.StatusFinished, FinalPrice: &price, WinnerID: &winner}
}

// bestBid scans the history for the maximum amount; earliest timestamp, then
// lowest sequence, wins an exact tie.  Returns nil for an empty log.
func bestBid(history []*domain.BidRecord) *domain.BidRecord {
	var best *domain.BidRecord
	for _, rec := range history {
		switch {
		case best == nil:
			best = rec
		case rec.Amount.GreaterThan(best.Amount):
			best = rec
		case rec.Amount.Equal(best.Amount):
			if rec.PlacedAt.Before(best.PlacedAt) ||
				(rec.PlacedAt.Equal(best.PlacedAt) && rec.Seq < best.Seq) {
				best = rec
			}
		}
	}
	return best
}
