// Package domain defines the core business entities for the Fish-in-Water
// live auction marketplace: sellers list perishable catch, buyers bid inside
// a fixed time window, highest bid at closing wins.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStatus is the lifecycle state of an auction.  The stored status is
// the single source of truth; callers must never infer it from timestamps.
type AuctionStatus string

const (
	StatusPending  AuctionStatus = "PENDING"  // scheduled, not yet open for bids
	StatusActive   AuctionStatus = "ACTIVE"   // accepting bids
	StatusFinished AuctionStatus = "FINISHED" // closed with a winner
	StatusNoBid    AuctionStatus = "NO_BID"   // closed without any bid
)

// IsValid returns true for one of the four recognised lifecycle states.
func (s AuctionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusFinished, StatusNoBid:
		return true
	}
	return false
}

// IsTerminal returns true for states no transition ever leaves.
func (s AuctionStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusNoBid
}

// SentinelBidder marks a live auction that has not received a bid yet.
const SentinelBidder = "none"

// MinIncrement is the protocol's hard bid floor: one currency unit above the
// current price.  Larger steps are a UI suggestion only.
var MinIncrement = decimal.NewFromInt(1)

// ──────────────────────────────────────────────────────────────────────────────
// Auction
// ──────────────────────────────────────────────────────────────────────────────

// Auction is the durable record of a single-item English auction.
type Auction struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Origin      string    `json:"origin" db:"origin"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	SellerID    string    `json:"seller_id" db:"seller_id"`

	Status    AuctionStatus `json:"status" db:"status"`
	StartTime time.Time     `json:"start_time" db:"start_time"`
	EndTime   time.Time     `json:"end_time" db:"end_time"`

	StartPrice   decimal.Decimal  `json:"start_price" db:"start_price"`
	CurrentPrice decimal.Decimal  `json:"current_price" db:"current_price"`
	FinalPrice   *decimal.Decimal `json:"final_price" db:"final_price"`
	WinnerID     *string          `json:"winner_id" db:"winner_id"`

	IsPaymentCompleted    bool `json:"is_payment_completed" db:"is_payment_completed"`
	IsSettlementCompleted bool `json:"is_settlement_completed" db:"is_settlement_completed"`

	ActivatedAt *time.Time `json:"activated_at" db:"activated_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// HasWinner reports whether reconciliation produced a winning bidder.
func (a *Auction) HasWinner() bool {
	return a.WinnerID != nil && *a.WinnerID != "" && *a.WinnerID != SentinelBidder
}

// IsEditable reports whether the seller may still change the descriptive
// metadata (name, description, origin, image).  Only pre-activation.
func (a *Auction) IsEditable() bool {
	return a.Status == StatusPending
}

// DueForActivation reports whether the activation guard holds at instant now.
func (a *Auction) DueForActivation(now time.Time) bool {
	return a.Status == StatusPending && !a.StartTime.After(now)
}

// DueForClosure reports whether the closure guard holds at instant now.
func (a *Auction) DueForClosure(now time.Time) bool {
	return a.Status == StatusActive && !a.EndTime.After(now)
}

// ──────────────────────────────────────────────────────────────────────────────
// LiveBidState
// ──────────────────────────────────────────────────────────────────────────────

// LiveBidState is the ephemeral "current leader" entry kept per ACTIVE
// auction.  Its presence is itself the signal that an auction accepts bids;
// it is created at activation and deleted at closure.
type LiveBidState struct {
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastBidderID string          `json:"last_bidder_id"`
	LastBidAt    time.Time       `json:"last_bid_at"`
}

// HasBid reports whether any bid has been accepted since activation.
func (s *LiveBidState) HasBid() bool {
	return s.LastBidderID != "" && s.LastBidderID != SentinelBidder
}

// ──────────────────────────────────────────────────────────────────────────────
// BidRecord
// ──────────────────────────────────────────────────────────────────────────────

// BidRecord is one accepted bid in the append-only history log.  Seq is a
// per-auction monotonic sequence issued atomically with bid acceptance, so
// two entries never collapse onto the same key even under rapid concurrent
// bidding where wall-clock timestamps could collide.
type BidRecord struct {
	AuctionID uuid.UUID       `json:"auction_id" db:"auction_id"`
	Seq       int64           `json:"seq" db:"seq"`
	BidderID  string          `json:"bidder_id" db:"bidder_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	PlacedAt  time.Time       `json:"placed_at" db:"placed_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Requests
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuctionRequest carries a seller's new listing.
type CreateAuctionRequest struct {
	Name        string
	Description string
	Origin      string
	ImageURL    string
	SellerID    string
	StartTime   time.Time
	EndTime     time.Time
	StartPrice  decimal.Decimal
}

// UpdateListingRequest carries a metadata edit; nil fields are left unchanged.
type UpdateListingRequest struct {
	Name        *string
	Description *string
	Origin      *string
	ImageURL    *string
}
