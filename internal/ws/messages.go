// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeBidUpdate       MsgType = "bid_update"
	MsgTypeAuctionStarted  MsgType = "auction_started"
	MsgTypeAuctionFinished MsgType = "auction_finished"
	MsgTypeError           MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// BidUpdateMessage — pushed to an auction's watchers after each accepted bid.
// ──────────────────────────────────────────────────────────────────────────────

// BidUpdateMessage carries the new standing price and leader.
type BidUpdateMessage struct {
	Type         MsgType         `json:"type"`
	AuctionID    uuid.UUID       `json:"auction_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	LastBidderID string          `json:"last_bidder_id"`
	LastBidAt    time.Time       `json:"last_bid_at"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionStartedMessage — pushed when a scheduled auction goes live.
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStartedMessage tells watchers the auction now accepts bids.
type AuctionStartedMessage struct {
	Type       MsgType         `json:"type"`
	AuctionID  uuid.UUID       `json:"auction_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	EndTime    time.Time       `json:"end_time"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionFinishedMessage — pushed when an auction closes.
// ──────────────────────────────────────────────────────────────────────────────

// AuctionFinishedMessage carries the settled outcome.  FinalPrice and WinnerID
// are nil together for a no-bid close.
type AuctionFinishedMessage struct {
	Type       MsgType              `json:"type"`
	AuctionID  uuid.UUID            `json:"auction_id"`
	Status     domain.AuctionStatus `json:"status"`
	FinalPrice *decimal.Decimal     `json:"final_price"`
	WinnerID   *string              `json:"winner_id"`
	Timestamp  time.Time            `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
