package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

var (
	// ErrAuctionNotFound is returned when no auction matches the given ID.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrAuctionNotActive is returned when a bid arrives for an auction with
	// no live bid entry — not yet activated, or already closed.
	ErrAuctionNotActive = errors.New("auction is not accepting bids")

	// ErrAuctionNotEditable is returned when a seller edits listing metadata
	// after the auction has left PENDING.
	ErrAuctionNotEditable = errors.New("listing can only be edited before activation")

	// ErrBidConflict is returned by a live bid store when a conditional write
	// lost a race and the caller should re-read and retry.
	ErrBidConflict = errors.New("bid lost a concurrent update race")

	// ErrInvalidBidAmount is returned for zero or negative bid amounts.
	ErrInvalidBidAmount = errors.New("bid amount must be positive")

	// ErrInvalidAuctionWindow is returned at creation when end time is not
	// after start time.
	ErrInvalidAuctionWindow = errors.New("auction end time must be after start time")
)

// ──────────────────────────────────────────────────────────────────────────────
// Typed errors carrying user-facing context
// ──────────────────────────────────────────────────────────────────────────────

// BidTooLowError rejects a bid at or below the current price.  Minimum is the
// exact amount the bidder must reach, as required in every rejection message.
type BidTooLowError struct {
	CurrentPrice decimal.Decimal
	Minimum      decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: current price is %s, minimum acceptable bid is %s",
		e.CurrentPrice.StringFixed(0), e.Minimum.StringFixed(0))
}

// NewBidTooLowError builds the rejection for the given current price.
func NewBidTooLowError(current decimal.Decimal) *BidTooLowError {
	return &BidTooLowError{CurrentPrice: current, Minimum: current.Add(MinIncrement)}
}

// InvalidTransitionError rejects a manual lifecycle override against an
// auction that is not in the expected source state.
type InvalidTransitionError struct {
	Expected AuctionStatus
	Actual   AuctionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: auction is %s, expected %s", e.Actual, e.Expected)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err is an "entity not found" domain error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound)
}

// IsBidRejection returns true for errors that reject a bid as a normal
// user-facing outcome rather than a system failure.  Never retried.
func IsBidRejection(err error) bool {
	var tooLow *BidTooLowError
	return errors.Is(err, ErrAuctionNotActive) ||
		errors.Is(err, ErrInvalidBidAmount) ||
		errors.As(err, &tooLow)
}

// IsConflict returns true for state-conflict errors (bad manual transition,
// edit after activation, lost write race).
func IsConflict(err error) bool {
	var transition *InvalidTransitionError
	return errors.Is(err, ErrAuctionNotEditable) ||
		errors.Is(err, ErrBidConflict) ||
		errors.As(err, &transition)
}
