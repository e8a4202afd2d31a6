package domain

// DisplayStatus is the human-facing label projected from an auction's
// internal state for one viewer role.  Computed fresh on every read; nothing
// here touches storage.
type DisplayStatus string

const (
	DisplayScheduled          DisplayStatus = "scheduled"
	DisplayLive               DisplayStatus = "live"
	DisplayNoBid              DisplayStatus = "no-bid"
	DisplayAwaitingPayment    DisplayStatus = "awaiting-payment"
	DisplayPaymentComplete    DisplayStatus = "payment-complete"
	DisplayAwaitingSettlement DisplayStatus = "awaiting-settlement"
	DisplayComplete           DisplayStatus = "complete"
)

// BuyerStatus projects the buyer-facing label.
//
//	PENDING                      → scheduled
//	ACTIVE                       → live
//	FINISHED, no winner          → no-bid
//	FINISHED, winner, unpaid     → awaiting-payment
//	FINISHED, winner, paid       → payment-complete
//	NO_BID                       → no-bid
func BuyerStatus(status AuctionStatus, hasWinner, isPaymentCompleted bool) DisplayStatus {
	switch status {
	case StatusPending:
		return DisplayScheduled
	case StatusActive:
		return DisplayLive
	case StatusFinished:
		if !hasWinner {
			return DisplayNoBid
		}
		if isPaymentCompleted {
			return DisplayPaymentComplete
		}
		return DisplayAwaitingPayment
	case StatusNoBid:
		return DisplayNoBid
	default:
		return DisplayScheduled
	}
}

// SellerStatus projects the seller-facing label.  A no-bid close counts as
// complete from the seller's side.
//
//	PENDING                      → scheduled
//	ACTIVE                       → live
//	FINISHED, no winner          → complete
//	FINISHED, winner, unsettled  → awaiting-settlement
//	FINISHED, winner, settled    → complete
//	NO_BID                       → complete
func SellerStatus(status AuctionStatus, hasWinner, isSettlementCompleted bool) DisplayStatus {
	switch status {
	case StatusPending:
		return DisplayScheduled
	case StatusActive:
		return DisplayLive
	case StatusFinished:
		if !hasWinner {
			return DisplayComplete
		}
		if isSettlementCompleted {
			return DisplayComplete
		}
		return DisplayAwaitingSettlement
	case StatusNoBid:
		return DisplayComplete
	default:
		return DisplayScheduled
	}
}

// BuyerStatusOf is BuyerStatus applied to a loaded auction record.
func BuyerStatusOf(a *Auction) DisplayStatus {
	return BuyerStatus(a.Status, a.HasWinner(), a.IsPaymentCompleted)
}

// SellerStatusOf is SellerStatus applied to a loaded auction record.
func SellerStatusOf(a *Auction) DisplayStatus {
	return SellerStatus(a.Status, a.HasWinner(), a.IsSettlementCompleted)
}
