package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

// BidHandler serves bid placement and live state endpoints.
type BidHandler struct {
	bidSvc *service.BidService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bidSvc *service.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// PlaceBid godoc
// POST /api/auctions/:id/bids
// Body: {"bidder_id":"b1","amount":"150000"}
func (h *BidHandler) PlaceBid(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	var body struct {
		BidderID string `json:"bidder_id" binding:"required"`
		Amount   string `json:"amount"    binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a decimal string")
		return
	}

	rec, err := h.bidSvc.PlaceBid(c.Request.Context(), auctionID, body.BidderID, amount)
	if err != nil {
		var tooLow *domain.BidTooLowError
		switch {
		case errors.As(err, &tooLow):
			// The rejection payload names the exact minimum acceptable bid.
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success":       false,
				"error":         tooLow.Error(),
				"code":          "ERR_BID_TOO_LOW",
				"current_price": tooLow.CurrentPrice,
				"minimum_bid":   tooLow.Minimum,
			})
		case errors.Is(err, domain.ErrAuctionNotActive):
			respondError(c, http.StatusConflict, "ERR_AUCTION_NOT_ACTIVE", err.Error())
		case errors.Is(err, domain.ErrInvalidBidAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", err.Error())
		case errors.Is(err, domain.ErrBidConflict):
			respondError(c, http.StatusConflict, "ERR_BID_CONFLICT", "please retry your bid")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bid")
		}
		return
	}
	respondSuccess(c, http.StatusCreated, rec)
}

// GetLive godoc
// GET /api/auctions/:id/live
func (h *BidHandler) GetLive(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	state, err := h.bidSvc.GetLive(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotActive) {
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_ACTIVE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch live state")
		return
	}
	respondSuccess(c, http.StatusOK, state)
}

// SuggestNextBid godoc
// GET /api/auctions/:id/next-bid
func (h *BidHandler) SuggestNextBid(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	next, err := h.bidSvc.SuggestedNextBid(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotActive) {
			respondError(c, http.StatusNotFound, "ERR_AUCTION_NOT_ACTIVE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not compute suggestion")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"suggested_bid": next})
}

// ListBids godoc
// GET /api/auctions/:id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	recs, err := h.bidSvc.ListHistory(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bid history")
		return
	}
	respondSuccess(c, http.StatusOK, recs)
}
