package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

// AuctionHandler serves listing management and auction read endpoints.
type AuctionHandler struct {
	auctionSvc *service.AuctionService
	clk        clock.Clock
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctionSvc *service.AuctionService, clk clock.Clock) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc, clk: clk}
}

// CreateAuction godoc
// POST /api/auctions
// Body: {"name":"갈치 5kg","origin":"부산","seller_id":"s1",
//
//	"start_time":"2026-03-10T06:00:00","end_time":"2026-03-10T08:00:00",
//	"start_price":"100000"}
//
// Naive timestamps are read in the configured auction timezone.
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	var body struct {
		Name        string `json:"name"        binding:"required"`
		Description string `json:"description"`
		Origin      string `json:"origin"`
		ImageURL    string `json:"image_url"`
		SellerID    string `json:"seller_id"   binding:"required"`
		StartTime   string `json:"start_time"  binding:"required"`
		EndTime     string `json:"end_time"    binding:"required"`
		StartPrice  string `json:"start_price" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	startTime, err := clock.ParseTime(h.clk, body.StartTime)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_TIME", "invalid start_time format")
		return
	}
	endTime, err := clock.ParseTime(h.clk, body.EndTime)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_TIME", "invalid end_time format")
		return
	}
	startPrice, err := decimal.NewFromString(body.StartPrice)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "start_price must be a decimal string")
		return
	}

	a, err := h.auctionSvc.CreateAuction(c.Request.Context(), &domain.CreateAuctionRequest{
		Name:        body.Name,
		Description: body.Description,
		Origin:      body.Origin,
		ImageURL:    body.ImageURL,
		SellerID:    body.SellerID,
		StartTime:   startTime,
		EndTime:     endTime,
		StartPrice:  startPrice,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAuctionWindow) {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_WINDOW", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, a)
}

// GetAuction godoc
// GET /api/auctions/:id
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	a, err := h.auctionSvc.GetAuction(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "auction not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch auction")
		return
	}
	respondSuccess(c, http.StatusOK, a)
}

// ListAuctions godoc
// GET /api/auctions?page=1&limit=20&status=ACTIVE
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit
	status := c.Query("status")

	auctions, total, err := h.auctionSvc.ListAuctions(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	respondList(c, auctions, total, page, limit)
}

// UpdateAuction godoc
// PATCH /api/auctions/:id
// Body: any subset of {"name","description","origin","image_url"}
func (h *AuctionHandler) UpdateAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}

	var body domain.UpdateListingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	a, err := h.auctionSvc.UpdateListing(c.Request.Context(), id, &body)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "auction not found")
		case errors.Is(err, domain.ErrAuctionNotEditable):
			respondError(c, http.StatusConflict, "ERR_NOT_EDITABLE", err.Error())
		default:
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, a)
}

// ListSellerAuctions godoc
// GET /api/sellers/:id/auctions?page=1&limit=20
func (h *AuctionHandler) ListSellerAuctions(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	views, err := h.auctionSvc.ListForSeller(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch listings")
		return
	}
	respondList(c, views, len(views), page, limit)
}

// ListBuyerAuctions godoc
// GET /api/buyers/:id/auctions?page=1&limit=20
func (h *AuctionHandler) ListBuyerAuctions(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	views, err := h.auctionSvc.ListForBuyer(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch won auctions")
		return
	}
	respondList(c, views, len(views), page, limit)
}

// CompletePayment godoc
// POST /api/auctions/:id/payment
func (h *AuctionHandler) CompletePayment(c *gin.Context) {
	h.completeFlag(c, h.auctionSvc.MarkPaymentCompleted)
}

// CompleteSettlement godoc
// POST /api/auctions/:id/settlement
func (h *AuctionHandler) CompleteSettlement(c *gin.Context) {
	h.completeFlag(c, h.auctionSvc.MarkSettlementCompleted)
}

func (h *AuctionHandler) completeFlag(c *gin.Context, mark func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}
	if err := mark(c.Request.Context(), id); err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "auction not found")
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_NOT_FINISHED", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not update auction")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"auction_id": id})
}
