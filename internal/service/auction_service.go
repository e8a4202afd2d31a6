package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
)

// ListingStore is the full auctions-table surface the listing side needs.
// repository.AuctionRepository satisfies it.
type ListingStore interface {
	AuctionStore
	Create(ctx context.Context, a *domain.Auction) error
	List(ctx context.Context, limit, offset int, status string) ([]*domain.Auction, int, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*domain.Auction, error)
	ListByWinner(ctx context.Context, winnerID string, limit, offset int) ([]*domain.Auction, error)
}

// AuctionService owns listing management: creation, metadata edits while the
// auction is still PENDING, and the read side including the buyer and seller
// status projections.
type AuctionService struct {
	repo   ListingStore
	clk    clock.Clock
	logger *slog.Logger
}

// NewAuctionService builds an AuctionService.
func NewAuctionService(repo ListingStore, clk clock.Clock, logger *slog.Logger) *AuctionService {
	return &AuctionService{repo: repo, clk: clk, logger: logger}
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuction validates and stores a new listing in PENDING.  The schedule
// may start in the past; the next sweep simply activates it immediately.
func (s *AuctionService) CreateAuction(ctx context.Context, req *domain.CreateAuctionRequest) (*domain.Auction, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("auction_service.CreateAuction: name is required")
	}
	if strings.TrimSpace(req.SellerID) == "" {
		return nil, fmt.Errorf("auction_service.CreateAuction: seller id is required")
	}
	if !req.StartPrice.IsPositive() {
		return nil, fmt.Errorf("auction_service.CreateAuction: start price must be positive")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, domain.ErrInvalidAuctionWindow
	}

	now := s.clk.Now()
	a := &domain.Auction{
		ID:           uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		Origin:       req.Origin,
		ImageURL:     req.ImageURL,
		SellerID:     req.SellerID,
		Status:       domain.StatusPending,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		StartPrice:   req.StartPrice,
		CurrentPrice: req.StartPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("auction_service.CreateAuction: %w", err)
	}

	s.logger.Info("auction created",
		"auction_id", a.ID, "seller_id", a.SellerID,
		"start_time", a.StartTime, "end_time", a.EndTime)
	return a, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Edit
// ──────────────────────────────────────────────────────────────────────────────

// UpdateListing applies a metadata edit.  Only descriptive fields can change,
// and only while the auction is still PENDING; the schedule and pricing are
// fixed at creation.
func (s *AuctionService) UpdateListing(ctx context.Context, id uuid.UUID, req *domain.UpdateListingRequest) (*domain.Auction, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("auction_service.UpdateListing: %w", err)
	}
	if !a.IsEditable() {
		return nil, domain.ErrAuctionNotEditable
	}

	fields := make(map[string]any)
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("auction_service.UpdateListing: name cannot be empty")
		}
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Origin != nil {
		fields["origin"] = *req.Origin
	}
	if req.ImageURL != nil {
		fields["image_url"] = *req.ImageURL
	}
	if len(fields) == 0 {
		return a, nil
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("auction_service.UpdateListing: %w", err)
	}
	a, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("auction_service.UpdateListing: reload: %w", err)
	}
	return a, nil
}

// MarkPaymentCompleted records that the winner paid for a finished auction.
func (s *AuctionService) MarkPaymentCompleted(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("auction_service.MarkPaymentCompleted: %w", err)
	}
	if a.Status != domain.StatusFinished {
		return &domain.InvalidTransitionError{Expected: domain.StatusFinished, Actual: a.Status}
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"is_payment_completed": true}); err != nil {
		return fmt.Errorf("auction_service.MarkPaymentCompleted: %w", err)
	}
	return nil
}

// MarkSettlementCompleted records that the seller received the payout.
func (s *AuctionService) MarkSettlementCompleted(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("auction_service.MarkSettlementCompleted: %w", err)
	}
	if a.Status != domain.StatusFinished {
		return &domain.InvalidTransitionError{Expected: domain.StatusFinished, Actual: a.Status}
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]any{"is_settlement_completed": true}); err != nil {
		return fmt.Errorf("auction_service.MarkSettlementCompleted: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetAuction returns a single auction record.
func (s *AuctionService) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auction_service.GetAuction: %w", err)
	}
	return a, nil
}

// ListAuctions returns a page of auctions, optionally filtered by status,
// along with the unfiltered total for pagination.
func (s *AuctionService) ListAuctions(ctx context.Context, limit, offset int, status string) ([]*domain.Auction, int, error) {
	if status != "" && !domain.AuctionStatus(status).IsValid() {
		return nil, 0, fmt.Errorf("auction_service.ListAuctions: unknown status %q", status)
	}
	auctions, total, err := s.repo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("auction_service.ListAuctions: %w", err)
	}
	return auctions, total, nil
}

// SellerView is an auction joined with the seller's display status.
type SellerView struct {
	Auction       *domain.Auction      `json:"auction"`
	DisplayStatus domain.DisplayStatus `json:"display_status"`
}

// BuyerView is an auction joined with a winning buyer's display status.
type BuyerView struct {
	Auction       *domain.Auction      `json:"auction"`
	DisplayStatus domain.DisplayStatus `json:"display_status"`
}

// ListForSeller returns the seller's listings with each one's projected
// display status.
func (s *AuctionService) ListForSeller(ctx context.Context, sellerID string, limit, offset int) ([]*SellerView, error) {
	auctions, err := s.repo.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_service.ListForSeller: %w", err)
	}
	views := make([]*SellerView, len(auctions))
	for i, a := range auctions {
		views[i] = &SellerView{Auction: a, DisplayStatus: domain.SellerStatusOf(a)}
	}
	return views, nil
}

// ListForBuyer returns the auctions the buyer has won with each one's
// projected display status.
func (s *AuctionService) ListForBuyer(ctx context.Context, buyerID string, limit, offset int) ([]*BuyerView, error) {
	auctions, err := s.repo.ListByWinner(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_service.ListForBuyer: %w", err)
	}
	views := make([]*BuyerView, len(auctions))
	for i, a := range auctions {
		views[i] = &BuyerView{Auction: a, DisplayStatus: domain.BuyerStatusOf(a)}
	}
	return views, nil
}
