package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
	"github.com/shopspring/decimal"
)

func bid(bidder string, amount int64, at time.Time, seq int64) *domain.BidRecord {
	return &domain.BidRecord{
		AuctionID: uuid.Nil,
		Seq:       seq,
		BidderID:  bidder,
		Amount:    decimal.NewFromInt(amount),
		PlacedAt:  at,
	}
}

func TestReconcile_EmptyHistoryNoLive(t *testing.T) {
	out := service.Reconcile(nil, nil)
	if out.Status != domain.StatusNoBid {
		t.Errorf("status = %s, want NO_BID", out.Status)
	}
	if out.FinalPrice != nil || out.WinnerID != nil {
		t.Error("no-bid outcome must carry nil price and winner")
	}
}

func TestReconcile_EmptyHistorySentinelLive(t *testing.T) {
	live := &domain.LiveBidState{
		CurrentPrice: decimal.NewFromInt(100000),
		LastBidderID: domain.SentinelBidder,
	}
	out := service.Reconcile(nil, live)
	if out.Status != domain.StatusNoBid {
		t.Errorf("status = %s, want NO_BID (seed price is not a bid)", out.Status)
	}
}

func TestReconcile_HighestAmountWins(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("A", 150000, t0, 1),
		bid("B", 200000, t0.Add(time.Second), 2),
	}
	out := service.Reconcile(history, nil)
	if out.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", out.Status)
	}
	if out.WinnerID == nil || *out.WinnerID != "B" {
		t.Errorf("winner = %v, want B", out.WinnerID)
	}
	if out.FinalPrice == nil || !out.FinalPrice.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("final price = %v, want 200000", out.FinalPrice)
	}
}

// Order of the input slice must not matter — the store gives no ordering
// guarantee reconciliation is allowed to rely on.
func TestReconcile_IndependentOfInputOrder(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("B", 200000, t0.Add(time.Second), 2),
		bid("C", 120000, t0.Add(2*time.Second), 3),
		bid("A", 150000, t0, 1),
	}
	out := service.Reconcile(history, nil)
	if out.WinnerID == nil || *out.WinnerID != "B" {
		t.Errorf("winner = %v, want B", out.WinnerID)
	}
}

func TestReconcile_TieEarliestTimestampWins(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("late", 180000, t0.Add(time.Minute), 2),
		bid("early", 180000, t0, 1),
	}
	out := service.Reconcile(history, nil)
	if out.WinnerID == nil || *out.WinnerID != "early" {
		t.Errorf("winner = %v, want early (first bid at that price stands)", out.WinnerID)
	}
}

func TestReconcile_TieSameTimestampLowestSeqWins(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("second", 180000, t0, 7),
		bid("first", 180000, t0, 4),
	}
	out := service.Reconcile(history, nil)
	if out.WinnerID == nil || *out.WinnerID != "first" {
		t.Errorf("winner = %v, want first (lower sequence)", out.WinnerID)
	}
}

// The live entry is the last committed atomic write; when it is strictly
// ahead of the history, the history missed a write and the live value wins.
func TestReconcile_LiveAheadOfHistory(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("A", 150000, t0, 1),
	}
	live := &domain.LiveBidState{
		CurrentPrice: decimal.NewFromInt(210000),
		LastBidderID: "B",
		LastBidAt:    t0.Add(time.Second),
	}
	out := service.Reconcile(history, live)
	if out.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", out.Status)
	}
	if out.WinnerID == nil || *out.WinnerID != "B" {
		t.Errorf("winner = %v, want B from live state", out.WinnerID)
	}
	if out.FinalPrice == nil || !out.FinalPrice.Equal(decimal.NewFromInt(210000)) {
		t.Errorf("final price = %v, want 210000", out.FinalPrice)
	}
}

// Live state equal to the history is the quiescent invariant — the history
// entry stays authoritative.
func TestReconcile_LiveAgreesWithHistory(t *testing.T) {
	t0 := time.Now()
	history := []*domain.BidRecord{
		bid("A", 150000, t0, 1),
		bid("B", 200000, t0.Add(time.Second), 2),
	}
	live := &domain.LiveBidState{
		CurrentPrice: decimal.NewFromInt(200000),
		LastBidderID: "B",
		LastBidAt:    t0.Add(time.Second),
	}
	out := service.Reconcile(history, live)
	if out.WinnerID == nil || *out.WinnerID != "B" {
		t.Errorf("winner = %v, want B", out.WinnerID)
	}
	if out.FinalPrice == nil || !out.FinalPrice.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("final price = %v, want 200000", out.FinalPrice)
	}
}

// Empty history but a real bid in the live entry: history lost everything,
// live still decides a winner.
func TestReconcile_EmptyHistoryLiveBid(t *testing.T) {
	live := &domain.LiveBidState{
		CurrentPrice: decimal.NewFromInt(175000),
		LastBidderID: "C",
		LastBidAt:    time.Now(),
	}
	out := service.Reconcile(nil, live)
	if out.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want FINISHED", out.Status)
	}
	if out.WinnerID == nil || *out.WinnerID != "C" {
		t.Errorf("winner = %v, want C", out.WinnerID)
	}
}

// Both-or-neither: every outcome either has price+winner or has neither.
func TestReconcile_NeverHalfResolved(t *testing.T) {
	t0 := time.Now()
	cases := [][]*domain.BidRecord{
		nil,
		{bid("A", 100, t0, 1)},
		{bid("A", 100, t0, 1), bid("B", 200, t0.Add(time.Second), 2)},
	}
	for i, history := range cases {
		out := service.Reconcile(history, nil)
		if (out.FinalPrice == nil) != (out.WinnerID == nil) {
			t.Errorf("case %d: half-resolved outcome %+v", i, out)
		}
		switch out.Status {
		case domain.StatusFinished:
			if out.WinnerID == nil {
				t.Errorf("case %d: FINISHED without winner", i)
			}
		case domain.StatusNoBid:
			if out.WinnerID != nil {
				t.Errorf("case %d: NO_BID with winner", i)
			}
		default:
			t.Errorf("case %d: unexpected status %s", i, out.Status)
		}
	}
}
