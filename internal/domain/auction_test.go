package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/shopspring/decimal"
)

func kst() *time.Location { return time.FixedZone("KST", 9*60*60) }

// ── Status predicates ─────────────────────────────────────────────────────────

func TestAuctionStatus_IsValid(t *testing.T) {
	valid := []domain.AuctionStatus{
		domain.StatusPending, domain.StatusActive, domain.StatusFinished, domain.StatusNoBid,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if domain.AuctionStatus("SOLD").IsValid() {
		t.Error("unknown status should not be valid")
	}
}

func TestAuctionStatus_IsTerminal(t *testing.T) {
	if domain.StatusPending.IsTerminal() || domain.StatusActive.IsTerminal() {
		t.Error("PENDING and ACTIVE are not terminal")
	}
	if !domain.StatusFinished.IsTerminal() || !domain.StatusNoBid.IsTerminal() {
		t.Error("FINISHED and NO_BID are terminal")
	}
}

// ── Transition guards ─────────────────────────────────────────────────────────

func TestAuction_DueForActivation(t *testing.T) {
	now := time.Date(2025, 6, 1, 6, 0, 0, 0, kst())
	a := &domain.Auction{
		Status:    domain.StatusPending,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(time.Hour),
	}
	if !a.DueForActivation(now) {
		t.Error("pending auction past start time should be due for activation")
	}

	// Exactly at start time: start_time <= now holds.
	a.StartTime = now
	if !a.DueForActivation(now) {
		t.Error("start_time == now should activate")
	}

	a.StartTime = now.Add(time.Minute)
	if a.DueForActivation(now) {
		t.Error("future start time should not activate")
	}

	// The PENDING guard makes re-activation a no-op.
	a.StartTime = now.Add(-time.Minute)
	a.Status = domain.StatusActive
	if a.DueForActivation(now) {
		t.Error("active auction must not be due for activation again")
	}
}

func TestAuction_DueForClosure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, kst())
	a := &domain.Auction{
		Status:    domain.StatusActive,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(-time.Second),
	}
	if !a.DueForClosure(now) {
		t.Error("active auction past end time should be due for closure")
	}

	a.EndTime = now.Add(time.Minute)
	if a.DueForClosure(now) {
		t.Error("auction before end time should not close")
	}

	a.EndTime = now.Add(-time.Minute)
	for _, s := range []domain.AuctionStatus{domain.StatusPending, domain.StatusFinished, domain.StatusNoBid} {
		a.Status = s
		if a.DueForClosure(now) {
			t.Errorf("%s auction must not be due for closure", s)
		}
	}
}

// ── Winner / editability ──────────────────────────────────────────────────────

func TestAuction_HasWinner(t *testing.T) {
	a := &domain.Auction{}
	if a.HasWinner() {
		t.Error("nil winner should not count")
	}
	sentinel := domain.SentinelBidder
	a.WinnerID = &sentinel
	if a.HasWinner() {
		t.Error("sentinel winner should not count")
	}
	buyer := "buyer-42"
	a.WinnerID = &buyer
	if !a.HasWinner() {
		t.Error("named winner should count")
	}
}

func TestAuction_IsEditable(t *testing.T) {
	a := &domain.Auction{Status: domain.StatusPending}
	if !a.IsEditable() {
		t.Error("pending listing should be editable")
	}
	for _, s := range []domain.AuctionStatus{domain.StatusActive, domain.StatusFinished, domain.StatusNoBid} {
		a.Status = s
		if a.IsEditable() {
			t.Errorf("%s listing should not be editable", s)
		}
	}
}

// ── Live bid state ────────────────────────────────────────────────────────────

func TestLiveBidState_HasBid(t *testing.T) {
	s := &domain.LiveBidState{
		CurrentPrice: decimal.NewFromInt(100000),
		LastBidderID: domain.SentinelBidder,
	}
	if s.HasBid() {
		t.Error("sentinel bidder means no bid yet")
	}
	s.LastBidderID = "buyer-1"
	if !s.HasBid() {
		t.Error("named bidder means a bid was accepted")
	}
}

func TestNewBidTooLowError_Minimum(t *testing.T) {
	err := domain.NewBidTooLowError(decimal.NewFromInt(100000))
	want := decimal.NewFromInt(100001)
	if !err.Minimum.Equal(want) {
		t.Errorf("minimum = %s, want %s", err.Minimum, want)
	}
	// The message must state the exact minimum.
	if got := err.Error(); !strings.Contains(got, "100001") {
		t.Errorf("message %q should contain the minimum 100001", got)
	}
}
