package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ljhyeon/Fish-in-Water/internal/clock"
	"github.com/ljhyeon/Fish-in-Water/internal/config"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/livebid"
)

func testConfig() *config.Config {
	return &config.Config{
		Auction: config.AuctionConfig{
			Timezone:           "Asia/Seoul",
			SweepInterval:      time.Minute,
			SweepLeaseTTL:      2 * time.Minute,
			BidMaxRetries:      3,
			SuggestedIncrement: 1000,
		},
	}
}

func newBidHarness(t *testing.T) (*BidService, *livebid.Store, *fakeBidLog, *fakeAuctionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := livebid.New(rdb)
	history := newFakeBidLog()
	auctions := newFakeAuctionStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewBidService(store, history, auctions, clock.NewManual(t0), testConfig(), logger)
	return svc, store, history, auctions
}

// ──────────────────────────────────────────────────────────────────────────────
// Rejections
// ──────────────────────────────────────────────────────────────────────────────

func TestPlaceBid_NotActive(t *testing.T) {
	svc, _, _, _ := newBidHarness(t)
	_, err := svc.PlaceBid(context.Background(), uuid.New(), "buyer-1", decimal.NewFromInt(100000))
	if !errors.Is(err, domain.ErrAuctionNotActive) {
		t.Errorf("got %v, want ErrAuctionNotActive", err)
	}
	if !domain.IsBidRejection(err) {
		t.Error("not-active must classify as a bid rejection")
	}
}

func TestPlaceBid_InvalidAmount(t *testing.T) {
	svc, _, _, _ := newBidHarness(t)
	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-500)} {
		_, err := svc.PlaceBid(context.Background(), uuid.New(), "buyer-1", amount)
		if !errors.Is(err, domain.ErrInvalidBidAmount) {
			t.Errorf("amount %s: got %v, want ErrInvalidBidAmount", amount, err)
		}
	}
}

func TestPlaceBid_TooLow(t *testing.T) {
	svc, store, history, _ := newBidHarness(t)
	ctx := context.Background()
	id := uuid.New()
	if err := store.Create(ctx, id, decimal.NewFromInt(100000), t0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, amount := range []int64{99000, 100000} {
		_, err := svc.PlaceBid(ctx, id, "buyer-1", decimal.NewFromInt(amount))
		var tooLow *domain.BidTooLowError
		if !errors.As(err, &tooLow) {
			t.Fatalf("amount %d: got %v, want BidTooLowError", amount, err)
		}
		if !tooLow.CurrentPrice.Equal(decimal.NewFromInt(100000)) {
			t.Errorf("current price = %s, want 100000", tooLow.CurrentPrice)
		}
		// The rejection names the exact minimum acceptable amount.
		if !strings.Contains(tooLow.Error(), "100001") {
			t.Errorf("rejection %q does not state the minimum 100001", tooLow.Error())
		}
	}

	recs, _ := history.ListAll(ctx, id)
	if len(recs) != 0 {
		t.Errorf("rejected bids must not reach the history log, got %d", len(recs))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Acceptance
// ──────────────────────────────────────────────────────────────────────────────

func TestPlaceBid_Accepted(t *testing.T) {
	svc, store, history, auctions := newBidHarness(t)
	ctx := context.Background()
	id := uuid.New()
	auctions.put(&domain.Auction{ID: id, Status: domain.StatusActive})
	if err := store.Create(ctx, id, decimal.NewFromInt(100000), t0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := svc.PlaceBid(ctx, id, "buyer-1", decimal.NewFromInt(150000))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("seq = %d, want 1", rec.Seq)
	}
	if !rec.PlacedAt.Equal(t0) {
		t.Errorf("placed_at = %v, want clock time %v", rec.PlacedAt, t0)
	}

	state, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !state.CurrentPrice.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("live price = %s, want 150000", state.CurrentPrice)
	}
	if state.LastBidderID != "buyer-1" {
		t.Errorf("leader = %q, want buyer-1", state.LastBidderID)
	}

	recs, _ := history.ListAll(ctx, id)
	if len(recs) != 1 || recs[0].BidderID != "buyer-1" {
		t.Fatalf("history = %+v, want one entry for buyer-1", recs)
	}

	a, _ := auctions.GetByID(ctx, id)
	if !a.CurrentPrice.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("mirrored current_price = %s, want 150000", a.CurrentPrice)
	}
}

func TestPlaceBid_SequencesAreUnique(t *testing.T) {
	svc, store, history, auctions := newBidHarness(t)
	ctx := context.Background()
	id := uuid.New()
	auctions.put(&domain.Auction{ID: id, Status: domain.StatusActive})
	if err := store.Create(ctx, id, decimal.NewFromInt(1000), t0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const bidders = 20
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(1000 + (i+1)*10))
			// Rejections are expected: only strictly increasing bids land.
			_, _ = svc.PlaceBid(ctx, id, "buyer", amount)
		}(i)
	}
	wg.Wait()

	recs, _ := history.ListAll(ctx, id)
	if len(recs) == 0 {
		t.Fatal("no bids accepted")
	}
	seen := make(map[int64]bool)
	for _, r := range recs {
		if seen[r.Seq] {
			t.Fatalf("duplicate seq %d in history", r.Seq)
		}
		seen[r.Seq] = true
	}

	// The winning amount must be the highest accepted bid.
	state, _ := store.Get(ctx, id)
	max := decimal.Zero
	for _, r := range recs {
		if r.Amount.GreaterThan(max) {
			max = r.Amount
		}
	}
	if !state.CurrentPrice.Equal(max) {
		t.Errorf("live price %s != highest accepted bid %s", state.CurrentPrice, max)
	}
}

func TestPlaceBid_AcceptedDespiteHistoryFailure(t *testing.T) {
	// The conditional write is the acceptance decision; a history append
	// failure afterwards must not surface as a rejection.
	svc, store, _, auctions := newBidHarness(t)
	ctx := context.Background()
	id := uuid.New()
	auctions.put(&domain.Auction{ID: id, Status: domain.StatusActive})
	if err := store.Create(ctx, id, decimal.NewFromInt(100000), t0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.history = failingBidHistory{}
	rec, err := svc.PlaceBid(ctx, id, "buyer-1", decimal.NewFromInt(150000))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if rec == nil || rec.Seq != 1 {
		t.Fatalf("record = %+v, want accepted with seq 1", rec)
	}

	state, _ := store.Get(ctx, id)
	if !state.CurrentPrice.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("live price = %s, want 150000", state.CurrentPrice)
	}
}

type failingBidHistory struct{}

func (failingBidHistory) Append(context.Context, *domain.BidRecord) error {
	return errors.New("log write failed")
}

func (failingBidHistory) ListAll(context.Context, uuid.UUID) ([]*domain.BidRecord, error) {
	return nil, errors.New("log read failed")
}

// ──────────────────────────────────────────────────────────────────────────────
// Conflict retry
// ──────────────────────────────────────────────────────────────────────────────

// conflictingStore rejects the first n attempts with ErrBidConflict, then
// accepts.  Models a store whose conditional write can lose a race.
type conflictingStore struct {
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (c *conflictingStore) PlaceBid(_ context.Context, _ uuid.UUID, _ string, amount decimal.Decimal, _ time.Time) (*livebid.BidOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.conflicts {
		return nil, domain.ErrBidConflict
	}
	return &livebid.BidOutcome{Accepted: true, Seq: int64(c.attempts), CurrentPrice: amount}, nil
}

func (c *conflictingStore) Get(context.Context, uuid.UUID) (*domain.LiveBidState, error) {
	return nil, domain.ErrAuctionNotActive
}

func (c *conflictingStore) PublishUpdate(context.Context, uuid.UUID, domain.LiveBidState) error {
	return nil
}

func TestPlaceBid_RetriesOnConflict(t *testing.T) {
	store := &conflictingStore{conflicts: 2}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewBidService(store, newFakeBidLog(), newFakeAuctionStore(), clock.NewManual(t0), testConfig(), logger)

	rec, err := svc.PlaceBid(context.Background(), uuid.New(), "buyer-1", decimal.NewFromInt(150000))
	if err != nil {
		t.Fatalf("PlaceBid after retryable conflicts: %v", err)
	}
	if rec == nil {
		t.Fatal("no record returned")
	}
	if store.attempts != 3 {
		t.Errorf("attempts = %d, want 3", store.attempts)
	}
}

func TestPlaceBid_ConflictRetriesExhausted(t *testing.T) {
	store := &conflictingStore{conflicts: 10}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewBidService(store, newFakeBidLog(), newFakeAuctionStore(), clock.NewManual(t0), testConfig(), logger)

	_, err := svc.PlaceBid(context.Background(), uuid.New(), "buyer-1", decimal.NewFromInt(150000))
	if !errors.Is(err, domain.ErrBidConflict) {
		t.Fatalf("got %v, want ErrBidConflict after exhausted retries", err)
	}
	if store.attempts != 3 {
		t.Errorf("attempts = %d, want exactly BidMaxRetries (3)", store.attempts)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

func TestSuggestedNextBid(t *testing.T) {
	svc, store, _, _ := newBidHarness(t)
	ctx := context.Background()
	id := uuid.New()
	if err := store.Create(ctx, id, decimal.NewFromInt(100000), t0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	next, err := svc.SuggestedNextBid(ctx, id)
	if err != nil {
		t.Fatalf("SuggestedNextBid: %v", err)
	}
	if !next.Equal(decimal.NewFromInt(101000)) {
		t.Errorf("suggested = %s, want 101000", next)
	}

	// A bid one unit above current is still valid even though it ignores
	// the suggestion.
	if _, err := svc.PlaceBid(ctx, id, "buyer-1", decimal.NewFromInt(100001)); err != nil {
		t.Errorf("minimum-increment bid rejected: %v", err)
	}
}

func TestGetLive_NotActive(t *testing.T) {
	svc, _, _, _ := newBidHarness(t)
	_, err := svc.GetLive(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrAuctionNotActive) {
		t.Errorf("got %v, want ErrAuctionNotActive", err)
	}
}
