// Package livebid is the low-latency live bid store: one Redis hash per
// ACTIVE auction holding the current price and leader.  All bid acceptance
// runs through a Lua script so the read-check-write cycle is a single atomic
// operation on the store itself — safe across many service instances, where
// an in-process mutex would not be.
package livebid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix     = "live_auctions:"
	eventSuffix   = ":events"
	sweepLeaseKey = "auction:sweep:lease"
)

func stateKey(id uuid.UUID) string { return keyPrefix + id.String() }

func eventChannel(id uuid.UUID) string { return keyPrefix + id.String() + eventSuffix }

// placeBidScript is the atomic bid acceptance: existence check, strict
// greater-than comparison, write, and per-auction sequence issue happen in
// one server-side step.  Two simultaneous bids therefore serialize; exactly
// one observes the old price, the other the new one.
//
// Returns {-1} when no live entry exists, {0, current_price} on rejection,
// {1, seq, current_price} on acceptance.
var placeBidScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return {-1}
	end
	local current = tonumber(redis.call('HGET', KEYS[1], 'current_price'))
	local amount = tonumber(ARGV[1])
	if amount <= current then
		return {0, redis.call('HGET', KEYS[1], 'current_price')}
	end
	local seq = redis.call('HINCRBY', KEYS[1], 'seq', 1)
	redis.call('HSET', KEYS[1],
		'current_price', ARGV[1],
		'last_bidder_id', ARGV[2],
		'last_bid_at', ARGV[3])
	return {1, seq, ARGV[1]}
`)

// createScript seeds the live entry exactly once; re-running activation
// against an existing entry is a no-op and never resets a price.
var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1],
		'current_price', ARGV[1],
		'last_bidder_id', ARGV[2],
		'last_bid_at', ARGV[3],
		'seq', 0)
	return 1
`)

// releaseLeaseScript deletes the sweep lease only for its current holder.
var releaseLeaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// ──────────────────────────────────────────────────────────────────────────────
// Store
// ──────────────────────────────────────────────────────────────────────────────

// BidOutcome is the result of one atomic bid attempt.
type BidOutcome struct {
	Accepted bool
	// Seq is the per-auction history key issued for an accepted bid.
	Seq int64
	// CurrentPrice is the standing price after the decision: the bid amount
	// when accepted, the unchanged leader price when rejected.
	CurrentPrice decimal.Decimal
}

// EventKind discriminates the updates flowing through the pub/sub channel.
type EventKind string

const (
	// EventBid carries the new standing price after an accepted bid.
	EventBid EventKind = "bid"
	// EventStarted announces that an auction went live.
	EventStarted EventKind = "started"
	// EventFinished announces the settled outcome of a closed auction.
	EventFinished EventKind = "finished"
)

// Update pairs a live auction event with the auction it belongs to, for
// subscribers watching more than one auction.  State is set for bid and
// started events; Status/FinalPrice/WinnerID only for finished ones, and
// EndTime only for started ones.
type Update struct {
	AuctionID  uuid.UUID            `json:"auction_id"`
	Kind       EventKind            `json:"kind"`
	State      domain.LiveBidState  `json:"state"`
	EndTime    time.Time            `json:"end_time"`
	Status     domain.AuctionStatus `json:"status,omitempty"`
	FinalPrice *decimal.Decimal     `json:"final_price,omitempty"`
	WinnerID   *string              `json:"winner_id,omitempty"`
}

// Store wraps a Redis client with the live bid operations.
type Store struct {
	rdb *redis.Client
}

// New creates a Store over an existing Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("livebid.Connect: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Live entry lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// Create seeds the live entry at activation: start price, sentinel bidder.
// Idempotent — an existing entry is left untouched.
func (s *Store) Create(ctx context.Context, id uuid.UUID, startPrice decimal.Decimal, at time.Time) error {
	err := createScript.Run(ctx, s.rdb, []string{stateKey(id)},
		startPrice.String(), domain.SentinelBidder, at.UnixNano()).Err()
	if err != nil {
		return fmt.Errorf("livebid.Create %s: %w", id, err)
	}
	return nil
}

// Get returns the live state, or domain.ErrAuctionNotActive when no entry
// exists.  Absence is the normal signal that an auction is not live.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.LiveBidState, error) {
	fields, err := s.rdb.HGetAll(ctx, stateKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("livebid.Get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrAuctionNotActive
	}
	return parseState(fields)
}

// Delete removes the live entry at closure.  Bids arriving afterwards see an
// absent entry and are rejected as not-active.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, stateKey(id)).Err(); err != nil {
		return fmt.Errorf("livebid.Delete %s: %w", id, err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Atomic bid
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBid attempts the atomic conditional write.  The decision is made
// entirely server-side; callers translate a rejection into the user-facing
// BidTooLow with the standing price returned here.
func (s *Store) PlaceBid(ctx context.Context, id uuid.UUID, bidderID string, amount decimal.Decimal, at time.Time) (*BidOutcome, error) {
	res, err := placeBidScript.Run(ctx, s.rdb, []string{stateKey(id)},
		amount.String(), bidderID, at.UnixNano()).Result()
	if err != nil {
		return nil, fmt.Errorf("livebid.PlaceBid %s: %w", id, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("livebid.PlaceBid %s: unexpected script reply %v", id, res)
	}

	switch code := reply[0].(int64); code {
	case -1:
		return nil, domain.ErrAuctionNotActive
	case 0:
		current, err := replyDecimal(reply[1])
		if err != nil {
			return nil, fmt.Errorf("livebid.PlaceBid %s: parse current price: %w", id, err)
		}
		return &BidOutcome{Accepted: false, CurrentPrice: current}, nil
	case 1:
		seq, ok := reply[1].(int64)
		if !ok {
			return nil, fmt.Errorf("livebid.PlaceBid %s: unexpected seq %v", id, reply[1])
		}
		return &BidOutcome{Accepted: true, Seq: seq, CurrentPrice: amount}, nil
	default:
		return nil, fmt.Errorf("livebid.PlaceBid %s: unexpected result code %d", id, code)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────────────────────────────────

// PublishUpdate notifies subscribers of a bid on one auction.
// Best-effort: delivery is for live UI consumption, not correctness.
func (s *Store) PublishUpdate(ctx context.Context, id uuid.UUID, state domain.LiveBidState) error {
	return s.publish(ctx, "livebid.PublishUpdate", Update{
		AuctionID: id,
		Kind:      EventBid,
		State:     state,
	})
}

// PublishStarted announces activation: the auction now accepts bids at the
// given start price until endTime.
func (s *Store) PublishStarted(ctx context.Context, id uuid.UUID, startPrice decimal.Decimal, endTime time.Time) error {
	return s.publish(ctx, "livebid.PublishStarted", Update{
		AuctionID: id,
		Kind:      EventStarted,
		State: domain.LiveBidState{
			CurrentPrice: startPrice,
			LastBidderID: domain.SentinelBidder,
		},
		EndTime: endTime,
	})
}

// PublishFinished announces the settled outcome of a closed auction.
// FinalPrice and WinnerID are nil together for a no-bid close.
func (s *Store) PublishFinished(ctx context.Context, id uuid.UUID, status domain.AuctionStatus, finalPrice *decimal.Decimal, winnerID *string) error {
	return s.publish(ctx, "livebid.PublishFinished", Update{
		AuctionID:  id,
		Kind:       EventFinished,
		Status:     status,
		FinalPrice: finalPrice,
		WinnerID:   winnerID,
	})
}

func (s *Store) publish(ctx context.Context, op string, u Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%s %s: marshal: %w", op, u.AuctionID, err)
	}
	if err := s.rdb.Publish(ctx, eventChannel(u.AuctionID), payload).Err(); err != nil {
		return fmt.Errorf("%s %s: %w", op, u.AuctionID, err)
	}
	return nil
}

// SubscribeAll delivers every auction's live updates until ctx is cancelled.
// The returned channel closes when the subscription ends.
func (s *Store) SubscribeAll(ctx context.Context) (<-chan Update, error) {
	sub := s.rdb.PSubscribe(ctx, keyPrefix+"*"+eventSuffix)
	// Force the subscription to be established before we return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("livebid.SubscribeAll: %w", err)
	}

	out := make(chan Update, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					continue // skip malformed payloads
				}
				select {
				case out <- u:
				default: // slow consumer: drop rather than block the pump
				}
			}
		}
	}()
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep lease
// ──────────────────────────────────────────────────────────────────────────────

// AcquireSweepLease takes the cross-instance sweep lock.  Returns the holder
// token and true on success; false when another instance holds the lease.
// The TTL bounds how long a crashed holder can block sweeping.
func (s *Store) AcquireSweepLease(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, sweepLeaseKey, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("livebid.AcquireSweepLease: %w", err)
	}
	return token, ok, nil
}

// ReleaseSweepLease frees the lease if token still holds it.
func (s *Store) ReleaseSweepLease(ctx context.Context, token string) error {
	if err := releaseLeaseScript.Run(ctx, s.rdb, []string{sweepLeaseKey}, token).Err(); err != nil {
		return fmt.Errorf("livebid.ReleaseSweepLease: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func parseState(fields map[string]string) (*domain.LiveBidState, error) {
	price, err := decimal.NewFromString(fields["current_price"])
	if err != nil {
		return nil, fmt.Errorf("livebid: parse current_price %q: %w", fields["current_price"], err)
	}
	nanos, err := strconv.ParseInt(fields["last_bid_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("livebid: parse last_bid_at %q: %w", fields["last_bid_at"], err)
	}
	return &domain.LiveBidState{
		CurrentPrice: price,
		LastBidderID: fields["last_bidder_id"],
		LastBidAt:    time.Unix(0, nanos),
	}, nil
}

func replyDecimal(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case int64:
		return decimal.NewFromInt(x), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected reply type %T", v)
	}
}
