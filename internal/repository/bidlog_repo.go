package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
)

// BidLogRepository is the append-only bid history log.  Rows are write-once:
// nothing here updates or deletes, and the log survives auction closure as
// the audit trail reconciliation reads.
type BidLogRepository struct {
	db *sqlx.DB
}

// NewBidLogRepository creates a BidLogRepository.
func NewBidLogRepository(db *sqlx.DB) *BidLogRepository {
	return &BidLogRepository{db: db}
}

// Append writes one accepted bid.  The (auction_id, seq) key is issued by the
// live bid store's atomic accept, so a duplicate insert can only be a replay
// of the same accepted bid; ON CONFLICT DO NOTHING keeps the first write.
func (r *BidLogRepository) Append(ctx context.Context, rec *domain.BidRecord) error {
	query := `
		INSERT INTO auction_bids (auction_id, seq, bidder_id, amount, placed_at)
		VALUES (:auction_id, :seq, :bidder_id, :amount, :placed_at)
		ON CONFLICT (auction_id, seq) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("bidlog_repo.Append: %w", err)
	}
	return nil
}

// ListAll returns the full history for one auction in acceptance order.
func (r *BidLogRepository) ListAll(ctx context.Context, auctionID uuid.UUID) ([]*domain.BidRecord, error) {
	var recs []*domain.BidRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM auction_bids WHERE auction_id = $1 ORDER BY seq ASC`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("bidlog_repo.ListAll: %w", err)
	}
	return recs, nil
}
