package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ljhyeon/Fish-in-Water/internal/domain"
)

// AuctionRepository is the durable auction record store backed by PostgreSQL.
type AuctionRepository struct {
	db *sqlx.DB
}

// NewAuctionRepository creates an AuctionRepository.
func NewAuctionRepository(db *sqlx.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// Create inserts a new auction row.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
		INSERT INTO auctions
			(id, name, description, origin, image_url, seller_id, status,
			 start_time, end_time, start_price, current_price,
			 is_payment_completed, is_settlement_completed, created_at, updated_at)
		VALUES
			(:id, :name, :description, :origin, :image_url, :seller_id, :status,
			 :start_time, :end_time, :start_price, :current_price,
			 :is_payment_completed, :is_settlement_completed, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("auction_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches an auction by its primary key.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	var a domain.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction_repo.GetByID: %w", err)
	}
	return &a, nil
}

// QueryByStatus returns every auction in exactly one lifecycle state, in
// start-time order.  The lifecycle sweeps use this with PENDING and ACTIVE;
// time eligibility is the engine's concern, not the query's.
func (r *AuctionRepository) QueryByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = $1 ORDER BY start_time ASC`,
		status)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.QueryByStatus: %w", err)
	}
	return auctions, nil
}

// updatableColumns is the partial-update whitelist.  Anything else in a
// fields map is a programming error.
var updatableColumns = map[string]struct{}{
	"name":                    {},
	"description":             {},
	"origin":                  {},
	"image_url":               {},
	"status":                  {},
	"current_price":           {},
	"final_price":             {},
	"winner_id":               {},
	"is_payment_completed":    {},
	"is_settlement_completed": {},
	"activated_at":            {},
	"finished_at":             {},
}

// UpdateFields applies a partial update: only the named columns change.
// Returns ErrAuctionNotFound when the row does not exist.
func (r *AuctionRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for col, val := range fields {
		if _, ok := updatableColumns[col]; !ok {
			return fmt.Errorf("auction_repo.UpdateFields: column %q is not updatable", col)
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE auctions SET %s WHERE id = $%d", strings.Join(set, ", "), i)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("auction_repo.UpdateFields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

// UpdateFieldsIfStatus applies a partial update only while the row still has
// the expected status.  Returns false with a nil error when the guard did not
// match, so lifecycle transitions are genuinely once-only even when two
// actors race each other to the same row.
func (r *AuctionRepository) UpdateFieldsIfStatus(ctx context.Context, id uuid.UUID, fields map[string]any, expected domain.AuctionStatus) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}

	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	i := 1
	for col, val := range fields {
		if _, ok := updatableColumns[col]; !ok {
			return false, fmt.Errorf("auction_repo.UpdateFieldsIfStatus: column %q is not updatable", col)
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id, expected)

	query := fmt.Sprintf("UPDATE auctions SET %s WHERE id = $%d AND status = $%d",
		strings.Join(set, ", "), i, i+1)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("auction_repo.UpdateFieldsIfStatus: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// List returns a paginated slice of auctions filtered by optional status.
// status="" returns all statuses.  Returns (auctions, totalCount, error).
func (r *AuctionRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Auction, int, error) {
	var auctions []*domain.Auction
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM auctions WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &auctions,
			`SELECT * FROM auctions WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM auctions`); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &auctions,
			`SELECT * FROM auctions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List select: %w", err)
		}
	}
	return auctions, total, nil
}

// ListBySeller returns a seller's own listings, newest first.
func (r *AuctionRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListBySeller: %w", err)
	}
	return auctions, nil
}

// ListByWinner returns auctions the given buyer has won, newest first.
func (r *AuctionRepository) ListByWinner(ctx context.Context, winnerID string, limit, offset int) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE winner_id = $1 ORDER BY finished_at DESC LIMIT $2 OFFSET $3`,
		winnerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListByWinner: %w", err)
	}
	return auctions, nil
}
