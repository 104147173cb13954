package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type bidRow struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	IsUnique  bool
	CreatedAt time.Time
}

// amountKey normalizes a bid amount for multiset grouping, so "50" and
// "50.0" land in the same group.
func amountKey(d decimal.Decimal) string { return d.StringFixed(1) }

// uniqueFlags derives per-bid uniqueness from the amount multiset: a bid is
// unique iff its amount occurs exactly once across the auction.
func uniqueFlags(bids []bidRow) map[int64]bool {
	counts := make(map[string]int, len(bids))
	for _, b := range bids {
		counts[amountKey(b.Amount)]++
	}
	flags := make(map[int64]bool, len(bids))
	for _, b := range bids {
		flags[b.ID] = counts[amountKey(b.Amount)] == 1
	}
	return flags
}

// lowestUniqueBid returns the unique bid with the minimum amount, or nil when
// no bid is unique. Ties are impossible: a tied amount is by definition not
// unique.
func lowestUniqueBid(bids []bidRow) *bidRow {
	var lowest *bidRow
	for i := range bids {
		b := &bids[i]
		if !b.IsUnique {
			continue
		}
		if lowest == nil || b.Amount.LessThan(lowest.Amount) {
			lowest = b
		}
	}
	return lowest
}

// loadBidsTx reads the auction's bids inside the caller's transaction. With
// the auction row locked this is a consistent snapshot of the bid multiset.
func (svc *auctionService) loadBidsTx(ctx context.Context, q dbtx, auctionID int64) ([]bidRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, amount, is_unique, created_at
		   FROM bids WHERE auction_id = $1 ORDER BY created_at, id`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load bids %d: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []bidRow
	for rows.Next() {
		var b bidRow
		if err := rows.Scan(&b.ID, &b.UserID, &b.Amount, &b.IsUnique, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// recomputeUniquenessTx re-derives the uniqueness flag for every bid of the
// auction from the current amount multiset and writes back only the bids
// whose flag changed. Full recomputation, idempotent; runs after every bid
// insert and again at settlement.
func (svc *auctionService) recomputeUniquenessTx(ctx context.Context, q dbtx, auctionID int64) ([]bidRow, error) {
	bids, err := svc.loadBidsTx(ctx, q, auctionID)
	if err != nil {
		return nil, err
	}

	flags := uniqueFlags(bids)
	for i := range bids {
		b := &bids[i]
		if flags[b.ID] == b.IsUnique {
			continue
		}
		b.IsUnique = flags[b.ID]
		if _, err := q.ExecContext(ctx,
			`UPDATE bids SET is_unique = $2 WHERE id = $1`,
			b.ID, b.IsUnique,
		); err != nil {
			return nil, fmt.Errorf("update bid uniqueness %d: %w", b.ID, err)
		}
	}
	return bids, nil
}
