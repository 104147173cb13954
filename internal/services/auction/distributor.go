package auction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Fixed pool prize split by rank: 60/30/10. With fewer than three distinct
// bidders the remainder stays undistributed.
var poolPercentages = []int64{60, 30, 10}

type poolContender struct {
	UserID     int64
	BidCount   int
	FirstBidAt time.Time
}

// rankContenders orders the auction's bidders by bid count descending,
// breaking ties by earliest first bid, then by user id so the ranking is
// fully deterministic.
func rankContenders(bids []bidRow) []poolContender {
	byUser := make(map[int64]*poolContender)
	for _, b := range bids {
		c, ok := byUser[b.UserID]
		if !ok {
			c = &poolContender{UserID: b.UserID, FirstBidAt: b.CreatedAt}
			byUser[b.UserID] = c
		}
		c.BidCount++
		if b.CreatedAt.Before(c.FirstBidAt) {
			c.FirstBidAt = b.CreatedAt
		}
	}

	ranked := make([]poolContender, 0, len(byUser))
	for _, c := range byUser {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].BidCount != ranked[j].BidCount {
			return ranked[i].BidCount > ranked[j].BidCount
		}
		if !ranked[i].FirstBidAt.Equal(ranked[j].FirstBidAt) {
			return ranked[i].FirstBidAt.Before(ranked[j].FirstBidAt)
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	return ranked
}

// poolShare computes a rank's cut against the full pool prize.
func poolShare(poolPrize decimal.Decimal, percentage int64) decimal.Decimal {
	return poolPrize.Mul(decimal.NewFromInt(percentage)).Div(decimal.NewFromInt(100))
}

// distributeTx credits the top-3 most frequent bidders 60/30/10 of the pool
// prize and records one PoolPrizeWinner row per rank, then flips the
// pool_distributed flag. All of it is one atomic unit inside the caller's
// transaction; the caller holds the auction row lock and has verified the
// flag is still unset.
func (svc *auctionService) distributeTx(ctx context.Context, q dbtx, auctionID int64, poolPrize decimal.Decimal, bids []bidRow) ([]PoolWinnerDTO, error) {
	ranked := rankContenders(bids)
	if len(ranked) > len(poolPercentages) {
		ranked = ranked[:len(poolPercentages)]
	}
	if len(ranked) == 0 {
		return nil, ErrNoPoolPrize
	}

	winners := make([]PoolWinnerDTO, 0, len(ranked))
	for i, c := range ranked {
		pct := poolPercentages[i]
		share := poolShare(poolPrize, pct)

		if _, err := svc.ldg.CreditTx(ctx, q, c.UserID, share); err != nil {
			return nil, err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO pool_prize_winners (auction_id, user_id, rank, percentage, amount)
			 VALUES ($1, $2, $3, $4, $5)`,
			auctionID, c.UserID, i+1, pct, share,
		); err != nil {
			return nil, fmt.Errorf("insert pool winner: %w", err)
		}

		winners = append(winners, PoolWinnerDTO{
			UserID:     c.UserID,
			Rank:       i + 1,
			Percentage: pct,
			Amount:     share,
		})
	}

	// Compare-and-set: under the auction row lock a concurrent distribution
	// cannot slip in between the check and this flip, so zero rows here means
	// the invariant broke.
	res, err := q.ExecContext(ctx,
		`UPDATE auctions SET pool_distributed = TRUE
		  WHERE id = $1 AND pool_distributed = FALSE`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("set pool_distributed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: pool_distributed flipped concurrently for auction %d", ErrInconsistent, auctionID)
	}
	return winners, nil
}

// loadPoolWinnersTx returns the persisted distribution records by rank.
func loadPoolWinnersTx(ctx context.Context, q dbtx, auctionID int64) ([]PoolWinnerDTO, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id, rank, percentage, amount
		   FROM pool_prize_winners WHERE auction_id = $1 ORDER BY rank`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load pool winners %d: %w", auctionID, err)
	}
	defer rows.Close()

	var winners []PoolWinnerDTO
	for rows.Next() {
		var (
			w   PoolWinnerDTO
			pct decimal.Decimal
		)
		if err := rows.Scan(&w.UserID, &w.Rank, &pct, &w.Amount); err != nil {
			return nil, err
		}
		w.Percentage = pct.IntPart()
		winners = append(winners, w)
	}
	return winners, rows.Err()
}
