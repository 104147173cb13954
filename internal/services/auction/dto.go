package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

type AuctionDTO struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	StartingPrice   decimal.Decimal  `json:"starting_price"`
	Status          string           `json:"status"     example:"active"`
	CreatedAt       time.Time        `json:"created_at" example:"2025-07-27T16:05:05Z"`
	ExpiresAt       time.Time        `json:"expires_at" example:"2025-07-27T16:05:05Z"`
	WinnerID        *int64           `json:"winner_id,omitempty"`
	CreatorID       int64            `json:"creator_id"`
	ItemValue       *decimal.Decimal `json:"item_value,omitempty"`
	PoolPrize       decimal.Decimal  `json:"pool_prize"`
	PoolDistributed bool             `json:"pool_distributed"`
}

type BidDTO struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsUnique  bool            `json:"is_unique"`
	CreatedAt time.Time       `json:"created_at"`
}

// LowestUniqueDTO identifies the bid currently winning the auction.
type LowestUniqueDTO struct {
	BidID  int64           `json:"bid_id"`
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// AuctionDetail is the viewer-scoped auction read: the auction itself, the
// viewer's own bids and the current lowest unique bid.
type AuctionDetail struct {
	Auction      AuctionDTO       `json:"auction"`
	Bids         []BidDTO         `json:"bids"`
	LowestUnique *LowestUniqueDTO `json:"lowest_unique_bid,omitempty"`
}

type PlaceBidResult struct {
	BidID           int64            `json:"bid_id"`
	NewBalance      decimal.Decimal  `json:"new_balance"`
	IsCurrentWinner bool             `json:"is_current_winner"`
	// PoolContribution is set only when the bid crossed the item-value
	// threshold and half of it went into the pool.
	PoolContribution *decimal.Decimal `json:"pool_contribution,omitempty"`
	CurrentPoolTotal *decimal.Decimal `json:"current_pool_total,omitempty"`
}

type PoolWinnerDTO struct {
	UserID     int64           `json:"user_id"`
	Rank       int             `json:"rank"`
	Percentage int64           `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

type PoolDistributionDTO struct {
	Distributed bool            `json:"distributed"`
	Winners     []PoolWinnerDTO `json:"winners,omitempty"`
}

type SettlementResult struct {
	AuctionID     int64               `json:"auction_id"`
	WinnerID      int64               `json:"winner_id"`
	WinningAmount decimal.Decimal     `json:"winning_bid_amount"`
	WinningBidAt  time.Time           `json:"winning_bid_created_at"`
	PoolPrize     decimal.Decimal     `json:"pool_prize"`
	Pool          PoolDistributionDTO `json:"pool_prize_info"`
}

// PoolContenderDTO is one entry of the live top-3 bid-count ranking, with the
// share it would receive if the pool were distributed right now.
type PoolContenderDTO struct {
	UserID              int64           `json:"user_id"`
	BidCount            int             `json:"bid_count"`
	Rank                int             `json:"rank"`
	PotentialPercentage int64           `json:"potential_percentage"`
	PotentialAmount     decimal.Decimal `json:"potential_amount"`
}

type PoolStandingDTO struct {
	AuctionID       int64              `json:"auction_id"`
	ItemValue       *decimal.Decimal   `json:"item_value,omitempty"`
	PoolPrize       decimal.Decimal    `json:"pool_prize"`
	PoolDistributed bool               `json:"pool_distributed"`
	TopBidders      []PoolContenderDTO `json:"top_bidders"`
	Winners         []PoolWinnerDTO    `json:"winners"`
}

type CreateAuctionInput struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	ItemValue     *decimal.Decimal
	ExpiresAt     time.Time
}
