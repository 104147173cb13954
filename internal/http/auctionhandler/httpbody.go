package auctionhandler

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateAuctionBody struct {
	Title         string           `json:"title"          binding:"required"`
	Description   string           `json:"description"`
	StartingPrice decimal.Decimal  `json:"starting_price" binding:"required"`
	ItemValue     *decimal.Decimal `json:"item_value"`
	ExpiresAt     time.Time        `json:"expires_at"     binding:"required" example:"2025-07-27T16:05:05Z"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	AuctionID int64           `json:"auction_id" binding:"required" example:"1"`
	Amount    decimal.Decimal `json:"amount"     binding:"required" example:"5.5"`
} // @name PlaceBidRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=active expired"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery
