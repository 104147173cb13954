package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Redis key layout: "auc:<id>:events" pub/sub channel per auction,
// "auc_t:<id>" TTL key whose expiry triggers settlement.
const (
	eventChannelSuffix   = ":events"
	eventChannelPrefix   = "auc:"
	ExpiryTimerKeyPrefix = "auc_t:"

	eventBidPlaced       = "auctions/bid"
	eventSettled         = "auctions/settled"
	eventPoolDistributed = "auctions/pool"
)

// Envelope wraps every published auction event.
type Envelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

type bidEvent struct {
	BidID     int64           `json:"bid_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	PoolTotal decimal.Decimal `json:"pool_total"`
}

type settledEvent struct {
	WinnerID      int64           `json:"winner_id"`
	WinningAmount decimal.Decimal `json:"winning_bid_amount"`
	PoolPrize     decimal.Decimal `json:"pool_prize"`
}

type poolEvent struct {
	Winners []PoolWinnerDTO `json:"winners"`
}

func EventChannel(auctionID int64) string {
	return fmt.Sprintf("%s%d%s", eventChannelPrefix, auctionID, eventChannelSuffix)
}

func ExpiryTimerKey(auctionID int64) string {
	return fmt.Sprintf("%s%d", ExpiryTimerKeyPrefix, auctionID)
}

// publishEvent fans the event out to live websocket subscribers. Best
// effort: the DB transaction has already committed, a lost event only costs
// a live update.
func (svc *auctionService) publishEvent(ctx context.Context, auctionID int64, event string, body any) {
	if svc.rdc == nil {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		zap.L().Warn("event_marshal", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Body: raw})
	if err != nil {
		zap.L().Warn("event_marshal", zap.Error(err))
		return
	}
	if err := svc.rdc.Publish(ctx, EventChannel(auctionID), payload).Err(); err != nil {
		zap.L().Warn("event_publish", zap.Int64("auction_id", auctionID), zap.Error(err))
	}
}

// armExpiryTimer sets the TTL key that the expiry watcher turns into a
// settlement call. Settlement stays reachable via the winners endpoint, so a
// failed arm only delays it.
func (svc *auctionService) armExpiryTimer(ctx context.Context, auctionID int64, expiresAt time.Time) {
	if svc.rdc == nil {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if err := svc.rdc.Set(ctx, ExpiryTimerKey(auctionID), 1, ttl).Err(); err != nil {
		zap.L().Warn("expiry_timer_arm", zap.Int64("auction_id", auctionID), zap.Error(err))
	}
}
