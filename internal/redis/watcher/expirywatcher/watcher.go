package expirywatcher

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Anomaliszt/HiddenDeal/internal/services/auction"
)

// Run listens to key-expiry events and settles auctions whose timer key
// lapsed. Run must be started once at service boot. Settlement is also
// reachable through the winners endpoint, so a missed event is not fatal.
func Run(ctx context.Context, rdb *redis.Client, svc auction.IAuctionService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, auction.ExpiryTimerKeyPrefix) {
				continue
			}
			id, err := strconv.ParseInt(strings.TrimPrefix(m.Payload, auction.ExpiryTimerKeyPrefix), 10, 64)
			if err != nil {
				continue
			}
			if _, err := svc.ResolveWinner(ctx, id); err != nil && !benign(err) {
				zap.L().Error("expiry_settle", zap.Int64("auction_id", id), zap.Error(err))
			}
		}
	}
}

// benign outcomes of an expiry-triggered settlement: nothing to settle, or
// someone already settled via the API.
func benign(err error) bool {
	return errors.Is(err, auction.ErrNoUniqueBids) ||
		errors.Is(err, auction.ErrAuctionNotFound) ||
		errors.Is(err, auction.ErrAuctionStillActive)
}
