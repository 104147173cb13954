package ws

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// SubscribeAuctionEvents fans out events coming from any instance to the
// in-process Hub.
func SubscribeAuctionEvents(ctx context.Context, rdb *redis.Client, hub *Hub) {
	pubsub := rdb.PSubscribe(ctx, "auc:*:events")
	defer pubsub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			// channel format: "auc:<auctionID>:events"
			parts := strings.Split(m.Channel, ":")
			if len(parts) != 3 {
				continue
			}
			auctionID, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				continue
			}
			hub.Broadcast(auctionID, []byte(m.Payload))
		}
	}
}
