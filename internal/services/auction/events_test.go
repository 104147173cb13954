package auction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEvent_EnvelopeAndChannel(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	svc := &auctionService{rdc: rdc}

	body := bidEvent{BidID: 7, UserID: 2, Amount: d("60"), PoolTotal: d("0")}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	payload, err := json.Marshal(Envelope{Event: eventBidPlaced, Body: raw})
	require.NoError(t, err)

	mock.ExpectPublish("auc:42:events", payload).SetVal(1)

	svc.publishEvent(context.Background(), 42, eventBidPlaced, body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishEvent_NilClientIsNoOp(t *testing.T) {
	svc := &auctionService{}
	svc.publishEvent(context.Background(), 1, eventBidPlaced, bidEvent{})
}

func TestArmExpiryTimer_PastExpiryIsNoOp(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	svc := &auctionService{rdc: rdc}

	svc.armExpiryTimer(context.Background(), 1, time.Now().UTC().Add(-time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventChannelAndTimerKey(t *testing.T) {
	assert.Equal(t, "auc:42:events", EventChannel(42))
	assert.Equal(t, "auc_t:42", ExpiryTimerKey(42))
}
