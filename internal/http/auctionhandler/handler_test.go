package auctionhandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomaliszt/HiddenDeal/internal/ledger"
	"github.com/Anomaliszt/HiddenDeal/internal/services/auction"
)

type stubService struct {
	auction.IAuctionService

	placeBidResult *auction.PlaceBidResult
	placeBidErr    error
	resolveErr     error
}

func (s *stubService) PlaceBid(_ context.Context, _, _ int64, _ decimal.Decimal) (*auction.PlaceBidResult, error) {
	return s.placeBidResult, s.placeBidErr
}

func (s *stubService) ResolveWinner(_ context.Context, _ int64) (*auction.SettlementResult, error) {
	return nil, s.resolveErr
}

func newRouter(svc auction.IAuctionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(svc).Register(r)
	return r
}

func TestPlaceBid_RequiresIdentity(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/bids",
		strings.NewReader(`{"auction_id":1,"amount":"10"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaceBid_Created(t *testing.T) {
	r := newRouter(&stubService{
		placeBidResult: &auction.PlaceBidResult{
			BidID:           7,
			NewBalance:      decimal.NewFromInt(940),
			IsCurrentWinner: true,
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/bids",
		strings.NewReader(`{"auction_id":1,"amount":"60"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"bid_id":7`)
	assert.Contains(t, w.Body.String(), `"is_current_winner":true`)
}

func TestPlaceBid_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"expired", auction.ErrAuctionExpired, http.StatusBadRequest},
		{"not_active", auction.ErrAuctionNotActive, http.StatusBadRequest},
		{"invalid_amount", auction.ErrInvalidAmount, http.StatusBadRequest},
		{"insufficient_funds", ledger.ErrInsufficientFunds, http.StatusBadRequest},
		{"not_found", auction.ErrAuctionNotFound, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&stubService{placeBidErr: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/bids",
				strings.NewReader(`{"auction_id":1,"amount":"60"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-ID", "2")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestWinner_NoUniqueBidsIsNotFound(t *testing.T) {
	r := newRouter(&stubService{resolveErr: auction.ErrNoUniqueBids})

	req := httptest.NewRequest(http.MethodGet, "/winners/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWinner_StillActiveIsBadRequest(t *testing.T) {
	r := newRouter(&stubService{resolveErr: auction.ErrAuctionStillActive})

	req := httptest.NewRequest(http.MethodGet, "/winners/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
