package auction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestUniqueFlags_AllDistinct(t *testing.T) {
	bids := []bidRow{
		{ID: 1, Amount: d("10")},
		{ID: 2, Amount: d("20")},
		{ID: 3, Amount: d("30")},
	}
	flags := uniqueFlags(bids)
	for id, unique := range flags {
		assert.True(t, unique, "bid %d", id)
	}
}

func TestUniqueFlags_RepeatedAmountNeverUnique(t *testing.T) {
	bids := []bidRow{
		{ID: 1, Amount: d("10")},
		{ID: 2, Amount: d("10")},
		{ID: 3, Amount: d("10")},
		{ID: 4, Amount: d("30")},
	}
	flags := uniqueFlags(bids)
	assert.False(t, flags[1])
	assert.False(t, flags[2])
	assert.False(t, flags[3])
	assert.True(t, flags[4])
}

func TestUniqueFlags_NormalizesRepresentation(t *testing.T) {
	// "50" and "50.0" are the same amount and must collide.
	bids := []bidRow{
		{ID: 1, Amount: d("50")},
		{ID: 2, Amount: d("50.0")},
	}
	flags := uniqueFlags(bids)
	assert.False(t, flags[1])
	assert.False(t, flags[2])
}

func TestLowestUniqueBid(t *testing.T) {
	tests := []struct {
		name   string
		bids   []bidRow
		wantID int64 // 0 means no winner
	}{
		{
			name: "strict_minimum_among_unique",
			bids: []bidRow{
				{ID: 1, UserID: 10, Amount: d("60"), IsUnique: true},
				{ID: 2, UserID: 11, Amount: d("50"), IsUnique: true},
				{ID: 3, UserID: 12, Amount: d("40"), IsUnique: false},
			},
			wantID: 2,
		},
		{
			name: "all_collide_no_winner",
			bids: []bidRow{
				{ID: 1, Amount: d("10"), IsUnique: false},
				{ID: 2, Amount: d("10"), IsUnique: false},
			},
			wantID: 0,
		},
		{
			name:   "no_bids",
			bids:   nil,
			wantID: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lowest := lowestUniqueBid(tc.bids)
			if tc.wantID == 0 {
				assert.Nil(t, lowest)
				return
			}
			require.NotNil(t, lowest)
			assert.Equal(t, tc.wantID, lowest.ID)
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()

	assert.Equal(t, StatusActive, effectiveStatus(StatusActive, now.Add(time.Hour), now))
	assert.Equal(t, StatusExpired, effectiveStatus(StatusActive, now.Add(-time.Second), now))
	// at the exact boundary the auction is still active
	assert.Equal(t, StatusActive, effectiveStatus(StatusActive, now, now))
	// never reverses
	assert.Equal(t, StatusExpired, effectiveStatus(StatusExpired, now.Add(-time.Hour), now))
}
