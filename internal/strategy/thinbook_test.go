package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/shadowbot/internal/types"
	"github.com/web3guy0/shadowbot/internal/venuebook"
)

func level(price, qty float64) venuebook.Level {
	return venuebook.Level{
		Price: decimal.NewFromFloat(price),
		Qty:   decimal.NewFromFloat(qty),
	}
}

func TestClassifyThinBook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		bids, asks []venuebook.Level
		thin       bool
		reason     types.ReasonCode
	}{
		{
			name: "empty book",
			thin: true, reason: types.ReasonThinBookNoBBO,
		},
		{
			name: "missing asks",
			bids: []venuebook.Level{level(30, 100)},
			thin: true, reason: types.ReasonThinBookNoBBO,
		},
		{
			name: "wide spread",
			bids: []venuebook.Level{level(30, 100)},
			asks: []venuebook.Level{level(75, 100)},
			thin: true, reason: types.ReasonThinBookSpreadWide,
		},
		{
			name: "depth below threshold",
			bids: []venuebook.Level{level(48, 50), level(47, 30)},
			asks: []venuebook.Level{level(52, 45), level(53, 25)},
			thin: true, reason: types.ReasonThinBookDepthBelowLimit,
		},
		{
			name: "healthy book",
			bids: []venuebook.Level{level(48, 200), level(47, 100)},
			asks: []venuebook.Level{level(52, 150), level(53, 100)},
			thin: false,
		},
		{
			name: "depth exactly at threshold is not thin",
			bids: []venuebook.Level{level(48, 250)},
			asks: []venuebook.Level{level(52, 250)},
			thin: false,
		},
		{
			name: "spread exactly 5 is not wide",
			bids: []venuebook.Level{level(48, 300)},
			asks: []venuebook.Level{level(53, 300)},
			thin: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := &venuebook.VenueBook{Venue: "polymarket", Symbol: "T", Bids: tt.bids, Asks: tt.asks}
			thin, reason, err := ClassifyThinBook(book)
			require.NoError(t, err)
			require.Equal(t, tt.thin, thin)
			if tt.thin {
				require.Equal(t, tt.reason, reason)
			} else {
				require.Empty(t, reason)
			}
		})
	}
}

func TestClassifyThinBookCrossedIsError(t *testing.T) {
	t.Parallel()

	book := &venuebook.VenueBook{
		Venue:  "polymarket",
		Symbol: "T",
		Bids:   []venuebook.Level{level(55, 100)},
		Asks:   []venuebook.Level{level(52, 100)},
	}
	_, _, err := ClassifyThinBook(book)
	require.Error(t, err)
	require.Contains(t, err.Error(), "crossed")
}

func TestClassifyThinBookDepthUsesTopThree(t *testing.T) {
	t.Parallel()

	// Plenty of depth, but only beyond the third level on each side.
	book := &venuebook.VenueBook{
		Venue:  "polymarket",
		Symbol: "T",
		Bids: []venuebook.Level{
			level(48, 10), level(47, 10), level(46, 10), level(45, 10_000),
		},
		Asks: []venuebook.Level{
			level(52, 10), level(53, 10), level(54, 10), level(55, 10_000),
		},
	}
	thin, reason, err := ClassifyThinBook(book)
	require.NoError(t, err)
	require.True(t, thin)
	require.Equal(t, types.ReasonThinBookDepthBelowLimit, reason)
}
