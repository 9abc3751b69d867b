// Package venuebook normalizes external order-book snapshots into a single
// VenueBook shape. Both adapters are fail-closed: malformed or ambiguous
// payloads are rejected rather than coerced.
package venuebook

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Level is one price level.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// VenueBook is a normalized snapshot: bids sorted descending, asks sorted
// ascending.
type VenueBook struct {
	Venue  string
	Symbol string
	Bids   []Level
	Asks   []Level
}

// BestBid returns the top bid price, if any.
func (b *VenueBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the top ask price, if any.
func (b *VenueBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// BidDepth sums quantity over the top n bid levels.
func (b *VenueBook) BidDepth(n int) decimal.Decimal {
	return depth(b.Bids, n)
}

// AskDepth sums quantity over the top n ask levels.
func (b *VenueBook) AskDepth(n int) decimal.Decimal {
	return depth(b.Asks, n)
}

func depth(levels []Level, n int) decimal.Decimal {
	total := decimal.Zero
	for i, lvl := range levels {
		if i >= n {
			break
		}
		total = total.Add(lvl.Qty)
	}
	return total
}

// polymarketPayload matches the /book endpoint response shape. Levels arrive
// as raw JSON so tuple arity can be validated.
type polymarketPayload struct {
	Market *string           `json:"market"`
	Bids   []json.RawMessage `json:"bids"`
	Asks   []json.RawMessage `json:"asks"`
}

// ParsePolymarketBook normalizes a Polymarket-style snapshot:
//
//	{"market": "...", "bids": [[price, qty], ...], "asks": [[price, qty], ...]}
//
// Missing fields, non-array levels, wrong tuple arity, and non-finite or
// negative values are all rejected.
func ParsePolymarketBook(data []byte) (*VenueBook, error) {
	var payload polymarketPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("polymarket book: %w", err)
	}
	if payload.Market == nil || *payload.Market == "" {
		return nil, fmt.Errorf("polymarket book: missing or invalid 'market' field")
	}
	if payload.Bids == nil {
		return nil, fmt.Errorf("polymarket book: 'bids' must be array")
	}
	if payload.Asks == nil {
		return nil, fmt.Errorf("polymarket book: 'asks' must be array")
	}

	bids, err := parseLevels(payload.Bids, "bids")
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(payload.Asks, "asks")
	if err != nil {
		return nil, err
	}

	sortBidsDesc(bids)
	sortAsksAsc(asks)

	return &VenueBook{
		Venue:  "polymarket",
		Symbol: *payload.Market,
		Bids:   bids,
		Asks:   asks,
	}, nil
}

type kalshiPayload struct {
	Ticker *string           `json:"ticker"`
	YesBid []json.RawMessage `json:"yes_bid"`
	NoBid  []json.RawMessage `json:"no_bid"`
}

// ParseKalshiBook normalizes a Kalshi-style snapshot:
//
//	{"ticker": "...", "yes_bid": [[price, qty], ...], "no_bid": [[price, qty], ...]}
//
// Kalshi only publishes bids. YES bids become the book bids; NO bids become
// asks at 100 − no_bid_price. Prices outside [0, 100] and crossed books are
// rejected.
func ParseKalshiBook(data []byte) (*VenueBook, error) {
	var payload kalshiPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("kalshi book: %w", err)
	}
	if payload.Ticker == nil || *payload.Ticker == "" {
		return nil, fmt.Errorf("kalshi book: missing or invalid 'ticker' field")
	}
	if payload.YesBid == nil {
		return nil, fmt.Errorf("kalshi book: 'yes_bid' must be array")
	}
	if payload.NoBid == nil {
		return nil, fmt.Errorf("kalshi book: 'no_bid' must be array")
	}

	yesBids, err := parseLevels(payload.YesBid, "yes_bid")
	if err != nil {
		return nil, err
	}
	noBids, err := parseLevels(payload.NoBid, "no_bid")
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	for _, lvl := range append(append([]Level{}, yesBids...), noBids...) {
		if lvl.Price.IsNegative() || lvl.Price.GreaterThan(hundred) {
			return nil, fmt.Errorf("kalshi book: price %s out of bounds [0, 100]", lvl.Price)
		}
	}

	bids := make([]Level, len(yesBids))
	copy(bids, yesBids)
	sortBidsDesc(bids)

	asks := make([]Level, 0, len(noBids))
	for _, lvl := range noBids {
		asks = append(asks, Level{Price: hundred.Sub(lvl.Price), Qty: lvl.Qty})
	}
	sortAsksAsc(asks)

	if len(bids) > 0 && len(asks) > 0 {
		if bids[0].Price.GreaterThanOrEqual(asks[0].Price) {
			return nil, fmt.Errorf("kalshi book: crossed book (bid %s >= ask %s)", bids[0].Price, asks[0].Price)
		}
	}

	return &VenueBook{
		Venue:  "kalshi",
		Symbol: *payload.Ticker,
		Bids:   bids,
		Asks:   asks,
	}, nil
}

// parseLevels decodes [[price, qty], ...] with fail-closed validation.
func parseLevels(raw []json.RawMessage, field string) ([]Level, error) {
	levels := make([]Level, 0, len(raw))
	for idx, item := range raw {
		var tuple []float64
		if err := json.Unmarshal(item, &tuple); err != nil {
			return nil, fmt.Errorf("%s: level %d must be a numeric array: %w", field, idx, err)
		}
		if len(tuple) != 2 {
			return nil, fmt.Errorf("%s: level %d must have exactly 2 elements [price, qty]", field, idx)
		}
		price, qty := tuple[0], tuple[1]
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("%s: level %d price not finite", field, idx)
		}
		if math.IsNaN(qty) || math.IsInf(qty, 0) {
			return nil, fmt.Errorf("%s: level %d qty not finite", field, idx)
		}
		if price < 0 {
			return nil, fmt.Errorf("%s: level %d price negative: %v", field, idx, price)
		}
		if qty < 0 {
			return nil, fmt.Errorf("%s: level %d qty negative: %v", field, idx, qty)
		}
		levels = append(levels, Level{
			Price: decimal.NewFromFloat(price),
			Qty:   decimal.NewFromFloat(qty),
		})
	}
	return levels, nil
}

func sortBidsDesc(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
}

func sortAsksAsc(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price.LessThan(levels[j].Price)
	})
}
