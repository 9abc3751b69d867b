package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/shadowbot/internal/types"
	"github.com/web3guy0/shadowbot/internal/venuebook"
)

// Thin-book thresholds are constants rather than configuration so the
// classification is stable across deployments.
var (
	thinBookSpreadThreshold = decimal.NewFromFloat(5.0)
	thinBookDepthThreshold  = decimal.NewFromInt(500)
)

const thinBookDepthLevels = 3

// ClassifyThinBook reports whether a normalized venue book is too thin to
// trade against, with the matching reason code. Rules, in order:
//
//  1. Missing best bid or best ask → THIN_BOOK_NO_BBO.
//  2. Crossed book (bid ≥ ask) → error; the caller decides.
//  3. Spread wider than 5.0 → THIN_BOOK_SPREAD_WIDE.
//  4. Top-3 bid depth plus top-3 ask depth under 500 →
//     THIN_BOOK_DEPTH_BELOW_THRESHOLD.
func ClassifyThinBook(book *venuebook.VenueBook) (bool, types.ReasonCode, error) {
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()

	if !hasBid || !hasAsk {
		return true, types.ReasonThinBookNoBBO, nil
	}

	if bid.GreaterThanOrEqual(ask) {
		return false, "", fmt.Errorf("invalid book: crossed (bid %s >= ask %s)", bid, ask)
	}

	if ask.Sub(bid).GreaterThan(thinBookSpreadThreshold) {
		return true, types.ReasonThinBookSpreadWide, nil
	}

	depth := book.BidDepth(thinBookDepthLevels).Add(book.AskDepth(thinBookDepthLevels))
	if depth.LessThan(thinBookDepthThreshold) {
		return true, types.ReasonThinBookDepthBelowLimit, nil
	}

	return false, "", nil
}
