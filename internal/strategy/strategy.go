// Package strategy consumes ticks and emits signals on dual moving-average
// crossovers. It also provides the thin-book classifier used by venue-book
// adapters.
package strategy

import (
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	smaShortWindow = 5
	smaLongWindow  = 20

	// Fixed emission parameters keep two strategy instances fed the same
	// tick sequence byte-for-byte identical in their output.
	signalConfidence = 0.75
	signalSize       = 0.1
)

// Crossover holds the sliding price window and crossover state for one
// symbol stream. It is not safe for concurrent use; the strategy task owns
// it exclusively.
type Crossover struct {
	prices   []float64
	prevDiff float64
	primed   bool // prevDiff has been recorded post-warmup
}

// NewCrossover returns an empty window.
func NewCrossover() *Crossover {
	return &Crossover{prices: make([]float64, 0, smaLongWindow)}
}

// Observation is the outcome of feeding one price into the window.
type Observation struct {
	ShortSMA float64
	LongSMA  float64
	PrevDiff float64
	CurrDiff float64
	Warmup   bool
	Emit     bool
	Side     types.Side
}

// Window returns a copy of the currently held prices, oldest first.
func (c *Crossover) Window() []float64 {
	out := make([]float64, len(c.prices))
	copy(out, c.prices)
	return out
}

// Update appends one price, evicting the oldest once the window is full,
// and evaluates the crossover rule.
//
// No evaluation happens until the window holds the full long-window count;
// the first post-warmup observation only records the baseline diff. After
// that, a BUY emits when the diff crosses from ≤0 to >0 and a SELL when it
// crosses from ≥0 to <0. prevDiff advances on every evaluation, emitted or
// not.
func (c *Crossover) Update(price float64) Observation {
	c.prices = append(c.prices, price)
	if len(c.prices) > smaLongWindow {
		c.prices = c.prices[1:]
	}

	shortLen := len(c.prices)
	if shortLen > smaShortWindow {
		shortLen = smaShortWindow
	}
	shortSMA := mean(c.prices[len(c.prices)-shortLen:])
	longSMA := mean(c.prices)
	currDiff := shortSMA - longSMA

	obs := Observation{
		ShortSMA: shortSMA,
		LongSMA:  longSMA,
		PrevDiff: c.prevDiff,
		CurrDiff: currDiff,
	}

	if len(c.prices) < smaLongWindow {
		obs.Warmup = true
		return obs
	}

	if !c.primed {
		c.primed = true
		c.prevDiff = currDiff
		return obs
	}

	if c.prevDiff <= 0 && currDiff > 0 {
		obs.Emit = true
		obs.Side = types.SideBuy
	} else if c.prevDiff >= 0 && currDiff < 0 {
		obs.Emit = true
		obs.Side = types.SideSell
	}
	c.prevDiff = currDiff
	return obs
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Run consumes the tick queue until it closes. Each crossover produces at
// most one signal, offered non-blockingly to the signal queue (full queue =
// drop + counter; ticks keep updating state so signals are recoverable) and
// mirrored to the persist queue best-effort.
//
// Run owns the signal queue's send side and closes it on return.
func Run(
	tickCh <-chan types.Tick,
	signalCh chan<- types.Signal,
	persistCh chan<- types.PersistEvent,
	metrics *types.Metrics,
) {
	defer close(signalCh)

	cross := NewCrossover()

	log.Info().
		Int("short_window", smaShortWindow).
		Int("long_window", smaLongWindow).
		Msg("📐 strategy task started (sma crossover)")

	for tick := range tickCh {
		obs := cross.Update(tick.Price)

		log.Debug().
			Str("event", "SMA_CALC").
			Float64("short", obs.ShortSMA).
			Float64("long", obs.LongSMA).
			Float64("prev_diff", obs.PrevDiff).
			Float64("curr_diff", obs.CurrDiff).
			Bool("warmup", obs.Warmup).
			Bool("emit", obs.Emit).
			Msg("sma calc")

		if !obs.Emit {
			continue
		}

		signal := types.Signal{
			EventID:     types.NewEventID(),
			Symbol:      tick.Symbol,
			Side:        obs.Side,
			Confidence:  signalConfidence,
			Reason:      types.ReasonSmaCrossover,
			DesiredSize: signalSize,
			TS:          tick.TS,
		}

		metrics.SignalCount.Add(1)

		log.Info().
			Stringer("event_id", signal.EventID).
			Str("symbol", signal.Symbol).
			Str("side", string(signal.Side)).
			Str("reason_code", string(signal.Reason)).
			Float64("confidence", signal.Confidence).
			Float64("desired_size", signal.DesiredSize).
			Msg("📶 signal generated")

		select {
		case signalCh <- signal:
		default:
			metrics.BackpressureDropsSignal.Add(1)
			log.Warn().
				Str("reason_code", "BP_DROP_SIGNAL").
				Str("channel", "signal").
				Msg("backpressure: dropped signal (queue full)")
		}

		select {
		case persistCh <- types.PersistSignal(signal):
		default:
			metrics.BackpressureDropsPersist.Add(1)
		}
	}

	log.Info().
		Uint64("total_signals", metrics.SignalCount.Load()).
		Msg("strategy task ended (tick queue closed)")
}
