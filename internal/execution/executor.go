// Package execution admits signals under risk caps and records shadow
// order/trade pairs. Nothing in this package performs network I/O.
package execution

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/types"
)

// referencePrice converts desired_size into notional for admission control.
// A fixed reference keeps the risk math deterministic for shadow operation;
// switching to the last observed tick price is a planned revision.
const referencePrice = 100.0

const feeRate = 0.001

// ShadowExecutor records what would have been placed, without the ability
// to place it. The struct deliberately has no fields that could hold a
// connection, client, or any other I/O handle, and its constructor accepts
// nothing; granting it network capability requires editing this type.
type ShadowExecutor struct {
	_ [0]byte
}

// NewShadowExecutor returns the capability-free executor.
func NewShadowExecutor() *ShadowExecutor {
	return &ShadowExecutor{}
}

// Execute synthesizes the shadow order and its immediate fill for an
// admitted signal. Shadow orders skip the venue lifecycle and go straight
// to FILLED.
func (*ShadowExecutor) Execute(signal *types.Signal) (types.Order, types.Trade) {
	order := types.Order{
		EventID:  types.NewEventID(),
		SignalID: signal.EventID,
		Symbol:   signal.Symbol,
		Side:     signal.Side,
		Qty:      signal.DesiredSize,
		Price:    nil, // market order
		Status:   types.StatusFilled,
		Reason:   types.ReasonShadowRecorded,
		TS:       signal.TS,
		IsShadow: true,
	}

	fillPrice := float64(referencePrice)
	notional := signal.DesiredSize * fillPrice

	trade := types.Trade{
		EventID:   types.NewEventID(),
		OrderID:   order.EventID,
		Symbol:    signal.Symbol,
		Side:      signal.Side,
		FillQty:   signal.DesiredSize,
		FillPrice: fillPrice,
		Fees:      notional * feeRate,
		TS:        signal.TS,
		IsShadow:  true,
	}

	return order, trade
}

// ExposureTracker enforces the risk caps. Because shadow orders fill
// immediately and release right after, the caps act as a concurrency limit
// on in-flight orders rather than a standing position.
type ExposureTracker struct {
	total      float64
	perSymbol  map[string]float64
	openOrders int
}

// NewExposureTracker returns an empty tracker.
func NewExposureTracker() *ExposureTracker {
	return &ExposureTracker{perSymbol: make(map[string]float64)}
}

// Admit checks the signal against the caps and, if allowed, reserves its
// notional. A veto returns RISK_CAP.
func (e *ExposureTracker) Admit(signal *types.Signal, caps config.RiskCaps) (float64, error) {
	notional := signal.DesiredSize * referencePrice

	if e.total+notional > caps.MaxExposureUSD {
		return 0, fmt.Errorf("%s: total %v + %v exceeds %v", types.ReasonRiskCap, e.total, notional, caps.MaxExposureUSD)
	}
	if e.perSymbol[signal.Symbol]+notional > caps.MaxSymbolExposureUSD {
		return 0, fmt.Errorf("%s: symbol %s exposure %v + %v exceeds %v",
			types.ReasonRiskCap, signal.Symbol, e.perSymbol[signal.Symbol], notional, caps.MaxSymbolExposureUSD)
	}
	if e.openOrders >= caps.MaxOpenOrders {
		return 0, fmt.Errorf("%s: open orders %d at cap %d", types.ReasonRiskCap, e.openOrders, caps.MaxOpenOrders)
	}

	e.total += notional
	e.perSymbol[signal.Symbol] += notional
	e.openOrders++
	return notional, nil
}

// Release returns a previously admitted notional.
func (e *ExposureTracker) Release(symbol string, notional float64) {
	e.total -= notional
	if _, ok := e.perSymbol[symbol]; ok {
		e.perSymbol[symbol] -= notional
	}
	if e.openOrders > 0 {
		e.openOrders--
	}
}

// Total returns the current total notional.
func (e *ExposureTracker) Total() float64 { return e.total }

// SymbolExposure returns the current notional for one symbol.
func (e *ExposureTracker) SymbolExposure(symbol string) float64 { return e.perSymbol[symbol] }

// OpenOrders returns the current in-flight order count.
func (e *ExposureTracker) OpenOrders() int { return e.openOrders }

// Run consumes the signal queue until it closes. LIVE mode is forbidden
// here; config validation guarantees the assertion never fires in a
// correctly started process.
func Run(
	mode config.Mode,
	caps config.RiskCaps,
	signalCh <-chan types.Signal,
	persistCh chan<- types.PersistEvent,
	metrics *types.Metrics,
) {
	if mode != config.ModeShadow && mode != config.ModePaper {
		panic(fmt.Sprintf("execution task must not run in %s mode", mode))
	}

	executor := NewShadowExecutor()
	exposure := NewExposureTracker()

	log.Info().
		Str("mode", string(mode)).
		Float64("max_exposure", caps.MaxExposureUSD).
		Float64("max_symbol_exposure", caps.MaxSymbolExposureUSD).
		Int("max_open_orders", caps.MaxOpenOrders).
		Msg("🛡️ execution task started (shadow adapter, no network)")

	for signal := range signalCh {
		notional, err := exposure.Admit(&signal, caps)
		if err != nil {
			metrics.RiskVetoes.Add(1)
			log.Warn().
				Stringer("event_id", signal.EventID).
				Str("reason_code", string(types.ReasonRiskCap)).
				Float64("total_exposure", exposure.Total()).
				Int("open_orders", exposure.OpenOrders()).
				Err(err).
				Msg("signal vetoed by risk cap")
			continue
		}

		order, trade := executor.Execute(&signal)

		metrics.ShadowOrderCount.Add(1)
		metrics.TradeCount.Add(1)

		log.Info().
			Stringer("order_id", order.EventID).
			Stringer("signal_id", signal.EventID).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Float64("qty", order.Qty).
			Float64("fill_price", trade.FillPrice).
			Float64("fees", trade.Fees).
			Str("reason_code", string(order.Reason)).
			Bool("is_shadow", order.IsShadow).
			Msg("🌑 shadow order recorded")

		select {
		case persistCh <- types.PersistOrder(order):
		default:
			metrics.BackpressureDropsPersist.Add(1)
		}
		select {
		case persistCh <- types.PersistTrade(trade):
		default:
			metrics.BackpressureDropsPersist.Add(1)
		}

		// Shadow fills are immediate, so the reservation lasts only for
		// the emit itself.
		exposure.Release(signal.Symbol, notional)
	}

	log.Info().
		Uint64("total_shadow_orders", metrics.ShadowOrderCount.Load()).
		Uint64("total_trades", metrics.TradeCount.Load()).
		Uint64("risk_vetoes", metrics.RiskVetoes.Load()).
		Msg("execution task ended (signal queue closed)")
}
