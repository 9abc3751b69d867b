// Package types holds the shared event types for the pipeline.
//
// Every event carries an EventID and a millisecond timestamp. Prices and
// sizes on the hot path are float64; the persistence layer truncates
// timestamps to seconds at the storage boundary only.
package types

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventID is an opaque 128-bit identifier, unique per event creation.
type EventID struct {
	id uuid.UUID
}

// NewEventID returns a fresh random identifier.
func NewEventID() EventID {
	return EventID{id: uuid.New()}
}

// ParseEventID parses the canonical string form.
func ParseEventID(s string) (EventID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, err
	}
	return EventID{id: id}, nil
}

func (e EventID) String() string { return e.id.String() }

// IsZero reports whether the ID was never assigned.
func (e EventID) IsZero() bool { return e.id == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so IDs serialize as their
// canonical string form in JSON payloads.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EventID) UnmarshalText(b []byte) error {
	id, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	e.id = id
	return nil
}

// Side is the direction of a signal, order or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus follows the lifecycle
// SUBMITTED → ACKNOWLEDGED → (PARTIAL_FILL)* → FILLED | CANCELED | REJECTED.
// Shadow orders transition directly to FILLED.
type OrderStatus string

const (
	StatusSubmitted    OrderStatus = "SUBMITTED"
	StatusAcknowledged OrderStatus = "ACKNOWLEDGED"
	StatusPartialFill  OrderStatus = "PARTIAL_FILL"
	StatusFilled       OrderStatus = "FILLED"
	StatusCanceled     OrderStatus = "CANCELED"
	StatusRejected     OrderStatus = "REJECTED"
)

// ReasonCode is the closed enumeration attached to every emission.
type ReasonCode string

const (
	ReasonPeriodicTrigger  ReasonCode = "PERIODIC_TRIGGER"
	ReasonSmaCrossover     ReasonCode = "SMA_CROSSOVER"
	ReasonThresholdCrossed ReasonCode = "THRESHOLD_CROSSED"

	ReasonRiskCap   ReasonCode = "RISK_CAP"
	ReasonStaleData ReasonCode = "STALE_DATA"

	ReasonSubmitted    ReasonCode = "SUBMITTED"
	ReasonAcknowledged ReasonCode = "ACKNOWLEDGED"
	ReasonPartialFill  ReasonCode = "PARTIAL_FILL"
	ReasonFilled       ReasonCode = "FILLED"
	ReasonCanceled     ReasonCode = "CANCELED"
	ReasonRejected     ReasonCode = "REJECTED"

	ReasonShadowRecorded ReasonCode = "SHADOW_RECORDED"

	ReasonThinBookNoBBO           ReasonCode = "THIN_BOOK_NO_BBO"
	ReasonThinBookSpreadWide      ReasonCode = "THIN_BOOK_SPREAD_WIDE"
	ReasonThinBookDepthBelowLimit ReasonCode = "THIN_BOOK_DEPTH_BELOW_THRESHOLD"
)

// Tick is a single market data point.
type Tick struct {
	EventID EventID `json:"event_id"`
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	TS      int64   `json:"ts"` // unix millis
}

// Signal is a trading intention produced by the strategy.
type Signal struct {
	EventID     EventID    `json:"event_id"`
	Symbol      string     `json:"symbol"`
	Side        Side       `json:"side"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Reason      ReasonCode `json:"reason"`
	DesiredSize float64    `json:"desired_size"`
	TS          int64      `json:"ts"`
}

// Order records what would have been (or was) placed at a venue.
type Order struct {
	EventID  EventID     `json:"event_id"`
	SignalID EventID     `json:"signal_id"`
	Symbol   string      `json:"symbol"`
	Side     Side        `json:"side"`
	Qty      float64     `json:"qty"`
	Price    *float64    `json:"price,omitempty"` // nil for market orders
	Status   OrderStatus `json:"status"`
	Reason   ReasonCode  `json:"reason"`
	TS       int64       `json:"ts"`
	IsShadow bool        `json:"is_shadow"`
}

// Trade is a fill record, emitted alongside its order in shadow mode.
type Trade struct {
	EventID   EventID `json:"event_id"`
	OrderID   EventID `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	FillQty   float64 `json:"fill_qty"`
	FillPrice float64 `json:"fill_price"`
	Fees      float64 `json:"fees"`
	TS        int64   `json:"ts"`
	IsShadow  bool    `json:"is_shadow"`
}

// EventKind discriminates PersistEvent payloads.
type EventKind int

const (
	KindTick EventKind = iota
	KindSignal
	KindOrder
	KindTrade
)

// PersistEvent is the fan-in envelope consumed by the persistence task.
// Exactly one payload pointer is non-nil, matching Kind.
type PersistEvent struct {
	Kind   EventKind
	Tick   *Tick
	Signal *Signal
	Order  *Order
	Trade  *Trade
}

// PersistTick wraps a tick for the persist queue.
func PersistTick(t Tick) PersistEvent { return PersistEvent{Kind: KindTick, Tick: &t} }

// PersistSignal wraps a signal for the persist queue.
func PersistSignal(s Signal) PersistEvent { return PersistEvent{Kind: KindSignal, Signal: &s} }

// PersistOrder wraps an order for the persist queue.
func PersistOrder(o Order) PersistEvent { return PersistEvent{Kind: KindOrder, Order: &o} }

// PersistTrade wraps a trade for the persist queue.
func PersistTrade(t Trade) PersistEvent { return PersistEvent{Kind: KindTrade, Trade: &t} }

// Metrics holds the process-lifetime counters reported by the heartbeat.
// All counters are monotonic and updated with atomic read-modify-write only;
// no locks are taken on the trading path.
type Metrics struct {
	TickCount        atomic.Uint64
	SignalCount      atomic.Uint64
	ShadowOrderCount atomic.Uint64
	TradeCount       atomic.Uint64
	PersistCount     atomic.Uint64
	PersistErrors    atomic.Uint64
	IngestReceived   atomic.Uint64
	IngestProcessed  atomic.Uint64

	BackpressureDropsTick    atomic.Uint64
	BackpressureDropsSignal  atomic.Uint64
	BackpressureDropsPersist atomic.Uint64

	RiskVetoes atomic.Uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	TickCount                uint64
	SignalCount              uint64
	ShadowOrderCount         uint64
	TradeCount               uint64
	PersistCount             uint64
	PersistErrors            uint64
	IngestReceived           uint64
	IngestProcessed          uint64
	BackpressureDropsTick    uint64
	BackpressureDropsSignal  uint64
	BackpressureDropsPersist uint64
	RiskVetoes               uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TickCount:                m.TickCount.Load(),
		SignalCount:              m.SignalCount.Load(),
		ShadowOrderCount:         m.ShadowOrderCount.Load(),
		TradeCount:               m.TradeCount.Load(),
		PersistCount:             m.PersistCount.Load(),
		PersistErrors:            m.PersistErrors.Load(),
		IngestReceived:           m.IngestReceived.Load(),
		IngestProcessed:          m.IngestProcessed.Load(),
		BackpressureDropsTick:    m.BackpressureDropsTick.Load(),
		BackpressureDropsSignal:  m.BackpressureDropsSignal.Load(),
		BackpressureDropsPersist: m.BackpressureDropsPersist.Load(),
		RiskVetoes:               m.RiskVetoes.Load(),
	}
}

// NowMillis returns the current wall clock as unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
