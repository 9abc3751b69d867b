// Package engine is the supervisor: it wires the bounded queues, spawns the
// pipeline tasks, owns the shutdown broadcast, and reports the heartbeat.
//
// Shutdown propagates in two layers. Context cancellation reaches every
// source-side loop; queue closure then flows downstream in dependency order
// (ingest → tick queue → strategy → signal queue → execution → persist
// queue → persist), so each stage drains what it already accepted. A 5 s
// grace window bounds the whole teardown; laggards are abandoned.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/execution"
	"github.com/web3guy0/shadowbot/internal/ingest"
	"github.com/web3guy0/shadowbot/internal/notify"
	"github.com/web3guy0/shadowbot/internal/persist"
	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/strategy"
	"github.com/web3guy0/shadowbot/internal/types"
)

const shutdownGrace = 5 * time.Second

// Engine supervises one pipeline run.
type Engine struct {
	cfg        *config.Config
	mode       config.Mode
	ingestMode config.IngestMode
	store      *storage.Store
	metrics    *types.Metrics
	notifier   *notify.Notifier
}

// New assembles a supervisor over a validated config and an opened store.
func New(
	cfg *config.Config,
	mode config.Mode,
	ingestMode config.IngestMode,
	store *storage.Store,
	metrics *types.Metrics,
	notifier *notify.Notifier,
) *Engine {
	return &Engine{
		cfg:        cfg,
		mode:       mode,
		ingestMode: ingestMode,
		store:      store,
		metrics:    metrics,
		notifier:   notifier,
	}
}

// Run spawns the four pipeline tasks plus the heartbeat and blocks until
// shutdown completes. Shutdown fires on the first of: the parent context
// (operator interrupt), the fixed run duration, or replay completion.
func (e *Engine) Run(parent context.Context) {
	tickCh := make(chan types.Tick, e.cfg.Channels.TickChannelSize)
	signalCh := make(chan types.Signal, e.cfg.Channels.SignalChannelSize)
	persistCh := make(chan types.PersistEvent, e.cfg.Channels.PersistChannelSize)

	log.Info().
		Int("tick_queue", e.cfg.Channels.TickChannelSize).
		Int("signal_queue", e.cfg.Channels.SignalChannelSize).
		Int("persist_queue", e.cfg.Channels.PersistChannelSize).
		Msg("queues created (bounded; ingest overflow is fatal, downstream stages shed load)")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var replayDone chan struct{}
	if e.ingestMode == config.IngestReplay {
		replayDone = make(chan struct{})
	}

	ingestor := ingest.New(
		e.cfg.App.Symbol, e.cfg.Engine, e.ingestMode, e.store,
		tickCh, persistCh, e.metrics, replayDone,
	)

	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		ingestor.Run(ctx)
	}()

	strategyDone := make(chan struct{})
	go func() {
		defer close(strategyDone)
		strategy.Run(tickCh, signalCh, persistCh, e.metrics)
	}()

	executionDone := make(chan struct{})
	go func() {
		defer close(executionDone)
		execution.Run(e.mode, e.cfg.RiskCaps, signalCh, persistCh, e.metrics)
	}()

	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		persist.Run(e.store, persistCh, e.metrics)
	}()

	go e.heartbeat(ctx)

	log.Info().Msg("✅ all tasks spawned, pipeline running")

	// Shutdown sources: any one wins.
	var runTimer <-chan time.Time
	if e.cfg.Engine.RunSeconds > 0 {
		log.Info().Uint64("seconds", e.cfg.Engine.RunSeconds).Msg("running for fixed duration")
		timer := time.NewTimer(time.Duration(e.cfg.Engine.RunSeconds) * time.Second)
		defer timer.Stop()
		runTimer = timer.C
	}

	var replayWait <-chan struct{}
	if replayDone != nil {
		replayWait = replayDone
	}

	select {
	case <-parent.Done():
		log.Warn().Msg("🛑 shutdown signal received")
	case <-runTimer:
		log.Warn().Msg("🛑 fixed duration elapsed, initiating shutdown")
	case <-replayWait:
		log.Info().Msg("🛑 replay complete, initiating shutdown")
	}

	cancel()

	// Ordered teardown: each queue closes once its last sender is done.
	teardown := make(chan struct{})
	go func() {
		defer close(teardown)
		<-ingestDone
		close(tickCh)
		<-strategyDone // strategy closes signalCh itself
		<-executionDone
		close(persistCh)
		<-persistDone
	}()

	select {
	case <-teardown:
		log.Info().Msg("all tasks completed gracefully")
	case <-time.After(shutdownGrace):
		log.Warn().Msg("shutdown grace elapsed, abandoning outstanding tasks")
	}

	snap := e.metrics.Snapshot()
	logSnapshot(log.Info(), snap).Msg("FINAL METRICS")
	e.notifier.Shutdown(snap)
}

// heartbeat emits one structured counter event per interval until cancelled.
func (e *Engine) heartbeat(ctx context.Context) {
	interval := time.Duration(e.cfg.Engine.HeartbeatIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSnapshot(log.Info(), e.metrics.Snapshot()).Msg("HEARTBEAT")
		}
	}
}

func logSnapshot(ev *zerolog.Event, snap types.Snapshot) *zerolog.Event {
	return ev.
		Uint64("tick_count", snap.TickCount).
		Uint64("signal_count", snap.SignalCount).
		Uint64("shadow_order_count", snap.ShadowOrderCount).
		Uint64("trade_count", snap.TradeCount).
		Uint64("persist_count", snap.PersistCount).
		Uint64("persist_errors", snap.PersistErrors).
		Uint64("ingest_received", snap.IngestReceived).
		Uint64("ingest_processed", snap.IngestProcessed).
		Uint64("bp_drops_tick", snap.BackpressureDropsTick).
		Uint64("bp_drops_signal", snap.BackpressureDropsSignal).
		Uint64("bp_drops_persist", snap.BackpressureDropsPersist).
		Uint64("risk_vetoes", snap.RiskVetoes)
}
