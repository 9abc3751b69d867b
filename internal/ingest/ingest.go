// Package ingest produces the tick stream. One of four sources runs per
// process: a deterministic synthetic generator, file or database replay, a
// mock websocket feed, or a prioritized list of real websocket sources with
// failover.
//
// Ingest is the only stage whose queue overflow is fatal: a source cannot
// push back on the outside world without distorting replay, so a full tick
// or persist queue here means the process is overloaded and exits loudly
// (code 13) instead of losing data silently.
package ingest

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	syntheticBasePrice = 100.0
	syntheticStep      = 0.05
	syntheticFloor     = 1.0
	syntheticVolume    = 1.0
)

// Ingestor runs the configured tick source.
type Ingestor struct {
	symbol    string
	cfg       config.EngineConfig
	mode      config.IngestMode
	store     *storage.Store
	tickCh    chan<- types.Tick
	persistCh chan<- types.PersistEvent
	metrics   *types.Metrics

	// replayDone is closed when a finite replay source is exhausted,
	// signalling the supervisor to begin shutdown.
	replayDone chan<- struct{}

	// exit terminates the process; tests substitute it to observe the
	// overload and config exit codes.
	exit func(code int)

	// sequence is the shared per-instance sample counter; every frame or
	// row that parses into a tick advances it regardless of source.
	sequence uint64
}

// New wires an ingestor. replayDone may be nil for infinite sources.
func New(
	symbol string,
	cfg config.EngineConfig,
	mode config.IngestMode,
	store *storage.Store,
	tickCh chan<- types.Tick,
	persistCh chan<- types.PersistEvent,
	metrics *types.Metrics,
	replayDone chan<- struct{},
) *Ingestor {
	return &Ingestor{
		symbol:     symbol,
		cfg:        cfg,
		mode:       mode,
		store:      store,
		tickCh:     tickCh,
		persistCh:  persistCh,
		metrics:    metrics,
		replayDone: replayDone,
		exit:       os.Exit,
	}
}

// SetExitFunc overrides process termination, for tests.
func (in *Ingestor) SetExitFunc(fn func(code int)) { in.exit = fn }

// Run blocks until the source finishes or ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context) {
	switch in.mode {
	case config.IngestSynthetic:
		in.runSynthetic(ctx)
	case config.IngestReplay:
		if in.cfg.ReplayFile != "" {
			in.runReplayFile(ctx)
		} else {
			in.runReplayDB(ctx)
		}
	case config.IngestMockWS:
		in.runMockWS(ctx)
	case config.IngestRealWS:
		in.runRealWS(ctx)
	}
}

// sample advances the shared sequence counter and reports whether this
// frame survives the sample_every knob.
func (in *Ingestor) sample() bool {
	in.sequence++
	return in.sequence%in.cfg.SampleEvery == 0
}

// offer hands a tick to the strategy and persist queues without blocking.
// Either queue being full is an overload: count the drop and exit 13.
func (in *Ingestor) offer(tick types.Tick) {
	select {
	case in.tickCh <- tick:
	default:
		in.metrics.BackpressureDropsTick.Add(1)
		log.Error().Str("reason", "OVERLOAD").Msg("tick queue full, exiting 13")
		in.exit(config.ExitOverload)
		return
	}
	select {
	case in.persistCh <- types.PersistTick(tick):
	default:
		in.metrics.BackpressureDropsPersist.Add(1)
		log.Error().Str("reason", "OVERLOAD").Msg("persist queue full, exiting 13")
		in.exit(config.ExitOverload)
	}
}

// runSynthetic emits one tick per interval with a deterministic oscillating
// price: up a step on counts 0, 2 and 3 of each 5-cycle, half a step down
// otherwise, floored at 1.0.
func (in *Ingestor) runSynthetic(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(in.cfg.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	price := syntheticBasePrice

	log.Info().
		Str("symbol", in.symbol).
		Uint64("interval_ms", in.cfg.TickIntervalMs).
		Uint64("sample_every", in.cfg.SampleEvery).
		Str("mode", "SYNTHETIC").
		Msg("🚿 ingest task started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ingest task received shutdown signal")
			return
		case <-ticker.C:
			if !in.sample() {
				continue
			}

			count := in.metrics.TickCount.Add(1) - 1
			direction := -0.5
			switch count % 5 {
			case 0, 2, 3:
				direction = 1.0
			}
			price += syntheticStep * direction
			if price < syntheticFloor {
				price = syntheticFloor
			}

			in.metrics.IngestReceived.Add(1)
			in.metrics.IngestProcessed.Add(1)

			in.offer(types.Tick{
				EventID: types.NewEventID(),
				Symbol:  in.symbol,
				Price:   price,
				Volume:  syntheticVolume,
				TS:      types.NowMillis(),
			})
		}
	}
}

// signalReplayDone tells the supervisor a finite source is exhausted.
func (in *Ingestor) signalReplayDone() {
	if in.replayDone != nil {
		close(in.replayDone)
		in.replayDone = nil
	}
}
