// Package persist is the batched writer that decouples disk I/O from the
// trading path. Events fan in from every stage and are committed in batches.
package persist

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	batchSize     = 100
	flushInterval = time.Second
)

// Run drains the persist queue until it closes. Flushes happen when the
// buffer reaches batchSize, when the flush timer fires on a non-empty
// buffer, and once more on close. Row failures are counted and logged but
// never stop the task; the WAL database absorbs writer contention.
func Run(
	store *storage.Store,
	persistCh <-chan types.PersistEvent,
	metrics *types.Metrics,
) {
	buffer := make([]types.PersistEvent, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	log.Info().
		Int("batch_size", batchSize).
		Dur("flush_interval", flushInterval).
		Msg("🗄️ persist task started (dedicated batch writer)")

	for {
		select {
		case event, ok := <-persistCh:
			if !ok {
				if len(buffer) > 0 {
					log.Info().Int("remaining", len(buffer)).Msg("final flush on shutdown")
					flush(store, &buffer, metrics)
				}
				log.Info().
					Uint64("total_persisted", metrics.PersistCount.Load()).
					Uint64("total_errors", metrics.PersistErrors.Load()).
					Msg("persist task ended (queue closed, final flush complete)")
				return
			}
			buffer = append(buffer, event)
			if len(buffer) >= batchSize {
				flush(store, &buffer, metrics)
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				flush(store, &buffer, metrics)
			}
		}
	}
}

// flush writes every buffered event in fill order, one prepared insert per
// row.
func flush(store *storage.Store, buffer *[]types.PersistEvent, metrics *types.Metrics) {
	var succeeded, failed uint64

	for i := range *buffer {
		event := &(*buffer)[i]
		var err error
		switch event.Kind {
		case types.KindTick:
			err = store.SaveTick(event.Tick)
		case types.KindSignal:
			err = store.SaveSignal(event.Signal)
		case types.KindOrder:
			err = store.SaveOrder(event.Order)
		case types.KindTrade:
			err = store.SaveTrade(event.Trade)
		}
		if err != nil {
			failed++
			log.Warn().Err(err).Msg("persist error (continuing)")
		} else {
			succeeded++
		}
	}

	*buffer = (*buffer)[:0]

	metrics.PersistCount.Add(succeeded)
	metrics.PersistErrors.Add(failed)

	if succeeded > 0 {
		log.Debug().
			Uint64("persisted", succeeded).
			Uint64("errors", failed).
			Msg("batch flushed")
	}
}
