package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/types"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "persist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema())
	return store
}

func runTask(store *storage.Store, persistCh chan types.PersistEvent, metrics *types.Metrics) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(store, persistCh, metrics)
	}()
	return done
}

func tickEvent(i int) types.PersistEvent {
	return types.PersistTick(types.Tick{
		EventID: types.NewEventID(),
		Symbol:  "TEST/USD",
		Price:   100 + float64(i),
		Volume:  1,
		TS:      1704844800000 + int64(i),
	})
}

func TestFinalFlushOnClose(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	done := runTask(store, persistCh, metrics)

	for i := 0; i < 5; i++ {
		persistCh <- tickEvent(i)
	}
	close(persistCh)
	<-done

	ticks, _, _, _, err := store.RowCounts()
	require.NoError(t, err)
	require.Equal(t, int64(5), ticks)
	require.Equal(t, uint64(5), metrics.PersistCount.Load())
	require.Zero(t, metrics.PersistErrors.Load())
}

func TestBatchSizeTriggersFlush(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	persistCh := make(chan types.PersistEvent, 256)
	metrics := types.NewMetrics()
	done := runTask(store, persistCh, metrics)

	// One full batch flushes without waiting for the timer or close.
	for i := 0; i < batchSize; i++ {
		persistCh <- tickEvent(i)
	}

	require.Eventually(t, func() bool {
		return metrics.PersistCount.Load() >= uint64(batchSize)
	}, 500*time.Millisecond, 10*time.Millisecond, "batch did not flush on size")

	close(persistCh)
	<-done
}

func TestTimerFlushesPartialBatch(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	done := runTask(store, persistCh, metrics)

	persistCh <- tickEvent(0)
	persistCh <- tickEvent(1)

	// Well under batchSize; only the 1 s timer can flush these.
	require.Eventually(t, func() bool {
		return metrics.PersistCount.Load() == 2
	}, 3*time.Second, 50*time.Millisecond, "timer flush did not happen")

	close(persistCh)
	<-done
}

func TestAllEventKindsPersisted(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	done := runTask(store, persistCh, metrics)

	orderID := types.NewEventID()
	persistCh <- tickEvent(0)
	persistCh <- types.PersistSignal(types.Signal{
		EventID: types.NewEventID(), Symbol: "TEST/USD", Side: types.SideBuy,
		Confidence: 0.75, Reason: types.ReasonSmaCrossover, DesiredSize: 0.1, TS: 1704844800000,
	})
	persistCh <- types.PersistOrder(types.Order{
		EventID: orderID, SignalID: types.NewEventID(), Symbol: "TEST/USD",
		Side: types.SideBuy, Qty: 0.1, Status: types.StatusFilled,
		Reason: types.ReasonShadowRecorded, TS: 1704844800000, IsShadow: true,
	})
	persistCh <- types.PersistTrade(types.Trade{
		EventID: types.NewEventID(), OrderID: orderID, Symbol: "TEST/USD",
		Side: types.SideBuy, FillQty: 0.1, FillPrice: 100, Fees: 0.01,
		TS: 1704844800000, IsShadow: true,
	})
	close(persistCh)
	<-done

	ticks, signals, orders, trades, err := store.RowCounts()
	require.NoError(t, err)
	require.Equal(t, int64(1), ticks)
	require.Equal(t, int64(1), signals)
	require.Equal(t, int64(1), orders)
	require.Equal(t, int64(1), trades)
	require.Equal(t, uint64(4), metrics.PersistCount.Load())
}

func TestRowFailureCountedNotFatal(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	done := runTask(store, persistCh, metrics)

	// Two trades with the same event_id: the second insert violates the
	// unique index, is counted as an error, and the task keeps going.
	dup := types.Trade{
		EventID: types.NewEventID(), OrderID: types.NewEventID(), Symbol: "TEST/USD",
		Side: types.SideBuy, FillQty: 0.1, FillPrice: 100, Fees: 0.01,
		TS: 1704844800000, IsShadow: true,
	}
	persistCh <- types.PersistTrade(dup)
	persistCh <- types.PersistTrade(dup)
	persistCh <- tickEvent(0)
	close(persistCh)
	<-done

	require.Equal(t, uint64(2), metrics.PersistCount.Load())
	require.Equal(t, uint64(1), metrics.PersistErrors.Load())

	ticks, _, _, trades, err := store.RowCounts()
	require.NoError(t, err)
	require.Equal(t, int64(1), ticks)
	require.Equal(t, int64(1), trades)
}
