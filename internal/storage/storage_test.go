package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/shadowbot/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema())
	return store
}

func TestPragmaVerificationPasses(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "pragma.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.VerifyPragmas(DefaultPragmas()))
}

func TestPragmaVerificationRejectsMismatch(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "pragma.db"))
	require.NoError(t, err)
	defer store.Close()

	req := DefaultPragmas()
	req.JournalMode = "delete"
	require.Error(t, store.VerifyPragmas(req))

	req = DefaultPragmas()
	req.BusyTimeout = 60_000
	require.Error(t, store.VerifyPragmas(req))
}

func TestSchemaCreation(t *testing.T) {
	store := openTestStore(t)

	ticks, signals, orders, trades, err := store.RowCounts()
	require.NoError(t, err)
	require.Zero(t, ticks)
	require.Zero(t, signals)
	require.Zero(t, orders)
	require.Zero(t, trades)
}

func TestSaveTickTruncatesToSeconds(t *testing.T) {
	store := openTestStore(t)

	tick := types.Tick{
		EventID: types.NewEventID(),
		Symbol:  "TEST/USD",
		Price:   100.5,
		Volume:  2.0,
		TS:      1704844800987, // ms
	}
	require.NoError(t, store.SaveTick(&tick))

	rows, err := store.ReadTickPage(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "TEST/USD", rows[0].Symbol)
	require.Equal(t, 100.5, rows[0].Price)
	require.Equal(t, int64(1704844800), rows[0].TS)
}

func TestSaveSignalEncodesKind(t *testing.T) {
	store := openTestStore(t)

	sig := types.Signal{
		EventID:     types.NewEventID(),
		Symbol:      "TEST/USD",
		Side:        types.SideBuy,
		Confidence:  0.75,
		Reason:      types.ReasonSmaCrossover,
		DesiredSize: 0.1,
		TS:          1704844800000,
	}
	require.NoError(t, store.SaveSignal(&sig))

	var row SignalRow
	require.NoError(t, store.db.First(&row).Error)
	require.Equal(t, "BUY:SMA_CROSSOVER", row.Kind)
	require.Equal(t, 0.75, row.Value)
	require.Equal(t, int64(1704844800), row.TS)
}

func TestSaveOrderNullPrice(t *testing.T) {
	store := openTestStore(t)

	order := types.Order{
		EventID:  types.NewEventID(),
		SignalID: types.NewEventID(),
		Symbol:   "TEST/USD",
		Side:     types.SideSell,
		Qty:      0.1,
		Price:    nil,
		Status:   types.StatusFilled,
		Reason:   types.ReasonShadowRecorded,
		TS:       1704844801000,
		IsShadow: true,
	}
	require.NoError(t, store.SaveOrder(&order))

	var row OrderRow
	require.NoError(t, store.db.First(&row).Error)
	require.Nil(t, row.Price)
	require.Equal(t, "FILLED", row.Status)
	require.Equal(t, "SELL", row.Side)
}

func TestSaveTradeUniqueEventID(t *testing.T) {
	store := openTestStore(t)

	trade := types.Trade{
		EventID:   types.NewEventID(),
		OrderID:   types.NewEventID(),
		Symbol:    "TEST/USD",
		Side:      types.SideBuy,
		FillQty:   0.1,
		FillPrice: 100.0,
		Fees:      0.01,
		TS:        1704844802000,
		IsShadow:  true,
	}
	require.NoError(t, store.SaveTrade(&trade))

	// Same event_id again violates the unique index.
	require.Error(t, store.SaveTrade(&trade))

	_, _, _, trades, err := store.RowCounts()
	require.NoError(t, err)
	require.Equal(t, int64(1), trades)
}

func TestReadTickPageOrdersByTimestamp(t *testing.T) {
	store := openTestStore(t)

	// Insert out of order; pages must come back ts ascending.
	stamps := []int64{5000, 1000, 3000, 2000, 4000}
	for _, ts := range stamps {
		tick := types.Tick{
			EventID: types.NewEventID(),
			Symbol:  "TEST/USD",
			Price:   100,
			Volume:  1,
			TS:      ts,
		}
		require.NoError(t, store.SaveTick(&tick))
	}

	rows, err := store.ReadTickPage(0)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		require.LessOrEqual(t, rows[i-1].TS, rows[i].TS)
	}
}
