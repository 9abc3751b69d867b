package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/types"
)

func writeReplayFixture(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestReplayFilePreservesHistoryAndSkipsBadLines(t *testing.T) {
	t.Parallel()

	fixture := writeReplayFixture(t, `
{"symbol":"SOL/USDC","price":100.5,"volume":2.0,"ts":1704844800000}

{"symbol":"SOL/USDC","price":101.0,"volume":1.5,"ts":1704844801000,"event_id":"0f8fad5b-d9cb-469f-a165-70867728950e"}
this is not json
{"symbol":"SOL/USDC","price":99.75,"volume":3.0,"ts":1704844802000}
`)

	cfg := config.Default().Engine
	cfg.ReplayFile = fixture

	tickCh := make(chan types.Tick, 16)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	replayDone := make(chan struct{})

	in := New("SOL/USDC", cfg, config.IngestReplay, nil, tickCh, persistCh, metrics, replayDone)
	in.SetExitFunc(func(int) { t.Fatal("unexpected exit") })

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		in.Run(context.Background())
	}()

	select {
	case <-replayDone:
	case <-time.After(5 * time.Second):
		t.Fatal("replay completion was not signalled")
	}
	<-finished

	require.Len(t, tickCh, 3, "blank and malformed lines must be skipped")

	first := <-tickCh
	require.Equal(t, int64(1704844800000), first.TS, "historical timestamp preserved")
	require.Equal(t, 100.5, first.Price)

	second := <-tickCh
	require.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", second.EventID.String(),
		"explicit event_id preserved")

	third := <-tickCh
	require.False(t, third.EventID.IsZero(), "missing event_id minted fresh")

	// 4 parseable-or-not content lines seen, 3 processed.
	require.Equal(t, uint64(4), metrics.IngestReceived.Load())
	require.Equal(t, uint64(3), metrics.IngestProcessed.Load())
	require.Equal(t, uint64(3), metrics.TickCount.Load())
}

func TestReplayFileMissingSignalsDoneWithoutTicks(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Engine
	cfg.ReplayFile = filepath.Join(t.TempDir(), "does-not-exist.jsonl")

	tickCh := make(chan types.Tick, 4)
	persistCh := make(chan types.PersistEvent, 8)
	replayDone := make(chan struct{})

	in := New("SOL/USDC", cfg, config.IngestReplay, nil, tickCh, persistCh, types.NewMetrics(), replayDone)
	in.Run(context.Background())

	select {
	case <-replayDone:
	default:
		t.Fatal("replay done must be signalled even on open failure")
	}
	require.Empty(t, tickCh)
}

func TestReplayFromDatabasePages(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema())

	for i := 0; i < 7; i++ {
		tick := types.Tick{
			EventID: types.NewEventID(),
			Symbol:  "SOL/USDC",
			Price:   100 + float64(i),
			Volume:  1,
			TS:      int64(1704844800000 + i*1000),
		}
		require.NoError(t, store.SaveTick(&tick))
	}

	cfg := config.Default().Engine // no replay_file → database replay
	tickCh := make(chan types.Tick, 16)
	persistCh := make(chan types.PersistEvent, 32)
	metrics := types.NewMetrics()
	replayDone := make(chan struct{})

	in := New("SOL/USDC", cfg, config.IngestReplay, store, tickCh, persistCh, metrics, replayDone)
	in.SetExitFunc(func(int) { t.Fatal("unexpected exit") })

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		in.Run(context.Background())
	}()

	select {
	case <-replayDone:
	case <-time.After(5 * time.Second):
		t.Fatal("database replay did not complete")
	}
	<-finished

	require.Len(t, tickCh, 7)

	prev := int64(0)
	for i := 0; i < 7; i++ {
		tick := <-tickCh
		require.GreaterOrEqual(t, tick.TS, prev, "ticks ordered by ts")
		require.False(t, tick.EventID.IsZero(), "db replay mints fresh event ids")
		prev = tick.TS
	}
	require.Equal(t, uint64(7), metrics.IngestProcessed.Load())
}
