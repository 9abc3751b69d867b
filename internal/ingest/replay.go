package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/types"
)

// replayRecord is one line of the newline-delimited replay file. event_id is
// optional; absent IDs are minted fresh.
type replayRecord struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	TS      int64   `json:"ts"`
	EventID string  `json:"event_id,omitempty"`
}

// runReplayFile streams a JSONL file line by line, preserving historical
// timestamps. Blank lines are skipped; malformed lines are logged and
// skipped rather than aborting the replay.
func (in *Ingestor) runReplayFile(ctx context.Context) {
	defer in.signalReplayDone()

	log.Info().
		Str("mode", "REPLAY").
		Str("replay_file", in.cfg.ReplayFile).
		Uint64("sample_every", in.cfg.SampleEvery).
		Msg("🚿 ingest task started")

	file, err := os.Open(in.cfg.ReplayFile)
	if err != nil {
		log.Error().Err(err).Str("replay_file", in.cfg.ReplayFile).Msg("replay file open failed")
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ticksRead uint64
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Info().Msg("replay received shutdown")
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ticksRead++
		in.metrics.IngestReceived.Add(1)

		var rec replayRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Msg("replay line parse failed")
			continue
		}

		if !in.sample() {
			continue
		}

		eventID := types.NewEventID()
		if rec.EventID != "" {
			if parsed, err := types.ParseEventID(rec.EventID); err == nil {
				eventID = parsed
			}
		}

		in.offer(types.Tick{
			EventID: eventID,
			Symbol:  rec.Symbol,
			Price:   rec.Price,
			Volume:  rec.Volume,
			TS:      rec.TS,
		})
		in.metrics.TickCount.Add(1)
		in.metrics.IngestProcessed.Add(1)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("replay read failed")
		return
	}
	log.Info().Uint64("ticks_read", ticksRead).Msg("replay finished (file)")
}

// runReplayDB pages through the ticks table ordered by ts ascending,
// minting a fresh event id per emitted tick and yielding between rows so
// the page loop stays cooperative.
func (in *Ingestor) runReplayDB(ctx context.Context) {
	defer in.signalReplayDone()

	log.Info().
		Str("mode", "REPLAY").
		Uint64("sample_every", in.cfg.SampleEvery).
		Msg("🚿 ingest task started (database)")

	offset := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("replay received shutdown")
			return
		default:
		}

		rows, err := in.store.ReadTickPage(offset)
		if err != nil {
			log.Error().Err(err).Msg("replay fetch failed")
			return
		}
		if len(rows) == 0 {
			log.Info().Msg("replay finished (no more ticks)")
			return
		}

		for _, row := range rows {
			select {
			case <-ctx.Done():
				return
			default:
			}

			in.metrics.IngestReceived.Add(1)
			if !in.sample() {
				continue
			}

			in.offer(types.Tick{
				EventID: types.NewEventID(),
				Symbol:  row.Symbol,
				Price:   row.Price,
				Volume:  row.Volume,
				TS:      row.TS * 1000, // stored in seconds
			})
			in.metrics.TickCount.Add(1)
			in.metrics.IngestProcessed.Add(1)

			runtime.Gosched()
		}
		offset += len(rows)
	}
}
