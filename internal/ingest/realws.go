package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	realIdleThreshold = 20 * time.Second
	realPingCadence   = 10 * time.Second
	realCycleBackoff  = 5 * time.Second
)

// runRealWS connects to the configured sources in ascending priority. A
// disconnect or protocol error moves to the next source; once the whole
// list has failed the loop sleeps 5 s and restarts from the top.
func (in *Ingestor) runRealWS(ctx context.Context) {
	log.Info().Str("mode", "REAL_WS").Msg("🚿 ingest task started")

	sources, err := LoadSources(in.cfg.SourcesFile)
	if err != nil {
		log.Error().Err(err).Str("sources_file", in.cfg.SourcesFile).
			Msg("failed to load ws sources (did you copy configs/ws_sources.example.toml?)")
		in.exit(config.ExitConfig)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for i := range sources.Source {
			source := &sources.Source[i]
			if done := in.runSourceSession(ctx, source); done {
				return
			}
			log.Warn().Str("source", source.Name).Msg("source disconnected or failed, switching")
		}

		log.Warn().Msg("all sources failed, sleeping 5s")
		select {
		case <-time.After(realCycleBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// runSourceSession drives one source until it fails (false) or shutdown is
// requested (true).
func (in *Ingestor) runSourceSession(ctx context.Context, source *WSSource) bool {
	log.Info().
		Str("source", source.Name).
		Str("url", source.URL).
		Uint64("sample_every", in.cfg.SampleEvery).
		Msg("connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, source.URL, nil)
	if err != nil {
		select {
		case <-ctx.Done():
			return true
		default:
		}
		log.Warn().Str("source", source.Name).Err(err).Msg("connection failed")
		return false
	}
	defer conn.Close()

	log.Info().Str("source", source.Name).Msg("✅ connected")

	// Pong handlers run on the reader goroutine, so the activity stamp is
	// shared atomically.
	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		lastActivity.Store(time.Now().UnixNano())
		return nil
	})

	frames := readFrames(conn)
	pingTicker := time.NewTicker(realPingCadence)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown requested")
			return true
		case <-pingTicker.C:
			idle := time.Since(time.Unix(0, lastActivity.Load()))
			if idle > realIdleThreshold {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return false
				}
			}
		case frame, ok := <-frames:
			if !ok || frame.err != nil {
				return false
			}
			if frame.messageType == websocket.TextMessage {
				lastActivity.Store(time.Now().UnixNano())
				in.handleRealFrame(string(frame.data))
			}
		}
	}
}

// handleRealFrame dispatches on the frame form. Cheap substring probes pick
// the parser; a frame matching neither form is ignored.
func (in *Ingestor) handleRealFrame(text string) {
	switch {
	case strings.Contains(text, `"type":"update"`):
		ticks, err := parseUpdateFrame(text, in.symbol)
		if err != nil {
			log.Warn().Err(err).Msg("update frame parse failed")
			return
		}
		for _, tick := range ticks {
			if !in.sample() {
				continue
			}
			in.metrics.IngestReceived.Add(1)
			in.metrics.TickCount.Add(1)
			in.metrics.IngestProcessed.Add(1)
			in.offer(tick)
		}
	case strings.Contains(text, `"e":"trade"`) || strings.Contains(text, `"e":"aggTrade"`):
		tick, err := parseTradeFrame(text, in.symbol)
		if err != nil {
			log.Warn().Err(err).Msg("trade frame parse failed")
			return
		}
		if !in.sample() {
			return
		}
		in.metrics.IngestReceived.Add(1)
		in.metrics.TickCount.Add(1)
		in.metrics.IngestProcessed.Add(1)
		in.offer(tick)
	}
}

// parseTradeFrame handles the trade form: decimal strings p and q plus an
// integer millisecond timestamp T.
func parseTradeFrame(text, symbol string) (types.Tick, error) {
	var frame struct {
		P string `json:"p"`
		Q string `json:"q"`
		T int64  `json:"T"`
	}
	if err := json.Unmarshal([]byte(text), &frame); err != nil {
		return types.Tick{}, err
	}
	price, err := strconv.ParseFloat(frame.P, 64)
	if err != nil {
		return types.Tick{}, err
	}
	volume, err := strconv.ParseFloat(frame.Q, 64)
	if err != nil {
		return types.Tick{}, err
	}
	return types.Tick{
		EventID: types.NewEventID(),
		Symbol:  symbol,
		Price:   price,
		Volume:  volume,
		TS:      frame.T,
	}, nil
}

// parseUpdateFrame handles the update form: an events array whose trade
// entries all share the update's timestampms.
func parseUpdateFrame(text, symbol string) ([]types.Tick, error) {
	var frame struct {
		TimestampMS int64 `json:"timestampms"`
		Events      []struct {
			Type   string `json:"type"`
			Price  string `json:"price"`
			Amount string `json:"amount"`
		} `json:"events"`
	}
	if err := json.Unmarshal([]byte(text), &frame); err != nil {
		return nil, err
	}

	var ticks []types.Tick
	for _, event := range frame.Events {
		if event.Type != "trade" || event.Price == "" || event.Amount == "" {
			continue
		}
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			return nil, err
		}
		amount, err := strconv.ParseFloat(event.Amount, 64)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, types.Tick{
			EventID: types.NewEventID(),
			Symbol:  symbol,
			Price:   price,
			Volume:  amount,
			TS:      frame.TimestampMS,
		})
	}
	return ticks, nil
}
