package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	defaultMockWSURL = "ws://localhost:9001"

	mockIdleKeepalive  = 5 * time.Second
	mockReconnectDelay = 3 * time.Second
)

// runMockWS consumes JSON tick frames from the mock feed. If no frame has
// arrived for 5 s a ping goes out; a failed send or any read error tears
// the connection down and reconnects after 3 s, indefinitely, racing
// against shutdown.
func (in *Ingestor) runMockWS(ctx context.Context) {
	url := in.cfg.WSURL
	if url == "" {
		url = defaultMockWSURL
	}

	log.Info().
		Str("mode", "MOCK_WS").
		Str("url", url).
		Uint64("sample_every", in.cfg.SampleEvery).
		Msg("🚿 ingest task started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Info().Str("url", url).Msg("connecting to mock feed")
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Warn().Err(err).Msg("connect failed, retrying in 3s")
			select {
			case <-time.After(mockReconnectDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		log.Info().Msg("✅ connected to mock feed")
		in.consumeMockConn(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Warn().Msg("mock feed connection lost, reconnecting in 3s")
		select {
		case <-time.After(mockReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// wsFrame carries one received message or the read error that ended the
// connection.
type wsFrame struct {
	messageType int
	data        []byte
	err         error
}

// readFrames pumps the connection into a channel so the consumer can select
// against shutdown and timers; the goroutine exits when the connection
// closes.
func readFrames(conn *websocket.Conn) <-chan wsFrame {
	frames := make(chan wsFrame, 1)
	go func() {
		defer close(frames)
		for {
			messageType, data, err := conn.ReadMessage()
			frames <- wsFrame{messageType: messageType, data: data, err: err}
			if err != nil {
				return
			}
		}
	}()
	return frames
}

// consumeMockConn runs one connection until error or shutdown.
func (in *Ingestor) consumeMockConn(ctx context.Context, conn *websocket.Conn) {
	frames := readFrames(conn)
	pingTicker := time.NewTicker(mockIdleKeepalive)
	defer pingTicker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown requested")
			conn.Close()
			return
		case <-pingTicker.C:
			if time.Since(lastActivity) > mockIdleKeepalive {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Warn().Err(err).Msg("failed to send ping")
					return
				}
			}
		case frame, ok := <-frames:
			if !ok || frame.err != nil {
				if frame.err != nil {
					log.Warn().Err(frame.err).Msg("mock feed read error")
				}
				return
			}
			if frame.messageType != websocket.TextMessage {
				continue
			}
			lastActivity = time.Now()

			var tick types.Tick
			if err := json.Unmarshal(frame.data, &tick); err != nil {
				log.Warn().Err(err).Msg("malformed tick frame")
				continue
			}
			if !in.sample() {
				continue
			}
			in.metrics.IngestReceived.Add(1)
			in.metrics.TickCount.Add(1)
			in.metrics.IngestProcessed.Add(1)
			in.offer(tick)
		}
	}
}
