// Mockfeed - deterministic websocket tick server
//
// Emits one JSON tick frame per 500 ms to every connected client: the price
// walks up from 100.0 in 0.1 steps and wraps to 90.0 above 110.0. Pings
// from clients are answered automatically by the websocket library. Used to
// drive shadowbot's mockws ingest mode in development and tests.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/types"
)

const tickInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		port   = flag.Int("port", 9001, "listen port")
		symbol = flag.String("symbol", "SOL/USDC", "symbol stamped on emitted ticks")
	)
	flag.Parse()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		log.Info().Str("peer", conn.RemoteAddr().String()).Msg("client connected")
		go serveTicks(conn, *symbol)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	log.Info().Str("addr", addr).Msg("📡 mockfeed listening")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("listen failed")
		os.Exit(1)
	}
}

// serveTicks pushes frames until the client goes away. A reader goroutine
// drains incoming control frames so pings keep being answered.
func serveTicks(conn *websocket.Conn, symbol string) {
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	price := 100.0
	for {
		select {
		case <-closed:
			log.Info().Str("peer", conn.RemoteAddr().String()).Msg("client disconnected")
			return
		case <-ticker.C:
			price += 0.1
			if price > 110.0 {
				price = 90.0
			}
			tick := types.Tick{
				EventID: types.NewEventID(),
				Symbol:  symbol,
				Price:   price,
				Volume:  1.0,
				TS:      types.NowMillis(),
			}
			if err := conn.WriteJSON(tick); err != nil {
				log.Warn().Err(err).Msg("send failed")
				return
			}
		}
	}
}
