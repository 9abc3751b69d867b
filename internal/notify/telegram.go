// Package notify sends operator lifecycle messages over Telegram. It is
// entirely optional: an unconfigured notifier is a nil-safe no-op, and
// nothing on the trading path ever waits on it.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/types"
)

// Notifier pushes startup and shutdown messages to a Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New connects the bot API. Returns (nil, nil) when token or chatID is
// unset, which disables notifications.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 telegram notifier connected")
	return &Notifier{api: api, chatID: chatID}, nil
}

// Startup announces the run parameters.
func (n *Notifier) Startup(mode, ingestMode, symbol string) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("🚀 shadowbot started\nmode: %s\ningest: %s\nsymbol: %s", mode, ingestMode, symbol))
}

// Shutdown reports the final counter snapshot.
func (n *Notifier) Shutdown(snap types.Snapshot) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf(
		"🛑 shadowbot stopped\nticks: %d\nsignals: %d\nshadow orders: %d\ntrades: %d\npersisted: %d (errors %d)\nrisk vetoes: %d",
		snap.TickCount, snap.SignalCount, snap.ShadowOrderCount, snap.TradeCount,
		snap.PersistCount, snap.PersistErrors, snap.RiskVetoes))
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("telegram send failed")
	}
}
