// Shadowbot - shadow-mode trading pipeline
//
// Ingests market events, derives SMA-crossover signals, simulates execution
// without touching any venue, and persists every event for audit.
//
// Architecture: Ingest → Strategy → Execution(shadow) → Persist
// Safety: LIVE mode fails closed; the shadow executor carries no network
// capability; queue overflow at the source exits loudly instead of losing
// data.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/shadowbot/internal/config"
	"github.com/web3guy0/shadowbot/internal/engine"
	"github.com/web3guy0/shadowbot/internal/notify"
	"github.com/web3guy0/shadowbot/internal/storage"
	"github.com/web3guy0/shadowbot/internal/types"
)

const version = "1.2.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	var (
		modeFlag        = flag.String("mode", "", "execution mode: shadow|paper|live (overrides config)")
		configFlag      = flag.String("config", "configs/config.toml", "path to TOML config file")
		secondsFlag     = flag.Uint64("seconds", 0, "run for N seconds then exit (0 = until interrupted)")
		dbFlag          = flag.String("db", "", "path to sqlite database (overrides config)")
		ingestFlag      = flag.String("ingest", "", "ingest mode: synthetic|replay|mockws|realws")
		replayFileFlag  = flag.String("replay-file", "", "JSONL replay file (implies replay from file)")
		wsURLFlag       = flag.String("ws-url", "", "websocket URL for mockws mode")
		sampleEveryFlag = flag.Uint64("sample-every", 0, "keep every N-th frame (1 = all)")
		sourcesFlag     = flag.String("sources", "", "TOML source list for realws mode")
		debugFlag       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	log.Info().Str("version", version).Msg("🚀 shadowbot starting")

	cfg := config.Default()
	if _, err := os.Stat(*configFlag); err == nil {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Error().Err(err).Str("config", *configFlag).Msg("config TOML parse failed")
			os.Exit(config.ExitConfig)
		}
		cfg = loaded
	} else {
		log.Info().Str("config", *configFlag).Msg("config file not found, using defaults")
	}

	// CLI overrides.
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}
	if *secondsFlag > 0 {
		cfg.Engine.RunSeconds = *secondsFlag
	}
	if *dbFlag != "" {
		cfg.App.DBPath = *dbFlag
	}
	if *ingestFlag != "" {
		cfg.Engine.IngestMode = *ingestFlag
	}
	if *replayFileFlag != "" {
		cfg.Engine.ReplayFile = *replayFileFlag
		cfg.Engine.IngestMode = string(config.IngestReplay)
	}
	if *wsURLFlag != "" {
		cfg.Engine.WSURL = *wsURLFlag
	}
	if *sampleEveryFlag > 0 {
		cfg.Engine.SampleEvery = *sampleEveryFlag
	}
	if *sourcesFlag != "" {
		cfg.Engine.SourcesFile = *sourcesFlag
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	mode, known := cfg.ExecutionMode()
	if !known {
		log.Warn().Str("mode", cfg.Mode).Msg("unknown mode, defaulting to SHADOW")
		cfg.Mode = string(config.ModeShadow)
	}
	ingestMode, known := cfg.Ingest()
	if !known {
		log.Warn().Str("ingest", cfg.Engine.IngestMode).Msg("unknown ingest mode, defaulting to SYNTHETIC")
		cfg.Engine.IngestMode = string(config.IngestSynthetic)
	}

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("configuration rejected")
		os.Exit(config.ExitConfig)
	}

	log.Info().
		Str("mode", string(mode)).
		Str("ingest", string(ingestMode)).
		Str("symbol", cfg.App.Symbol).
		Str("db_path", cfg.App.DBPath).
		Uint64("tick_interval_ms", cfg.Engine.TickIntervalMs).
		Uint64("heartbeat_secs", cfg.Engine.HeartbeatIntervalSecs).
		Uint64("run_seconds", cfg.Engine.RunSeconds).
		Msg("configuration loaded (shadow mode default enforced)")

	store, err := storage.Open(cfg.App.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		os.Exit(config.ExitConfig)
	}
	defer store.Close()

	if err := store.VerifyPragmas(storage.DefaultPragmas()); err != nil {
		log.Error().Err(err).Msg("storage pragma verification failed")
		os.Exit(config.ExitConfig)
	}
	if err := store.EnsureSchema(); err != nil {
		log.Error().Err(err).Msg("schema migration failed")
		os.Exit(config.ExitConfig)
	}

	if ticks, signals, orders, trades, err := store.RowCounts(); err == nil {
		log.Info().
			Int64("ticks", ticks).
			Int64("signals", signals).
			Int64("orders", orders).
			Int64("trades", trades).
			Msg("initial database state")
	}

	notifier := setupNotifier()

	metrics := types.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier.Startup(string(mode), string(ingestMode), cfg.App.Symbol)

	engine.New(cfg, mode, ingestMode, store, metrics, notifier).Run(ctx)

	log.Info().Msg("👋 shadowbot shutdown complete")
}

// setupNotifier reads the optional Telegram credentials from the
// environment; the notifier stays nil (disabled) without them.
func setupNotifier() *notify.Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	notifier, err := notify.New(token, chatID)
	if err != nil {
		log.Warn().Err(err).Msg("telegram notifier unavailable, continuing without it")
		return nil
	}
	return notifier
}
