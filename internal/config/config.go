// Package config loads and validates the engine configuration.
//
// Configuration comes from a TOML file (viper), with CLI flags applied on
// top by the caller. LIVE mode is fail-closed: it requires explicit arming
// plus a proof bundle on disk, and anything else aborts startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Process exit codes, part of the operating contract.
const (
	ExitComplete = 0
	ExitNetwork  = 10
	ExitParse    = 11
	ExitConfig   = 12
	ExitOverload = 13
)

// Mode is the execution mode. Shadow is the default and the only mode in
// which the pipeline is normally run.
type Mode string

const (
	ModeShadow Mode = "SHADOW"
	ModePaper  Mode = "PAPER"
	ModeLive   Mode = "LIVE"
)

// ParseMode normalizes a mode string. Unknown values report ok=false so the
// caller can warn and coerce to SHADOW.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SHADOW":
		return ModeShadow, true
	case "PAPER":
		return ModePaper, true
	case "LIVE":
		return ModeLive, true
	default:
		return ModeShadow, false
	}
}

// IngestMode selects the tick source.
type IngestMode string

const (
	IngestSynthetic IngestMode = "SYNTHETIC"
	IngestReplay    IngestMode = "REPLAY"
	IngestMockWS    IngestMode = "MOCK_WS"
	IngestRealWS    IngestMode = "REAL_WS"
)

// ParseIngestMode normalizes an ingest mode string. Unknown values report
// ok=false so the caller can warn and coerce to SYNTHETIC.
func ParseIngestMode(s string) (IngestMode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SYNTHETIC":
		return IngestSynthetic, true
	case "REPLAY":
		return IngestReplay, true
	case "MOCKWS", "MOCK_WS":
		return IngestMockWS, true
	case "REALWS", "REAL_WS":
		return IngestRealWS, true
	default:
		return IngestSynthetic, false
	}
}

// AppConfig identifies the traded symbol and the database location.
type AppConfig struct {
	Symbol string `mapstructure:"symbol"`
	DBPath string `mapstructure:"db_path"`
}

// EngineConfig tunes ingestion and heartbeat cadence.
type EngineConfig struct {
	IngestMode            string `mapstructure:"ingest_mode"`
	TickIntervalMs        uint64 `mapstructure:"tick_interval_ms"`
	HeartbeatIntervalSecs uint64 `mapstructure:"heartbeat_interval_secs"`
	RunSeconds            uint64 `mapstructure:"run_seconds"` // 0 = run until interrupted
	WSURL                 string `mapstructure:"ws_url"`
	SampleEvery           uint64 `mapstructure:"sample_every"`
	ReplayFile            string `mapstructure:"replay_file"`
	SourcesFile           string `mapstructure:"sources_file"`
}

// RiskCaps bound the execution task's in-flight exposure.
type RiskCaps struct {
	MaxExposureUSD       float64 `mapstructure:"max_exposure_usd"`
	MaxSymbolExposureUSD float64 `mapstructure:"max_symbol_exposure_usd"`
	MaxOpenOrders        int     `mapstructure:"max_open_orders"`
}

// ChannelConfig sets the bounded queue sizes.
type ChannelConfig struct {
	TickChannelSize    int `mapstructure:"tick_channel_size"`
	SignalChannelSize  int `mapstructure:"signal_channel_size"`
	PersistChannelSize int `mapstructure:"persist_channel_size"`
}

// Config is the full engine configuration.
type Config struct {
	Mode      string        `mapstructure:"mode"`
	LiveArmed bool          `mapstructure:"live_armed"`
	Debug     bool          `mapstructure:"debug"`
	App       AppConfig     `mapstructure:"app"`
	Engine    EngineConfig  `mapstructure:"engine"`
	RiskCaps  RiskCaps      `mapstructure:"risk_caps"`
	Channels  ChannelConfig `mapstructure:"channels"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Mode:      string(ModeShadow),
		LiveArmed: false,
		App: AppConfig{
			Symbol: "SOL/USDC",
			DBPath: "data/bot.db",
		},
		Engine: EngineConfig{
			IngestMode:            string(IngestSynthetic),
			TickIntervalMs:        500,
			HeartbeatIntervalSecs: 10,
			SampleEvery:           1,
		},
		RiskCaps: RiskCaps{
			MaxExposureUSD:       10_000,
			MaxSymbolExposureUSD: 5_000,
			MaxOpenOrders:        10,
		},
		Channels: ChannelConfig{
			TickChannelSize:    256,
			SignalChannelSize:  64,
			PersistChannelSize: 512,
		},
	}
}

// Load reads the TOML file at path over the defaults. A parse failure is a
// configuration error (exit 12 at the call site).
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return cfg, nil
}

// ExecutionMode returns the normalized mode and whether the raw string was
// recognized.
func (c *Config) ExecutionMode() (Mode, bool) {
	return ParseMode(c.Mode)
}

// Ingest returns the normalized ingest mode and whether the raw string was
// recognized.
func (c *Config) Ingest() (IngestMode, bool) {
	return ParseIngestMode(c.Engine.IngestMode)
}

// ProofBundlePath is where the LIVE gate looks for the proof bundle: next to
// the configured database file, so the gate is exercisable outside /opt.
func (c *Config) ProofBundlePath() string {
	return filepath.Join(filepath.Dir(c.App.DBPath), "proof_bundle.json")
}

// Validate enforces the startup gates. LIVE mode fails closed unless armed
// and proven; risk caps and queue sizes must be positive.
func (c *Config) Validate() error {
	mode, _ := c.ExecutionMode()

	if mode == ModeLive {
		if !c.LiveArmed {
			return fmt.Errorf(
				"LIVE mode requires live_armed=true in config; this safety gate prevents accidental live trading")
		}
		proof := c.ProofBundlePath()
		if _, err := os.Stat(proof); err != nil {
			return fmt.Errorf(
				"LIVE mode requires proof bundle at %s (run shadow/paper first to generate proof): %w", proof, err)
		}
	}

	if c.RiskCaps.MaxExposureUSD <= 0 {
		return fmt.Errorf("risk_caps.max_exposure_usd must be positive, got %v", c.RiskCaps.MaxExposureUSD)
	}
	if c.RiskCaps.MaxSymbolExposureUSD <= 0 {
		return fmt.Errorf("risk_caps.max_symbol_exposure_usd must be positive, got %v", c.RiskCaps.MaxSymbolExposureUSD)
	}
	if c.RiskCaps.MaxOpenOrders <= 0 {
		return fmt.Errorf("risk_caps.max_open_orders must be at least 1, got %d", c.RiskCaps.MaxOpenOrders)
	}

	if c.Channels.TickChannelSize <= 0 {
		return fmt.Errorf("channels.tick_channel_size must be at least 1, got %d", c.Channels.TickChannelSize)
	}
	if c.Channels.SignalChannelSize <= 0 {
		return fmt.Errorf("channels.signal_channel_size must be at least 1, got %d", c.Channels.SignalChannelSize)
	}
	if c.Channels.PersistChannelSize <= 0 {
		return fmt.Errorf("channels.persist_channel_size must be at least 1, got %d", c.Channels.PersistChannelSize)
	}

	if c.Engine.SampleEvery == 0 {
		return fmt.Errorf("engine.sample_every must be at least 1")
	}
	if c.Engine.TickIntervalMs == 0 {
		return fmt.Errorf("engine.tick_interval_ms must be at least 1")
	}
	if c.Engine.HeartbeatIntervalSecs == 0 {
		return fmt.Errorf("engine.heartbeat_interval_secs must be at least 1")
	}

	return nil
}
