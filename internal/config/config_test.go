package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultModeIsShadow(t *testing.T) {
	t.Parallel()

	cfg := Default()
	mode, ok := cfg.ExecutionMode()
	require.True(t, ok)
	require.Equal(t, ModeShadow, mode)
	require.NoError(t, cfg.Validate())
}

func TestParseModeCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"shadow", ModeShadow, true},
		{"SHADOW", ModeShadow, true},
		{"Paper", ModePaper, true},
		{"live", ModeLive, true},
		{"yolo", ModeShadow, false},
		{"", ModeShadow, false},
	}
	for _, tt := range tests {
		mode, ok := ParseMode(tt.in)
		require.Equal(t, tt.want, mode, "input %q", tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestParseIngestModeCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want IngestMode
		ok   bool
	}{
		{"synthetic", IngestSynthetic, true},
		{"replay", IngestReplay, true},
		{"mockws", IngestMockWS, true},
		{"MOCK_WS", IngestMockWS, true},
		{"realws", IngestRealWS, true},
		{"REAL_WS", IngestRealWS, true},
		{"carrier-pigeon", IngestSynthetic, false},
	}
	for _, tt := range tests {
		mode, ok := ParseIngestMode(tt.in)
		require.Equal(t, tt.want, mode, "input %q", tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestLiveModeFailsWithoutArming(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Mode = string(ModeLive)
	cfg.LiveArmed = false

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "live_armed")
}

func TestLiveModeFailsWithoutProofBundle(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Mode = string(ModeLive)
	cfg.LiveArmed = true
	cfg.App.DBPath = filepath.Join(t.TempDir(), "bot.db")

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "proof bundle")
}

func TestLiveModePassesWhenArmedAndProven(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.Mode = string(ModeLive)
	cfg.LiveArmed = true
	cfg.App.DBPath = filepath.Join(dir, "bot.db")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "proof_bundle.json"), []byte("{}"), 0o644))
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadCapsAndChannels(t *testing.T) {
	t.Parallel()

	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max exposure", func(c *Config) { c.RiskCaps.MaxExposureUSD = 0 }},
		{"negative symbol exposure", func(c *Config) { c.RiskCaps.MaxSymbolExposureUSD = -5 }},
		{"zero open orders", func(c *Config) { c.RiskCaps.MaxOpenOrders = 0 }},
		{"zero tick channel", func(c *Config) { c.Channels.TickChannelSize = 0 }},
		{"zero signal channel", func(c *Config) { c.Channels.SignalChannelSize = 0 }},
		{"zero persist channel", func(c *Config) { c.Channels.PersistChannelSize = 0 }},
		{"zero sample every", func(c *Config) { c.Engine.SampleEvery = 0 }},
		{"zero tick interval", func(c *Config) { c.Engine.TickIntervalMs = 0 }},
		{"zero heartbeat interval", func(c *Config) { c.Engine.HeartbeatIntervalSecs = 0 }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "PAPER"
live_armed = false

[app]
symbol = "BTC/USDT"
db_path = "/tmp/test.db"

[engine]
ingest_mode = "REPLAY"
tick_interval_ms = 250
sample_every = 2

[risk_caps]
max_exposure_usd = 500.0
max_symbol_exposure_usd = 250.0
max_open_orders = 3

[channels]
tick_channel_size = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	mode, ok := cfg.ExecutionMode()
	require.True(t, ok)
	require.Equal(t, ModePaper, mode)
	require.Equal(t, "BTC/USDT", cfg.App.Symbol)
	require.Equal(t, uint64(250), cfg.Engine.TickIntervalMs)
	require.Equal(t, uint64(2), cfg.Engine.SampleEvery)
	require.Equal(t, 500.0, cfg.RiskCaps.MaxExposureUSD)
	require.Equal(t, 3, cfg.RiskCaps.MaxOpenOrders)
	// Keys absent from the file keep their defaults.
	require.Equal(t, 8, cfg.Channels.TickChannelSize)
	require.Equal(t, 64, cfg.Channels.SignalChannelSize)
	require.Equal(t, uint64(10), cfg.Engine.HeartbeatIntervalSecs)
}

func TestLoadInvalidTOMLIsConfigError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("invalid = [toml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestProofBundlePathNextToDatabase(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.App.DBPath = "/var/lib/shadowbot/bot.db"
	require.Equal(t, "/var/lib/shadowbot/proof_bundle.json", cfg.ProofBundlePath())
}
