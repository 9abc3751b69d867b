package ingest

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// WSSource is one entry of the multi-source list.
type WSSource struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Kind     string `mapstructure:"kind"` // "ticker", "trades", ...
	Priority int    `mapstructure:"priority"`
}

// WSSources is the multi-source configuration document:
//
//	[[source]]
//	name = "binance"
//	url = "wss://..."
//	kind = "trades"
//	priority = 1
type WSSources struct {
	Source []WSSource `mapstructure:"source"`
}

// LoadSources reads and orders the source list. A missing or unparseable
// file is a configuration error (exit 12 at the call site).
func LoadSources(path string) (*WSSources, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}

	var sources WSSources
	if err := v.Unmarshal(&sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources %s: %w", path, err)
	}
	if len(sources.Source) == 0 {
		return nil, fmt.Errorf("no sources defined in %s", path)
	}

	sort.SliceStable(sources.Source, func(i, j int) bool {
		return sources.Source[i].Priority < sources.Source[j].Priority
	})
	return &sources, nil
}
