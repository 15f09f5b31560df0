package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"volumeScope/internal/model"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	RPCURL          string
	ChainID         uint64
	In              string
	Out             string
	Errors          string
	LogLevel        string
	TopN            int
	ExcludedFeeTier string
	Window          model.TimeWindow
	CacheTTL        time.Duration
	CacheSize       int
	RPCTimeout      time.Duration
	Prices          map[string]string
	PGDSN           string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v := newViper()
	setSharedDefaults(v)
	v.SetDefault("errors", "./data/decode_errors.jsonl")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return ReplayConfig{}, err
	}

	window, err := model.ParseTimeWindow(v.GetString("window"))
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		RPCURL:          v.GetString("rpc"),
		ChainID:         v.GetUint64("chain-id"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		Errors:          v.GetString("errors"),
		LogLevel:        v.GetString("log-level"),
		TopN:            v.GetInt("top-n"),
		ExcludedFeeTier: v.GetString("excluded-fee-tier"),
		Window:          window,
		CacheTTL:        v.GetDuration("cache-ttl"),
		CacheSize:       v.GetInt("cache-size"),
		RPCTimeout:      v.GetDuration("rpc-timeout"),
		Prices:          getStringMap(v, "prices"),
		PGDSN:           v.GetString("pg-dsn"),
	}

	if cfg.In == "" {
		return ReplayConfig{}, fmt.Errorf("input file is required")
	}
	return cfg, nil
}
