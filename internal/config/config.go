package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"volumeScope/internal/model"
)

const envPrefix = "MONITOR"

// Public BSC endpoints used when no override is configured.
const (
	DefaultWSURL  = "wss://bsc-rpc.publicnode.com"
	DefaultRPCURL = "https://bsc-rpc.publicnode.com"
)

// Config holds configuration values for the live monitor, loaded from
// flags, env, or config file.
type Config struct {
	WSURL    string
	RPCURL   string
	ChainID  uint64
	Listen   string
	LogLevel string

	MaxReconnectAttempts  int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMultiplier   float64
	DialTimeout           time.Duration
	PingInterval          time.Duration

	RankingInterval time.Duration
	TopN            int
	ExcludedFeeTier string
	Window          model.TimeWindow

	CacheTTL   time.Duration
	CacheSize  int
	RPCTimeout time.Duration
	Prices     map[string]string

	BackfillBlocks    uint64
	BackfillBatchSize uint64
	BackfillAddresses []string
	MaxRetries        int
	RetryBackoff      time.Duration

	PGDSN     string
	RecordOut string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := newViper()
	setSharedDefaults(v)
	v.SetDefault("ws-url", DefaultWSURL)
	v.SetDefault("listen", ":8080")
	v.SetDefault("max-reconnect-attempts", 5)
	v.SetDefault("reconnect-initial-delay", time.Second)
	v.SetDefault("reconnect-max-delay", 30*time.Second)
	v.SetDefault("reconnect-multiplier", 2.0)
	v.SetDefault("dial-timeout", 10*time.Second)
	v.SetDefault("ping-interval", 25*time.Second)
	v.SetDefault("ranking-interval", time.Second)
	v.SetDefault("backfill-blocks", uint64(0))
	v.SetDefault("backfill-batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if err := readConfig(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	window, err := model.ParseTimeWindow(v.GetString("window"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		WSURL:    v.GetString("ws-url"),
		RPCURL:   v.GetString("rpc"),
		ChainID:  v.GetUint64("chain-id"),
		Listen:   v.GetString("listen"),
		LogLevel: v.GetString("log-level"),

		MaxReconnectAttempts:  v.GetInt("max-reconnect-attempts"),
		ReconnectInitialDelay: v.GetDuration("reconnect-initial-delay"),
		ReconnectMaxDelay:     v.GetDuration("reconnect-max-delay"),
		ReconnectMultiplier:   v.GetFloat64("reconnect-multiplier"),
		DialTimeout:           v.GetDuration("dial-timeout"),
		PingInterval:          v.GetDuration("ping-interval"),

		RankingInterval: v.GetDuration("ranking-interval"),
		TopN:            v.GetInt("top-n"),
		ExcludedFeeTier: v.GetString("excluded-fee-tier"),
		Window:          window,

		CacheTTL:   v.GetDuration("cache-ttl"),
		CacheSize:  v.GetInt("cache-size"),
		RPCTimeout: v.GetDuration("rpc-timeout"),
		Prices:     getStringMap(v, "prices"),

		BackfillBlocks:    v.GetUint64("backfill-blocks"),
		BackfillBatchSize: v.GetUint64("backfill-batch-size"),
		BackfillAddresses: getStringSlice(v, "backfill-address"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),

		PGDSN:     v.GetString("pg-dsn"),
		RecordOut: v.GetString("record-out"),
	}

	return cfg, nil
}

// Validate reports settings the monitor cannot start with.
func (c Config) Validate() error {
	if c.WSURL == "" {
		return fmt.Errorf("ws url is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max reconnect attempts must be positive")
	}
	if c.ReconnectMultiplier < 1 {
		return fmt.Errorf("reconnect multiplier must be >= 1")
	}
	if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
		return fmt.Errorf("reconnect max delay must be >= initial delay")
	}
	if c.BackfillBlocks > 0 && c.BackfillBatchSize == 0 {
		return fmt.Errorf("backfill batch size must be greater than zero")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// setSharedDefaults covers keys used by both run and replay.
func setSharedDefaults(v *viper.Viper) {
	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("chain-id", uint64(56))
	v.SetDefault("log-level", "info")
	v.SetDefault("window", string(model.Window5m))
	v.SetDefault("top-n", 20)
	v.SetDefault("excluded-fee-tier", "0.01%")
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("cache-size", 4096)
	v.SetDefault("rpc-timeout", 10*time.Second)
}

func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

// parseStringMap reads "k1=v1,k2=v2". Malformed pairs are skipped.
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
