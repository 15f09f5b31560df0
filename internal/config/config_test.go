package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"volumeScope/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, DefaultWSURL, cfg.WSURL)
	require.Equal(t, DefaultRPCURL, cfg.RPCURL)
	require.Equal(t, uint64(56), cfg.ChainID)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, 5, cfg.MaxReconnectAttempts)
	require.Equal(t, time.Second, cfg.ReconnectInitialDelay)
	require.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
	require.Equal(t, 2.0, cfg.ReconnectMultiplier)
	require.Equal(t, 10*time.Second, cfg.DialTimeout)
	require.Equal(t, 25*time.Second, cfg.PingInterval)
	require.Equal(t, time.Second, cfg.RankingInterval)
	require.Equal(t, 20, cfg.TopN)
	require.Equal(t, "0.01%", cfg.ExcludedFeeTier)
	require.Equal(t, model.Window5m, cfg.Window)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Empty(t, cfg.Prices)
	require.Zero(t, cfg.BackfillBlocks)

	require.NoError(t, cfg.Validate())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	content := `
ws-url: wss://file.example/ws
rpc: https://file.example
window: 15m
top-n: 10
reconnect-max-delay: 20s
prices:
  "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c": "612.5"
backfill-address:
  - "0x36696169C63e42cd08ce11f5deeBbCeBae652050"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("MONITOR_RPC", "https://env.example")
	t.Setenv("MONITOR_CHAIN_ID", "97")
	t.Setenv("MONITOR_BACKFILL_BLOCKS", "1200")
	t.Setenv("MONITOR_PING_INTERVAL", "10s")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("ws-url", "", "")
	flags.Int("top-n", 20, "")
	require.NoError(t, flags.Parse([]string{"--ws-url=wss://flag.example/ws"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	require.Equal(t, "wss://flag.example/ws", cfg.WSURL, "flag beats file")
	require.Equal(t, "https://env.example", cfg.RPCURL, "env beats file")
	require.Equal(t, uint64(97), cfg.ChainID)
	require.Equal(t, 10, cfg.TopN, "unchanged flag default does not override file")
	require.Equal(t, model.Window15m, cfg.Window)
	require.Equal(t, 20*time.Second, cfg.ReconnectMaxDelay)
	require.Equal(t, 10*time.Second, cfg.PingInterval)
	require.Equal(t, uint64(1200), cfg.BackfillBlocks)
	require.Equal(t, []string{"0x36696169C63e42cd08ce11f5deeBbCeBae652050"}, cfg.BackfillAddresses)
	require.Len(t, cfg.Prices, 1)
	for _, price := range cfg.Prices {
		require.Equal(t, "612.5", price)
	}
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadWindow(t *testing.T) {
	t.Setenv("MONITOR_WINDOW", "1h")
	_, err := Load("", nil)
	require.ErrorContains(t, err, "unsupported time window")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	base := Config{
		WSURL:                 "wss://x",
		RPCURL:                "https://x",
		MaxReconnectAttempts:  5,
		ReconnectInitialDelay: time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectMultiplier:   2,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.ReconnectMultiplier = 0.5
	require.Error(t, bad.Validate())

	bad = base
	bad.ReconnectMaxDelay = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.BackfillBlocks = 100
	require.Error(t, bad.Validate())

	bad = base
	bad.WSURL = ""
	require.ErrorContains(t, bad.Validate(), "ws url is required")
}

func TestLoadReplay(t *testing.T) {
	t.Setenv("MONITOR_PRICES", "0x55d398326f99059fF775485246999027B3197955=1.001, bad, =2")

	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("in", "", "")
	require.NoError(t, flags.Parse([]string{"--in", "./data/logs.jsonl"}))

	cfg, err := LoadReplay("", flags)
	require.NoError(t, err)
	require.Equal(t, "./data/logs.jsonl", cfg.In)
	require.Equal(t, "./data/decode_errors.jsonl", cfg.Errors)
	require.Equal(t, DefaultRPCURL, cfg.RPCURL)
	require.Equal(t, map[string]string{"0x55d398326f99059fF775485246999027B3197955": "1.001"}, cfg.Prices)

	_, err = LoadReplay("", nil)
	require.ErrorContains(t, err, "input file is required")
}

func TestParseStringMap(t *testing.T) {
	require.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseStringMap(" a=1 ,b=x=y,c,"))
	require.Empty(t, parseStringMap("   "))
	require.Equal(t, []string{"a", "b"}, splitAndClean(" a, ,b "))
}
