package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"volumeScope/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "monitor",
		Short:        "BSC V3 swap volume monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream swaps and serve the live leaderboard",
		RunE:  runMonitor,
	}

	runCmd.Flags().String("ws-url", config.DefaultWSURL, "BSC websocket RPC URL")
	runCmd.Flags().String("rpc", config.DefaultRPCURL, "BSC HTTP RPC URL for contract reads")
	runCmd.Flags().Uint64("chain-id", 56, "chain id")
	runCmd.Flags().String("listen", ":8080", "API listen address")
	runCmd.Flags().Int("max-reconnect-attempts", 5, "reconnect attempts before giving up")
	runCmd.Flags().Duration("reconnect-initial-delay", time.Second, "first reconnect delay")
	runCmd.Flags().Duration("reconnect-max-delay", 30*time.Second, "reconnect delay cap")
	runCmd.Flags().Float64("reconnect-multiplier", 2, "reconnect delay multiplier")
	runCmd.Flags().Duration("dial-timeout", 10*time.Second, "websocket dial timeout")
	runCmd.Flags().Duration("ping-interval", 25*time.Second, "websocket keepalive ping interval")
	runCmd.Flags().Duration("ranking-interval", time.Second, "leaderboard recompute interval")
	runCmd.Flags().Uint64("backfill-blocks", 0, "recent blocks to backfill before streaming, 0 disables")
	runCmd.Flags().Uint64("backfill-batch-size", 2000, "blocks per eth_getLogs request")
	runCmd.Flags().StringSlice("backfill-address", nil, "limit backfill to these pools (comma-separated)")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for backfill RPC calls")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial backfill retry backoff")
	runCmd.Flags().String("record-out", "", "append every received log to this JSONL file")
	addSharedFlags(runCmd)

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed recorded logs through the pipeline and print the leaderboard",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("rpc", config.DefaultRPCURL, "BSC HTTP RPC URL for contract reads")
	replayCmd.Flags().Uint64("chain-id", 56, "chain id")
	replayCmd.Flags().String("in", "", "input logs JSONL")
	replayCmd.Flags().String("out", "", "leaderboard JSON output, stdout when empty")
	replayCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	addSharedFlags(replayCmd)

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().String("window", "5m", "ranking window (5m or 15m)")
	cmd.Flags().Int("top-n", 20, "leaderboard size")
	cmd.Flags().String("excluded-fee-tier", "0.01%", "fee tier left out of the leaderboard")
	cmd.Flags().Duration("cache-ttl", 5*time.Minute, "metadata cache TTL")
	cmd.Flags().Int("cache-size", 4096, "metadata cache entries")
	cmd.Flags().Duration("rpc-timeout", 10*time.Second, "per-call RPC timeout")
	cmd.Flags().String("prices", "", "USD price overrides (comma-separated address=price)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the metadata store")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
