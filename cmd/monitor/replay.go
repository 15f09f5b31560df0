package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volumeScope/internal/aggregate"
	"volumeScope/internal/config"
	"volumeScope/internal/model"
	"volumeScope/internal/monitor"
	"volumeScope/internal/ranking"
	"volumeScope/internal/storage"
)

type replaySummary struct {
	Lines        int `json:"lines"`
	BadLines     int `json:"bad_lines"`
	Recorded     int `json:"recorded"`
	Unrecognized int `json:"unrecognized"`
	Removed      int `json:"removed"`
	Untracked    int `json:"untracked"`
	Failed       int `json:"failed"`
}

type replayOutput struct {
	Summary replaySummary `json:"summary"`
	monitor.View
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	prices, err := aggregate.DefaultPrices().WithOverrides(cfg.Prices)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := newMetadataStack(ctx, metadataOptions{
		RPCURL:     cfg.RPCURL,
		ChainID:    cfg.ChainID,
		RPCTimeout: cfg.RPCTimeout,
		CacheTTL:   cfg.CacheTTL,
		CacheSize:  cfg.CacheSize,
		PGDSN:      cfg.PGDSN,
	}, logger)
	if err != nil {
		return err
	}
	defer meta.Close()

	decodeErrors := storage.NewJsonlStorage(cfg.Errors)
	defer decodeErrors.Close()

	mon, err := monitor.New(monitor.Config{
		ChainID: cfg.ChainID,
		Window:  cfg.Window,
		Ranking: ranking.Options{
			TopN:            cfg.TopN,
			ExcludedFeeTier: cfg.ExcludedFeeTier,
		},
		Prices: prices,
	}, monitor.Deps{
		Resolver:     meta.resolver,
		DecodeErrors: decodeErrors,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer mon.Close()

	logger.Info("replay start", zap.String("in", cfg.In), zap.String("errors", cfg.Errors))

	var summary replaySummary
	stats, err := storage.ReadLogRecords(cfg.In, func(record model.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tally(&summary, mon.Process(ctx, record))
		return nil
	}, func(line int, err error) {
		logger.Warn("skip malformed line", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return err
	}
	summary.Lines = stats.Lines
	summary.BadLines = stats.Failed

	output := replayOutput{Summary: summary, View: mon.Recompute()}
	logger.Info("replay complete",
		zap.Int("lines", summary.Lines),
		zap.Int("recorded", summary.Recorded),
		zap.Int("failed", summary.Failed),
		zap.Int("pools", output.Stats.TotalPools),
	)
	return writeJSON(cfg.Out, output)
}

func tally(summary *replaySummary, err error) {
	switch {
	case err == nil:
		summary.Recorded++
	case errors.Is(err, monitor.ErrUnrecognized):
		summary.Unrecognized++
	case errors.Is(err, monitor.ErrRemoved):
		summary.Removed++
	case errors.Is(err, monitor.ErrNotTracked):
		summary.Untracked++
	default:
		summary.Failed++
	}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
