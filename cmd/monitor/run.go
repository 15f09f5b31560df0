package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volumeScope/internal/aggregate"
	"volumeScope/internal/api"
	"volumeScope/internal/config"
	"volumeScope/internal/dex"
	"volumeScope/internal/indexer"
	"volumeScope/internal/monitor"
	"volumeScope/internal/ranking"
	"volumeScope/internal/storage"
	"volumeScope/internal/stream"
)

const shutdownTimeout = 10 * time.Second

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
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

	deps := monitor.Deps{
		Resolver:   meta.resolver,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	}

	if cfg.BackfillBlocks > 0 {
		backfiller, err := newBackfiller(cfg, meta, logger)
		if err != nil {
			return err
		}
		deps.Backfiller = backfiller
	}
	if cfg.RecordOut != "" {
		recorder := storage.NewJsonlStorage(cfg.RecordOut)
		defer recorder.Close()
		deps.Recorder = recorder
	}

	// Views are only published once mon.Start runs, after server is set.
	var server *api.Server
	deps.Publish = func(view monitor.View) {
		server.Publish(view)
	}

	mon, err := monitor.New(monitor.Config{
		WSURL:   cfg.WSURL,
		ChainID: cfg.ChainID,
		Backoff: stream.Backoff{
			Initial:     cfg.ReconnectInitialDelay,
			Max:         cfg.ReconnectMaxDelay,
			Multiplier:  cfg.ReconnectMultiplier,
			MaxAttempts: cfg.MaxReconnectAttempts,
		},
		DialTimeout:     cfg.DialTimeout,
		PingInterval:    cfg.PingInterval,
		RankingInterval: cfg.RankingInterval,
		Window:          cfg.Window,
		Ranking: ranking.Options{
			TopN:            cfg.TopN,
			ExcludedFeeTier: cfg.ExcludedFeeTier,
		},
		Prices: prices,
	}, deps)
	if err != nil {
		return err
	}
	defer mon.Close()

	server = api.NewServer(api.Config{
		Addr:        cfg.Listen,
		BaseContext: ctx,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      logger.Named("api"),
	}, mon, api.NewBroadcaster(logger.Named("ws")))

	logger.Info("monitor start",
		zap.String("ws_url", cfg.WSURL),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("window", string(cfg.Window)),
		zap.Int("top_n", cfg.TopN),
		zap.Uint64("backfill_blocks", cfg.BackfillBlocks),
		zap.Bool("metadata_store", cfg.PGDSN != ""),
		zap.String("listen", cfg.Listen),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if err := mon.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	return nil
}

func newBackfiller(cfg config.Config, meta *metadataStack, logger *zap.Logger) (*indexer.Backfiller, error) {
	addresses, err := indexer.ParseAddresses(cfg.BackfillAddresses)
	if err != nil {
		return nil, err
	}
	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return nil, err
	}
	return indexer.NewBackfiller(indexer.BackfillConfig{
		ChainID:      cfg.ChainID,
		Blocks:       cfg.BackfillBlocks,
		BatchSize:    cfg.BackfillBatchSize,
		Addresses:    addresses,
		Topic0:       decoder.Topic0s(),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, meta.chain, logger.Named("backfill")), nil
}
