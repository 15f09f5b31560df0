package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"volumeScope/internal/model"
)

// Chain is the subset of chain.Client used for backfill.
type Chain interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Handler consumes backfilled logs in block order.
type Handler interface {
	HandleLog(ctx context.Context, record model.LogRecord)
}

// BackfillConfig holds runtime settings for a backfill pass.
type BackfillConfig struct {
	ChainID      uint64
	Blocks       uint64
	BatchSize    uint64
	Addresses    []common.Address
	Topic0       []common.Hash
	MaxRetries   int
	RetryBackoff time.Duration
}

// Backfiller replays the most recent blocks' Swap logs through a Handler so
// the rolling windows are warm before the live stream starts.
type Backfiller struct {
	cfg    BackfillConfig
	chain  Chain
	retry  retryPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewBackfiller(cfg BackfillConfig, chainClient Chain, logger *zap.Logger) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		cfg:    cfg,
		chain:  chainClient,
		retry:  newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Run fetches logs for the last cfg.Blocks blocks and hands each one to
// handler. It returns the number of logs delivered.
func (b *Backfiller) Run(ctx context.Context, handler Handler) (int, error) {
	if b.chain == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	if handler == nil {
		return 0, fmt.Errorf("handler is nil")
	}
	if b.cfg.BatchSize == 0 {
		return 0, fmt.Errorf("batch size must be greater than zero")
	}
	if len(b.cfg.Topic0) == 0 {
		return 0, fmt.Errorf("at least one topic0 is required")
	}

	var latest uint64
	err := b.retry.do(ctx, "latest block", func(ctx context.Context) error {
		var err error
		latest, err = b.chain.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}

	window, err := RecentRange(latest, b.cfg.Blocks)
	if err != nil {
		return 0, err
	}
	ranges, err := SplitRange(window.From, window.To, b.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	b.logger.Info("backfill start", zap.Uint64("from", window.From), zap.Uint64("to", window.To), zap.Int("batches", len(ranges)))

	seen := make(map[string]struct{})
	delivered := 0
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}

		logs, err := b.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return delivered, fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := b.now().UTC()
		for _, log := range logs {
			if log.Removed || isDuplicate(seen, log) {
				continue
			}
			ts, err := b.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return delivered, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			handler.HandleLog(ctx, buildLogRecord(b.cfg.ChainID, log, ts, ingestedAt))
			delivered++
		}

		b.logger.Debug("backfill batch complete", zap.Int("logs", len(logs)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	b.logger.Info("backfill complete", zap.Int("logs", delivered))
	return delivered, nil
}

func (b *Backfiller) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := b.retry.do(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = b.chain.FilterLogs(ctx, fromBlock, toBlock, b.cfg.Addresses, b.cfg.Topic0)
		return err
	}, zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
	return logs, err
}

func (b *Backfiller) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := b.retry.do(ctx, "block timestamp", func(ctx context.Context) error {
		var err error
		ts, err = b.chain.BlockTimestamp(ctx, blockNumber)
		return err
	}, zap.Uint64("block_number", blockNumber))
	return ts, err
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}

func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.Format(time.RFC3339Nano),
	}
}
