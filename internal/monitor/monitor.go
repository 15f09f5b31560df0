package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"volumeScope/internal/aggregate"
	"volumeScope/internal/dex"
	"volumeScope/internal/indexer"
	"volumeScope/internal/model"
	"volumeScope/internal/ranking"
	"volumeScope/internal/storage"
	"volumeScope/internal/stream"
)

var (
	ErrNoStream     = errors.New("stream not configured")
	ErrUnrecognized = errors.New("unrecognized log")
	ErrRemoved      = errors.New("removed log")
	ErrNotTracked   = errors.New("pool not tracked")
)

// Resolver is the metadata source used by the aggregator. *dex.Resolver satisfies it.
type Resolver interface {
	aggregate.MetadataResolver
	ClearCache()
}

// Backfiller replays recent history before the live subscription starts.
type Backfiller interface {
	Run(ctx context.Context, handler indexer.Handler) (int, error)
}

type Config struct {
	WSURL           string
	ChainID         uint64
	Backoff         stream.Backoff
	DialTimeout     time.Duration
	PingInterval    time.Duration
	RankingInterval time.Duration
	Window          model.TimeWindow
	Ranking         ranking.Options
	Prices          aggregate.PriceSource
}

type Deps struct {
	Resolver Resolver
	// Optional.
	Dialer       stream.Dialer
	Backfiller   Backfiller
	Recorder     storage.Storage
	DecodeErrors storage.DecodeErrorSink
	Registerer   prometheus.Registerer
	Logger       *zap.Logger
	Now          func() time.Time
	// Publish receives the view after every ranking recompute.
	Publish func(View)
}

// View is what the dashboard renders.
type View struct {
	Pools            []model.RankedPool `json:"pools"`
	IsConnected      bool               `json:"is_connected"`
	ConnectionStatus string             `json:"connection_status"`
	Stream           stream.Status      `json:"stream"`
	Stats            model.Stats        `json:"stats"`
	Window           model.TimeWindow   `json:"window"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Monitor wires the stream, decoder, aggregator and ranking service together.
type Monitor struct {
	decoder    *dex.SwapDecoder
	resolver   Resolver
	aggregator *aggregate.Aggregator
	ranking    *ranking.Service
	conn       *stream.Connection

	backfiller   Backfiller
	recorder     storage.Storage
	decodeErrors storage.DecodeErrorSink
	publish      func(View)
	metrics      *metrics
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Monitor, error) {
	if deps.Resolver == nil {
		return nil, fmt.Errorf("metadata resolver is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return nil, fmt.Errorf("swap decoder: %w", err)
	}

	m := &Monitor{
		decoder:      decoder,
		resolver:     deps.Resolver,
		backfiller:   deps.Backfiller,
		recorder:     deps.Recorder,
		decodeErrors: deps.DecodeErrors,
		publish:      deps.Publish,
		metrics:      newMetrics(deps.Registerer),
		logger:       deps.Logger,
		now:          deps.Now,
	}

	m.aggregator = aggregate.NewAggregator(deps.Resolver, aggregate.Config{
		Prices: cfg.Prices,
		Logger: deps.Logger.Named("aggregate"),
		Now:    deps.Now,
	})
	m.ranking = ranking.NewService(m.aggregator, ranking.ServiceConfig{
		Interval: cfg.RankingInterval,
		Window:   cfg.Window,
		Options:  cfg.Ranking,
		Publish:  m.onRanked,
		Logger:   deps.Logger.Named("ranking"),
		Now:      deps.Now,
	})

	// Replay runs without a live stream.
	if cfg.WSURL == "" {
		return m, nil
	}
	conn, err := stream.NewConnection(stream.Config{
		URL:           cfg.WSURL,
		ChainID:       cfg.ChainID,
		Topics:        decoder.Topic0s(),
		Backoff:       cfg.Backoff,
		DialTimeout:   cfg.DialTimeout,
		PingInterval:  cfg.PingInterval,
		Dialer:        deps.Dialer,
		Handler:       m,
		OnStateChange: m.metrics.observeState,
		Logger:        deps.Logger.Named("stream"),
		Now:           deps.Now,
	})
	if err != nil {
		return nil, err
	}
	m.conn = conn

	return m, nil
}

// Start backfills, connects and starts the ranking loop. The ranking loop
// runs until ctx is done or Close is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor already started")
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.backfill(ctx)

	if m.conn != nil {
		if err := m.Connect(ctx); err != nil {
			m.logger.Warn("initial connect failed, retry scheduled", zap.Error(err))
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.ranking.Run(runCtx)
	}()
	return nil
}

// Connect opens the live subscription. ctx bounds the subscription lifetime.
func (m *Monitor) Connect(ctx context.Context) error {
	if m.conn == nil {
		return ErrNoStream
	}
	return m.conn.Connect(ctx)
}

func (m *Monitor) Disconnect() {
	if m.conn != nil {
		m.conn.Disconnect()
	}
}

// Refresh drops all aggregated state and metadata caches, then reconnects.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.Disconnect()
	m.aggregator.Clear()
	m.resolver.ClearCache()
	m.metrics.trackedPools.Set(0)
	m.logger.Info("state cleared")

	m.backfill(ctx)
	var err error
	if m.conn != nil {
		err = m.conn.Connect(ctx)
	}
	m.ranking.Recompute()
	return err
}

// ChangeTimeWindow switches the ranking window and recomputes immediately.
func (m *Monitor) ChangeTimeWindow(window model.TimeWindow) error {
	parsed, err := model.ParseTimeWindow(string(window))
	if err != nil {
		return err
	}
	m.ranking.SetWindow(parsed)
	m.ranking.Recompute()
	return nil
}

func (m *Monitor) View() View {
	return m.viewOf(m.ranking.Latest())
}

// Pool returns the live record of a tracked pool, transactions included.
func (m *Monitor) Pool(address string) (model.PoolRecord, bool) {
	return m.aggregator.Pool(address)
}

// Recompute forces a ranking pass outside the ticker.
func (m *Monitor) Recompute() View {
	return m.viewOf(m.ranking.Recompute())
}

// HandleLog feeds one log through the pipeline. Failures are counted and
// logged; nothing is returned to the caller.
func (m *Monitor) HandleLog(ctx context.Context, record model.LogRecord) {
	if err := m.Process(ctx, record); err != nil {
		m.logger.Debug("log skipped",
			zap.String("pool", record.Address),
			zap.String("tx_hash", record.TxHash),
			zap.Error(err),
		)
	}
}

// Process runs record through recording, classification, decoding, pool
// initialisation and aggregation, reporting why a log was not aggregated.
func (m *Monitor) Process(ctx context.Context, record model.LogRecord) error {
	m.metrics.logs.Inc()
	if record.Timestamp == 0 {
		record.Timestamp = uint64(m.now().Unix())
	}
	m.record(record)

	if record.Removed {
		m.metrics.swapsDropped.WithLabelValues(dropRemoved).Inc()
		return ErrRemoved
	}

	kind := m.decoder.Classify(record.Topic0())
	if kind == dex.KindUnrecognized {
		m.metrics.unrecognized.Inc()
		return ErrUnrecognized
	}

	swap, err := m.decoder.Decode(kind, record.Data, record.Topics)
	if err != nil {
		m.metrics.decodeFailures.Inc()
		m.recordDecodeError(record, err)
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	m.metrics.decoded.Inc()

	if err := m.aggregator.InitializePool(ctx, record.Address, kind.Protocol()); err != nil {
		m.metrics.swapsDropped.WithLabelValues(dropMetadata).Inc()
		m.logger.Warn("pool init failed", zap.String("pool", record.Address), zap.Error(err))
		return fmt.Errorf("init pool: %w", err)
	}

	if !m.aggregator.AddTransaction(record.Address, swap.Amount0, swap.Amount1, record.EventTime(m.now())) {
		m.metrics.swapsDropped.WithLabelValues(dropUntracked).Inc()
		return ErrNotTracked
	}
	m.metrics.swapsRecorded.Inc()
	m.metrics.trackedPools.Set(float64(m.aggregator.Len()))
	return nil
}

// Close stops the ranking loop and the stream. It is safe to call more than once.
func (m *Monitor) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.Disconnect()
}

func (m *Monitor) backfill(ctx context.Context) {
	if m.backfiller == nil {
		return
	}
	delivered, err := m.backfiller.Run(ctx, m)
	m.metrics.backfilledLogs.Add(float64(delivered))
	if err != nil {
		m.logger.Warn("backfill failed", zap.Int("delivered", delivered), zap.Error(err))
		return
	}
	m.logger.Info("backfill done", zap.Int("delivered", delivered), zap.Int("pools", m.aggregator.Len()))
}

func (m *Monitor) record(record model.LogRecord) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.PutLogBatch([]model.LogRecord{record}); err != nil {
		m.logger.Warn("record log failed", zap.Error(err))
	}
}

func (m *Monitor) recordDecodeError(record model.LogRecord, cause error) {
	if m.decodeErrors == nil {
		return
	}
	if err := m.decodeErrors.PutDecodeErrors([]model.DecodeError{model.NewDecodeError(record, cause)}); err != nil {
		m.logger.Warn("write decode error failed", zap.Error(err))
	}
}

func (m *Monitor) onRanked(result ranking.Result) {
	if m.publish == nil {
		return
	}
	m.publish(m.viewOf(result))
}

func (m *Monitor) viewOf(result ranking.Result) View {
	status := stream.Status{State: stream.StateDisconnected, StateName: stream.StateDisconnected.String()}
	if m.conn != nil {
		status = m.conn.Status()
	}
	pools := result.Pools
	if pools == nil {
		pools = []model.RankedPool{}
	}
	return View{
		Pools:            pools,
		IsConnected:      status.State == stream.StateConnected,
		ConnectionStatus: status.String(),
		Stream:           status,
		Stats:            result.Stats,
		Window:           result.Window,
		UpdatedAt:        result.UpdatedAt,
	}
}
