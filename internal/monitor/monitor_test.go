package monitor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"volumeScope/internal/dex"
	"volumeScope/internal/indexer"
	"volumeScope/internal/model"
	"volumeScope/internal/stream"
)

const (
	pancakePool = "0x36696169C63e42cd08ce11f5deeBbCeBae652050"
	plainPool   = "0x9999999999999999999999999999999999999999"
	otherToken  = "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"
)

type fakeResolver struct {
	mu       sync.Mutex
	pools    map[string]*model.PoolInfo
	failPool string
	cleared  int
	calls    int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{pools: map[string]*model.PoolInfo{
		strings.ToLower(pancakePool): {
			Address:          strings.ToLower(pancakePool),
			Token0:           strings.ToLower(dex.WBNBAddress),
			Token1:           strings.ToLower(otherToken),
			Fee:              2500,
			FeeTier:          dex.FeeTier(2500),
			IsCommonPool:     true,
			CommonToken:      strings.ToLower(dex.WBNBAddress),
			OtherToken:       strings.ToLower(otherToken),
			CommonTokenIndex: 0,
		},
	}}
}

func (f *fakeResolver) GetPoolInfo(_ context.Context, address string) (*model.PoolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if strings.EqualFold(address, f.failPool) {
		return nil, errors.New("execution reverted")
	}
	info, ok := f.pools[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	copied := *info
	return &copied, nil
}

func (f *fakeResolver) GetTokenInfo(_ context.Context, address string) model.TokenInfo {
	if strings.EqualFold(address, dex.WBNBAddress) {
		return model.TokenInfo{Address: strings.ToLower(address), Name: "Wrapped BNB", Symbol: "WBNB", Decimals: 18}
	}
	return model.TokenInfo{Address: strings.ToLower(address), Name: "PancakeSwap Token", Symbol: "CAKE", Decimals: 18}
}

func (f *fakeResolver) ClearCache() {
	f.mu.Lock()
	f.cleared++
	f.mu.Unlock()
}

type decodeErrorSink struct {
	mu   sync.Mutex
	rows []model.DecodeError
}

func (s *decodeErrorSink) PutDecodeErrors(errs []model.DecodeError) error {
	s.mu.Lock()
	s.rows = append(s.rows, errs...)
	s.mu.Unlock()
	return nil
}

type recorder struct {
	mu   sync.Mutex
	logs []model.LogRecord
}

func (r *recorder) PutLogBatch(logs []model.LogRecord) error {
	r.mu.Lock()
	r.logs = append(r.logs, logs...)
	r.mu.Unlock()
	return nil
}

type idleTransport struct {
	closed chan struct{}
	once   sync.Once
}

func (t *idleTransport) ReadMessage() ([]byte, error) {
	<-t.closed
	return nil, errors.New("closed")
}

func (t *idleTransport) WriteJSON(interface{}) error { return nil }
func (t *idleTransport) Ping() error                 { return nil }

func (t *idleTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

type idleDialer struct {
	dials atomic.Int32
}

func (d *idleDialer) Dial(context.Context, string) (stream.Transport, error) {
	d.dials.Add(1)
	return &idleTransport{closed: make(chan struct{})}, nil
}

type replayBackfiller struct {
	records []model.LogRecord
	runs    atomic.Int32
}

func (b *replayBackfiller) Run(ctx context.Context, handler indexer.Handler) (int, error) {
	b.runs.Add(1)
	for _, record := range b.records {
		handler.HandleLog(ctx, record)
	}
	return len(b.records), nil
}

func pancakeSwapLog(t *testing.T, pool string, amount0, amount1 *big.Int, ts time.Time) model.LogRecord {
	t.Helper()
	poolABI, err := dex.PancakeV3PoolABI()
	require.NoError(t, err)

	event := poolABI.Events["Swap"]
	data, err := event.Inputs.NonIndexed().Pack(
		amount0,
		amount1,
		big.NewInt(42),
		big.NewInt(1_000_000),
		big.NewInt(-120),
		big.NewInt(0),
		big.NewInt(0),
	)
	require.NoError(t, err)

	sender := common.HexToAddress("0x13f4EA83D0bd40E75C8222255bc855a974568Dd4")
	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 40_000_000,
		TxHash:      "0xabc",
		Address:     pool,
		Topics: []string{
			event.ID.Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
		},
		Data:      hexutil.Encode(data),
		Timestamp: uint64(ts.Unix()),
	}
}

func oneBNB() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func newTestMonitor(t *testing.T, deps Deps) *Monitor {
	t.Helper()
	if deps.Resolver == nil {
		deps.Resolver = newFakeResolver()
	}
	if deps.Dialer == nil {
		deps.Dialer = &idleDialer{}
	}
	m, err := New(Config{WSURL: "wss://bsc.example/ws", ChainID: 56}, deps)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestHandleLogPancakeSwap(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &recorder{}
	m := newTestMonitor(t, Deps{
		Recorder:   rec,
		Registerer: prometheus.NewRegistry(),
		Now:        func() time.Time { return now },
	})

	log := pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-2_000_000), now)
	require.NoError(t, m.Process(context.Background(), log))

	view := m.Recompute()
	require.Len(t, view.Pools, 1)
	pool := view.Pools[0]
	require.Equal(t, 1, pool.Rank)
	require.Equal(t, "PancakeSwap V3", pool.Protocol)
	require.Equal(t, "0.25%", pool.FeeTier)
	require.Equal(t, "WBNB", pool.CommonSymbol)
	require.True(t, pool.Volume5m.Equal(decimal.NewFromInt(800)), pool.Volume5m.String())
	require.Equal(t, 1, pool.SwapCount5m)
	require.Equal(t, model.Window5m, view.Window)
	require.Equal(t, 1, view.Stats.TotalPools)
	require.Equal(t, 1, view.Stats.CommonTokenPools)

	record, ok := m.Pool(strings.ToLower(pancakePool))
	require.True(t, ok)
	require.Len(t, record.Transactions, 1)

	require.Len(t, rec.logs, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.logs))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.decoded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.swapsRecorded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.trackedPools))
}

func TestHandleLogRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	resolver := newFakeResolver()
	resolver.failPool = "0x1111111111111111111111111111111111111111"
	sink := &decodeErrorSink{}
	m := newTestMonitor(t, Deps{
		Resolver:     resolver,
		DecodeErrors: sink,
		Now:          func() time.Time { return now },
	})
	ctx := context.Background()

	unknown := model.LogRecord{Address: pancakePool, Topics: []string{common.Hash{}.Hex()}, Data: "0x"}
	require.ErrorIs(t, m.Process(ctx, unknown), ErrUnrecognized)

	malformed := pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now)
	malformed.Data = "0x1234"
	require.Error(t, m.Process(ctx, malformed))
	require.Len(t, sink.rows, 1)
	require.Equal(t, malformed.Topic0(), sink.rows[0].Topic0)

	removed := pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now)
	removed.Removed = true
	require.ErrorIs(t, m.Process(ctx, removed), ErrRemoved)

	notCommon := pancakeSwapLog(t, plainPool, oneBNB(), big.NewInt(-1), now)
	require.ErrorIs(t, m.Process(ctx, notCommon), ErrNotTracked)

	failing := pancakeSwapLog(t, resolver.failPool, oneBNB(), big.NewInt(-1), now)
	require.Error(t, m.Process(ctx, failing))

	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.unrecognized))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.decodeFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.swapsDropped.WithLabelValues(dropRemoved)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.swapsDropped.WithLabelValues(dropUntracked)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.swapsDropped.WithLabelValues(dropMetadata)))
	require.Zero(t, m.Recompute().Stats.TotalPools)

	// HandleLog swallows the same failures.
	m.HandleLog(ctx, unknown)
	require.Equal(t, 2.0, testutil.ToFloat64(m.metrics.unrecognized))
}

func TestHandleLogFillsMissingTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &recorder{}
	m := newTestMonitor(t, Deps{Recorder: rec, Now: func() time.Time { return now }})

	log := pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now)
	log.Timestamp = 0
	require.NoError(t, m.Process(context.Background(), log))

	require.Len(t, rec.logs, 1)
	require.Equal(t, uint64(now.Unix()), rec.logs[0].Timestamp)
	record, ok := m.Pool(pancakePool)
	require.True(t, ok)
	require.True(t, record.LastUpdate.Equal(now))
}

func TestChangeTimeWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newTestMonitor(t, Deps{Now: func() time.Time { return now }})
	ctx := context.Background()

	require.NoError(t, m.Process(ctx, pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now.Add(-10*time.Minute))))
	require.NoError(t, m.Process(ctx, pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now)))

	view := m.Recompute()
	require.Len(t, view.Pools, 1)
	require.Equal(t, 1, view.Pools[0].SwapCount)

	require.Error(t, m.ChangeTimeWindow("1h"))
	require.NoError(t, m.ChangeTimeWindow(model.Window15m))

	view = m.View()
	require.Equal(t, model.Window15m, view.Window)
	require.Equal(t, 2, view.Pools[0].SwapCount)
	require.True(t, view.Pools[0].Volume.Equal(decimal.NewFromInt(1600)))
}

func TestStartBackfillsAndPublishes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	resolver := newFakeResolver()
	dialer := &idleDialer{}
	backfill := &replayBackfiller{records: []model.LogRecord{
		pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now),
	}}

	views := make(chan View, 16)
	m, err := New(Config{
		WSURL:           "wss://bsc.example/ws",
		ChainID:         56,
		RankingInterval: 10 * time.Millisecond,
	}, Deps{
		Resolver:   resolver,
		Dialer:     dialer,
		Backfiller: backfill,
		Now:        func() time.Time { return now },
		Publish: func(v View) {
			select {
			case views <- v:
			default:
			}
		},
	})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))

	select {
	case view := <-views:
		require.Len(t, view.Pools, 1)
		require.True(t, view.IsConnected)
		require.Equal(t, "Connected", view.ConnectionStatus)
	case <-time.After(2 * time.Second):
		t.Fatal("no view published")
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.metrics.backfilledLogs))
	require.Equal(t, float64(stream.StateConnected), testutil.ToFloat64(m.metrics.connectionState))

	m.Disconnect()
	require.False(t, m.View().IsConnected)
	require.Equal(t, "Disconnected", m.View().ConnectionStatus)

	require.NoError(t, m.Refresh(context.Background()))
	require.Equal(t, 1, resolver.cleared)
	require.EqualValues(t, 2, backfill.runs.Load())
	require.EqualValues(t, 2, dialer.dials.Load())
	require.True(t, m.View().IsConnected)
	require.Len(t, m.View().Pools, 1)
}

func TestRefreshClearsState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	resolver := newFakeResolver()
	m := newTestMonitor(t, Deps{Resolver: resolver, Now: func() time.Time { return now }})

	require.NoError(t, m.Process(context.Background(), pancakeSwapLog(t, pancakePool, oneBNB(), big.NewInt(-1), now)))
	require.Len(t, m.Recompute().Pools, 1)

	require.NoError(t, m.Refresh(context.Background()))
	require.Empty(t, m.View().Pools)
	require.Equal(t, 1, resolver.cleared)
	require.Zero(t, testutil.ToFloat64(m.metrics.trackedPools))
}

func TestMonitorWithoutStream(t *testing.T) {
	m, err := New(Config{}, Deps{Resolver: newFakeResolver()})
	require.NoError(t, err)
	defer m.Close()

	require.ErrorIs(t, m.Connect(context.Background()), ErrNoStream)
	m.Disconnect()
	require.NoError(t, m.Refresh(context.Background()))

	view := m.View()
	require.False(t, view.IsConnected)
	require.Equal(t, "Disconnected", view.ConnectionStatus)
	require.Equal(t, model.Window5m, view.Window)
	require.NotNil(t, view.Pools)
}

func TestNewRequiresResolver(t *testing.T) {
	_, err := New(Config{WSURL: "wss://x"}, Deps{})
	require.Error(t, err)
}
