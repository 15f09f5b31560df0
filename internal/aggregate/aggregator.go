package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"volumeScope/internal/model"
)

// initTimeout bounds a shared pool initialisation, which no longer follows
// any single caller's context.
const initTimeout = 30 * time.Second

// MetadataResolver supplies pool and token metadata. *dex.Resolver satisfies it.
type MetadataResolver interface {
	GetPoolInfo(ctx context.Context, address string) (*model.PoolInfo, error)
	GetTokenInfo(ctx context.Context, address string) model.TokenInfo
}

// Config controls aggregation behavior.
type Config struct {
	Prices PriceSource
	Logger *zap.Logger
	Now    func() time.Time
}

// Aggregator keeps rolling swap volume for every tracked common-token pool.
type Aggregator struct {
	resolver MetadataResolver
	prices   PriceSource
	logger   *zap.Logger
	now      func() time.Time

	inflight singleflight.Group

	mu         sync.RWMutex
	pools      map[string]*Accumulator
	generation uint64
}

func NewAggregator(resolver MetadataResolver, cfg Config) *Aggregator {
	if cfg.Prices == nil {
		cfg.Prices = DefaultPrices()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		resolver: resolver,
		prices:   cfg.Prices,
		logger:   cfg.Logger,
		now:      cfg.Now,
		pools:    make(map[string]*Accumulator),
	}
}

// InitializePool resolves metadata and starts tracking the pool. It is a
// no-op for pools already tracked and for pools without a common token.
// Concurrent calls for one address share a single metadata fetch; each
// caller stops waiting when its own ctx is done.
func (a *Aggregator) InitializePool(ctx context.Context, address, protocol string) error {
	key := poolKey(address)

	a.mu.RLock()
	_, tracked := a.pools[key]
	generation := a.generation
	a.mu.RUnlock()
	if tracked {
		return nil
	}

	flightKey := fmt.Sprintf("%d:%s", generation, key)
	shared := context.WithoutCancel(ctx)
	result := a.inflight.DoChan(flightKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(shared, initTimeout)
		defer cancel()
		return nil, a.initialize(fetchCtx, address, protocol, generation)
	})
	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Aggregator) initialize(ctx context.Context, address, protocol string, generation uint64) error {
	key := poolKey(address)
	if a.Has(key) {
		return nil
	}

	info, err := a.resolver.GetPoolInfo(ctx, address)
	if err != nil {
		return fmt.Errorf("resolve pool %s: %w", address, err)
	}
	if info == nil {
		a.logger.Debug("skip non-common pool", zap.String("pool", address))
		return nil
	}

	var token0, token1 model.TokenInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		token0 = a.resolver.GetTokenInfo(gctx, info.Token0)
		return nil
	})
	g.Go(func() error {
		token1 = a.resolver.GetTokenInfo(gctx, info.Token1)
		return nil
	})
	_ = g.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != generation {
		a.logger.Debug("discard pool init after clear", zap.String("pool", address))
		return nil
	}
	if _, ok := a.pools[key]; ok {
		return nil
	}
	a.pools[key] = NewAccumulator(*info, protocol, token0, token1, a.now())
	a.logger.Info("tracking pool",
		zap.String("pool", info.Address),
		zap.String("protocol", protocol),
		zap.String("pair", token0.Symbol+"/"+token1.Symbol),
		zap.String("fee_tier", info.FeeTier),
	)
	return nil
}

// AddTransaction records a swap against a tracked pool. Amounts are signed
// decimal integers in native units; ts is the event time and anchors the
// rolling windows. It returns false when the pool is not tracked.
func (a *Aggregator) AddTransaction(address, amount0, amount1 string, ts time.Time) bool {
	a0, err := parseBigInt(amount0)
	if err != nil {
		a.logger.Warn("invalid swap amount", zap.String("pool", address), zap.Error(err))
		return false
	}
	a1, err := parseBigInt(amount1)
	if err != nil {
		a.logger.Warn("invalid swap amount", zap.String("pool", address), zap.Error(err))
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.pools[poolKey(address)]
	if !ok {
		a.logger.Debug("swap for untracked pool", zap.String("pool", address))
		return false
	}

	price, ok := a.prices.PriceOf(acc.record.CommonToken)
	if !ok {
		a.logger.Debug("no price for common token", zap.String("token", acc.record.CommonToken))
	}
	acc.AddSwap(a0, a1, ts, price)
	return true
}

// Has reports whether the pool is tracked.
func (a *Aggregator) Has(address string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.pools[poolKey(address)]
	return ok
}

// Len returns the number of tracked pools.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pools)
}

// Snapshot returns copies of all pool records ordered by address.
func (a *Aggregator) Snapshot() []model.PoolRecord {
	a.mu.RLock()
	out := make([]model.PoolRecord, 0, len(a.pools))
	for _, acc := range a.pools {
		out = append(out, acc.Snapshot())
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return poolKey(out[i].Address) < poolKey(out[j].Address)
	})
	return out
}

// Pool returns a copy of one pool record including its retained transactions.
func (a *Aggregator) Pool(address string) (model.PoolRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.pools[poolKey(address)]
	if !ok {
		return model.PoolRecord{}, false
	}
	record := acc.Snapshot()
	record.Transactions = acc.Transactions()
	return record, true
}

// Clear drops all tracked pools. Initialisations already in flight are discarded.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.pools = make(map[string]*Accumulator)
	a.generation++
	a.mu.Unlock()
}
