package dex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"volumeScope/internal/model"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 4096
)

// MetadataStore is an optional second tier behind the in-memory caches.
// Load methods report found=false on a miss.
type MetadataStore interface {
	LoadPool(ctx context.Context, address string) (model.PoolInfo, bool, error)
	SavePool(ctx context.Context, info model.PoolInfo) error
	LoadToken(ctx context.Context, address string) (model.TokenInfo, bool, error)
	SaveToken(ctx context.Context, info model.TokenInfo) error
}

type ResolverConfig struct {
	CacheTTL  time.Duration
	CacheSize int
	Store     MetadataStore
	Logger    *zap.Logger
	Now       func() time.Time
}

// Resolver turns pool and token addresses into metadata through cached contract reads.
type Resolver struct {
	caller ContractCaller
	store  MetadataStore
	logger *zap.Logger
	now    func() time.Time

	pools  *ttlCache
	tokens *ttlCache
}

func NewResolver(caller ContractCaller, cfg ResolverConfig) (*Resolver, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	pools, err := newTTLCache(cfg.CacheSize, cfg.CacheTTL, cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}
	tokens, err := newTTLCache(cfg.CacheSize, cfg.CacheTTL, cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}

	return &Resolver{
		caller: caller,
		store:  cfg.Store,
		logger: cfg.Logger,
		now:    cfg.Now,
		pools:  pools,
		tokens: tokens,
	}, nil
}

// GetPoolInfo returns the pool's metadata, or nil when neither token is a
// common token. Non-common results are not cached.
func (r *Resolver) GetPoolInfo(ctx context.Context, address string) (*model.PoolInfo, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid pool address %q", address)
	}
	if info, ok := r.pools.pool(address); ok {
		return &info, nil
	}

	if r.store != nil {
		info, found, err := r.store.LoadPool(ctx, address)
		if err != nil {
			r.logger.Warn("metadata store pool load failed", zap.String("pool", address), zap.Error(err))
		} else if found {
			r.pools.set(address, info)
			return &info, nil
		}
	}

	pool := common.HexToAddress(address)
	fields, err := fetchPoolFields(ctx, r.caller, pool)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}

	info, ok := classifyPool(pool.Hex(), fields.token0.Hex(), fields.token1.Hex(), fields.fee)
	if !ok {
		return nil, nil
	}
	r.pools.set(address, info)

	if r.store != nil {
		if err := r.store.SavePool(ctx, info); err != nil {
			r.logger.Warn("metadata store pool save failed", zap.String("pool", info.Address), zap.Error(err))
		}
	}
	return &info, nil
}

// GetTokenInfo never fails: unreadable tokens resolve to the static record
// for common tokens or an UNKNOWN placeholder. Fallbacks are not cached.
func (r *Resolver) GetTokenInfo(ctx context.Context, address string) model.TokenInfo {
	if info, ok := r.tokens.token(address); ok {
		return info
	}

	if r.store != nil {
		info, found, err := r.store.LoadToken(ctx, address)
		if err != nil {
			r.logger.Warn("metadata store token load failed", zap.String("token", address), zap.Error(err))
		} else if found {
			r.tokens.set(address, info)
			return info
		}
	}

	if !common.IsHexAddress(address) {
		return fallbackTokenInfo(address)
	}
	info, err := fetchTokenInfo(ctx, r.caller, common.HexToAddress(address))
	if err != nil {
		r.logger.Debug("token metadata fallback", zap.String("token", address), zap.Error(err))
		return fallbackTokenInfo(address)
	}
	info.LastUpdated = r.now()
	r.tokens.set(address, info)

	if r.store != nil {
		if err := r.store.SaveToken(ctx, info); err != nil {
			r.logger.Warn("metadata store token save failed", zap.String("token", info.Address), zap.Error(err))
		}
	}
	return info
}

// ClearCache drops both in-memory caches. The backing store is left intact.
func (r *Resolver) ClearCache() {
	r.pools.purge()
	r.tokens.purge()
}
