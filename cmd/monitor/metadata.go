package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"volumeScope/internal/chain"
	"volumeScope/internal/dex"
	"volumeScope/internal/storage/postgres"
)

type metadataOptions struct {
	RPCURL     string
	ChainID    uint64
	RPCTimeout time.Duration
	CacheTTL   time.Duration
	CacheSize  int
	PGDSN      string
}

// metadataStack is the chain client plus the resolver built on it.
type metadataStack struct {
	chain    *chain.Client
	resolver *dex.Resolver
	store    *postgres.Store
}

func newMetadataStack(ctx context.Context, opts metadataOptions, logger *zap.Logger) (*metadataStack, error) {
	if opts.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	chainClient, err := chain.NewClient(ctx, opts.RPCURL, chain.Options{CallTimeout: opts.RPCTimeout})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if opts.ChainID != 0 && chainID.Uint64() != opts.ChainID {
		logger.Warn("rpc chain id differs from configured chain id",
			zap.Uint64("configured", opts.ChainID),
			zap.Uint64("rpc", chainID.Uint64()),
		)
	}

	stack := &metadataStack{chain: chainClient}

	var metaStore dex.MetadataStore
	if opts.PGDSN != "" {
		store, err := postgres.NewStore(ctx, opts.PGDSN, chainID.Uint64())
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		stack.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			stack.Close()
			return nil, err
		}
		metaStore = store
	}

	resolver, err := dex.NewResolver(chainClient, dex.ResolverConfig{
		CacheTTL:  opts.CacheTTL,
		CacheSize: opts.CacheSize,
		Store:     metaStore,
		Logger:    logger.Named("resolver"),
	})
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.resolver = resolver
	return stack, nil
}

func (s *metadataStack) Close() {
	if s.store != nil {
		s.store.Close()
	}
	s.chain.Close()
}
