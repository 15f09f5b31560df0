// Package ranking turns aggregated pool records into the volume leaderboard.
package ranking

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"volumeScope/internal/dex"
	"volumeScope/internal/model"
)

const DefaultTopN = 20

type Options struct {
	TopN int
	// ExcludedFeeTier drops pools of this tier from the leaderboard and stats.
	ExcludedFeeTier string
}

func DefaultOptions() Options {
	return Options{TopN: DefaultTopN, ExcludedFeeTier: dex.LowestFeeTier}
}

// Rank filters, orders and truncates pools for the selected window. Ties on
// volume are broken by address.
func Rank(pools []model.PoolRecord, window model.TimeWindow, opts Options) ([]model.RankedPool, model.Stats) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	eligible := make([]model.PoolRecord, 0, len(pools))
	for _, pool := range pools {
		if !pool.IsCommonPool {
			continue
		}
		if opts.ExcludedFeeTier != "" && pool.FeeTier == opts.ExcludedFeeTier {
			continue
		}
		eligible = append(eligible, pool)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return strings.ToLower(eligible[i].Address) < strings.ToLower(eligible[j].Address)
	})
	sort.SliceStable(eligible, func(i, j int) bool {
		vi, _ := windowValues(eligible[i], window)
		vj, _ := windowValues(eligible[j], window)
		return vi.GreaterThan(vj)
	})

	stats := model.Stats{
		TotalPools:       len(pools),
		CommonTokenPools: len(eligible),
		TotalVolume:      decimal.Zero,
	}
	for _, pool := range eligible {
		volume, swaps := windowValues(pool, window)
		stats.TotalVolume = stats.TotalVolume.Add(volume)
		stats.TotalSwaps += swaps
	}

	if len(eligible) > opts.TopN {
		eligible = eligible[:opts.TopN]
	}
	ranked := make([]model.RankedPool, 0, len(eligible))
	for i, pool := range eligible {
		ranked = append(ranked, toRanked(i+1, pool, window))
	}
	return ranked, stats
}

func windowValues(pool model.PoolRecord, window model.TimeWindow) (decimal.Decimal, int) {
	if window == model.Window15m {
		return pool.Volume15m, pool.SwapCount15m
	}
	return pool.Volume5m, pool.SwapCount5m
}

func toRanked(rank int, pool model.PoolRecord, window model.TimeWindow) model.RankedPool {
	volume, swaps := windowValues(pool, window)
	return model.RankedPool{
		Rank:         rank,
		Address:      pool.Address,
		Protocol:     pool.Protocol,
		FeeTier:      pool.FeeTier,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		Token0Symbol: pool.Token0Info.Symbol,
		Token1Symbol: pool.Token1Info.Symbol,
		CommonSymbol: pool.CommonTokenInfo().Symbol,
		Volume:       volume,
		SwapCount:    swaps,
		Volume5m:     pool.Volume5m,
		Volume15m:    pool.Volume15m,
		SwapCount5m:  pool.SwapCount5m,
		SwapCount15m: pool.SwapCount15m,
		TotalVolume:  pool.TotalVolume,
		TotalSwaps:   pool.TotalSwaps,
		LastUpdate:   pool.LastUpdate,
		FirstSeen:    pool.FirstSeen,
	}
}
