package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeWindow selects the rolling window used for ranking.
type TimeWindow string

const (
	Window5m  TimeWindow = "5m"
	Window15m TimeWindow = "15m"
)

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	if w == Window15m {
		return 15 * time.Minute
	}
	return 5 * time.Minute
}

// ParseTimeWindow accepts "5m" or "15m".
func ParseTimeWindow(input string) (TimeWindow, error) {
	switch TimeWindow(strings.ToLower(strings.TrimSpace(input))) {
	case Window5m:
		return Window5m, nil
	case Window15m:
		return Window15m, nil
	default:
		return "", fmt.Errorf("unsupported time window: %q", input)
	}
}

// RankedPool is a leaderboard row.
type RankedPool struct {
	Rank         int             `json:"rank"`
	Address      string          `json:"address"`
	Protocol     string          `json:"protocol"`
	FeeTier      string          `json:"fee_tier"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	Token0Symbol string          `json:"token0_symbol"`
	Token1Symbol string          `json:"token1_symbol"`
	CommonSymbol string          `json:"common_symbol"`
	Volume       decimal.Decimal `json:"volume"`
	SwapCount    int             `json:"swap_count"`
	Volume5m     decimal.Decimal `json:"volume_5m"`
	Volume15m    decimal.Decimal `json:"volume_15m"`
	SwapCount5m  int             `json:"swap_count_5m"`
	SwapCount15m int             `json:"swap_count_15m"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
	TotalSwaps   int             `json:"total_swaps"`
	LastUpdate   time.Time       `json:"last_update"`
	FirstSeen    time.Time       `json:"first_seen"`
}

// Stats summarises the ranked set.
type Stats struct {
	TotalPools       int             `json:"total_pools"`
	CommonTokenPools int             `json:"common_token_pools"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	TotalSwaps       int             `json:"total_swaps"`
}
