package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PoolRecord is the live aggregation state of a tracked pool.
type PoolRecord struct {
	PoolInfo
	Protocol     string          `json:"protocol"`
	Token0Info   TokenInfo       `json:"token0_info"`
	Token1Info   TokenInfo       `json:"token1_info"`
	Transactions []Transaction   `json:"-"`
	Volume5m     decimal.Decimal `json:"volume_5m"`
	Volume15m    decimal.Decimal `json:"volume_15m"`
	SwapCount5m  int             `json:"swap_count_5m"`
	SwapCount15m int             `json:"swap_count_15m"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
	TotalSwaps   int             `json:"total_swaps"`
	LastUpdate   time.Time       `json:"last_update"`
	FirstSeen    time.Time       `json:"first_seen"`
}

// CommonTokenInfo returns the metadata of the allow-listed side.
func (p *PoolRecord) CommonTokenInfo() TokenInfo {
	if p.CommonTokenIndex == 1 {
		return p.Token1Info
	}
	return p.Token0Info
}

// Transaction is one swap recorded against a pool.
type Transaction struct {
	Amount0   *big.Int        `json:"amount0"`
	Amount1   *big.Int        `json:"amount1"`
	Timestamp time.Time       `json:"timestamp"`
	USDVolume decimal.Decimal `json:"usd_volume"`
	RawVolume *big.Int        `json:"raw_volume"`
}
