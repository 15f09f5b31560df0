package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"volumeScope/internal/model"
)

const (
	shortWindow = 5 * time.Minute
	longWindow  = 15 * time.Minute
)

// Accumulator holds the rolling swap history of a single pool.
type Accumulator struct {
	record model.PoolRecord
}

func NewAccumulator(info model.PoolInfo, protocol string, token0, token1 model.TokenInfo, firstSeen time.Time) *Accumulator {
	return &Accumulator{record: model.PoolRecord{
		PoolInfo:    info,
		Protocol:    protocol,
		Token0Info:  token0,
		Token1Info:  token1,
		Volume5m:    decimal.Zero,
		Volume15m:   decimal.Zero,
		TotalVolume: decimal.Zero,
		FirstSeen:   firstSeen,
	}}
}

// AddSwap records one swap. The common-side amount is priced in USD; a zero
// price still records the swap with zero volume.
func (a *Accumulator) AddSwap(amount0, amount1 *big.Int, ts time.Time, price decimal.Decimal) model.Transaction {
	abs0 := new(big.Int).Abs(amount0)
	abs1 := new(big.Int).Abs(amount1)

	commonAmount := abs0
	if a.record.CommonTokenIndex == 1 {
		commonAmount = abs1
	}
	usd := tokenAmount(commonAmount, a.record.CommonTokenInfo().Decimals).Mul(price)

	raw := new(big.Int)
	absAdd(raw, abs0)
	absAdd(raw, abs1)

	tx := model.Transaction{
		Amount0:   abs0,
		Amount1:   abs1,
		Timestamp: ts,
		USDVolume: usd,
		RawVolume: raw,
	}

	a.record.Transactions = append(a.record.Transactions, tx)
	a.prune(ts)
	a.recompute(ts)
	a.record.TotalVolume = a.record.TotalVolume.Add(usd)
	a.record.TotalSwaps++
	a.record.LastUpdate = ts
	return tx
}

// prune keeps transactions strictly newer than now-15m.
func (a *Accumulator) prune(now time.Time) {
	cutoff := now.Add(-longWindow)
	kept := a.record.Transactions[:0]
	for _, tx := range a.record.Transactions {
		if tx.Timestamp.After(cutoff) {
			kept = append(kept, tx)
		}
	}
	for i := len(kept); i < len(a.record.Transactions); i++ {
		a.record.Transactions[i] = model.Transaction{}
	}
	a.record.Transactions = kept
}

func (a *Accumulator) recompute(now time.Time) {
	shortCutoff := now.Add(-shortWindow)
	longCutoff := now.Add(-longWindow)

	volume5m, volume15m := decimal.Zero, decimal.Zero
	count5m, count15m := 0, 0
	for _, tx := range a.record.Transactions {
		if tx.Timestamp.After(longCutoff) {
			volume15m = volume15m.Add(tx.USDVolume)
			count15m++
		}
		if tx.Timestamp.After(shortCutoff) {
			volume5m = volume5m.Add(tx.USDVolume)
			count5m++
		}
	}
	a.record.Volume5m = volume5m
	a.record.Volume15m = volume15m
	a.record.SwapCount5m = count5m
	a.record.SwapCount15m = count15m
}

// Snapshot returns a copy of the record without its transaction list.
func (a *Accumulator) Snapshot() model.PoolRecord {
	out := a.record
	out.Transactions = nil
	return out
}

// Transactions returns a copy of the retained transactions.
func (a *Accumulator) Transactions() []model.Transaction {
	out := make([]model.Transaction, len(a.record.Transactions))
	copy(out, a.record.Transactions)
	return out
}
