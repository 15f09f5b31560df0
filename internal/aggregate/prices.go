package aggregate

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"volumeScope/internal/dex"
)

// PriceSource returns the USD price of a token.
type PriceSource interface {
	PriceOf(token string) (decimal.Decimal, bool)
}

// StaticPrices is a fixed USD price table keyed by lower-cased address.
type StaticPrices map[string]decimal.Decimal

// DefaultPrices returns the built-in table: WBNB 800, USDT 1, USDC 1.
func DefaultPrices() StaticPrices {
	return StaticPrices{
		strings.ToLower(dex.WBNBAddress): decimal.NewFromInt(800),
		strings.ToLower(dex.USDTAddress): decimal.NewFromInt(1),
		strings.ToLower(dex.USDCAddress): decimal.NewFromInt(1),
	}
}

func (p StaticPrices) PriceOf(token string) (decimal.Decimal, bool) {
	price, ok := p[strings.ToLower(token)]
	return price, ok
}

// WithOverrides returns a copy of p with address=usd overrides applied.
func (p StaticPrices) WithOverrides(overrides map[string]string) (StaticPrices, error) {
	out := make(StaticPrices, len(p)+len(overrides))
	for token, price := range p {
		out[token] = price
	}
	for token, raw := range overrides {
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("price override: invalid address %q", token)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("price override %s: %w", token, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("price override %s: negative price", token)
		}
		out[strings.ToLower(token)] = price
	}
	return out, nil
}
