package dex

import (
	"strings"

	"volumeScope/internal/model"
)

// BNB Smart Chain addresses of the common (allow-listed) tokens.
const (
	WBNBAddress = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	USDTAddress = "0x55d398326f99059fF775485246999027B3197955"
	USDCAddress = "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"
)

const (
	unknownSymbol   = "UNKNOWN"
	unknownName     = "Unknown Token"
	unknownDecimals = 18
)

var commonTokens = map[string]model.TokenInfo{
	strings.ToLower(WBNBAddress): {Address: WBNBAddress, Name: "Wrapped BNB", Symbol: "WBNB", Decimals: 18},
	strings.ToLower(USDTAddress): {Address: USDTAddress, Name: "Tether USD", Symbol: "USDT", Decimals: 18},
	strings.ToLower(USDCAddress): {Address: USDCAddress, Name: "USD Coin", Symbol: "USDC", Decimals: 18},
}

// IsCommonToken reports whether address is on the allow-list (case-insensitive).
func IsCommonToken(address string) bool {
	_, ok := commonTokens[strings.ToLower(address)]
	return ok
}

// fallbackTokenInfo returns the static record for allow-listed tokens and a
// placeholder for everything else.
func fallbackTokenInfo(address string) model.TokenInfo {
	if known, ok := commonTokens[strings.ToLower(address)]; ok {
		return known
	}
	return model.TokenInfo{
		Address:  address,
		Name:     unknownName,
		Symbol:   unknownSymbol,
		Decimals: unknownDecimals,
	}
}

// classifyPool decides common-token membership. token0 wins when both sides
// are allow-listed.
func classifyPool(pool, token0, token1 string, fee uint32) (model.PoolInfo, bool) {
	info := model.PoolInfo{
		Address: pool,
		Token0:  token0,
		Token1:  token1,
		Fee:     fee,
		FeeTier: FeeTier(fee),
	}
	switch {
	case IsCommonToken(token0):
		info.CommonTokenIndex = 0
		info.CommonToken = token0
		info.OtherToken = token1
	case IsCommonToken(token1):
		info.CommonTokenIndex = 1
		info.CommonToken = token1
		info.OtherToken = token0
	default:
		return model.PoolInfo{}, false
	}
	info.IsCommonPool = true
	return info, true
}
