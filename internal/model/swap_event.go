package model

// SwapEvent is the decoded V3 Swap payload shared by Uniswap and PancakeSwap pools.
// Integer fields are kept as base-10 strings in token-native units.
type SwapEvent struct {
	Sender             string `json:"sender"`
	Recipient          string `json:"recipient"`
	Amount0            string `json:"amount0"`
	Amount1            string `json:"amount1"`
	SqrtPriceX96       string `json:"sqrt_price_x96"`
	Liquidity          string `json:"liquidity"`
	Tick               int32  `json:"tick"`
	ProtocolFeesToken0 string `json:"protocol_fees_token0,omitempty"`
	ProtocolFeesToken1 string `json:"protocol_fees_token1,omitempty"`
}
