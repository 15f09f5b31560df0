package model

// PoolInfo captures immutable pool metadata plus its common-token classification.
type PoolInfo struct {
	Address          string `json:"address"`
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	Fee              uint32 `json:"fee"`
	FeeTier          string `json:"fee_tier"`
	IsCommonPool     bool   `json:"is_common_pool"`
	CommonToken      string `json:"common_token"`
	OtherToken       string `json:"other_token"`
	CommonTokenIndex int    `json:"common_token_index"`
}
