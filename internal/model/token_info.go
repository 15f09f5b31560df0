package model

import "time"

// TokenInfo captures ERC20 metadata.
type TokenInfo struct {
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	Decimals    uint8     `json:"decimals"`
	LastUpdated time.Time `json:"last_updated"`
}
