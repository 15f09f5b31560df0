package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddresses validates hex addresses for an eth_getLogs filter. Blank
// entries and repeats (case-insensitive) are dropped; order is preserved.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	seen := make(map[common.Address]struct{}, len(inputs))
	addresses := make([]common.Address, 0, len(inputs))
	for i, raw := range inputs {
		input := strings.TrimSpace(raw)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("address %d: invalid hex address %q", i, input)
		}
		address := common.HexToAddress(input)
		if _, dup := seen[address]; dup {
			continue
		}
		seen[address] = struct{}{}
		addresses = append(addresses, address)
	}
	return addresses, nil
}
