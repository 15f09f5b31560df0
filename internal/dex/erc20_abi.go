package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens (MKR style) return bytes32 for name and symbol.
const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type erc20ABIs struct {
	str     abi.ABI
	bytes32 abi.ABI
}

var (
	erc20Parsed erc20ABIs
	erc20Once   sync.Once
	erc20ABIErr error
)

func erc20ABIInstance() (erc20ABIs, error) {
	erc20Once.Do(func() {
		erc20Parsed.str, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
		if erc20ABIErr != nil {
			return
		}
		erc20Parsed.bytes32, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20Parsed, erc20ABIErr
}
