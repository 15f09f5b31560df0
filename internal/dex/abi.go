package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const uniswapV3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

// PancakeSwap V3 appends the protocol fee split to the Swap event.
const pancakeV3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "protocolFeesToken0", "type": "uint128"},
      {"indexed": false, "internalType": "uint128", "name": "protocolFeesToken1", "type": "uint128"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

var (
	uniswapV3PoolABI     abi.ABI
	uniswapV3PoolABIOnce sync.Once
	uniswapV3PoolABIErr  error

	pancakeV3PoolABI     abi.ABI
	pancakeV3PoolABIOnce sync.Once
	pancakeV3PoolABIErr  error
)

// UniswapV3PoolABI returns the parsed Uniswap V3 pool ABI (Swap event plus
// the token0/token1/fee views shared by both protocols).
func UniswapV3PoolABI() (abi.ABI, error) {
	uniswapV3PoolABIOnce.Do(func() {
		uniswapV3PoolABI, uniswapV3PoolABIErr = abi.JSON(strings.NewReader(uniswapV3PoolABIJSON))
	})
	return uniswapV3PoolABI, uniswapV3PoolABIErr
}

// PancakeV3PoolABI returns the parsed PancakeSwap V3 Swap event ABI.
func PancakeV3PoolABI() (abi.ABI, error) {
	pancakeV3PoolABIOnce.Do(func() {
		pancakeV3PoolABI, pancakeV3PoolABIErr = abi.JSON(strings.NewReader(pancakeV3PoolABIJSON))
	})
	return pancakeV3PoolABI, pancakeV3PoolABIErr
}
