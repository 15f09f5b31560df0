package dex

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSwapDecoderTopics(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	uniswap := crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24)"))
	pancake := crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24,uint128,uint128)"))

	if got := decoder.Topic0(KindUniswapV3Swap); got != uniswap {
		t.Fatalf("uniswap topic0 mismatch: %s", got.Hex())
	}
	if got := decoder.Topic0(KindPancakeV3Swap); got != pancake {
		t.Fatalf("pancake topic0 mismatch: %s", got.Hex())
	}
	if kind := decoder.Classify(strings.ToUpper(pancake.Hex()[2:])); kind != KindUnrecognized {
		t.Fatalf("expected unprefixed topic to be unrecognized, got %s", kind)
	}
	if kind := decoder.Classify(pancake.Hex()); kind != KindPancakeV3Swap {
		t.Fatalf("expected pancake kind, got %s", kind)
	}
	if kind := decoder.Classify(strings.ToLower(uniswap.Hex())); kind != KindUniswapV3Swap {
		t.Fatalf("expected uniswap kind, got %s", kind)
	}
	if kind := decoder.Classify(common.Hash{}.Hex()); kind != KindUnrecognized {
		t.Fatalf("expected unrecognized, got %s", kind)
	}
	if kind := decoder.Classify(""); kind != KindUnrecognized {
		t.Fatalf("expected unrecognized for empty topic, got %s", kind)
	}

	topics := decoder.Topic0s()
	if len(topics) != 2 || topics[0] != pancake || topics[1] != uniswap {
		t.Fatalf("unexpected subscription topics: %v", topics)
	}
	if KindPancakeV3Swap.Protocol() != "PancakeSwap V3" || KindUniswapV3Swap.Protocol() != "Uniswap V3" {
		t.Fatalf("unexpected protocol labels")
	}
}

func TestSwapDecoderUniswap(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	poolABI, err := UniswapV3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	topics := swapTopics(poolABI.Events["Swap"].ID, sender, recipient)
	swap, err := decoder.Decode(KindUniswapV3Swap, hexutil.Encode(data), topics)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("unexpected participants: %s %s", swap.Sender, swap.Recipient)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("unexpected amounts: %s %s", swap.Amount0, swap.Amount1)
	}
	if swap.SqrtPriceX96 != "123456789" || swap.Liquidity != "987654321" {
		t.Fatalf("unexpected price/liquidity: %s %s", swap.SqrtPriceX96, swap.Liquidity)
	}
	if swap.Tick != -15 {
		t.Fatalf("unexpected tick: %d", swap.Tick)
	}
	if swap.ProtocolFeesToken0 != "" || swap.ProtocolFeesToken1 != "" {
		t.Fatalf("uniswap swap should not carry protocol fees")
	}
}

func TestSwapDecoderPancake(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	poolABI, err := PancakeV3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	sender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	recipient := common.HexToAddress("0x5555555555555555555555555555555555555555")
	oneBNB := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		oneBNB,
		new(big.Int).Neg(big.NewInt(800_000_000)),
		big.NewInt(42),
		big.NewInt(1_000_000),
		big.NewInt(887000),
		big.NewInt(7),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	topics := swapTopics(poolABI.Events["Swap"].ID, sender, recipient)
	swap, err := decoder.Decode(KindPancakeV3Swap, hexutil.Encode(data), topics)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0 != oneBNB.String() || swap.Amount1 != "-800000000" {
		t.Fatalf("unexpected amounts: %s %s", swap.Amount0, swap.Amount1)
	}
	if swap.Tick != 887000 {
		t.Fatalf("unexpected tick: %d", swap.Tick)
	}
	if swap.ProtocolFeesToken0 != "7" || swap.ProtocolFeesToken1 != "0" {
		t.Fatalf("unexpected protocol fees: %s %s", swap.ProtocolFeesToken0, swap.ProtocolFeesToken1)
	}
}

func TestSwapDecoderMalformed(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	uniswapABI, err := UniswapV3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := uniswapABI.Events["Swap"]
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	valid, err := event.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(-1), big.NewInt(1), big.NewInt(1), big.NewInt(0))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	topics := swapTopics(event.ID, sender, recipient)

	cases := []struct {
		name   string
		kind   Kind
		data   string
		topics []string
	}{
		{name: "truncated data", kind: KindUniswapV3Swap, data: hexutil.Encode(valid[:64]), topics: topics},
		{name: "invalid hex", kind: KindUniswapV3Swap, data: "0xzz", topics: topics},
		{name: "missing topics", kind: KindUniswapV3Swap, data: hexutil.Encode(valid), topics: topics[:2]},
		{name: "no topics", kind: KindUniswapV3Swap, data: hexutil.Encode(valid), topics: nil},
		{name: "wrong kind", kind: KindPancakeV3Swap, data: hexutil.Encode(valid), topics: topics},
		{name: "bad topic hex", kind: KindUniswapV3Swap, data: hexutil.Encode(valid), topics: []string{topics[0], "0xnothex", topics[2]}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			swap, err := decoder.Decode(tc.kind, tc.data, tc.topics)
			if err == nil {
				t.Fatalf("expected error")
			}
			if swap != nil {
				t.Fatalf("expected no partial event, got %+v", swap)
			}
		})
	}

	if _, err := decoder.Decode(KindUnrecognized, hexutil.Encode(valid), topics); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}

func swapTopics(topic0 common.Hash, sender, recipient common.Address) []string {
	return []string{
		topic0.Hex(),
		common.BytesToHash(sender.Bytes()).Hex(),
		common.BytesToHash(recipient.Bytes()).Hex(),
	}
}
