package dex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"volumeScope/internal/model"
)

// Kind identifies which protocol emitted a Swap log.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindPancakeV3Swap
	KindUniswapV3Swap
)

const (
	ProtocolPancakeV3 = "PancakeSwap V3"
	ProtocolUniswapV3 = "Uniswap V3"
)

// ErrUnrecognized is returned when a log does not match a known Swap signature.
var ErrUnrecognized = errors.New("unrecognized swap event")

func (k Kind) String() string {
	switch k {
	case KindPancakeV3Swap:
		return "pancake_v3_swap"
	case KindUniswapV3Swap:
		return "uniswap_v3_swap"
	default:
		return "unrecognized"
	}
}

// Protocol returns the display label of the emitting protocol.
func (k Kind) Protocol() string {
	switch k {
	case KindPancakeV3Swap:
		return ProtocolPancakeV3
	case KindUniswapV3Swap:
		return ProtocolUniswapV3
	default:
		return ""
	}
}

// SwapDecoder decodes PancakeSwap V3 and Uniswap V3 Swap logs.
type SwapDecoder struct {
	events map[Kind]abi.Event
	topics map[string]Kind
}

// NewSwapDecoder builds a decoder from the canonical event ABIs.
func NewSwapDecoder() (*SwapDecoder, error) {
	uniswapABI, err := UniswapV3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse uniswap abi: %w", err)
	}
	pancakeABI, err := PancakeV3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pancake abi: %w", err)
	}

	events := map[Kind]abi.Event{
		KindPancakeV3Swap: pancakeABI.Events["Swap"],
		KindUniswapV3Swap: uniswapABI.Events["Swap"],
	}
	topics := make(map[string]Kind, len(events))
	for kind, event := range events {
		topics[strings.ToLower(event.ID.Hex())] = kind
	}

	return &SwapDecoder{events: events, topics: topics}, nil
}

// Kinds returns the recognized kinds in subscription order.
func (d *SwapDecoder) Kinds() []Kind {
	return []Kind{KindPancakeV3Swap, KindUniswapV3Swap}
}

// Topic0 returns the signature hash for a kind.
func (d *SwapDecoder) Topic0(kind Kind) common.Hash {
	return d.events[kind].ID
}

// Topic0s returns the signature hashes of every recognized kind.
func (d *SwapDecoder) Topic0s() []common.Hash {
	kinds := d.Kinds()
	out := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, d.Topic0(kind))
	}
	return out
}

// Classify maps a topic0 to its Kind.
func (d *SwapDecoder) Classify(topic0 string) Kind {
	if topic0 == "" {
		return KindUnrecognized
	}
	kind, ok := d.topics[strings.ToLower(topic0)]
	if !ok {
		return KindUnrecognized
	}
	return kind
}

// Decode converts raw log data and topics into a SwapEvent. It never returns
// a partially filled event.
func (d *SwapDecoder) Decode(kind Kind, data string, topics []string) (*model.SwapEvent, error) {
	event, ok := d.events[kind]
	if !ok {
		return nil, ErrUnrecognized
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	if !strings.EqualFold(topics[0], event.ID.Hex()) {
		return nil, fmt.Errorf("topic0 %s does not match %s", topics[0], kind)
	}

	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return nil, err
	}
	expected := 5
	if kind == KindPancakeV3Swap {
		expected = 7
	}
	if len(values) != expected {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]string, 0, 4)
	for _, value := range values[:4] {
		parsed, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		ints = append(ints, parsed.String())
	}

	tickInt, err := asBigInt(values[4])
	if err != nil {
		return nil, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, err
	}

	swap := &model.SwapEvent{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Liquidity:    ints[3],
		Tick:         tick,
	}

	if kind == KindPancakeV3Swap {
		fee0, err := asBigInt(values[5])
		if err != nil {
			return nil, err
		}
		fee1, err := asBigInt(values[6])
		if err != nil {
			return nil, err
		}
		swap.ProtocolFeesToken0 = fee0.String()
		swap.ProtocolFeesToken1 = fee1.String()
	}

	return swap, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
