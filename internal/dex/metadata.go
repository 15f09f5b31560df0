package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"volumeScope/internal/model"
)

// ContractCaller performs read-only eth_call requests. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type poolFields struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// fetchPoolFields reads token0, token1 and fee concurrently.
func fetchPoolFields(ctx context.Context, caller ContractCaller, pool common.Address) (poolFields, error) {
	if caller == nil {
		return poolFields{}, fmt.Errorf("contract caller is nil")
	}
	poolABI, err := UniswapV3PoolABI()
	if err != nil {
		return poolFields{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var out poolFields
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, caller, pool, poolABI, "token0")
		if err != nil {
			return err
		}
		out.token0, err = asAddress(values[0])
		if err != nil {
			return fmt.Errorf("token0: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := callMethod(gctx, caller, pool, poolABI, "token1")
		if err != nil {
			return err
		}
		out.token1, err = asAddress(values[0])
		if err != nil {
			return fmt.Errorf("token1: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := callMethod(gctx, caller, pool, poolABI, "fee")
		if err != nil {
			return err
		}
		feeInt, err := asBigInt(values[0])
		if err != nil {
			return fmt.Errorf("fee: %w", err)
		}
		out.fee = uint32(feeInt.Uint64())
		return nil
	})
	if err := g.Wait(); err != nil {
		return poolFields{}, err
	}
	return out, nil
}

// fetchTokenInfo loads ERC20 name, symbol and decimals concurrently. Name and
// symbol accept both string and bytes32 return encodings.
func fetchTokenInfo(ctx context.Context, caller ContractCaller, token common.Address) (model.TokenInfo, error) {
	info := model.TokenInfo{Address: token.Hex()}
	if caller == nil {
		return info, fmt.Errorf("contract caller is nil")
	}
	parsed, err := erc20ABIInstance()
	if err != nil {
		return info, fmt.Errorf("parse erc20 abi: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, caller, token, parsed.str, "decimals")
		if err != nil {
			return err
		}
		info.Decimals, err = asUint8(values[0])
		return err
	})
	g.Go(func() error {
		symbol, err := callStringMethod(gctx, caller, token, parsed, "symbol")
		if err != nil {
			return err
		}
		info.Symbol = symbol
		return nil
	})
	g.Go(func() error {
		name, err := callStringMethod(gctx, caller, token, parsed, "name")
		if err != nil {
			return err
		}
		info.Name = name
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.TokenInfo{Address: token.Hex()}, err
	}
	return info, nil
}

func callRaw(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string) ([]byte, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return resp, nil
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	resp, err := callRaw(ctx, caller, to, parsed, method)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// callStringMethod issues a single call and tries the string ABI before bytes32.
func callStringMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed erc20ABIs, method string) (string, error) {
	resp, err := callRaw(ctx, caller, to, parsed.str, method)
	if err != nil {
		return "", err
	}
	if values, err := parsed.str.Unpack(method, resp); err == nil && len(values) > 0 {
		if text, ok := values[0].(string); ok {
			return text, nil
		}
	}
	values, err := parsed.bytes32.Unpack(method, resp)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	text, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("unpack %s: unsupported type %T", method, values[0])
	}
	return text, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
