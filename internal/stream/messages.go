package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"volumeScope/internal/model"
)

const (
	methodSubscribe    = "eth_subscribe"
	methodSubscription = "eth_subscription"
)

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage covers subscription acks, errors and notifications.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	Params  *struct {
		Subscription string    `json:"subscription"`
		Result       logResult `json:"result"`
	} `json:"params,omitempty"`
}

type logResult struct {
	Address          string   `json:"address"`
	BlockHash        string   `json:"blockHash"`
	BlockNumber      string   `json:"blockNumber"`
	BlockTimestamp   string   `json:"blockTimestamp,omitempty"`
	Data             string   `json:"data"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
	Topics           []string `json:"topics"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
}

func subscribeRequest(id int, topic0 string) jsonRPCRequest {
	return jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  methodSubscribe,
		Params: []interface{}{
			"logs",
			map[string]interface{}{
				"topics": []string{topic0},
			},
		},
	}
}

func (r logResult) toLogRecord(chainID uint64, ingestedAt time.Time) (model.LogRecord, error) {
	blockNumber, err := parseQuantity(r.BlockNumber)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("blockNumber: %w", err)
	}
	logIndex, err := parseQuantity(r.LogIndex)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("logIndex: %w", err)
	}
	txIndex, err := parseQuantity(r.TransactionIndex)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("transactionIndex: %w", err)
	}
	timestamp, err := parseQuantity(r.BlockTimestamp)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("blockTimestamp: %w", err)
	}
	if r.Address == "" || len(r.Topics) == 0 {
		return model.LogRecord{}, fmt.Errorf("log without address or topics")
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		BlockHash:   r.BlockHash,
		TxHash:      r.TransactionHash,
		TxIndex:     txIndex,
		LogIndex:    logIndex,
		Address:     r.Address,
		Topics:      r.Topics,
		Data:        r.Data,
		Removed:     r.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// parseQuantity decodes a hex quantity; missing values decode as zero.
func parseQuantity(value string) (uint64, error) {
	if value == "" {
		return 0, nil
	}
	return hexutil.DecodeUint64(value)
}
