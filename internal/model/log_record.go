package model

import "time"

// LogRecord is the normalized representation of a chain log. Live stream
// notifications, backfilled logs and replay input all use it.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the event signature topic, or "" when the log has none.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// EventTime returns the record timestamp, falling back to now when unset.
func (lr LogRecord) EventTime(now time.Time) time.Time {
	if lr.Timestamp == 0 {
		return now
	}
	return time.Unix(int64(lr.Timestamp), 0)
}
