package storage

import "volumeScope/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// DecodeErrorSink receives logs that failed to decode.
type DecodeErrorSink interface {
	PutDecodeErrors(rows []model.DecodeError) error
}
