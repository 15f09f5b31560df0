package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"volumeScope/internal/model"
)

const maxLineBytes = 10 * 1024 * 1024

// JsonlStorage appends records to a JSONL file. The file is opened on the
// first write and kept open until Close.
type JsonlStorage struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string {
	return s.path
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]interface{}, 0, len(logs))
	for _, record := range logs {
		rows = append(rows, record)
	}
	return s.appendLines(rows)
}

// PutDecodeErrors appends decode failures as JSON lines.
func (s *JsonlStorage) PutDecodeErrors(errs []model.DecodeError) error {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]interface{}, 0, len(errs))
	for _, row := range errs {
		rows = append(rows, row)
	}
	return s.appendLines(rows)
}

func (s *JsonlStorage) appendLines(rows []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row: %w", err)
		}
		if _, err := s.writer.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		if err := s.writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// open must be called with s.mu held.
func (s *JsonlStorage) open() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// Close flushes and releases the file. A later write reopens it.
func (s *JsonlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil
	s.writer = nil
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	return closeErr
}

// ReadStats summarises a ReadLogRecords pass.
type ReadStats struct {
	Lines  int
	Failed int
}

// ReadLogRecords streams a JSONL file of log records into fn. Blank lines
// are skipped; unparsable lines are counted and reported through onError.
func ReadLogRecords(path string, fn func(model.LogRecord) error, onError func(line int, err error)) (ReadStats, error) {
	var stats ReadStats
	file, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			if onError != nil {
				onError(lineNo, err)
			}
			continue
		}
		if err := fn(record); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}
