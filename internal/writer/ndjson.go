package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/SteelMorgan/logscan/internal/domain"
	"github.com/SteelMorgan/logscan/internal/normalizer"
)

// ndjsonRecord is the wire shape of one output line
type ndjsonRecord struct {
	RunID       string            `json:"run_id"`
	Job         string            `json:"job"`
	File        string            `json:"file"`
	Offset      int64             `json:"offset"`
	PatternID   string            `json:"pattern"`
	LogTime     *time.Time        `json:"log_time,omitempty"`
	Line        string            `json:"line"`
	Fingerprint string            `json:"fingerprint"`
	Groups      map[string]string `json:"groups,omitempty"`
}

// NDJSONWriter writes one JSON object per record. Each record is a single
// Write call, so several processes can share a rotating output file.
type NDJSONWriter struct {
	mu         sync.Mutex
	out        io.Writer
	closer     io.Closer
	normalizer *normalizer.MessageNormalizer
}

// NewNDJSONWriter writes to out and never closes it
func NewNDJSONWriter(out io.Writer) *NDJSONWriter {
	return &NDJSONWriter{out: out, normalizer: normalizer.NewMessageNormalizer()}
}

// NewNDJSONFile writes to out and closes it on Close
func NewNDJSONFile(out io.WriteCloser) *NDJSONWriter {
	return &NDJSONWriter{out: out, closer: out, normalizer: normalizer.NewMessageNormalizer()}
}

// Process encodes the record and appends it as a line
func (w *NDJSONWriter) Process(_ context.Context, scan *domain.ScanResult, record *domain.MatchRecord) error {
	rec := ndjsonRecord{
		RunID:       scan.RunID,
		Job:         scan.Job,
		File:        scan.FilePath,
		Offset:      record.Offset,
		PatternID:   record.PatternID,
		Line:        record.RawLine,
		Fingerprint: w.normalizer.Normalize(record.RawLine),
		Groups:      record.Groups,
	}
	if !record.LogTime.IsZero() {
		logTime := record.LogTime
		rec.LogTime = &logTime
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ndjson output: marshal: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("ndjson output: write: %w", err)
	}
	return nil
}

// Flush is a no-op; records are written unbuffered
func (w *NDJSONWriter) Flush(_ context.Context) error {
	return nil
}

// Close closes the underlying writer if it is owned
func (w *NDJSONWriter) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

var _ Processor = (*NDJSONWriter)(nil)
