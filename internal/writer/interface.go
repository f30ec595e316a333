package writer

import (
	"context"

	"github.com/SteelMorgan/logscan/internal/domain"
)

// Processor consumes the match records of a scan. The scan offset is only
// persisted after Flush returned nil.
type Processor interface {
	// Process handles one record; scan identifies the run it belongs to
	Process(ctx context.Context, scan *domain.ScanResult, record *domain.MatchRecord) error

	// Flush forces pending records out
	Flush(ctx context.Context) error

	// Close flushes pending records and releases resources
	Close() error
}

// BatchConfig configures batch behavior
type BatchConfig struct {
	MaxSize int // Maximum records per batch
}
