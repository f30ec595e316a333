package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/logscan/internal/domain"
	"github.com/SteelMorgan/logscan/internal/normalizer"
	"github.com/SteelMorgan/logscan/internal/retry"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime ensures the time value is within ClickHouse DateTime64 range
// Returns the input time if valid, or minClickHouseDateTime if out of range or zero
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// matchRow is a record together with the scan it came from
type matchRow struct {
	hash        string
	runID       string
	job         string
	filePath    string
	fingerprint string
	record      domain.MatchRecord
	scannedAt   time.Time
}

// ClickHouseWriter writes match records to ClickHouse in batches
type ClickHouseWriter struct {
	conn     clickhouse.Conn
	table    string
	cfg      BatchConfig
	retryCfg retry.Config

	batch      []matchRow
	normalizer *normalizer.MessageNormalizer
	now        func() time.Time
}

// NewClickHouseWriter creates a new ClickHouse batch writer
func NewClickHouseWriter(conn clickhouse.Conn, table string, cfg BatchConfig, retryCfg retry.Config) *ClickHouseWriter {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	return &ClickHouseWriter{
		conn:       conn,
		table:      table,
		cfg:        cfg,
		retryCfg:   retryCfg,
		batch:      make([]matchRow, 0, cfg.MaxSize),
		normalizer: normalizer.NewMessageNormalizer(),
		now:        time.Now,
	}
}

// Execer runs DDL statements, retrying as it sees fit
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// EnsureTable creates the target table through db if it does not exist
func (w *ClickHouseWriter) EnsureTable(ctx context.Context, db Execer) error {
	return db.Exec(ctx, w.createTableQuery())
}

func (w *ClickHouseWriter) createTableQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	record_hash String,
	run_id String,
	job LowCardinality(String),
	file_path String,
	offset UInt64,
	pattern_id LowCardinality(String),
	log_time DateTime64(3),
	raw_line String,
	fingerprint String,
	groups Map(String, String),
	scanned_at DateTime64(3)
) ENGINE = ReplacingMergeTree(scanned_at)
ORDER BY (file_path, offset, pattern_id, record_hash)`, w.table)
}

// Process adds a record to the batch and flushes when the batch is full
func (w *ClickHouseWriter) Process(ctx context.Context, scan *domain.ScanResult, record *domain.MatchRecord) error {
	w.batch = append(w.batch, matchRow{
		hash:        calculateRecordHash(scan.FilePath, record),
		runID:       scan.RunID,
		job:         scan.Job,
		filePath:    scan.FilePath,
		fingerprint: w.normalizer.Normalize(record.RawLine),
		record:      *record,
		scannedAt:   w.now(),
	})

	if len(w.batch) >= w.cfg.MaxSize {
		return w.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered records
func (w *ClickHouseWriter) Pending() int {
	return len(w.batch)
}

// Flush sends all buffered records. On failure the batch is kept.
func (w *ClickHouseWriter) Flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}

	startTime := time.Now()
	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.send(ctx, w.batch)
	})
	if err != nil {
		return fmt.Errorf("failed to write %d records to %s: %w", len(w.batch), w.table, err)
	}

	log.Debug().
		Int("records", len(w.batch)).
		Str("table", w.table).
		Dur("duration", time.Since(startTime)).
		Msg("Match batch written to ClickHouse")

	w.batch = w.batch[:0]
	return nil
}

func (w *ClickHouseWriter) send(ctx context.Context, rows []matchRow) error {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		groups := row.record.Groups
		if groups == nil {
			groups = map[string]string{}
		}
		err := batch.Append(
			row.hash,
			row.runID,
			row.job,
			row.filePath,
			uint64(row.record.Offset),
			row.record.PatternID,
			ensureValidDateTime(row.record.LogTime),
			row.record.RawLine,
			row.fingerprint,
			groups,
			row.scannedAt,
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close flushes the remaining records
func (w *ClickHouseWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return w.Flush(ctx)
}

var _ Processor = (*ClickHouseWriter)(nil)
