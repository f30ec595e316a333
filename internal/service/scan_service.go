package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/logscan/internal/config"
	"github.com/SteelMorgan/logscan/internal/domain"
	"github.com/SteelMorgan/logscan/internal/logreader"
	"github.com/SteelMorgan/logscan/internal/observability"
	"github.com/SteelMorgan/logscan/internal/offset"
	"github.com/SteelMorgan/logscan/internal/writer"
)

// ScanService runs scan jobs: load offset, scan, filter, process, save offset.
// Invocations sharing one offset store must be serialized by the caller.
type ScanService struct {
	store     offset.Store
	processor writer.Processor
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScanService creates a scan service
func NewScanService(store offset.Store, processor writer.Processor, logger zerolog.Logger) (*ScanService, error) {
	if store == nil {
		return nil, fmt.Errorf("offset store is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	return &ScanService{
		store:     store,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// RunJob scans one job's target from its stored offset. The new offset is
// persisted only after every record was processed and the processor flushed.
// On error the stored offset is left unchanged and the next run rescans.
func (s *ScanService) RunJob(ctx context.Context, job config.Job) (result *domain.ScanResult, err error) {
	ctx, span := observability.StartSpan(ctx, "scan.job",
		attribute.String("job", job.Name),
		attribute.String("file_path", job.Path),
	)
	defer func() { observability.EndSpan(span, err) }()

	result = &domain.ScanResult{
		RunID:     uuid.New().String(),
		Job:       job.Name,
		FilePath:  job.Path,
		OffsetKey: job.OffsetKey,
		StartTime: s.now(),
	}
	defer func() { result.EndTime = s.now() }()

	logger := s.logger.With().
		Str("run_id", result.RunID).
		Str("job", job.Name).
		Logger()

	from, err := s.store.Get(ctx, job.OffsetKey)
	if err != nil {
		return result, fmt.Errorf("failed to load offset for %s: %w", job.OffsetKey, err)
	}
	result.FromOffset = from
	result.ToOffset = from

	scanner, err := logreader.Open(job.Path, from)
	if err != nil {
		return result, err
	}
	defer scanner.Close()

	patterns := logreader.NewPatternFilter(scanner, job.CompiledPatterns())
	window := job.Window(result.StartTime)
	records, err := logreader.NewTimeWindowFilter(patterns, window, logger)
	if err != nil {
		return result, err
	}

	logger.Debug().
		Str("file", job.Path).
		Int64("from_offset", from).
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Msg("Scan started")

	for records.Next() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.processor.Process(ctx, result, records.Record()); err != nil {
			return result, fmt.Errorf("failed to process record at offset %d: %w", records.Record().Offset, err)
		}
	}

	result.LinesRead = scanner.LinesRead()
	result.RecordsMatched = patterns.Matched()
	result.RecordsEmitted = records.Emitted()
	result.RecordsEarly = records.DroppedEarly()
	result.RecordsBadTime = records.DroppedBadTime()
	result.CutOff = records.StopReason() == logreader.StopCutoff

	if err := records.Err(); err != nil {
		return result, fmt.Errorf("scan of %s failed: %w", job.Path, err)
	}

	if err := s.processor.Flush(ctx); err != nil {
		return result, fmt.Errorf("failed to flush records: %w", err)
	}

	to := records.Offset()
	if err := s.store.Set(ctx, job.OffsetKey, to); err != nil {
		return result, err
	}
	if err := s.store.Save(ctx); err != nil {
		return result, fmt.Errorf("failed to save offset: %w", err)
	}
	result.ToOffset = to

	span.SetAttributes(
		attribute.Int64("from_offset", result.FromOffset),
		attribute.Int64("to_offset", result.ToOffset),
		attribute.Int64("records", int64(result.RecordsEmitted)),
		attribute.Bool("cut_off", result.CutOff),
	)

	logger.Info().
		Int64("from_offset", result.FromOffset).
		Int64("to_offset", result.ToOffset).
		Uint64("lines", result.LinesRead).
		Uint64("matched", result.RecordsMatched).
		Uint64("emitted", result.RecordsEmitted).
		Uint64("early", result.RecordsEarly).
		Uint64("bad_time", result.RecordsBadTime).
		Bool("cut_off", result.CutOff).
		Dur("duration", s.now().Sub(result.StartTime)).
		Msg("Scan completed")

	return result, nil
}

// RunAll runs jobs in order. A failing job does not stop the others;
// all failures are returned joined.
func (s *ScanService) RunAll(ctx context.Context, jobs []config.Job) ([]*domain.ScanResult, error) {
	results := make([]*domain.ScanResult, 0, len(jobs))
	var errs []error

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.RunJob(ctx, job)
		results = append(results, result)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("job", job.Name).
				Msg("Scan job failed")
			errs = append(errs, fmt.Errorf("job %s: %w", job.Name, err))
		}
	}

	return results, errors.Join(errs...)
}

// Watch runs all jobs immediately and then every interval until ctx is done.
// Job failures are logged and retried on the next tick.
func (s *ScanService) Watch(ctx context.Context, jobs []config.Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	s.logger.Info().
		Int("jobs", len(jobs)).
		Dur("interval", interval).
		Msg("Starting scan loop")

	s.RunAll(ctx, jobs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunAll(ctx, jobs)
		case <-ctx.Done():
			s.logger.Info().Msg("Scan loop stopped")
			return nil
		}
	}
}
