package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/logscan/internal/clickhouse"
	"github.com/SteelMorgan/logscan/internal/config"
	"github.com/SteelMorgan/logscan/internal/observability"
	"github.com/SteelMorgan/logscan/internal/offset"
	"github.com/SteelMorgan/logscan/internal/rotating"
	"github.com/SteelMorgan/logscan/internal/writer"
)

// openStore opens the configured offset store backend
func openStore(cfg *config.Config) (offset.Store, error) {
	logger := observability.Component("offset")
	switch cfg.OffsetBackend {
	case config.OffsetBackendBolt:
		return offset.NewBoltStore(cfg.OffsetFile, logger)
	default:
		return offset.NewJSONStore(cfg.OffsetFile, logger), nil
	}
}

// openProcessor builds the configured record sink. The returned close
// function flushes the sink and releases its resources.
func openProcessor(ctx context.Context, cfg *config.Config, stdout io.Writer) (writer.Processor, func() error, error) {
	switch cfg.Output {
	case config.OutputFile:
		out := rotating.New(cfg.OutputFile, rotating.WithLogger(observability.Component("output")))
		w := writer.NewNDJSONFile(out)
		return w, w.Close, nil

	case config.OutputClickHouse:
		client, err := clickhouse.NewClientFromConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		table := fmt.Sprintf("%s.%s", cfg.ClickHouseDB, cfg.ClickHouseTable)
		w := writer.NewClickHouseWriter(
			client.Conn(),
			table,
			writer.BatchConfig{MaxSize: cfg.ClickHouseBatchSize},
			client.RetryConfig(),
		)
		if err := w.EnsureTable(ctx, client); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		closeFn := func() error {
			flushErr := w.Close()
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close ClickHouse connection")
			}
			return flushErr
		}
		return w, closeFn, nil

	default:
		w := writer.NewNDJSONWriter(stdout)
		return w, w.Close, nil
	}
}
