package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/logscan/internal/config"
	"github.com/SteelMorgan/logscan/internal/domain"
	"github.com/SteelMorgan/logscan/internal/observability"
	"github.com/SteelMorgan/logscan/internal/service"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var summary bool

	cmd := &cobra.Command{
		Use:   "scan [job...]",
		Short: "Scan configured jobs from their saved offsets",
		Long:  "Scan runs every job in the jobs file, or only the named ones. Matched records go to OUTPUT. With --interval the scan repeats until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			jobs, err := config.LoadJobs(cfg.JobsFile)
			if err != nil {
				return err
			}
			jobs, err = selectJobs(jobs, args)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			unlock, err := acquireLock(cfg.LockFile)
			if err != nil {
				return err
			}
			defer unlock()

			shutdownTracer, err := observability.InitTracer(runCtx, observability.TracerConfig{
				ServiceName:    "logscan",
				ServiceVersion: version,
				Endpoint:       cfg.TracingEndpoint,
				Protocol:       cfg.TracingProtocol,
				Enabled:        cfg.TracingEnabled,
				Jobs:           jobNames(jobs),
				RunMode:        runMode(interval),
				Output:         cfg.Output,
			})
			if err != nil {
				log.Error().Err(err).Msg("Failed to initialize tracer")
			} else {
				defer shutdownTracer(context.Background())
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			processor, closeProcessor, err := openProcessor(runCtx, cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if err := closeProcessor(); err != nil {
					log.Error().Err(err).Msg("Failed to close output")
				}
			}()

			svc, err := service.NewScanService(store, processor, observability.Component("scan"))
			if err != nil {
				return err
			}

			if interval > 0 {
				return svc.Watch(runCtx, jobs, interval)
			}

			results, err := svc.RunAll(runCtx, jobs)
			if summary {
				printResults(cmd.ErrOrStderr(), results)
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the scan at this interval until interrupted")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a per-job summary table to stderr")

	return cmd
}

// selectJobs keeps the named jobs in the given order; no names keeps all
func selectJobs(jobs []config.Job, names []string) ([]config.Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}

	byName := make(map[string]config.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = job
	}

	selected := make([]config.Job, 0, len(names))
	for _, name := range names {
		job, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		selected = append(selected, job)
	}
	return selected, nil
}

func jobNames(jobs []config.Job) []string {
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name)
	}
	return names
}

func runMode(interval time.Duration) string {
	if interval > 0 {
		return observability.RunModeInterval
	}
	return observability.RunModeOnce
}

// acquireLock takes the LOCK_FILE lock without waiting. An empty path disables locking.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another scan is running (lock %s)", path)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("lock", path).Msg("Failed to release lock")
		}
	}, nil
}

func printResults(out io.Writer, results []*domain.ScanResult) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		cutoff := ""
		if r.CutOff {
			cutoff = "yes"
		}
		rows = append(rows, []string{
			r.Job,
			strconv.FormatInt(r.FromOffset, 10),
			strconv.FormatInt(r.ToOffset, 10),
			strconv.FormatUint(r.LinesRead, 10),
			strconv.FormatUint(r.RecordsEmitted, 10),
			strconv.FormatUint(r.RecordsEarly+r.RecordsBadTime, 10),
			cutoff,
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Job", "From", "To", "Lines", "Records", "Dropped", "Cutoff", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight},
	))
}
