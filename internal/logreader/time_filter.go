package logreader

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/rs/zerolog"

	"github.com/SteelMorgan/logscan/internal/domain"
)

// TimeWindow bounds accepted log times. Zero Start or End means unbounded.
// An empty Layout disables time filtering entirely.
type TimeWindow struct {
	Start  time.Time
	End    time.Time
	Layout string // Go layout or strftime layout ("%Y-%m-%d %H:%M:%S")

	// Location used for log times without a zone (default: time.Local)
	Location *time.Location
}

// Enabled reports whether records are checked against the window
func (w TimeWindow) Enabled() bool {
	return w.Layout != ""
}

// GoLayout converts a strftime layout to a Go layout.
// Layouts without '%' are returned unchanged.
func GoLayout(layout string) (string, error) {
	if !strings.Contains(layout, "%") {
		return layout, nil
	}
	converted, err := strftime.Layout(layout)
	if err != nil {
		return "", fmt.Errorf("unsupported time layout %q: %w", layout, err)
	}
	return converted, nil
}

// TimeWindowFilter drops records outside the window. On the first record past
// End it pushes the originating line back and ends the sequence, so the
// scanner offset points at the first byte of that line.
type TimeWindowFilter struct {
	upstream *PatternFilter
	window   TimeWindow
	layout   string
	loc      *time.Location
	logger   zerolog.Logger

	current *domain.MatchRecord
	stop    StopReason
	err     error

	emitted uint64
	early   uint64
	badTime uint64
}

// NewTimeWindowFilter wraps upstream
func NewTimeWindowFilter(upstream *PatternFilter, window TimeWindow, logger zerolog.Logger) (*TimeWindowFilter, error) {
	layout, err := GoLayout(window.Layout)
	if err != nil {
		return nil, err
	}

	loc := window.Location
	if loc == nil {
		loc = time.Local
	}

	return &TimeWindowFilter{
		upstream: upstream,
		window:   window,
		layout:   layout,
		loc:      loc,
		logger:   logger,
	}, nil
}

// Next advances to the next accepted record
func (f *TimeWindowFilter) Next() bool {
	if f.stop != StopNone {
		return false
	}

	for f.upstream.Next() {
		rec := f.upstream.Record()

		if !f.window.Enabled() {
			return f.emit(rec)
		}

		raw := rec.Group(LogTimeGroup)
		logTime, err := time.ParseInLocation(f.layout, raw, f.loc)
		if err != nil {
			f.badTime++
			f.logger.Debug().
				Str("pattern", rec.PatternID).
				Int64("offset", rec.Offset).
				Str("log_time", raw).
				Msg("Skipping record with unparsable log time")
			continue
		}

		if !f.window.Start.IsZero() && logTime.Before(f.window.Start) {
			f.early++
			continue
		}

		if !f.window.End.IsZero() && logTime.After(f.window.End) {
			if err := f.upstream.Unread(rec); err != nil {
				return f.finish(StopError, fmt.Errorf("failed to push back line at offset %d: %w", rec.Offset, err))
			}
			f.logger.Debug().
				Int64("offset", rec.Offset).
				Time("log_time", logTime).
				Time("end", f.window.End).
				Msg("Reached time window end, line pushed back")
			return f.finish(StopCutoff, nil)
		}

		rec.LogTime = logTime
		return f.emit(rec)
	}

	if err := f.upstream.Err(); err != nil {
		return f.finish(StopError, err)
	}
	return f.finish(StopEOF, nil)
}

// Record returns the record produced by the last successful Next
func (f *TimeWindowFilter) Record() *domain.MatchRecord {
	return f.current
}

// Err returns the error that ended the sequence, if any
func (f *TimeWindowFilter) Err() error {
	return f.err
}

// StopReason tells whether the sequence ended at EOF, at the window end or on error
func (f *TimeWindowFilter) StopReason() StopReason {
	return f.stop
}

// Offset returns the scanner offset; after a cutoff it points at the pushed back line
func (f *TimeWindowFilter) Offset() int64 {
	return f.upstream.Offset()
}

// Emitted returns the number of records produced
func (f *TimeWindowFilter) Emitted() uint64 { return f.emitted }

// DroppedEarly returns the number of records dropped for being before Start
func (f *TimeWindowFilter) DroppedEarly() uint64 { return f.early }

// DroppedBadTime returns the number of records dropped for a missing or unparsable log time
func (f *TimeWindowFilter) DroppedBadTime() uint64 { return f.badTime }

func (f *TimeWindowFilter) emit(rec *domain.MatchRecord) bool {
	f.current = rec
	f.emitted++
	return true
}

func (f *TimeWindowFilter) finish(reason StopReason, err error) bool {
	f.stop = reason
	f.err = err
	f.current = nil
	return false
}

var _ RecordSource = (*TimeWindowFilter)(nil)
