package domain

import "time"

// ScanResult summarizes a single incremental scan of one target
type ScanResult struct {
	RunID     string
	Job       string
	FilePath  string
	OffsetKey string

	FromOffset int64 // Offset the scan resumed from
	ToOffset   int64 // Offset persisted after the scan

	LinesRead      uint64
	RecordsMatched uint64 // Records produced by the pattern filter
	RecordsEmitted uint64 // Records handed to the processor
	RecordsEarly   uint64 // Dropped: before window start
	RecordsBadTime uint64 // Dropped: log_time missing or unparsable

	// CutOff is true when the scan stopped at a record past the window end
	CutOff bool

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the wall time spent on the scan
func (r *ScanResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
