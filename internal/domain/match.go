package domain

import "time"

// MatchRecord is one pattern hit on one log line.
// A line matching several patterns produces several records.
type MatchRecord struct {
	PatternID string
	RawLine   string

	// Groups holds named captures; Submatches holds all captures in order
	// (index 0 is the whole match).
	Groups     map[string]string
	Submatches []string

	// Position of the originating line in the scanned file
	Offset int64
	Size   int

	// LogTime is set only when the record passed a time window check
	LogTime time.Time
}

// Group returns a named capture or "" when the pattern has no such group
func (r *MatchRecord) Group(name string) string {
	if r.Groups == nil {
		return ""
	}
	return r.Groups[name]
}
