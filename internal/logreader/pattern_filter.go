package logreader

import (
	"fmt"
	"regexp"

	"github.com/SteelMorgan/logscan/internal/domain"
)

// LogTimeGroup is the named capture group the time window filter reads
const LogTimeGroup = "log_time"

// Pattern is a compiled line pattern. Patterns are anchored at the start of
// the line; use a leading ".*" to match anywhere.
type Pattern struct {
	ID   string
	Expr string
	re   *regexp.Regexp
}

// CompilePattern compiles expr. An empty id defaults to the expression itself.
func CompilePattern(id, expr string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return Pattern{}, fmt.Errorf("failed to compile pattern %q: %w", expr, err)
	}
	if id == "" {
		id = expr
	}
	return Pattern{ID: id, Expr: expr, re: re}, nil
}

// MustCompilePattern is like CompilePattern but panics on error
func MustCompilePattern(id, expr string) Pattern {
	p, err := CompilePattern(id, expr)
	if err != nil {
		panic(err)
	}
	return p
}

// HasGroup reports whether the pattern declares the named group
func (p Pattern) HasGroup(name string) bool {
	return p.re != nil && p.re.SubexpIndex(name) >= 0
}

// match returns nil when text does not match
func (p Pattern) match(line *Line) *domain.MatchRecord {
	sub := p.re.FindStringSubmatch(line.Text)
	if sub == nil {
		return nil
	}

	groups := make(map[string]string)
	for i, name := range p.re.SubexpNames() {
		if name != "" && i < len(sub) {
			groups[name] = sub[i]
		}
	}

	return &domain.MatchRecord{
		PatternID:  p.ID,
		RawLine:    line.Text,
		Groups:     groups,
		Submatches: sub,
		Offset:     line.Offset,
		Size:       line.Size,
	}
}

// PatternFilter tests every pattern, in order, against every line and emits
// one record per matching pattern
type PatternFilter struct {
	source   LineSource
	patterns []Pattern

	line    *Line // Line the queued records came from
	queue   []*domain.MatchRecord
	current *domain.MatchRecord

	matched uint64
}

// NewPatternFilter creates a filter over source
func NewPatternFilter(source LineSource, patterns []Pattern) *PatternFilter {
	return &PatternFilter{
		source:   source,
		patterns: patterns,
	}
}

// Next advances to the next record
func (f *PatternFilter) Next() bool {
	for len(f.queue) == 0 {
		if !f.source.Next() {
			f.current = nil
			f.line = nil
			return false
		}
		f.line = f.source.Line()
		f.queue = f.matchLine(f.line)
	}

	f.current = f.queue[0]
	f.queue = f.queue[1:]
	f.matched++
	return true
}

// Record returns the record produced by the last successful Next
func (f *PatternFilter) Record() *domain.MatchRecord {
	return f.current
}

// Err returns the underlying scanner error
func (f *PatternFilter) Err() error {
	return f.source.Err()
}

// Unread pushes the line record originated from back onto the scanner.
// Records still queued for that line are discarded.
func (f *PatternFilter) Unread(record *domain.MatchRecord) error {
	if record == nil || f.line == nil || record.Offset != f.line.Offset {
		return ErrInvalidUnread
	}
	if err := f.source.Unread(f.line); err != nil {
		return err
	}
	f.queue = nil
	f.current = nil
	f.line = nil
	return nil
}

// Offset returns the scanner offset
func (f *PatternFilter) Offset() int64 {
	return f.source.Offset()
}

// Matched returns the number of records produced so far
func (f *PatternFilter) Matched() uint64 {
	return f.matched
}

func (f *PatternFilter) matchLine(line *Line) []*domain.MatchRecord {
	var records []*domain.MatchRecord
	for _, p := range f.patterns {
		if rec := p.match(line); rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

var _ RecordSource = (*PatternFilter)(nil)
