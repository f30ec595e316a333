package logreader

import (
	"errors"

	"github.com/SteelMorgan/logscan/internal/domain"
)

var (
	// ErrInvalidUnread is returned when Unread is called for anything other
	// than the line most recently produced by the scanner
	ErrInvalidUnread = errors.New("unread: line is not the last produced line")

	// ErrNegativeOffset is returned when a scanner is opened at an offset below zero
	ErrNegativeOffset = errors.New("offset must not be negative")
)

// LineSource produces a lazy, finite, single-pass sequence of lines.
// Usage follows bufio.Scanner: call Next until it returns false, then check Err.
type LineSource interface {
	// Next advances to the next line. Returns false at end of file or on error.
	Next() bool

	// Line returns the line produced by the last successful Next
	Line() *Line

	// Err returns the first non-EOF error encountered
	Err() error

	// Unread pushes back the line just produced so that it is produced again
	// and the offset points at its first byte
	Unread(line *Line) error

	// Offset returns the number of bytes consumed so far, terminators included
	Offset() int64
}

// RecordSource produces a lazy, finite, single-pass sequence of match records
type RecordSource interface {
	Next() bool
	Record() *domain.MatchRecord
	Err() error
}

// StopReason tells why a record sequence ended
type StopReason int

const (
	// StopNone means the sequence has not ended yet
	StopNone StopReason = iota
	// StopEOF means the scanner reached end of file
	StopEOF
	// StopCutoff means a record past the window end was pushed back
	StopCutoff
	// StopError means the sequence ended on an error (see Err)
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopEOF:
		return "eof"
	case StopCutoff:
		return "cutoff"
	case StopError:
		return "error"
	default:
		return "unknown"
	}
}
