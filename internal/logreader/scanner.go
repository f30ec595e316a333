package logreader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const readBufferSize = 64 * 1024

// Line is a single line read from a log file
type Line struct {
	Text   string // Line content without the terminator
	Offset int64  // Byte position of the first byte of the line
	Size   int    // Bytes occupied on disk, terminator included
}

// End returns the byte position right after the line
func (l *Line) End() int64 {
	return l.Offset + int64(l.Size)
}

// LineScanner reads a file line by line starting at a byte offset and keeps
// track of the offset for checkpointing. It stops at the current end of file.
type LineScanner struct {
	path   string
	file   *os.File
	reader *bufio.Reader

	start  int64
	offset int64

	current *Line // Last produced line, nil if none or already unread
	pending *Line // Pushed back line to produce again

	linesRead uint64
	err       error
}

// Open opens path and positions the scanner at offset.
// An offset past the end of file is legal and yields no lines.
func Open(path string, offset int64) (*LineScanner, error) {
	if offset < 0 {
		return nil, fmt.Errorf("open %s at %d: %w", path, offset, ErrNegativeOffset)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to seek %s to offset %d: %w", path, offset, err)
		}
	}

	return &LineScanner{
		path:   path,
		file:   file,
		reader: bufio.NewReaderSize(file, readBufferSize),
		start:  offset,
		offset: offset,
	}, nil
}

// Next advances to the next line
func (s *LineScanner) Next() bool {
	if s.err != nil {
		s.current = nil
		return false
	}

	if s.pending != nil {
		s.current = s.pending
		s.pending = nil
		s.offset = s.current.End()
		s.linesRead++
		return true
	}

	if s.reader == nil {
		s.current = nil
		return false
	}

	data, err := s.reader.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		// Partial data before a read error is not consumed
		s.err = fmt.Errorf("failed to read %s at offset %d: %w", s.path, s.offset, err)
		s.current = nil
		return false
	}
	if len(data) == 0 {
		s.current = nil
		return false
	}

	line := &Line{
		Text:   string(trimTerminator(data)),
		Offset: s.offset,
		Size:   len(data),
	}
	s.offset += int64(len(data))
	s.linesRead++
	s.current = line
	return true
}

// Line returns the line produced by the last successful Next
func (s *LineScanner) Line() *Line {
	return s.current
}

// Err returns the read error that stopped the scanner, if any
func (s *LineScanner) Err() error {
	return s.err
}

// Unread rewinds the offset by the on-disk size of line and marks it as not
// consumed. Only the line returned by the last Next may be unread, once.
func (s *LineScanner) Unread(line *Line) error {
	if line == nil || s.current == nil || line != s.current {
		return ErrInvalidUnread
	}

	s.offset = line.Offset
	s.pending = line
	s.current = nil
	s.linesRead--
	return nil
}

// Offset returns the number of bytes consumed so far
func (s *LineScanner) Offset() int64 {
	return s.offset
}

// StartOffset returns the offset the scanner was opened at
func (s *LineScanner) StartOffset() int64 {
	return s.start
}

// LinesRead returns the number of lines consumed (unread lines excluded)
func (s *LineScanner) LinesRead() uint64 {
	return s.linesRead
}

// Path returns the scanned file path
func (s *LineScanner) Path() string {
	return s.path
}

// Close releases the file handle
func (s *LineScanner) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	return err
}

func trimTerminator(data []byte) []byte {
	data = bytes.TrimSuffix(data, []byte{'\n'})
	return bytes.TrimSuffix(data, []byte{'\r'})
}

var _ LineSource = (*LineScanner)(nil)
