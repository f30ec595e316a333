package rotating

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
	"github.com/rs/zerolog"
)

// DefaultSuffixLayout names dated files <base>.YYYY-MM-DD
const DefaultSuffixLayout = "%Y-%m-%d"

// ErrInvalidSuffix reports a suffix layout that does not format to a plain file name suffix
var ErrInvalidSuffix = errors.New("rotating writer: invalid suffix layout")

// ValidateSuffixLayout checks that layout formats to a non-empty suffix
// without path separators.
func ValidateSuffixLayout(layout string) error {
	return checkSuffix(layout, strftime.Format(layout, time.Now()))
}

func checkSuffix(layout, suffix string) error {
	if suffix == "" || strings.ContainsAny(suffix, "/"+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %q formats to %q", ErrInvalidSuffix, layout, suffix)
	}
	return nil
}

// Option configures a Writer.
type Option func(*Writer)

// WithSuffixLayout sets the strftime layout of the date suffix. Default: %Y-%m-%d.
func WithSuffixLayout(layout string) Option {
	return func(w *Writer) { w.layout = layout }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithLogger sets the logger used for best-effort alias failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithFileMode sets the permissions of newly created dated files. Default: 0644.
func WithFileMode(mode os.FileMode) Option {
	return func(w *Writer) { w.mode = mode }
}

// Writer appends to <base>.<date> and switches to a new dated file when the
// local date changes. <base> is kept as a symlink to the current dated file
// when the filesystem allows it.
//
// Several processes may write through their own Writer to the same base
// path: each derives the file name from its own clock, dated files are opened
// in append mode and the alias swap is idempotent, so no lock is needed.
type Writer struct {
	mu     sync.Mutex
	base   string
	layout string
	mode   os.FileMode
	now    func() time.Time
	logger zerolog.Logger

	file      *os.File
	suffix    string
	rollovers int
}

// New creates a writer for base. No file is opened until the first Write.
func New(base string, opts ...Option) *Writer {
	w := &Writer{
		base:   base,
		layout: DefaultSuffixLayout,
		mode:   0644,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write appends p to the dated file for the current date, rolling over first
// if the date changed since the last write.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	suffix := strftime.Format(w.layout, w.now())
	if w.file == nil || suffix != w.suffix {
		if err := checkSuffix(w.layout, suffix); err != nil {
			return 0, err
		}
		if err := w.rollover(suffix); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("rotating writer: write %s: %w", w.file.Name(), err)
	}
	return n, nil
}

// Close closes the current dated file. A later Write reopens it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Path returns the dated file currently written to, or "" before the first write
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ""
	}
	return w.datedPath(w.suffix)
}

// Base returns the alias path
func (w *Writer) Base() string {
	return w.base
}

// Rollovers returns how many dated files this writer has opened
func (w *Writer) Rollovers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollovers
}

func (w *Writer) datedPath(suffix string) string {
	return w.base + "." + suffix
}

// rollover closes the current file, opens the dated file for suffix and
// repoints the alias. Alias failures are logged and otherwise ignored.
func (w *Writer) rollover(suffix string) error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			w.logger.Warn().Err(err).Str("file", w.file.Name()).Msg("Failed to close dated log file")
		}
		w.file = nil
	}

	path := w.datedPath(suffix)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("rotating writer: create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, w.mode)
	if err != nil {
		return fmt.Errorf("rotating writer: open %s: %w", path, err)
	}

	w.file = file
	w.suffix = suffix
	w.rollovers++

	w.repointAlias(path)
	return nil
}

// repointAlias makes base a symlink to path. The new link is created under a
// unique temporary name and renamed over base, so base always resolves while
// sibling processes do the same. A regular file at base is left alone.
func (w *Writer) repointAlias(path string) {
	info, err := os.Lstat(w.base)
	switch {
	case err == nil && info.Mode()&fs.ModeSymlink == 0:
		w.logger.Warn().
			Str("base", w.base).
			Msg("Base path is not a symlink, leaving it untouched")
		return
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		w.logger.Debug().Err(err).Str("base", w.base).Msg("Failed to stat alias")
		return
	}

	// Relative target keeps the link valid if the directory is moved
	target := filepath.Base(path)
	tmp := filepath.Join(filepath.Dir(w.base), "."+filepath.Base(w.base)+"."+uuid.NewString()+".lnk")

	if err := os.Symlink(target, tmp); err != nil {
		w.logger.Debug().Err(err).Str("base", w.base).Msg("Symlinks unsupported, writing dated file only")
		return
	}
	if err := os.Rename(tmp, w.base); err != nil {
		os.Remove(tmp)
		w.logger.Debug().Err(err).Str("base", w.base).Msg("Failed to replace alias")
		return
	}

	w.logger.Debug().
		Str("base", w.base).
		Str("target", target).
		Msg("Alias repointed")
}
