package rotating

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.Local)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return string(data)
}

func write(t *testing.T, w *Writer, s string) {
	t.Helper()
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
}

func TestWriter_RollsOverOnDateChange(t *testing.T) {
	base := filepath.Join(t.TempDir(), "app.log")
	clock := &fakeClock{now: day(2024, time.March, 1, 23)}
	w := New(base, WithClock(clock.Now))
	defer w.Close()

	if w.Path() != "" {
		t.Errorf("Path() before first write = %q, want empty", w.Path())
	}

	write(t, w, "day one\n")
	write(t, w, "day one again\n")
	if got := w.Path(); got != base+".2024-03-01" {
		t.Errorf("Path() = %q, want %q", got, base+".2024-03-01")
	}

	clock.Set(day(2024, time.March, 2, 0))
	write(t, w, "day two\n")

	// One open for the first write and exactly one rollover
	if w.Rollovers() != 2 {
		t.Errorf("Rollovers() = %d, want 2", w.Rollovers())
	}
	if got := readFile(t, base+".2024-03-01"); got != "day one\nday one again\n" {
		t.Errorf("day one file = %q", got)
	}
	if got := readFile(t, base+".2024-03-02"); got != "day two\n" {
		t.Errorf("day two file = %q", got)
	}

	target, err := os.Readlink(base)
	if err != nil {
		t.Skipf("symlinks unsupported here: %v", err)
	}
	if target != "app.log.2024-03-02" {
		t.Errorf("alias target = %q, want app.log.2024-03-02", target)
	}
	if got := readFile(t, base); got != "day two\n" {
		t.Errorf("reading through alias = %q", got)
	}
}

func TestWriter_AppendsToExistingDatedFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(base+".2024-05-10", []byte("earlier\n"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	clock := &fakeClock{now: day(2024, time.May, 10, 12)}
	w := New(base, WithClock(clock.Now))
	write(t, w, "later\n")
	w.Close()

	// Reopens after Close
	write(t, w, "reopened\n")
	w.Close()

	if got := readFile(t, base+".2024-05-10"); got != "earlier\nlater\nreopened\n" {
		t.Errorf("dated file = %q", got)
	}
}

func TestWriter_LeavesRegularFileAtBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(base, []byte("legacy\n"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	clock := &fakeClock{now: day(2024, time.June, 1, 8)}
	w := New(base, WithClock(clock.Now))
	defer w.Close()
	write(t, w, "new\n")

	if got := readFile(t, base); got != "legacy\n" {
		t.Errorf("base file = %q, want legacy content untouched", got)
	}
	if got := readFile(t, base+".2024-06-01"); got != "new\n" {
		t.Errorf("dated file = %q", got)
	}
}

func TestWriter_CustomSuffixLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "logs", "job.log")
	clock := &fakeClock{now: day(2023, time.December, 31, 10)}
	w := New(base, WithClock(clock.Now), WithSuffixLayout("%Y%m%d"))
	defer w.Close()

	write(t, w, "x\n")
	if got := w.Path(); got != base+".20231231" {
		t.Errorf("Path() = %q, want %q", got, base+".20231231")
	}
}

func TestWriter_RejectsInvalidSuffixLayout(t *testing.T) {
	tests := []struct {
		name   string
		layout string
	}{
		{name: "empty", layout: ""},
		{name: "path separator", layout: "%Y/%m-%d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateSuffixLayout(tt.layout); !errors.Is(err, ErrInvalidSuffix) {
				t.Errorf("ValidateSuffixLayout(%q) = %v, want ErrInvalidSuffix", tt.layout, err)
			}

			dir := t.TempDir()
			w := New(filepath.Join(dir, "app.log"), WithSuffixLayout(tt.layout))
			defer w.Close()

			if _, err := w.Write([]byte("x\n")); !errors.Is(err, ErrInvalidSuffix) {
				t.Errorf("Write() error = %v, want ErrInvalidSuffix", err)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("ReadDir error: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("directory has %d entries after rejected write, want 0", len(entries))
			}
		})
	}

	if err := ValidateSuffixLayout(DefaultSuffixLayout); err != nil {
		t.Errorf("ValidateSuffixLayout(default) = %v", err)
	}
}

func TestWriter_ConcurrentWritersAcrossDayBoundary(t *testing.T) {
	base := filepath.Join(t.TempDir(), "shared.log")
	clock := &fakeClock{now: day(2024, time.July, 4, 23)}

	writers := map[string]*Writer{
		"A": New(base, WithClock(clock.Now)),
		"B": New(base, WithClock(clock.Now)),
	}
	defer writers["A"].Close()
	defer writers["B"].Close()

	const perDay = 50
	writeDay := func(label string) {
		var wg sync.WaitGroup
		for name, w := range writers {
			wg.Add(1)
			go func(name string, w *Writer) {
				defer wg.Done()
				for i := 0; i < perDay; i++ {
					if _, err := fmt.Fprintf(w, "%s %s %03d\n", name, label, i); err != nil {
						t.Errorf("writer %s: %v", name, err)
						return
					}
				}
			}(name, w)
		}
		wg.Wait()
	}

	writeDay("d1")
	clock.Set(day(2024, time.July, 5, 0))
	writeDay("d2")

	check := func(path, label string) {
		lines := strings.Split(strings.TrimSuffix(readFile(t, path), "\n"), "\n")
		if len(lines) != 2*perDay {
			t.Fatalf("%s: %d lines, want %d", path, len(lines), 2*perDay)
		}
		next := map[string]int{"A": 0, "B": 0}
		for _, line := range lines {
			var name, gotLabel string
			var i int
			if _, err := fmt.Sscanf(line, "%s %s %d", &name, &gotLabel, &i); err != nil {
				t.Fatalf("%s: corrupt line %q", path, line)
			}
			if gotLabel != label {
				t.Errorf("%s: line %q belongs to another day", path, line)
			}
			if i != next[name] {
				t.Errorf("%s: writer %s line %d out of order (want %d)", path, name, i, next[name])
			}
			next[name] = i + 1
		}
	}
	check(base+".2024-07-04", "d1")
	check(base+".2024-07-05", "d2")

	if target, err := os.Readlink(base); err == nil && target != "shared.log.2024-07-05" {
		t.Errorf("alias target = %q, want shared.log.2024-07-05", target)
	}

	// No temporary links left behind
	entries, _ := os.ReadDir(filepath.Dir(base))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".lnk") {
			t.Errorf("leftover temporary link %s", e.Name())
		}
	}
}
