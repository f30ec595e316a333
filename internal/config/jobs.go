package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SteelMorgan/logscan/internal/logreader"
)

// PatternSpec is a pattern as written in the jobs file
type PatternSpec struct {
	ID   string `yaml:"id"`
	Expr string `yaml:"expr"`
}

// Job describes one scan target
type Job struct {
	Name      string        `yaml:"name"`
	Path      string        `yaml:"path"`
	OffsetKey string        `yaml:"offset_key"` // Defaults to Path
	Patterns  []PatternSpec `yaml:"patterns"`

	// Time window. Without time_layout every match passes.
	TimeLayout string        `yaml:"time_layout"`
	Start      string        `yaml:"start"`   // Absolute lower bound, in time_layout
	End        string        `yaml:"end"`     // Absolute upper bound, in time_layout
	MaxAge     time.Duration `yaml:"max_age"` // Lower bound relative to now, if start is empty
	Settle     time.Duration `yaml:"settle"`  // Upper bound relative to now, if end is empty

	compiled []logreader.Pattern
	start    time.Time
	end      time.Time
}

// JobsFile is the top-level structure of jobs.yaml
type JobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs loads and validates jobs.yaml
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	return ParseJobs(data)
}

// ParseJobs parses and validates a jobs document
func ParseJobs(data []byte) ([]Job, error) {
	var file JobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file: %w", err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file defines no jobs")
	}

	seen := make(map[string]bool, len(file.Jobs))
	for i := range file.Jobs {
		job := &file.Jobs[i]
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("job #%d (%s): %w", i+1, job.Name, err)
		}
		if seen[job.Name] {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = true
	}

	return file.Jobs, nil
}

// Validate fills defaults, compiles patterns and parses window bounds
func (j *Job) Validate() error {
	if j.Path == "" {
		return fmt.Errorf("path is required")
	}
	if j.Name == "" {
		j.Name = j.Path
	}
	if j.OffsetKey == "" {
		j.OffsetKey = j.Path
	}
	if len(j.Patterns) == 0 {
		return fmt.Errorf("at least one pattern is required")
	}
	if j.MaxAge < 0 || j.Settle < 0 {
		return fmt.Errorf("max_age and settle must not be negative")
	}

	j.compiled = make([]logreader.Pattern, 0, len(j.Patterns))
	for _, spec := range j.Patterns {
		p, err := logreader.CompilePattern(spec.ID, spec.Expr)
		if err != nil {
			return err
		}
		j.compiled = append(j.compiled, p)
	}

	if j.TimeLayout == "" {
		if j.Start != "" || j.End != "" || j.MaxAge != 0 || j.Settle != 0 {
			return fmt.Errorf("time window bounds require time_layout")
		}
		return nil
	}

	layout, err := logreader.GoLayout(j.TimeLayout)
	if err != nil {
		return err
	}
	if j.Start != "" {
		if j.start, err = time.ParseInLocation(layout, j.Start, time.Local); err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
	}
	if j.End != "" {
		if j.end, err = time.ParseInLocation(layout, j.End, time.Local); err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}
	}
	if !j.start.IsZero() && !j.end.IsZero() && j.end.Before(j.start) {
		return fmt.Errorf("end is before start")
	}

	// Records without a log_time capture would all be dropped while the offset advances
	for _, p := range j.compiled {
		if !p.HasGroup(logreader.LogTimeGroup) {
			return fmt.Errorf("pattern %q has no (?P<%s>...) group, required with time_layout", p.ID, logreader.LogTimeGroup)
		}
	}

	return nil
}

// CompiledPatterns returns the patterns compiled by Validate
func (j *Job) CompiledPatterns() []logreader.Pattern {
	return j.compiled
}

// Window resolves the job's time window against now
func (j *Job) Window(now time.Time) logreader.TimeWindow {
	w := logreader.TimeWindow{
		Start:  j.start,
		End:    j.end,
		Layout: j.TimeLayout,
	}
	if w.Start.IsZero() && j.MaxAge > 0 {
		w.Start = now.Add(-j.MaxAge)
	}
	if w.End.IsZero() && j.Settle > 0 {
		w.End = now.Add(-j.Settle)
	}
	return w
}
