package offset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// JSONStore keeps offsets in memory and persists them as a pretty-printed
// JSON object with sorted keys
type JSONStore struct {
	path    string
	offsets map[string]int64
	logger  zerolog.Logger
}

// NewJSONStore loads path if it exists. A missing or malformed file is not
// an error: the store starts empty.
func NewJSONStore(path string, logger zerolog.Logger) *JSONStore {
	s := &JSONStore{
		path:    path,
		offsets: make(map[string]int64),
		logger:  logger,
	}
	s.load()
	return s
}

func (s *JSONStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read offset file, starting empty")
		}
		return
	}

	var record map[string]int64
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Malformed offset file, starting empty")
		return
	}

	for target, offset := range record {
		if offset < 0 {
			s.logger.Warn().
				Str("path", s.path).
				Str("target", target).
				Int64("offset", offset).
				Msg("Ignoring negative offset")
			continue
		}
		s.offsets[target] = offset
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("targets", len(s.offsets)).
		Msg("Offset file loaded")
}

// Get retrieves the offset for a target
func (s *JSONStore) Get(ctx context.Context, target string) (int64, error) {
	return s.offsets[target], nil
}

// Set records the offset in memory; call Save to persist it
func (s *JSONStore) Set(ctx context.Context, target string, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("set %s to %d: %w", target, offset, ErrNegativeOffset)
	}
	s.offsets[target] = offset
	return nil
}

// Delete removes the offset for a target
func (s *JSONStore) Delete(ctx context.Context, target string) error {
	delete(s.offsets, target)
	return nil
}

// List returns a copy of all offsets
func (s *JSONStore) List(ctx context.Context) (map[string]int64, error) {
	result := make(map[string]int64, len(s.offsets))
	for k, v := range s.offsets {
		result[k] = v
	}
	return result, nil
}

// Save overwrites the backing file with the full mapping
func (s *JSONStore) Save(ctx context.Context) error {
	data, err := json.MarshalIndent(s.offsets, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create offset directory: %w", err)
		}
	}

	// Write next to the target and rename so readers never see a torn file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write offset file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace offset file: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("targets", len(s.offsets)).
		Msg("Offsets saved")
	return nil
}

// Close is a no-op; unsaved changes are discarded
func (s *JSONStore) Close() error {
	return nil
}

// Path returns the backing file path
func (s *JSONStore) Path() string {
	return s.path
}

var _ Store = (*JSONStore)(nil)
