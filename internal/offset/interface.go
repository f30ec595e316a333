package offset

import (
	"context"
	"errors"
)

// ErrNegativeOffset is returned by Set for offsets below zero
var ErrNegativeOffset = errors.New("offset must not be negative")

// Store maps scan targets to the last consumed byte offset.
// Implementations: JSON document (primary), BoltDB.
// A Store is not safe for concurrent writers sharing one backing file;
// callers serialize access (one scan invocation at a time per store).
type Store interface {
	// Get retrieves the offset for a target
	// Returns 0 if no offset is stored
	Get(ctx context.Context, target string) (int64, error)

	// Set records the offset for a target
	Set(ctx context.Context, target string, offset int64) error

	// Delete removes the offset for a target
	Delete(ctx context.Context, target string) error

	// List returns all stored offsets
	List(ctx context.Context) (map[string]int64, error)

	// Save persists the current mapping
	Save(ctx context.Context) error

	// Close releases the backing resources
	Close() error
}
