package offset

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "offsets"
)

// BoltStore implements Store using BoltDB. Every Set commits immediately;
// Save only syncs the database file.
type BoltStore struct {
	db     *bbolt.DB
	logger zerolog.Logger
}

// NewBoltStore opens (or creates) a BoltDB offset store
func NewBoltStore(dbPath string, logger zerolog.Logger) (*BoltStore, error) {
	// BoltDB holds an exclusive file lock while open
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Debug().
		Str("db_path", dbPath).
		Msg("BoltDB offset store initialized")

	return &BoltStore{db: db, logger: logger}, nil
}

// Get retrieves the offset for a target
func (s *BoltStore) Get(ctx context.Context, target string) (int64, error) {
	var offset int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get([]byte(target))
		if val == nil {
			return nil
		}
		if len(val) < 8 {
			return fmt.Errorf("invalid offset value for %s", target)
		}

		offset = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get offset: %w", err)
	}

	return offset, nil
}

// Set stores the offset for a target
func (s *BoltStore) Set(ctx context.Context, target string, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("set %s to %d: %w", target, offset, ErrNegativeOffset)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(offset))
		return b.Put([]byte(target), val)
	})
	if err != nil {
		return fmt.Errorf("failed to set offset: %w", err)
	}

	s.logger.Debug().
		Str("target", target).
		Int64("offset", offset).
		Msg("Offset updated")

	return nil
}

// Delete removes the offset for a target
func (s *BoltStore) Delete(ctx context.Context, target string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(target))
	})
	if err != nil {
		return fmt.Errorf("failed to delete offset: %w", err)
	}
	return nil
}

// List returns all stored offsets
func (s *BoltStore) List(ctx context.Context) (map[string]int64, error) {
	result := make(map[string]int64)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			if len(v) >= 8 {
				result[string(k)] = int64(binary.BigEndian.Uint64(v))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offsets: %w", err)
	}

	return result, nil
}

// Save flushes the database file to disk
func (s *BoltStore) Save(ctx context.Context) error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync boltdb: %w", err)
	}
	return nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	s.logger.Debug().Msg("Closing BoltDB offset store")
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
