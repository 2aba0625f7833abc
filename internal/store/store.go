package store

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "ingest-checkpoints"
	keyName    = "lastOffset"
)

// Store persists the ingest consumer's last committed Kafka offset, so a
// restart can report where it resumes.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB file and bucket.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Offset returns the last saved offset, or -1 if none was recorded.
func (s *Store) Offset() (int64, error) {
	off := int64(-1)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(keyName))
		if v == nil {
			return nil
		}
		// offsets are stored big-endian
		off = int64(binary.BigEndian.Uint64(v))
		return nil
	})
	return off, err
}

// SaveOffset persists the given offset.
func (s *Store) SaveOffset(off int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(off))
		return tx.Bucket([]byte(bucketName)).Put([]byte(keyName), buf)
	})
}

// Close the DB when shutting down.
func (s *Store) Close() error {
	return s.db.Close()
}
