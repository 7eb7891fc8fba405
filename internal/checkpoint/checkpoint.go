// Package checkpoint tracks which examples a build has already encoded so
// an interrupted run can resume without redoing work.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var encodedBucket = []byte("EncodedExamples")

// Record stores what was written for one encoded example.
type Record struct {
	ExampleID  string    `json:"example_id"`
	RecordFile string    `json:"record_file"`
	Bytes      int64     `json:"bytes"`
	EncodedAt  time.Time `json:"encoded_at"`
}

// Store is a bbolt-backed set of encoded example IDs.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the checkpoint database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(encodedBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsEncoded reports whether the example has already been encoded.
func (s *Store) IsEncoded(exampleID string) bool {
	var exists bool
	s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(encodedBucket).Get([]byte(exampleID)) != nil
		return nil
	})
	return exists
}

// MarkEncoded records that the example was written to recordFile.
func (s *Store) MarkEncoded(exampleID, recordFile string, size int64) error {
	rec := Record{
		ExampleID:  exampleID,
		RecordFile: recordFile,
		Bytes:      size,
		EncodedAt:  time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(encodedBucket).Put([]byte(exampleID), data)
	})
}

// Get returns the stored record for an example, or nil when absent.
func (s *Store) Get(exampleID string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(encodedBucket).Get([]byte(exampleID))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read record: %w", err)
	}
	return rec, nil
}

// Count returns the number of encoded examples.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(encodedBucket).Stats().KeyN
		return nil
	})
	return n, err
}
