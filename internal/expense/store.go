package expense

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "snapspend"
	recordsKey = "receipts"
)

// Store is the persistence boundary for the record collection. The
// collection is the sole unit of persistence: it is read in full and
// overwritten in full on every mutation.
type Store interface {
	// LoadAll reads the durable slot. A missing or corrupt slot yields
	// an empty collection, never an error.
	LoadAll() ([]Record, error)

	// SaveAll overwrites the durable slot with exactly the given
	// collection.
	SaveAll(records []Record) error

	// Close closes the store.
	Close() error
}

// BoltStore implements Store using a bbolt file with a single bucket
// and a single key holding the JSON-serialized collection.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// LoadAll reads the full collection from the slot.
func (b *BoltStore) LoadAll() ([]Record, error) {
	records := make([]Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(recordsKey))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &records); err != nil {
			// Corruption is logged, never fatal, never surfaced.
			slog.Warn("Discarding unparseable record slot", "error", err)
			records = records[:0]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return records, nil
}

// SaveAll overwrites the slot with the given collection.
func (b *BoltStore) SaveAll(records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(recordsKey), data)
	})
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
