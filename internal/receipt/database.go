package receipt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName      = "receipts"
	filesBucketName = "files"
)

// BoltLedger implements the Ledger interface using BoltDB. Receipts are keyed
// by an increasing sequence so iteration keeps insertion order, and a second
// bucket maps file names to those keys.
type BoltLedger struct {
	db *bbolt.DB
}

// NewBoltLedger creates a new BoltLedger instance
func NewBoltLedger(path string) (*BoltLedger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(filesBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Load returns all receipts in insertion order
func (b *BoltLedger) Load() []Receipt {
	receipts := make([]Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, receipt)
			return nil
		})
	})
	if err != nil {
		slog.Error("Failed to read ledger, starting empty", "error", err)
		return []Receipt{}
	}
	return receipts
}

// AppendIfNew stores unknown receipts in a single transaction
func (b *BoltLedger) AppendIfNew(records []Receipt) (int, error) {
	added := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		files := tx.Bucket([]byte(filesBucketName))
		for _, receipt := range records {
			if files.Get([]byte(receipt.File)) != nil {
				continue
			}

			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating key: %w", err)
			}
			key := sequenceKey(seq)

			data, err := json.Marshal(receipt)
			if err != nil {
				return fmt.Errorf("marshaling receipt: %w", err)
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
			if err := files.Put([]byte(receipt.File), key); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("appending receipts: %w", err)
	}
	return added, nil
}

// Close closes the database connection
func (b *BoltLedger) Close() error {
	return b.db.Close()
}

// sequenceKey encodes big endian so byte order matches numeric order
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
