package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"courier-dispatch/internal/dispatch-service/core/domain/dto"

	badger "github.com/dgraph-io/badger/v4"
)

// locationQueue is the device-local fallback store. Keys are a monotonic
// sequence, so iteration order is enqueue order and draining oldest-first is
// a plain forward scan.
type locationQueue struct {
	db  *badger.DB
	seq *badger.Sequence
}

func openQueue(dir string) (*locationQueue, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	seq, err := db.GetSequence([]byte("loc_seq"), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("queue sequence: %w", err)
	}
	return &locationQueue{db: db, seq: seq}, nil
}

func (q *locationQueue) Close() error {
	_ = q.seq.Release()
	return q.db.Close()
}

func (q *locationQueue) Append(item dto.SyncLocationItem) error {
	n, err := q.seq.Next()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)

	val, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// OldestBatch returns up to n entries in enqueue order along with their keys.
func (q *locationQueue) OldestBatch(n int) ([]dto.SyncLocationItem, [][]byte, error) {
	var items []dto.SyncLocationItem
	var keys [][]byte

	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(items) < n; it.Next() {
			entry := it.Item()
			var item dto.SyncLocationItem
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}
			items = append(items, item)
			keys = append(keys, entry.KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return items, keys, nil
}

func (q *locationQueue) Remove(keys [][]byte) error {
	return q.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *locationQueue) Len() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Trim evicts the oldest entries beyond max, bounding on-device storage.
func (q *locationQueue) Trim(max int) error {
	count, err := q.Len()
	if err != nil {
		return err
	}
	excess := count - max
	if excess <= 0 {
		return nil
	}

	var victims [][]byte
	err = q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(victims) < excess; it.Next() {
			victims = append(victims, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return q.Remove(victims)
}
