package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const indexSuffix = "_index"

// Store persists parked writes in BoltDB while the primary store is unavailable.
// Items are ordered by priority, then by enqueue time.
type Store struct {
	db      *bolt.DB
	bucket  []byte
	index   []byte
	maxSize int
}

// Open initializes the BoltDB file and ensures the buckets exist. A maxSize
// of zero means unbounded.
func Open(path string, bucket string, maxSize int) (*Store, error) {
	if bucket == "" {
		bucket = "buffer"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		bucket:  []byte(bucket),
		index:   []byte(bucket + indexSuffix),
		maxSize: maxSize,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(s.index)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue stores item. When item.Key is set, a previously parked item with
// the same key is replaced.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	item.bucketKey = []byte(buildKey(item))

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		items := tx.Bucket(s.bucket)
		index := tx.Bucket(s.index)

		replaced := false
		if item.Key != "" {
			if old := index.Get([]byte(item.Key)); old != nil {
				if err := items.Delete(old); err != nil {
					return err
				}
				replaced = true
			}
		}
		if !replaced && s.maxSize > 0 && items.Stats().KeyN >= s.maxSize {
			return ErrFull
		}
		if err := items.Put(item.bucketKey, payload); err != nil {
			return err
		}
		if item.Key != "" {
			return index.Put([]byte(item.Key), item.bucketKey)
		}
		return nil
	})
}

// GetBatch returns up to limit items without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes item. An item read through GetBatch is removed by its
// storage key; otherwise the store is scanned for its id.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		items := tx.Bucket(s.bucket)
		key, record := item.bucketKey, item.Key
		if len(key) == 0 {
			key, record = findByID(items, item.ID)
			if key == nil {
				return nil
			}
		}
		if err := items.Delete(key); err != nil {
			return err
		}
		return s.dropIndex(tx, record, key)
	})
}

// Requeue re-inserts an item after bumping its timestamp, so it goes to the
// back of its priority class.
func (s *Store) Requeue(item Item) error {
	if err := s.Remove(item); err != nil {
		return err
	}
	item.bucketKey = nil
	item.Timestamp = time.Now()
	return s.Enqueue(item)
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items enqueued before olderThan and reports how many.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		type stale struct {
			key    []byte
			record string
		}
		var expired []stale
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Timestamp.Before(olderThan) {
				expired = append(expired, stale{key: append([]byte(nil), k...), record: item.Key})
			}
		}

		items := tx.Bucket(s.bucket)
		for _, e := range expired {
			if err := items.Delete(e.key); err != nil {
				return err
			}
			if err := s.dropIndex(tx, e.record, e.key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

// dropIndex removes the index entry for recordKey when it still points at bucketKey.
func (s *Store) dropIndex(tx *bolt.Tx, recordKey string, bucketKey []byte) error {
	if recordKey == "" {
		return nil
	}
	index := tx.Bucket(s.index)
	if current := index.Get([]byte(recordKey)); current != nil && string(current) == string(bucketKey) {
		return index.Delete([]byte(recordKey))
	}
	return nil
}

// findByID returns the storage key and record key of the item with id.
func findByID(b *bolt.Bucket, id string) ([]byte, string) {
	if id == "" {
		return nil, ""
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var item Item
		if err := json.Unmarshal(v, &item); err != nil {
			continue
		}
		if item.ID == id {
			return append([]byte(nil), k...), item.Key
		}
	}
	return nil, ""
}

func buildKey(item Item) string {
	return fmt.Sprintf("%d_%020d_%s", item.Priority, item.Timestamp.UnixNano(), item.ID)
}
