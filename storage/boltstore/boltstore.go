// Package boltstore provides a bbolt-backed storage.Store.
package boltstore

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/storage"
)

// Store is a storage.Store backed by a single bbolt file. Each table is a
// top-level bucket, created on first write.
type Store struct {
	db *bolt.DB
}

// Open initializes or opens a Store at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.WrapFatal(err, "BoltStore", "Open", "open database")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put implements storage.Store.
func (s *Store) Put(_ context.Context, table, key string, attrs storage.Attributes) error {
	if err := storage.ValidateTable(table); err != nil {
		return err
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	data, err := storage.EncodeAttributes(attrs)
	if err != nil {
		return errors.WrapInvalid(err, "BoltStore", "Put", "encode attributes")
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return errors.WrapTransient(err, "BoltStore", "Put", "write record")
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(_ context.Context, table, key string) (storage.Record, error) {
	if err := storage.ValidateTable(table); err != nil {
		return storage.Record{}, err
	}

	var out []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return storage.Record{}, errors.WrapTransient(err, "BoltStore", "Get", "read record")
	}
	if out == nil {
		return storage.Record{}, storage.NotFound("BoltStore", key)
	}

	attrs, err := storage.DecodeAttributes(out)
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{Key: key, Attributes: attrs}, nil
}

// Query implements storage.Store.
func (s *Store) Query(ctx context.Context, table string, q storage.Query) (int, error) {
	if err := storage.ValidateTable(table); err != nil {
		return 0, err
	}

	limit := q.EffectiveLimit()
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil && count < limit; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			attrs, err := storage.DecodeAttributes(v)
			if err != nil {
				// Unreadable records never match.
				continue
			}
			if q.Matches(attrs) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.WrapTransient(err, "BoltStore", "Query", "scan records")
	}
	return count, nil
}

// Purge implements storage.Purger.
func (s *Store) Purge(_ context.Context, table string, now time.Time) (int, error) {
	if err := storage.ValidateTable(table); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		var expired [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			attrs, err := storage.DecodeAttributes(v)
			if err != nil {
				return nil
			}
			if (storage.Record{Attributes: attrs}).Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, errors.WrapTransient(err, "BoltStore", "Purge", "delete expired records")
	}
	return removed, nil
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)
