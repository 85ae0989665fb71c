// Package kvstore provides the NATS JetStream KV implementation of storage.Store.
package kvstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/natsclient"
	"github.com/c360/kvgate/storage"
)

// BucketProvider creates or binds JetStream KV buckets. *natsclient.Client
// satisfies it.
type BucketProvider interface {
	CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error)
	GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error)
	NewKVStore(bucket jetstream.KeyValue, opts ...func(*natsclient.KVOptions)) *natsclient.KVStore
}

// Config holds bucket settings applied when a table's bucket is first created.
type Config struct {
	// TTL is the bucket-wide maximum age of a record. Zero keeps records forever.
	TTL time.Duration
	// Replicas is the JetStream replica count (default 1).
	Replicas int
	// Timeout bounds each KV operation (default 5s).
	Timeout time.Duration
	// MaxValueSize rejects larger encoded records (default 1MB).
	MaxValueSize int
	// BindOnly binds buckets that already exist and never creates one. TTL
	// and Replicas are then whatever the bucket was provisioned with.
	BindOnly bool
}

// Store is a storage.Store where each table is a JetStream KV bucket and each
// record value is the JSON encoding of its attributes.
type Store struct {
	provider BucketProvider
	config   Config

	mu      sync.Mutex
	buckets map[string]*natsclient.KVStore
}

// New creates a Store that binds buckets through provider.
func New(provider BucketProvider, config Config) (*Store, error) {
	if provider == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "KVStore", "New", "bucket provider is required")
	}
	if config.Replicas <= 0 {
		config.Replicas = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxValueSize <= 0 {
		config.MaxValueSize = 1024 * 1024
	}
	return &Store{
		provider: provider,
		config:   config,
		buckets:  make(map[string]*natsclient.KVStore),
	}, nil
}

func (s *Store) bucket(ctx context.Context, table string) (*natsclient.KVStore, error) {
	if err := storage.ValidateTable(table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[table]; ok {
		return kv, nil
	}

	var bucket jetstream.KeyValue
	var err error
	if s.config.BindOnly {
		bucket, err = s.provider.GetKeyValueBucket(ctx, table)
		if stderrors.Is(err, errors.ErrBucketNotFound) {
			return nil, errors.WrapFatal(err, "KVStore", "bucket", fmt.Sprintf("bucket %s is not provisioned", table))
		}
	} else {
		bucket, err = s.provider.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      table,
			Description: "kvgate records",
			TTL:         s.config.TTL,
			Replicas:    s.config.Replicas,
			History:     1,
		})
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "bucket", fmt.Sprintf("bind bucket %s", table))
	}

	kv := s.provider.NewKVStore(bucket, func(o *natsclient.KVOptions) {
		o.Timeout = s.config.Timeout
		o.MaxValueSize = s.config.MaxValueSize
	})
	s.buckets[table] = kv
	return kv, nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, table, key string, attrs storage.Attributes) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	kv, err := s.bucket(ctx, table)
	if err != nil {
		return err
	}

	data, err := storage.EncodeAttributes(attrs)
	if err != nil {
		return errors.WrapInvalid(err, "KVStore", "Put", "encode attributes")
	}

	if _, err := kv.Put(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "KVStore", "Put", "write record")
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, table, key string) (storage.Record, error) {
	if err := storage.ValidateKey(key); err != nil {
		return storage.Record{}, err
	}
	kv, err := s.bucket(ctx, table)
	if err != nil {
		return storage.Record{}, err
	}

	entry, err := kv.Get(ctx, key)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return storage.Record{}, storage.NotFound("KVStore", key)
		}
		return storage.Record{}, errors.WrapTransient(err, "KVStore", "Get", "read record")
	}

	attrs, err := storage.DecodeAttributes(entry.Value)
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{Key: key, Attributes: attrs}, nil
}

// Query implements storage.Store. JetStream KV has no secondary indexes, so
// the bucket is scanned key by key until the limit is reached.
func (s *Store) Query(ctx context.Context, table string, q storage.Query) (int, error) {
	kv, err := s.bucket(ctx, table)
	if err != nil {
		return 0, err
	}

	limit := q.EffectiveLimit()
	count := 0
	var readErr error

	scanErr := kv.ScanKeys(ctx, func(key string) bool {
		entry, err := kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				// Expired or deleted between listing and reading.
				return true
			}
			readErr = err
			return false
		}
		attrs, err := storage.DecodeAttributes(entry.Value)
		if err != nil {
			return true
		}
		if q.Matches(attrs) {
			count++
		}
		return count < limit
	})
	if scanErr != nil {
		return 0, errors.WrapTransient(scanErr, "KVStore", "Query", "list keys")
	}
	if readErr != nil {
		return 0, errors.WrapTransient(readErr, "KVStore", "Query", "read record")
	}
	return count, nil
}

// Purge implements storage.Purger. It removes records whose expiry attribute
// has passed, for deployments that leave the bucket TTL unset or longer than
// the variants' expiry window.
func (s *Store) Purge(ctx context.Context, table string, now time.Time) (int, error) {
	kv, err := s.bucket(ctx, table)
	if err != nil {
		return 0, err
	}

	var expired []string
	scanErr := kv.ScanKeys(ctx, func(key string) bool {
		entry, err := kv.Get(ctx, key)
		if err != nil {
			return true
		}
		attrs, err := storage.DecodeAttributes(entry.Value)
		if err != nil {
			return true
		}
		if (storage.Record{Key: key, Attributes: attrs}).Expired(now) {
			expired = append(expired, key)
		}
		return true
	})
	if scanErr != nil {
		return 0, errors.WrapTransient(scanErr, "KVStore", "Purge", "list keys")
	}

	removed := 0
	for _, key := range expired {
		if err := kv.Delete(ctx, key); err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue
			}
			return removed, errors.WrapTransient(err, "KVStore", "Purge", "delete record")
		}
		removed++
	}
	return removed, nil
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)
