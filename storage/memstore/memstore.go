// Package memstore provides a deterministic in-memory storage.Store. Tests
// script its failures; the server uses it as the "memory" backend.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/storage"
)

// Call records a single operation against the store.
type Call struct {
	Op    string
	Table string
	Key   string
}

// Store is an in-memory storage.Store whose failures can be scripted per key.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]storage.Attributes
	calls  []Call

	failKeys    map[string]error
	failAll     error
	countResult *int
	fallback    storage.Attributes
	quiet       bool
}

// Option configures a Store.
type Option func(*Store)

// WithFailKey makes every Put and Get for key fail with err. A nil err
// defaults to a transient backend failure.
func WithFailKey(key string, err error) Option {
	return func(s *Store) {
		if err == nil {
			err = errors.WrapTransient(errors.ErrStorageUnavailable, "memstore", "Store", fmt.Sprintf("scripted failure for %q", key))
		}
		s.failKeys[key] = err
	}
}

// WithFailAll makes every operation fail with err.
func WithFailAll(err error) Option {
	return func(s *Store) {
		s.failAll = err
	}
}

// WithCountResult scripts the value returned by Query, bypassing the data.
func WithCountResult(n int) Option {
	return func(s *Store) {
		s.countResult = &n
	}
}

// WithFallback makes Get of an absent key succeed with attrs instead of
// reporting not found.
func WithFallback(attrs storage.Attributes) Option {
	return func(s *Store) {
		s.fallback = attrs.Clone()
	}
}

// WithoutCallLog stops the Store from recording calls, for long-running use
// as the "memory" backend.
func WithoutCallLog() Option {
	return func(s *Store) {
		s.quiet = true
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tables:   make(map[string]map[string]storage.Attributes),
		failKeys: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) record(op, table, key string) {
	if s.quiet {
		return
	}
	s.calls = append(s.calls, Call{Op: op, Table: table, Key: key})
}

func (s *Store) failure(key string) error {
	if s.failAll != nil {
		return s.failAll
	}
	if key == "" {
		return nil
	}
	return s.failKeys[key]
}

// Put implements storage.Store.
func (s *Store) Put(_ context.Context, table, key string, attrs storage.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("put", table, key)
	if err := s.failure(key); err != nil {
		return err
	}
	if err := storage.ValidateTable(table); err != nil {
		return err
	}

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]storage.Attributes)
		s.tables[table] = t
	}
	t[key] = attrs.Clone()
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(_ context.Context, table, key string) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("get", table, key)
	if err := s.failure(key); err != nil {
		return storage.Record{}, err
	}

	attrs, ok := s.tables[table][key]
	if !ok {
		if s.fallback == nil {
			return storage.Record{}, storage.NotFound("memstore", key)
		}
		attrs = s.fallback
	}
	return storage.Record{Key: key, Attributes: attrs.Clone()}, nil
}

// Query implements storage.Store.
func (s *Store) Query(_ context.Context, table string, q storage.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("query", table, q.Equals)
	if err := s.failure(""); err != nil {
		return 0, err
	}
	if s.countResult != nil {
		return *s.countResult, nil
	}

	limit := q.EffectiveLimit()
	count := 0
	for _, attrs := range s.tables[table] {
		if q.Matches(attrs) {
			count++
			if count >= limit {
				break
			}
		}
	}
	return count, nil
}

// Purge implements storage.Purger.
func (s *Store) Purge(_ context.Context, table string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("purge", table, "")
	if err := s.failure(""); err != nil {
		return 0, err
	}

	removed := 0
	for key, attrs := range s.tables[table] {
		if (storage.Record{Key: key, Attributes: attrs}).Expired(now) {
			delete(s.tables[table], key)
			removed++
		}
	}
	return removed, nil
}

// Calls returns a copy of the recorded operations in call order.
func (s *Store) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls clears the recorded operations.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Keys returns the sorted keys stored in table.
func (s *Store) Keys(table string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.tables[table]))
	for k := range s.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)
