// Package storage provides the pluggable backend interface for record operations.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/c360/kvgate/errors"
)

// DefaultQueryLimit caps the number of matches a Query counts when the caller
// leaves Limit unset.
const DefaultQueryLimit = 5

// ExpiryAttribute is the attribute name holding a record's epoch-second expiry.
const ExpiryAttribute = "expiry"

// Attributes is the attribute set of a stored record.
type Attributes map[string]any

// Clone returns a shallow copy of the attribute set.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Record is a stored key together with its attributes.
type Record struct {
	Key        string
	Attributes Attributes
}

// String returns the named attribute when it holds a string.
func (r Record) String(name string) (string, bool) {
	v, ok := r.Attributes[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Expiry returns the record's expiry in epoch seconds. Backends that decode
// JSON hand numbers back as float64 or json.Number, so both are accepted.
func (r Record) Expiry() (int64, bool) {
	v, ok := r.Attributes[ExpiryAttribute]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// Expired reports whether the record carries an expiry at or before now.
func (r Record) Expired(now time.Time) bool {
	exp, ok := r.Expiry()
	return ok && exp <= now.Unix()
}

// Query is an equality predicate on a single attribute.
type Query struct {
	Field  string
	Equals string
	Limit  int
}

// EffectiveLimit returns Limit, or DefaultQueryLimit when Limit is not positive.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// Matches reports whether attrs satisfies the predicate. Non-string values are
// compared by their fmt representation.
func (q Query) Matches(attrs Attributes) bool {
	v, ok := attrs[q.Field]
	if !ok {
		return false
	}
	if s, ok := v.(string); ok {
		return s == q.Equals
	}
	return fmt.Sprint(v) == q.Equals
}

// Store is the pluggable backend interface for record operations.
//
// Each handler depends only on Store, never on a concrete backend client, so
// the in-memory double in storage/memstore can stand in for tests.
//
// Implementations:
//   - kvstore.Store: NATS JetStream KV
//   - sqlstore.Store: SQLite
//   - boltstore.Store: bbolt
//   - memstore.Store: scripted in-memory double
//
// All Store implementations must be safe for concurrent use from multiple goroutines.
type Store interface {
	// Put persists the record, replacing every attribute previously stored
	// under key. Attributes are never merged.
	Put(ctx context.Context, table, key string, attrs Attributes) error

	// Get returns the stored record. The error wraps errors.ErrKeyNotFound
	// when no record exists for key.
	Get(ctx context.Context, table, key string) (Record, error)

	// Query returns the number of records matching q, never more than
	// q.EffectiveLimit().
	Query(ctx context.Context, table string, q Query) (int, error)
}

// Purger is implemented by backends that can sweep expired records.
// Purge removes records whose expiry is at or before now and returns how many
// were removed.
type Purger interface {
	Purge(ctx context.Context, table string, now time.Time) (int, error)
}

// ValidateKey rejects the empty key. Further checks are left to the backend.
func ValidateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "storage", "ValidateKey", "key cannot be empty")
	}
	return nil
}

// ValidateTable rejects the empty table name.
func ValidateTable(table string) error {
	if table == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "storage", "ValidateTable", "table name cannot be empty")
	}
	return nil
}

// NotFound returns an error wrapping errors.ErrKeyNotFound for key.
func NotFound(component, key string) error {
	return errors.Wrap(errors.ErrKeyNotFound, component, "Get", fmt.Sprintf("lookup %q", key))
}

// EncodeAttributes serializes attrs as JSON.
func EncodeAttributes(attrs Attributes) ([]byte, error) {
	if attrs == nil {
		attrs = Attributes{}
	}
	return json.Marshal(attrs)
}

// DecodeAttributes parses JSON attributes, keeping numbers as json.Number.
func DecodeAttributes(data []byte) (Attributes, error) {
	var attrs Attributes
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, errors.WrapFatal(errors.ErrDataCorrupted, "storage", "DecodeAttributes", err.Error())
	}
	if attrs == nil {
		attrs = Attributes{}
	}
	return attrs, nil
}
