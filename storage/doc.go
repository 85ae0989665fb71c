// Package storage provides the pluggable backend interface for record operations.
//
// # Overview
//
// The storage package defines the Store interface that every kvgate handler
// talks to. A Store persists one record per key, fetches it back, and counts
// records whose attribute equals a value. Handlers never see the concrete
// backend, which keeps request handling testable without a live backend.
//
// # Core Concepts
//
// Record:
//
// A record is a key plus an attribute set (Attributes). Keys come verbatim
// from the request path and are unique within a table. Put replaces the whole
// attribute set; it never merges with what was stored before.
//
// Tables:
//
// Every call names a table. Each backend maps a table onto its own namespace:
//   - kvstore: a NATS JetStream KV bucket
//   - sqlstore: a SQLite table
//   - boltstore: a bbolt bucket
//   - memstore: a map inside the test double
//
// Expiry:
//
// Records written by ephemeral variants carry an "expiry" attribute in epoch
// seconds. Handlers never enforce it. Removal is backend cleanup: every
// backend implements Purger so the process can sweep expired records
// periodically, and JetStream buckets may also carry a bucket-wide TTL.
//
// Query:
//
// Query is an equality predicate on one attribute with a result cap. Backends
// stop counting once the cap is reached, so the result is never larger than
// Query.EffectiveLimit().
//
// # Error Handling
//
// Store implementations return errors classified by the errors package:
//   - errors.ErrKeyNotFound (wrapped) when Get finds no record
//   - errors.WrapTransient for backend failures (network, locking, I/O)
//   - errors.WrapFatal for corrupted stored data or missing configuration
//
// # Thread Safety
//
// All Store implementations MUST be safe for concurrent use from multiple
// goroutines.
//
// # Testing
//
// Handler logic is exercised against storage/memstore, which can be scripted
// to fail for sentinel keys. The backends themselves are tested against real
// engines: SQLite and bbolt in a temporary directory, NATS through
// testcontainers.
package storage
