// Package sqlstore provides a SQLite-backed storage.Store.
//
// Each table holds one row per key with the attribute set stored as JSON, so
// counting queries run inside SQLite through json_extract.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360/kvgate/errors"
	"github.com/c360/kvgate/storage"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a storage.Store backed by a SQLite database.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]bool
}

// Open opens (or creates) the SQLite database at path.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapFatal(err, "SQLStore", "Open", "open database")
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		// Enable WAL mode for better concurrent read performance.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, errors.WrapFatal(err, "SQLStore", "Open", "enable WAL")
		}
	}

	return &Store{db: db, tables: make(map[string]bool)}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapTransient(err, "SQLStore", "Ping", "ping database")
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	if err := storage.ValidateTable(table); err != nil {
		return err
	}
	if !identifierPattern.MatchString(table) {
		return errors.WrapFatal(errors.ErrInvalidConfig, "SQLStore", "ensureTable",
			fmt.Sprintf("table name %q is not a valid identifier", table))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}

	createSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		record_key TEXT PRIMARY KEY,
		attributes TEXT NOT NULL,
		expiry     INTEGER
	);
	CREATE INDEX IF NOT EXISTS %[1]s_expiry ON %[1]s(expiry);
	`, table)

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return errors.WrapTransient(err, "SQLStore", "ensureTable", "create table")
	}
	s.tables[table] = true
	return nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, table, key string, attrs storage.Attributes) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	data, err := storage.EncodeAttributes(attrs)
	if err != nil {
		return errors.WrapInvalid(err, "SQLStore", "Put", "encode attributes")
	}

	var expiry any
	if exp, ok := (storage.Record{Attributes: attrs}).Expiry(); ok {
		expiry = exp
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (record_key, attributes, expiry) VALUES (?, ?, ?)`, table),
		key, string(data), expiry,
	)
	if err != nil {
		return errors.WrapTransient(err, "SQLStore", "Put", "insert record")
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, table, key string) (storage.Record, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return storage.Record{}, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT attributes FROM %s WHERE record_key = ?`, table), key,
	).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.NotFound("SQLStore", key)
	}
	if err != nil {
		return storage.Record{}, errors.WrapTransient(err, "SQLStore", "Get", "select record")
	}

	attrs, err := storage.DecodeAttributes([]byte(data))
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{Key: key, Attributes: attrs}, nil
}

// Query implements storage.Store.
func (s *Store) Query(ctx context.Context, table string, q storage.Query) (int, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return 0, err
	}
	if q.Field == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "SQLStore", "Query", "query field cannot be empty")
	}
	if strings.Contains(q.Field, `"`) {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "SQLStore", "Query", "query field cannot contain a double quote")
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM (
			SELECT 1 FROM %s
			WHERE CAST(json_extract(attributes, ?) AS TEXT) = ?
			LIMIT ?
		)`, table),
		jsonPath(q.Field), q.Equals, q.EffectiveLimit(),
	).Scan(&count)
	if err != nil {
		return 0, errors.WrapTransient(err, "SQLStore", "Query", "count records")
	}
	return count, nil
}

// Purge implements storage.Purger.
func (s *Store) Purge(ctx context.Context, table string, now time.Time) (int, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expiry IS NOT NULL AND expiry <= ?`, table),
		now.Unix(),
	)
	if err != nil {
		return 0, errors.WrapTransient(err, "SQLStore", "Purge", "delete expired records")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WrapTransient(err, "SQLStore", "Purge", "rows affected")
	}
	return int(n), nil
}

// jsonPath quotes field so names with dots or spaces address a single member.
// SQLite labels have no escape, so field must not contain a double quote.
func jsonPath(field string) string {
	return fmt.Sprintf(`$."%s"`, field)
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)
