// Package sqlite provides the default durable store.Backend. Each record is a
// row keyed by (bucket, id) and each namespace counter is a row in counters;
// a unit of work is written in a single SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"recordstore/internal/store"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "recordstore.db"

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	bucket  TEXT    NOT NULL,
	id      INTEGER NOT NULL,
	payload BLOB    NOT NULL,
	PRIMARY KEY (bucket, id)
);
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`

// Store persists records to a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Backend = (*Store)(nil)

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the WAL writer and readers in one process consistent.
	db.SetMaxOpenConns(1)
	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Load reads every record and counter.
func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	snapshot := store.NewSnapshot()
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, id, payload FROM records`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			bucket  string
			id      int64
			payload []byte
		)
		if err := rows.Scan(&bucket, &id, &payload); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan record: %w", err)
		}
		bucketRows, ok := snapshot.Records[bucket]
		if !ok {
			bucketRows = make(map[uint64]json.RawMessage)
			snapshot.Records[bucket] = bucketRows
		}
		bucketRows[uint64(id)] = payload
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, fmt.Errorf("iterate records: %w", err)
	}

	counters, err := s.db.QueryContext(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("select counters: %w", err)
	}
	defer func() { _ = counters.Close() }()
	for counters.Next() {
		var (
			name  string
			value int64
		)
		if err := counters.Scan(&name, &value); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan counter: %w", err)
		}
		snapshot.Counters[name] = uint64(value)
	}
	if err := counters.Err(); err != nil {
		return store.Snapshot{}, fmt.Errorf("iterate counters: %w", err)
	}
	return snapshot, nil
}

// Commit upserts the batch writes and counter atomically.
func (s *Store) Commit(ctx context.Context, batch store.Batch) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, w := range batch.Writes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records(bucket,id,payload) VALUES(?,?,?) ON CONFLICT(bucket,id) DO UPDATE SET payload=excluded.payload`,
			w.Bucket, int64(w.ID), []byte(w.Payload)); err != nil {
			return fmt.Errorf("upsert %s %d: %w", w.Bucket, w.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counters(name,value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value=MAX(counters.value, excluded.value)`,
		batch.Namespace, int64(batch.Counter)); err != nil {
		return fmt.Errorf("upsert counter %s: %w", batch.Namespace, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
