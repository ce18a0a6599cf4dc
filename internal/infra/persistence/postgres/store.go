// Package postgres provides a Postgres-backed store.Backend using the pgx
// database/sql driver. Records live in a JSONB column keyed by (bucket, id).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"recordstore/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/recordstore?sslmode=disable"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		bucket  TEXT   NOT NULL,
		id      BIGINT NOT NULL,
		payload JSONB  NOT NULL,
		PRIMARY KEY (bucket, id)
	)`,
	`CREATE TABLE IF NOT EXISTS counters (
		name  TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists records to Postgres.
type Store struct {
	db *sql.DB
}

var _ store.Backend = (*Store)(nil)

// NewStore opens a Postgres-backed store using dsn (falls back to DefaultDSN)
// and ensures the tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &Store{db: db}, nil
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
		if len(payload) == 0 {
			continue
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

// Commit upserts the batch in one database transaction.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, w := range batch.Writes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records(bucket,id,payload) VALUES($1,$2,$3) ON CONFLICT(bucket,id) DO UPDATE SET payload=EXCLUDED.payload`,
			w.Bucket, int64(w.ID), []byte(w.Payload)); err != nil {
			return fmt.Errorf("upsert %s %d: %w", w.Bucket, w.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counters(name,value) VALUES($1,$2) ON CONFLICT(name) DO UPDATE SET value=GREATEST(counters.value, EXCLUDED.value)`,
		batch.Namespace, int64(batch.Counter)); err != nil {
		return fmt.Errorf("upsert counter %s: %w", batch.Namespace, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close closes the database pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
