package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"msgport/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump on schema changes;
// mismatched databases must be purged and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Direction labels which way a journaled frame travelled.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Entry is one journaled delivery.
type Entry struct {
	ID         int64
	At         time.Time
	Service    string
	Direction  string
	Kind       string
	ObjectType string
	Bytes      int64
	Peer       string
}

// Stats aggregates journal contents per service.
type Stats struct {
	Total    int64
	Inbound  int64
	Outbound int64
	Bytes    int64
}

// Store records message deliveries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.JournalPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	delay := busyRetryInitialBackoff
	var (
		res     sql.Result
		lastErr error
	)
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return res, nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return nil, lastErr
}

// Record appends one delivery row. A zero At is stamped with now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO deliveries (at, service, direction, kind, object_type, bytes, peer)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at.Format(time.RFC3339Nano), e.Service, e.Direction, e.Kind, e.ObjectType, e.Bytes, e.Peer)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first, optionally filtered
// by service name.
func (s *Store) Recent(ctx context.Context, service string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, at, service, direction, kind, object_type, bytes, peer
	          FROM deliveries`
	args := []any{}
	if service != "" {
		query += " WHERE service = ?"
		args = append(args, service)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Service, &e.Direction, &e.Kind, &e.ObjectType, &e.Bytes, &e.Peer); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, at); parseErr == nil {
			e.At = parsed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ServiceStats aggregates deliveries grouped by service.
func (s *Store) ServiceStats(ctx context.Context) (map[string]Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service,
		        COUNT(1),
		        SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END),
		        COALESCE(SUM(bytes), 0)
		 FROM deliveries GROUP BY service`,
		DirectionInbound, DirectionOutbound)
	if err != nil {
		return nil, fmt.Errorf("aggregate deliveries: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]Stats)
	for rows.Next() {
		var (
			service string
			st      Stats
		)
		if err := rows.Scan(&service, &st.Total, &st.Inbound, &st.Outbound, &st.Bytes); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[service] = st
	}
	return stats, rows.Err()
}

// Purge removes entries older than the cutoff and returns the count.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM deliveries WHERE at < ?", before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge deliveries: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOlderThanDays applies the retention policy; days <= 0 keeps
// everything.
func (s *Store) PurgeOlderThanDays(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	return s.Purge(ctx, time.Now().AddDate(0, 0, -days))
}
