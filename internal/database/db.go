// Package database provides the SQLite connection and schema-migration
// functionality backing the subscriptions, provider settings, views, and
// price-history tables.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Profile selects the PRAGMA set applied to the connection.
type Profile string

const (
	// ProfileStandard balances durability and throughput; used for the
	// single market.db that holds both config-like tables (subscriptions,
	// provider_settings) and the append-mostly price_history table.
	ProfileStandard Profile = "standard"
	// ProfileCache trades durability for speed; unused by market.db today
	// but kept as a profile so a future ephemeral cache database (e.g. a
	// persisted live-provider-instance cache) can opt in without touching
	// this package.
	ProfileCache Profile = "cache"
)

// DB wraps a *sql.DB with the PRAGMA tuning and schema-migration helpers
// the rest of the package relies on.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// Config configures a new DB.
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// New opens (creating if necessary) a SQLite database with WAL mode and
// profile-specific PRAGMAs, grounded on the teacher's
// internal/database/db.go New().
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=temp_store(MEMORY)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-32000)"

	return connStr
}

func configureConnectionPool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

// findSchemaFile locates schemas/market_schema.sql relative to this source
// file, the same runtime.Caller trick as the teacher's
// findSchemasDirectory — it works regardless of the process's working
// directory (tests, CI, production).
func findSchemaFile() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	absFile, err := filepath.Abs(currentFile)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source path: %w", err)
	}
	return filepath.Join(filepath.Dir(absFile), "schemas", "market_schema.sql"), nil
}

// Migrate applies the market schema within a transaction. Re-running it is
// safe: every statement is idempotent (CREATE TABLE/INDEX IF NOT EXISTS,
// INSERT OR IGNORE for seed rows).
func (db *DB) Migrate() error {
	schemaPath, err := findSchemaFile()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	if _, err := tx.Exec(string(content)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Conn returns the underlying *sql.DB for repositories to query against.
func (db *DB) Conn() *sql.DB { return db.conn }

// Name returns the friendly database name used in logging.
func (db *DB) Name() string { return db.name }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back (including on panic) otherwise. Grounded on the teacher's
// database.WithTransaction helper.
func WithTransaction(conn *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck pings the connection and runs a full integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}

// WALCheckpoint forces a checkpoint and truncates the WAL file, which keeps
// it from growing unbounded after a bulk delete. The retention job does not
// call it.
func (db *DB) WALCheckpoint() error {
	_, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}
	return nil
}
