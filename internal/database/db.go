// Package database owns the three SQLite files behind the medallion split
// and the pragma profiles they open under. Stores run their queries on the
// raw connection from Conn(); the wrapper keeps lifecycle, migration, and
// maintenance concerns.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Profile selects the pragma set a database opens with.
type Profile string

const (
	// ProfileLedger favours durability: fsync on every write, no vacuum.
	// Silver evidence and gold report history run here; their rows are
	// append-only.
	ProfileLedger Profile = "ledger"
	// ProfileStandard balances durability and speed. The catalogue
	// projection runs here; it can always be rebuilt from a re-import.
	ProfileStandard Profile = "standard"
)

// Database names used by the medallion split. Each name maps to its own
// SQLite file and DDL in schema.go.
const (
	NameCatalogue = "catalogue"
	NameSilver    = "silver"
	NameGold      = "gold"
)

// DB wraps one SQLite file.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// Config describes a database to open.
type Config struct {
	Path    string
	Profile Profile
	Name    string // Friendly name for logging (e.g., "catalogue", "gold")
}

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Stores accept it so the same query code runs standalone or inside a
// reconciliation transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// New opens the file at cfg.Path, creating parent directories as needed,
// and verifies the connection before returning.
func New(cfg Config) (*DB, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path %q: %w", cfg.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", absPath+"?"+strings.Join(pragmas(cfg.Profile), "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	// SQLite allows one writer at a time; WAL mode plus busy_timeout covers
	// write contention, so the pool only needs to serve concurrent readers.
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: absPath, profile: cfg.Profile, name: cfg.Name}, nil
}

// pragmas returns the _pragma query parameters for a profile. WAL mode,
// foreign keys, busy timeout, and the checkpoint/cache settings apply
// everywhere; the profile decides synchronous level and vacuum behaviour.
func pragmas(profile Profile) []string {
	common := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=wal_autocheckpoint(1000)",
		"_pragma=cache_size(-64000)", // negative means KiB: a 64MB page cache
	}

	if profile == ProfileLedger {
		return append(common,
			"_pragma=synchronous(FULL)",
			"_pragma=auto_vacuum(NONE)",
		)
	}
	return append(common,
		"_pragma=synchronous(NORMAL)",
		"_pragma=auto_vacuum(INCREMENTAL)",
		"_pragma=temp_store(MEMORY)",
	)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the raw connection stores and transaction helpers run on.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name used in logs and backup keys.
func (db *DB) Name() string {
	return db.name
}

// Migrate applies the schema DDL for this database name. The DDL constants
// in schema.go are the single source of truth; every statement is
// IF NOT EXISTS, so Migrate is safe to run on each startup. Unknown names
// migrate nothing.
func (db *DB) Migrate() error {
	ddl, ok := schemaDDL[db.name]
	if !ok {
		return nil
	}
	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		_, err := tx.Exec(ddl)
		return err
	})
}

// HealthCheck verifies the connection and runs a structural check.
// quick_check validates page structure without integrity_check's full page
// scan; the health endpoint runs this once per database per request.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check(1)").Scan(&result); err != nil {
		return fmt.Errorf("quick_check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check failed for %s: %s", db.name, result)
	}
	return nil
}

// VacuumInto writes a compacted snapshot of the database to destPath while
// the source stays online. The backup service uploads the snapshot, never
// the live file.
func (db *DB) VacuumInto(destPath string) error {
	if _, err := db.conn.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s failed for %s: %w", destPath, db.name, err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction, committing on a nil return
// and rolling back on error or panic.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTransactionContext(context.Background(), db, fn)
}

// WithTransactionContext is WithTransaction with a caller-supplied context;
// cancellation between statements aborts the transaction.
func WithTransactionContext(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// Stats is a point-in-time size snapshot for one database.
type Stats struct {
	SizeBytes     int64 // Database file size
	WALSizeBytes  int64 // WAL file size
	PageCount     int64 // Total pages
	PageSize      int64 // Page size in bytes
	FreelistCount int64 // Number of free pages
}

// GetStats reads file sizes from disk and page counters from pragmas.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	if info, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = info.Size()
	}

	for _, p := range []struct {
		pragma string
		dest   *int64
	}{
		{"page_count", &stats.PageCount},
		{"page_size", &stats.PageSize},
		{"freelist_count", &stats.FreelistCount},
	} {
		if err := db.conn.QueryRow("PRAGMA " + p.pragma).Scan(p.dest); err != nil {
			return nil, fmt.Errorf("failed to read %s for %s: %w", p.pragma, db.name, err)
		}
	}

	return stats, nil
}
