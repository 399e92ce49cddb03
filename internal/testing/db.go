// Package testing provides test database helpers for the ghillie project.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/wildside/ghillie/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a file-backed SQLite database with the schema for the
// given name applied. The returned cleanup closes the connection and
// removes the file; it is safe to call more than once.
//
// Schema names are the medallion databases: "catalogue", "silver", "gold".
// Any other name yields an empty database.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, cleanup := openTempDB(t, name)
	if err := db.Migrate(); err != nil {
		cleanup()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db, cleanup
}

// NewTestDBWithSchema creates a test database and applies a custom schema
// instead of the built-in one. Useful for focused tests that only need a
// scratch table or two.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, cleanup := openTempDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			cleanup()
			t.Fatalf("Failed to apply custom schema for test database %s: %v", name, err)
		}
	}
	return db, cleanup
}

// openTempDB opens a database over a fresh temp file. Every test gets its
// own file so parallel tests never share state.
func openTempDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	path, removeFile := CreateTempDBFile(t, "test_"+name)

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		removeFile()
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		removeFile()
	}
}

// CreateTempDBFile creates a temporary database file and returns its path
// with a cleanup that removes it.
func CreateTempDBFile(t *testing.T, name string) (string, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	path := tmpFile.Name()
	_ = tmpFile.Close()

	return path, func() {
		// The WAL and shared-memory sidecars appear once the database has
		// been written to; remove them alongside the main file.
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				t.Logf("Warning: Failed to remove temporary database file %s: %v", p, err)
			}
		}
	}
}

// GetRawConnection returns the raw *sql.DB behind a database.DB for tests
// that drive queries directly.
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
