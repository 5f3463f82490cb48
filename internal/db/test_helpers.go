package db

import (
	"path/filepath"
	"testing"
)

// testMigrationsDir is the migrations directory relative to this package.
const testMigrationsDir = "../../migrations"

// newTestDB opens a migrated database backed by a temp file. The database
// is closed and removed automatically when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := NewDB(path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.MigrateUp(testMigrationsDir); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database
}

// float64Ptr returns a pointer to v, for populating nullable columns in
// test fixtures.
func float64Ptr(v float64) *float64 { return &v }

// intPtr returns a pointer to v.
func intPtr(v int) *int { return &v }
