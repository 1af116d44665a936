package testutil

import (
	"path/filepath"
	"testing"

	"abx-go/internal/database"
)

// CreateSourceDB creates a SQLite database file named name under the
// test's temp directory, executes the given statements against it in
// order, and returns its path. Used to build artifact-database fixtures
// for extractor tests.
func CreateSourceDB(t *testing.T, name string, statements ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	db, err := database.OpenConnection(path)
	if err != nil {
		t.Fatalf("failed to create source database: %v", err)
	}
	defer db.Close()

	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("failed to execute %q: %v", statement, err)
		}
	}
	return path
}

// ExecSourceDB runs additional statements against an existing source
// database fixture.
func ExecSourceDB(t *testing.T, path string, statements ...string) {
	t.Helper()

	db, err := database.OpenConnection(path)
	if err != nil {
		t.Fatalf("failed to open source database: %v", err)
	}
	defer db.Close()

	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("failed to execute %q: %v", statement, err)
		}
	}
}
