package extract

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// openSource opens a source artifact database read-only. Extractors never
// write to the databases they read.
func openSource(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("opening source database %s: %w", path, err)
	}
	return db, nil
}

// fileExists reports whether path names an existing file. A missing
// source database is an expected condition, not an error.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// tableExists reports whether the named table is present. Extractors use
// it to guard their root tables so an unexpected database shape yields
// empty results instead of a query failure.
func tableExists(db *sql.DB, table string) (bool, error) {
	var one int
	err := db.QueryRow(
		"SELECT 1 FROM sqlite_master WHERE type='table' AND name=? COLLATE NOCASE",
		table,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing for table %s: %w", table, err)
	}
	return true, nil
}

// availableColumns returns the set of column names actually present on a
// table. Field names drift across OS and app versions; extractors select
// the best available column instead of failing on absence.
func availableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int64
			name    string
			colType string
			notNull int64
			dflt    any
			primary int64
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &primary); err != nil {
			return nil, fmt.Errorf("scanning column info for %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// columnsSubset filters desired down to the columns present on the table,
// preserving order.
func columnsSubset(db *sql.DB, table string, desired ...string) ([]string, error) {
	cols, err := availableColumns(db, table)
	if err != nil {
		return nil, err
	}
	var present []string
	for _, col := range desired {
		if cols[col] {
			present = append(present, col)
		}
	}
	return present, nil
}

// queryAll runs a query and returns every row as a rowMap, keyed by the
// result column names. This keeps extractors tolerant of schema variants:
// absent columns simply decode to absent values.
func queryAll(db *sql.DB, query string, args ...any) ([]rowMap, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying source rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var out []rowMap
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		m := make(rowMap, len(cols))
		for i, col := range cols {
			m[col] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
