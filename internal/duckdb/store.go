// Package duckdb persists benchmark runs to a DuckDB database so that
// rewriter performance can be compared across inputs, machines, and
// versions without re-running anything.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for benchmark history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS bench_runs (
		input VARCHAR,
		input_size BIGINT,
		input_modtime TIMESTAMP,
		lines BIGINT,
		records BIGINT,
		workers INTEGER,
		iterations INTEGER,
		best_time_ms DOUBLE,
		alloc_bytes BIGINT,
		throughput_mb_s DOUBLE,
		md5 VARCHAR,
		created_at TIMESTAMP
	)`)
	return err
}
