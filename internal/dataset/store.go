// Package dataset maintains the local DuckDB viewer database that
// imported generation results land in, so finished datasets can be
// inspected with SQL without leaving the agent.
package dataset

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"datadesigner/internal/logging"
)

// Store wraps the DuckDB database holding imported datasets.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the viewer database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	logging.Dataset("viewer database opened: %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var tableNamePattern = regexp.MustCompile(`[^a-z0-9_]+`)

// SanitizeTableName derives a safe table name from an arbitrary string
// (usually a result file name).
func SanitizeTableName(name string) string {
	clean := strings.ToLower(strings.TrimSpace(name))
	clean = tableNamePattern.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		return "dataset"
	}
	if clean[0] >= '0' && clean[0] <= '9' {
		clean = "t_" + clean
	}
	return clean
}

// readerFor picks the DuckDB table function for a result file.
func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "read_csv_auto", nil
	case ".json", ".jsonl":
		return "read_json_auto", nil
	case ".parquet":
		return "read_parquet", nil
	default:
		return "", fmt.Errorf("unsupported result format: %s", filepath.Ext(path))
	}
}

// ImportFile loads a result file into a table named after the file,
// replacing any previous import under that name. Returns the table name.
func (s *Store) ImportFile(path string) (string, error) {
	base := filepath.Base(path)
	table := SanitizeTableName(strings.TrimSuffix(base, filepath.Ext(base)))
	if err := s.ImportFileAs(path, table); err != nil {
		return "", err
	}
	return table, nil
}

// ImportFileAs loads a result file into the named table.
func (s *Store) ImportFileAs(path, table string) error {
	timer := logging.StartTimer(logging.CategoryDataset, "ImportFile")
	defer timer.Stop()

	reader, err := readerFor(path)
	if err != nil {
		return err
	}
	table = SanitizeTableName(table)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Path goes through a string literal; escape embedded quotes
	escaped := strings.ReplaceAll(path, "'", "''")
	query := fmt.Sprintf(`CREATE OR REPLACE TABLE "%s" AS SELECT * FROM %s('%s')`, table, reader, escaped)
	if _, err := s.db.Exec(query); err != nil {
		logging.DatasetError("import %s failed: %v", path, err)
		return fmt.Errorf("import %s: %w", path, err)
	}

	logging.Dataset("imported %s into table %q", path, table)
	return nil
}

// Tables lists the imported dataset tables.
func (s *Store) Tables() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main'
		 ORDER BY table_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// RowCount returns the number of rows in a table.
func (s *Store) RowCount(table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, SanitizeTableName(table))
	if err := s.db.QueryRow(query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Preview returns up to limit rows of a table as generic records.
func (s *Store) Preview(table string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, SanitizeTableName(table), limit)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Drop removes an imported table.
func (s *Store) Drop(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, SanitizeTableName(table))
	_, err := s.db.Exec(query)
	return err
}
