package export

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite buffers rows and materialises them into a one-table database
// artifact on Finalize. The heading row becomes the column names of the
// matched_payments table; every column is TEXT.
type SQLite struct {
	columns []string
	rows    [][]string
}

// NewSQLite creates an empty sqlite sink.
func NewSQLite() (*SQLite, error) {
	return &SQLite{}, nil
}

func (s *SQLite) AppendRow(cells []string) error {
	if s.columns == nil {
		if len(cells) == 0 {
			return errors.New("heading row must not be empty")
		}
		s.columns = append([]string(nil), cells...)
		return nil
	}
	if len(cells) != len(s.columns) {
		return fmt.Errorf("row has %d cells, want %d", len(cells), len(s.columns))
	}
	s.rows = append(s.rows, append([]string(nil), cells...))
	return nil
}

func (s *SQLite) Finalize(path string) error {
	if s.columns == nil {
		return errors.New("no heading row appended")
	}

	// Recreate the artifact from scratch so a repeat Finalize re-saves the
	// same content.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale artifact: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	quoted := make([]string, len(s.columns))
	marks := make([]string, len(s.columns))
	for i, col := range s.columns {
		quoted[i] = `"` + strings.ReplaceAll(col, `"`, `""`) + `" TEXT`
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE matched_payments (%s)", strings.Join(quoted, ", "))
	if _, err := db.Exec(create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO matched_payments VALUES (%s)", strings.Join(marks, ","),
	))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, row := range s.rows {
		args := make([]any, len(row))
		for j, cell := range row {
			args[j] = cell
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
