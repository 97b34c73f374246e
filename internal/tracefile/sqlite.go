package tracefile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/datasetgen/internal/record"
)

// TableName is the table holding requests in SQLite outputs.
const TableName = "requests"

func sqliteType(k record.Kind) string {
	switch k {
	case record.KindInt, record.KindBool:
		return "INTEGER"
	case record.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func createTableSQL() string {
	cols := make([]string, len(record.Columns))
	for i, c := range record.Columns {
		cols[i] = fmt.Sprintf("%q %s NOT NULL", c.Name, sqliteType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", TableName, strings.Join(cols, ",\n  "))
}

func columnList() string {
	names := make([]string, len(record.Columns))
	for i, c := range record.Columns {
		names[i] = fmt.Sprintf("%q", c.Name)
	}
	return strings.Join(names, ", ")
}

type sqliteWriter struct {
	path string
	tmp  string
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt
}

func createSQLite(path string) (*sqliteWriter, error) {
	tmp := tempPath(path)
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	w := &sqliteWriter{path: path, tmp: tmp, db: db}
	if err := w.init(); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return w, nil
}

func (w *sqliteWriter) init() error {
	if _, err := w.db.Exec("PRAGMA journal_mode = OFF"); err != nil {
		return err
	}
	if _, err := w.db.Exec(createTableSQL()); err != nil {
		return err
	}
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	w.tx = tx
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(record.Columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableName, columnList(), placeholders))
	if err != nil {
		return err
	}
	w.stmt = stmt
	return nil
}

func (w *sqliteWriter) Write(r record.Request) error {
	_, err := w.stmt.Exec(
		r.Date.UTC().Format(record.DateLayout),
		r.Filename,
		r.Size,
		r.CPUTime,
		r.IOTime,
		r.JobSuccess,
		r.WrapWC,
		r.NumCPU,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func (w *sqliteWriter) Close() error {
	err := w.stmt.Close()
	if err == nil {
		err = w.tx.Commit()
	}
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return commit(w.tmp, w.path)
}

func (w *sqliteWriter) Abort() error {
	if w.tx != nil {
		_ = w.tx.Rollback()
	}
	_ = w.db.Close()
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readSQLite(ctx context.Context, path string, fn func(record.Request) error) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", columnList(), TableName))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    record.Request
			date string
		)
		if err := rows.Scan(&date, &r.Filename, &r.Size, &r.CPUTime, &r.IOTime, &r.JobSuccess, &r.WrapWC, &r.NumCPU); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if r.Date, err = time.Parse(record.DateLayout, date); err != nil {
			return fmt.Errorf("read %s: %s: %w", path, record.ColDate, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
