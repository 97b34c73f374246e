// Package ledger provides the SQLite bookkeeping of a destination folder.
//
// The ledger records every generation run that wrote into the folder and
// every file each run produced: spill parts, outputs, the manifest and
// remote objects. Cleaning a destination deletes exactly the recorded files
// and nothing else.
//
// Connections are opened in WAL mode with foreign keys enforced and a five
// second busy timeout. The pool holds a single connection, so bookkeeping
// writes are serialised.
package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the ledger file name inside a destination folder.
const FileName = ".datasetgen.db"

// migrations upgrade a ledger by one user_version each; index i moves the
// database from version i to i+1.
var migrations = []func(*sql.DB) error{
	addRowCount,
}

var currentSchemaVersion = len(migrations)

// Ledger records runs and the files they wrote.
type Ledger struct {
	db   *sql.DB
	path string
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return path + "?" + q.Encode()
}

// Open creates or opens the ledger database at path and brings its schema
// up to date.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger %s: %w", path, err)
	}
	for name, want := range map[string]string{"journal_mode": "wal", "foreign_keys": "1"} {
		if err := verifyPragma(db, name, want); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger %s: %w", path, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close releases the connection. Closing twice is a no-op.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	db := l.db
	l.db = nil
	return db.Close()
}

// migrate installs the base schema and applies every migration newer than
// the stored user_version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("install schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate ledger to v%d: %w", v+1, err)
		}
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("store schema version: %w", err)
	}
	return nil
}

// addRowCount adds files.row_count to ledgers created before row counts
// were kept. Fresh ledgers already carry the column from schema.sql.
func addRowCount(db *sql.DB) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('files') WHERE name = 'row_count'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.Exec(`ALTER TABLE files ADD COLUMN row_count INTEGER NOT NULL DEFAULT 0`)
	return err
}

// verifyPragma reports whether pragma name currently reads as want.
func verifyPragma(db *sql.DB, name, want string) error {
	var got string
	if err := db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}
