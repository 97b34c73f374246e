package ledger

import (
	"context"
	"fmt"
)

// Kind classifies a recorded file.
type Kind string

const (
	// KindPart is a spill part of a flushed day.
	KindPart Kind = "part"
	// KindOutput is a saved trace file.
	KindOutput Kind = "output"
	// KindManifest is the run manifest.
	KindManifest Kind = "manifest"
	// KindRemote is an object published to remote storage; Path is its URI.
	KindRemote Kind = "remote"
)

// File is a file written by a run.
type File struct {
	Path  string
	RunID string
	Kind  Kind
	Rows  int64
}

// RecordFile records that run runID wrote path. Recording the same path
// again moves it to the latest run.
func (l *Ledger) RecordFile(ctx context.Context, f File) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO files (path, run_id, kind, row_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET run_id = excluded.run_id, kind = excluded.kind, row_count = excluded.row_count
	`, f.Path, f.RunID, string(f.Kind), f.Rows)
	if err != nil {
		return fmt.Errorf("record file %s: %w", f.Path, err)
	}
	return nil
}

// Files returns every recorded file in recording order.
// Returns an empty slice (not nil) if there are none.
func (l *Ledger) Files(ctx context.Context) ([]File, error) {
	return l.queryFiles(ctx, `SELECT path, run_id, kind, row_count FROM files ORDER BY rowid ASC`)
}

// RunFiles returns the files of one run in recording order.
func (l *Ledger) RunFiles(ctx context.Context, runID string) ([]File, error) {
	return l.queryFiles(ctx, `SELECT path, run_id, kind, row_count FROM files WHERE run_id = ? ORDER BY rowid ASC`, runID)
}

func (l *Ledger) queryFiles(ctx context.Context, query string, args ...any) ([]File, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var (
			f    File
			kind string
		)
		if err := rows.Scan(&f.Path, &f.RunID, &kind, &f.Rows); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Kind = Kind(kind)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// ForgetFile removes the record of path.
func (l *Ledger) ForgetFile(ctx context.Context, path string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forget file %s: %w", path, err)
	}
	return nil
}

// Fingerprints returns the distinct configuration fingerprints of runs that
// still own files, in sorted order.
func (l *Ledger) Fingerprints(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT DISTINCT r.fingerprint
		FROM runs r JOIN files f ON f.run_id = r.id
		ORDER BY r.fingerprint COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out = append(out, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return out, nil
}
