// Package tracefile reads and writes request traces in row-oriented formats:
// gzip compressed CSV and SQLite tables. Both preserve the column set and
// order of package record.
package tracefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/datasetgen/internal/record"
)

// Format is an output format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatSQLite}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatSQLite:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv or sqlite)", s)
	}
}

// Ext returns the file extension of a format, including the leading dot.
func (f Format) Ext() string {
	if f == FormatSQLite {
		return ".db"
	}
	return ".csv.gz"
}

// File naming.
const (
	filePrefix = "dataset"
	// SpoolDir holds the spill parts of flushed days, relative to the
	// destination folder.
	SpoolDir = ".spool"
)

// DayFileName returns the per-day output name, e.g. dataset_2020-01-01.csv.gz.
func DayFileName(date time.Time, f Format) string {
	return fmt.Sprintf("%s_%s%s", filePrefix, date.UTC().Format(record.DateLayout), f.Ext())
}

// CombinedFileName returns the single-file output name, e.g. dataset.csv.gz.
func CombinedFileName(f Format) string {
	return filePrefix + f.Ext()
}

// PartFileName returns the name of spill part seq of a day.
func PartFileName(date time.Time, seq int) string {
	return fmt.Sprintf("%s_%s.part-%04d%s", filePrefix, date.UTC().Format(record.DateLayout), seq, FormatCSV.Ext())
}

// FormatOf infers the format of a trace file from its name.
func FormatOf(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, FormatCSV.Ext()):
		return FormatCSV, nil
	case strings.HasSuffix(path, FormatSQLite.Ext()):
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unrecognized trace file %s", filepath.Base(path))
	}
}

// Writer appends requests to a trace file. Rows become visible at path only
// after a successful Close; Abort discards them.
type Writer interface {
	Write(r record.Request) error
	Close() error
	Abort() error
}

// Create opens a writer for path in format f.
func Create(path string, f Format) (Writer, error) {
	switch f {
	case FormatCSV:
		return createCSV(path)
	case FormatSQLite:
		return createSQLite(path)
	default:
		return nil, fmt.Errorf("create %s: unknown format %q", path, f)
	}
}

// WriteAll writes rows to path in format f.
func WriteAll(path string, f Format, rows []record.Request) error {
	w, err := Create(path, f)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Close()
}

// Read streams the rows of a trace file, inferring its format from the name.
func Read(ctx context.Context, path string, fn func(record.Request) error) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	switch f {
	case FormatSQLite:
		return readSQLite(ctx, path, fn)
	default:
		return readCSV(ctx, path, fn)
	}
}

// ReadAll returns every row of a trace file.
func ReadAll(ctx context.Context, path string) ([]record.Request, error) {
	var out []record.Request
	err := Read(ctx, path, func(r record.Request) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// tempPath returns the staging path used while writing path.
func tempPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
}

// commit moves a staged file into place.
func commit(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}
