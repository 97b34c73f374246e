package tracefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/datasetgen/internal/record"
)

// Spool stores the spill parts of flushed days as gzip CSV files under
// <dest>/.spool. It satisfies day.PartSink.
type Spool struct {
	dir string
}

// NewSpool returns the spool of a destination folder.
// The directory is created on the first write.
func NewSpool(dest string) *Spool {
	return &Spool{dir: filepath.Join(dest, SpoolDir)}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// WritePart writes rows as part seq of the day dated date.
func (s *Spool) WritePart(ctx context.Context, date time.Time, seq int, rows []record.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	path := filepath.Join(s.dir, PartFileName(date, seq))
	if err := WriteAll(path, FormatCSV, rows); err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	return path, nil
}

// ReadPart streams the rows of a part.
func (s *Spool) ReadPart(ctx context.Context, path string, fn func(record.Request) error) error {
	return readCSV(ctx, path, fn)
}

// RemoveIfEmpty deletes the spool directory when nothing is left in it.
func (s *Spool) RemoveIfEmpty() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(s.dir)
}
