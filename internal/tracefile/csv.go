package tracefile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/datasetgen/internal/record"
)

type csvWriter struct {
	path string
	tmp  string
	f    *os.File
	buf  *bufio.Writer
	gz   *gzip.Writer
	cw   *csv.Writer
}

func createCSV(path string) (*csvWriter, error) {
	tmp := tempPath(path)
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	gz := gzip.NewWriter(buf)
	w := &csvWriter{path: path, tmp: tmp, f: f, buf: buf, gz: gz, cw: csv.NewWriter(gz)}
	if err := w.cw.Write(record.Header()); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	return w, nil
}

func (w *csvWriter) Write(r record.Request) error {
	if err := w.cw.Write(r.Fields()); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func (w *csvWriter) Close() error {
	w.cw.Flush()
	err := w.cw.Error()
	if err == nil {
		err = w.gz.Close()
	}
	if err == nil {
		err = w.buf.Flush()
	}
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return commit(w.tmp, w.path)
}

func (w *csvWriter) Abort() error {
	_ = w.f.Close()
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readCSV(ctx context.Context, path string, fn func(record.Request) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer gz.Close()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = len(record.Columns)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	if !slices.Equal(header, record.Header()) {
		return fmt.Errorf("read %s: unexpected header %v", path, header)
	}

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		r, err := record.Parse(fields)
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}
