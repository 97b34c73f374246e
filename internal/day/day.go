// Package day implements the buffering unit of one calendar day of requests.
//
// A Day accumulates requests in memory up to a configurable limit. When the
// buffer reaches the limit it is flushed to a spill part through a PartSink
// and cleared; the day keeps its identity and cumulative counts. Readers
// always see the full logical content of the day: flushed parts are read
// back in order, followed by the buffered rows.
package day

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/datasetgen/internal/record"
)

// ErrSealed is returned when appending to a day after ResetIndex.
var ErrSealed = errors.New("day is sealed")

// ErrNoSink is returned when a bounded day must flush but has no sink.
var ErrNoSink = errors.New("day has no part sink")

// PartSink persists and reads back spill parts.
type PartSink interface {
	// WritePart writes rows as part seq of the day dated date and returns
	// the location of the part.
	WritePart(ctx context.Context, date time.Time, seq int, rows []record.Request) (string, error)

	// ReadPart streams the rows of a part written by WritePart.
	ReadPart(ctx context.Context, path string, fn func(record.Request) error) error
}

// Day buffers the requests of one day index.
// A Day is not safe for concurrent use.
type Day struct {
	idx       int
	date      time.Time
	maxBufLen int
	sink      PartSink

	buf     []record.Request
	parts   []string
	flushed int
	sealed  bool
}

// New creates the day with index idx. date is truncated to UTC midnight.
// maxBufLen <= 0 disables flushing.
func New(idx int, date time.Time, maxBufLen int, sink PartSink) *Day {
	y, m, dd := date.UTC().Date()
	d := &Day{
		idx:       idx,
		date:      time.Date(y, m, dd, 0, 0, 0, 0, time.UTC),
		maxBufLen: maxBufLen,
		sink:      sink,
	}
	if maxBufLen > 0 {
		d.buf = make([]record.Request, 0, maxBufLen)
	}
	return d
}

// Idx returns the day index.
func (d *Day) Idx() int { return d.idx }

// Date returns the calendar date of the day.
func (d *Day) Date() time.Time { return d.date }

// Len returns the number of requests of the day, flushed or buffered.
func (d *Day) Len() int { return d.flushed + len(d.buf) }

// Flushed returns the number of requests already written to parts.
func (d *Day) Flushed() int { return d.flushed }

// Parts returns the locations of the spill parts in write order.
func (d *Day) Parts() []string { return slices.Clone(d.parts) }

// Sealed reports whether ResetIndex was called.
func (d *Day) Sealed() bool { return d.sealed }

// Append stamps r with the day's date and buffers it, flushing when the
// buffer is full.
func (d *Day) Append(ctx context.Context, r record.Request) error {
	if d.sealed {
		return ErrSealed
	}
	r.Date = d.date
	d.buf = append(d.buf, r)
	return d.flushIfFull(ctx)
}

// BulkAppend appends rs in order. The buffer never grows past the limit:
// it is flushed each time it fills up.
func (d *Day) BulkAppend(ctx context.Context, rs []record.Request) error {
	if d.sealed {
		return ErrSealed
	}
	for len(rs) > 0 {
		n := len(rs)
		if d.maxBufLen > 0 {
			n = min(n, d.maxBufLen-len(d.buf))
		}
		for _, r := range rs[:n] {
			r.Date = d.date
			d.buf = append(d.buf, r)
		}
		rs = rs[n:]
		if err := d.flushIfFull(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *Day) flushIfFull(ctx context.Context) error {
	if d.maxBufLen <= 0 || len(d.buf) < d.maxBufLen {
		return nil
	}
	return d.Save(ctx)
}

// Save writes the buffered rows to a new spill part and clears the buffer.
// It is the only operation that performs I/O. On error the buffer is left
// untouched so the flush can be retried.
func (d *Day) Save(ctx context.Context) error {
	if len(d.buf) == 0 {
		return nil
	}
	if d.sink == nil {
		return ErrNoSink
	}
	path, err := d.sink.WritePart(ctx, d.date, len(d.parts), d.buf)
	if err != nil {
		return fmt.Errorf("flush day %d: %w", d.idx, err)
	}
	d.parts = append(d.parts, path)
	d.flushed += len(d.buf)
	d.buf = d.buf[:0]
	return nil
}

// Buffered returns a copy of the rows held in memory.
func (d *Day) Buffered() []record.Request {
	return slices.Clone(d.buf)
}

// Scan calls fn for every request of the day in order: flushed parts first,
// then the buffer. Memory use is bounded by one part.
func (d *Day) Scan(ctx context.Context, fn func(record.Request) error) error {
	for _, p := range d.parts {
		if err := d.sink.ReadPart(ctx, p, fn); err != nil {
			return fmt.Errorf("read day %d part %s: %w", d.idx, p, err)
		}
	}
	for _, r := range d.buf {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// DF returns the full logical content of the day without flushing.
func (d *Day) DF(ctx context.Context) ([]record.Request, error) {
	out := make([]record.Request, 0, d.Len())
	err := d.Scan(ctx, func(r record.Request) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResetIndex seals the day: no more rows can be appended, and rows are
// addressed by contiguous positions 0..Len()-1 in append order.
func (d *Day) ResetIndex() {
	d.sealed = true
	d.buf = slices.Clip(d.buf)
}
