// Package record defines the fixed request schema shared by every
// generation strategy and every output format.
//
// The column set and its order are part of the output contract consumed by
// downstream cache simulators. Strategies differ only in how values are
// sampled, never in which columns exist.
package record

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the textual encoding of the Date column.
const DateLayout = "2006-01-02"

// Column names in output order.
const (
	ColDate       = "Date"
	ColFilename   = "Filename"
	ColSize       = "Size"
	ColCPUTime    = "CPUTime"
	ColIOTime     = "IOTime"
	ColJobSuccess = "JobSuccess"
	ColWrapWC     = "WrapWC"
	ColNumCPU     = "NumCPU"
)

// Kind is the logical type of a column.
type Kind string

const (
	KindDate  Kind = "date"
	KindInt   Kind = "int64"
	KindFloat Kind = "float64"
	KindBool  Kind = "bool"
)

// Column describes one output column.
type Column struct {
	Name string
	Kind Kind
}

// Columns is the fixed, order-significant schema.
var Columns = []Column{
	{ColDate, KindDate},
	{ColFilename, KindInt},
	{ColSize, KindFloat},
	{ColCPUTime, KindFloat},
	{ColIOTime, KindFloat},
	{ColJobSuccess, KindBool},
	{ColWrapWC, KindFloat},
	{ColNumCPU, KindInt},
}

// Header returns the column names in order.
func Header() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}

// Request is one file-access request of the synthetic workload.
type Request struct {
	Date       time.Time
	Filename   int64
	Size       float64
	CPUTime    float64
	IOTime     float64
	JobSuccess bool
	WrapWC     float64
	NumCPU     int64
}

// Fields encodes the request as strings in column order.
// Floats use the shortest representation that round-trips exactly.
func (r Request) Fields() []string {
	return []string{
		r.Date.UTC().Format(DateLayout),
		strconv.FormatInt(r.Filename, 10),
		formatFloat(r.Size),
		formatFloat(r.CPUTime),
		formatFloat(r.IOTime),
		strconv.FormatBool(r.JobSuccess),
		formatFloat(r.WrapWC),
		strconv.FormatInt(r.NumCPU, 10),
	}
}

// Parse decodes a row produced by Fields.
func Parse(fields []string) (Request, error) {
	var r Request
	if len(fields) != len(Columns) {
		return r, fmt.Errorf("parse request: expected %d fields, got %d", len(Columns), len(fields))
	}

	var err error
	if r.Date, err = time.Parse(DateLayout, fields[0]); err != nil {
		return r, fmt.Errorf("parse request: %s: %w", ColDate, err)
	}
	if r.Filename, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return r, fmt.Errorf("parse request: %s: %w", ColFilename, err)
	}
	floats := []*float64{&r.Size, &r.CPUTime, &r.IOTime}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(fields[2+i], 64); err != nil {
			return r, fmt.Errorf("parse request: %s: %w", Columns[2+i].Name, err)
		}
	}
	if r.JobSuccess, err = strconv.ParseBool(fields[5]); err != nil {
		return r, fmt.Errorf("parse request: %s: %w", ColJobSuccess, err)
	}
	if r.WrapWC, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return r, fmt.Errorf("parse request: %s: %w", ColWrapWC, err)
	}
	if r.NumCPU, err = strconv.ParseInt(fields[7], 10, 64); err != nil {
		return r, fmt.Errorf("parse request: %s: %w", ColNumCPU, err)
	}
	return r, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
