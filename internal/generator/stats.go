package generator

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/datasetgen/internal/record"
)

// Summary describes the distribution of one numeric column.
type Summary struct {
	Count int     `json:"count" yaml:"count"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Std   float64 `json:"std" yaml:"std"`
	P50   float64 `json:"p50" yaml:"p50"`
	P95   float64 `json:"p95" yaml:"p95"`
}

// Summarize computes the summary of xs. xs is sorted in place.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	slices.Sort(xs)
	s := Summary{
		Count: len(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		P50:   stat.Quantile(0.5, stat.Empirical, xs, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, xs, nil),
	}
	if len(xs) == 1 {
		s.Mean = xs[0]
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	return s
}

// DayStats are the totals of one day.
type DayStats struct {
	DayIdx      int       `json:"day_idx" yaml:"day_idx"`
	Date        time.Time `json:"date" yaml:"date"`
	Requests    int       `json:"requests" yaml:"requests"`
	UniqueFiles int       `json:"unique_files" yaml:"unique_files"`
	TotalSize   float64   `json:"total_size" yaml:"total_size"`
}

// Stats are the aggregate statistics of a trace.
type Stats struct {
	NumDays     int        `json:"num_days" yaml:"num_days"`
	TotRequests int        `json:"tot_requests" yaml:"tot_requests"`
	UniqueFiles int        `json:"unique_files" yaml:"unique_files"`
	SuccessRate float64    `json:"success_rate" yaml:"success_rate"`
	Size        Summary    `json:"size" yaml:"size"`
	CPUTime     Summary    `json:"cpu_time" yaml:"cpu_time"`
	IOTime      Summary    `json:"io_time" yaml:"io_time"`
	WrapWC      Summary    `json:"wrap_wc" yaml:"wrap_wc"`
	PerDay      []DayStats `json:"per_day" yaml:"per_day"`
	Skipped     []int      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// DefaultReservoirSize bounds the rows a StatsBuilder keeps per column.
// Quantiles are exact up to this many rows and sampled beyond it.
const DefaultReservoirSize = 1 << 16

// column accumulates one numeric column in constant memory: running
// moments over every value and a uniform reservoir sample for quantiles.
type column struct {
	n        int
	min, max float64
	mean, m2 float64
	sample   []float64
	limit    int
}

func (c *column) add(x float64, rng *rand.Rand) {
	c.n++
	if c.n == 1 || x < c.min {
		c.min = x
	}
	if c.n == 1 || x > c.max {
		c.max = x
	}
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)

	if len(c.sample) < c.limit {
		c.sample = append(c.sample, x)
		return
	}
	if j := rng.IntN(c.n); j < c.limit {
		c.sample[j] = x
	}
}

func (c *column) summary() Summary {
	if c.n <= len(c.sample) {
		return Summarize(slices.Clone(c.sample))
	}
	s := Summarize(slices.Clone(c.sample))
	s.Count = c.n
	s.Min, s.Max = c.min, c.max
	s.Mean = c.mean
	if c.n > 1 {
		s.Std = math.Sqrt(c.m2 / float64(c.n-1))
	}
	return s
}

// StatsBuilder accumulates Stats row by row. Rows of one day must be added
// contiguously, days in ascending date order. Memory is bounded by the
// reservoir size and the number of distinct files.
type StatsBuilder struct {
	files                         map[int64]struct{}
	dayFiles                      map[int64]struct{}
	size, cpuTime, ioTime, wrapWC column
	total, succeeded              int
	perDay                        []DayStats
	rng                           *rand.Rand
}

// NewStatsBuilder returns an empty builder keeping DefaultReservoirSize
// rows per column.
func NewStatsBuilder() *StatsBuilder {
	return newStatsBuilder(DefaultReservoirSize)
}

func newStatsBuilder(limit int) *StatsBuilder {
	b := &StatsBuilder{
		files: make(map[int64]struct{}),
		// Fixed seed: the same rows always yield the same quantiles.
		rng: rand.New(rand.NewPCG(0x5eed, 0x57a7)),
	}
	for _, c := range []*column{&b.size, &b.cpuTime, &b.ioTime, &b.wrapWC} {
		c.limit = limit
	}
	return b
}

// Add accounts for one request.
func (b *StatsBuilder) Add(r record.Request) {
	if n := len(b.perDay); n == 0 || !b.perDay[n-1].Date.Equal(r.Date) {
		b.perDay = append(b.perDay, DayStats{DayIdx: n, Date: r.Date})
		b.dayFiles = make(map[int64]struct{})
	}
	ds := &b.perDay[len(b.perDay)-1]
	ds.Requests++
	ds.TotalSize += r.Size
	if _, ok := b.dayFiles[r.Filename]; !ok {
		b.dayFiles[r.Filename] = struct{}{}
		ds.UniqueFiles++
	}
	b.files[r.Filename] = struct{}{}

	b.total++
	b.size.add(r.Size, b.rng)
	b.cpuTime.add(r.CPUTime, b.rng)
	b.ioTime.add(r.IOTime, b.rng)
	b.wrapWC.add(r.WrapWC, b.rng)
	if r.JobSuccess {
		b.succeeded++
	}
}

// Stats returns the accumulated statistics.
func (b *StatsBuilder) Stats() *Stats {
	st := &Stats{
		NumDays:     len(b.perDay),
		TotRequests: b.total,
		UniqueFiles: len(b.files),
		Size:        b.size.summary(),
		CPUTime:     b.cpuTime.summary(),
		IOTime:      b.ioTime.summary(),
		WrapWC:      b.wrapWC.summary(),
		PerDay:      slices.Clone(b.perDay),
	}
	if b.total > 0 {
		st.SuccessRate = float64(b.succeeded) / float64(b.total)
	}
	if st.PerDay == nil {
		st.PerDay = []DayStats{}
	}
	return st
}

// DFStats computes statistics over the combined trace, flushed parts
// included.
func (g *Generator) DFStats(ctx context.Context) (*Stats, error) {
	b := NewStatsBuilder()
	days := g.Days()
	for _, d := range days {
		if err := d.Scan(ctx, func(r record.Request) error {
			b.Add(r)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	st := b.Stats()

	// Empty days leave no row behind; report every generated day.
	perDay := make([]DayStats, 0, len(days))
	byDate := make(map[time.Time]DayStats, len(st.PerDay))
	for _, ds := range st.PerDay {
		byDate[ds.Date] = ds
	}
	for _, d := range days {
		ds, ok := byDate[d.Date()]
		if !ok {
			ds = DayStats{Date: d.Date()}
		}
		ds.DayIdx = d.Idx()
		perDay = append(perDay, ds)
	}
	st.PerDay = perDay
	st.NumDays = len(days)
	st.Skipped = g.Skipped()
	return st, nil
}
