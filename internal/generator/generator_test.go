package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/ledger"
	"github.com/roach88/datasetgen/internal/metrics"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
	"github.com/roach88/datasetgen/internal/testutil"
)

var quiet = testutil.DiscardLogger()

func newTestGenerator(t *testing.T, opts Options, extra ...Option) *Generator {
	t.Helper()
	if opts.DestFolder == "" {
		opts.DestFolder = t.TempDir()
	}
	g := New(opts, append([]Option{WithLogger(quiet)}, extra...)...)
	t.Cleanup(func() { g.Close() })
	return g
}

func prepare(t *testing.T, g *Generator, name string, kwargs map[string]any) *Result {
	t.Helper()
	res, err := g.Prepare(context.Background(), name, kwargs)
	require.NoError(t, err)
	return res
}

func df(t *testing.T, g *Generator) []record.Request {
	t.Helper()
	rows, err := g.DF(context.Background())
	require.NoError(t, err)
	return rows
}

// flakyFunction fails on selected days and emits rows tagged with the day.
type flakyFunction struct {
	count    function.RequestCount
	failDays map[int]bool
}

func (f *flakyFunction) Name() string                      { return "Flaky" }
func (f *flakyFunction) NumReqXDay() function.RequestCount { return f.count }
func (f *flakyFunction) GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error) {
	if f.failDays[dayIdx] {
		return nil, function.ErrFileUniverseExhausted
	}
	n := f.count.Sample(s)
	out := make([]record.Request, n)
	for i := range out {
		out[i] = record.Request{Filename: int64(dayIdx*1000 + i), Size: 1, JobSuccess: true}
	}
	return out, nil
}

func flakyRegistry(t *testing.T, failDays ...int) *function.Registry {
	t.Helper()
	fail := make(map[int]bool)
	for _, d := range failDays {
		fail[d] = true
	}
	r := function.NewRegistry()
	require.NoError(t, r.Register(function.Entry{Name: "Flaky"}, func(_ function.Params, count function.RequestCount) (function.GenFunction, error) {
		return &flakyFunction{count: count, failDays: fail}, nil
	}))
	return r
}

func TestDefaultSeed(t *testing.T) {
	g := New(Options{})
	assert.Equal(t, uint64(42), g.Seed())

	g = New(Options{Seed: testutil.Uint64(0)})
	assert.Equal(t, uint64(0), g.Seed())
}

func TestPrepare_Seed42Scenario(t *testing.T) {
	opts := Options{NumDays: 3, NumReqXDay: 100, Seed: testutil.Uint64(42)}
	g := newTestGenerator(t, opts)
	res := prepare(t, g, function.NameRandomGenerator, nil)

	assert.Equal(t, ledger.StatusComplete, res.Status)
	assert.Equal(t, 3, res.Generated)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 300, res.TotRequests)
	assert.Equal(t, 300, g.TotNumRequests())

	days := g.Days()
	require.Len(t, days, 3)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range days {
		assert.Equal(t, i, d.Idx())
		assert.Equal(t, 100, d.Len())
		assert.True(t, d.Sealed())
		rows, err := d.DF(context.Background())
		require.NoError(t, err)
		for _, r := range rows {
			assert.True(t, start.AddDate(0, 0, i).Equal(r.Date))
		}
	}

	rows := df(t, g)
	require.Len(t, rows, 300)

	// A second run with the same master seed reproduces every row.
	g2 := newTestGenerator(t, opts)
	prepare(t, g2, function.NameRandomGenerator, nil)
	assert.Equal(t, rows, df(t, g2))

	g3 := newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 100, Seed: testutil.Uint64(43)})
	prepare(t, g3, function.NameRandomGenerator, nil)
	assert.NotEqual(t, rows, df(t, g3))
}

func TestPrepare_WorkersDoNotChangeOutput(t *testing.T) {
	for _, name := range function.Default.Names() {
		t.Run(name, func(t *testing.T) {
			opts := Options{NumDays: 6, NumReqXDay: 50, ReqXDayDist: function.DistPoisson, MaxBufLen: 16}

			serial := newTestGenerator(t, opts)
			prepare(t, serial, name, nil)

			parallel := newTestGenerator(t, opts, WithWorkers(4))
			prepare(t, parallel, name, nil)

			assert.Equal(t, df(t, serial), df(t, parallel))
			assert.Equal(t, serial.Fingerprint(), parallel.Fingerprint())
		})
	}
}

func TestPrepare_FlushEquivalence(t *testing.T) {
	unbounded := newTestGenerator(t, Options{NumDays: 2, NumReqXDay: 95})
	prepare(t, unbounded, function.NameSizeFocusedDataset, nil)

	bounded := newTestGenerator(t, Options{NumDays: 2, NumReqXDay: 95, MaxBufLen: 10})
	prepare(t, bounded, function.NameSizeFocusedDataset, nil)

	for _, d := range bounded.Days() {
		assert.Equal(t, 90, d.Flushed())
		assert.Len(t, d.Parts(), 9)
		assert.Len(t, d.Buffered(), 5)
	}
	for _, d := range unbounded.Days() {
		assert.Zero(t, d.Flushed())
	}
	assert.Equal(t, df(t, unbounded), df(t, bounded))
	assert.Equal(t, 190, bounded.TotNumRequests())
}

func TestPrepare_ZeroRequests(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 2, NumReqXDay: 0})
	res := prepare(t, g, function.NameRecencyFocusedDataset, nil)
	assert.Equal(t, 2, res.Generated)
	assert.Zero(t, g.TotNumRequests())
	assert.Empty(t, df(t, g))
}

func TestPrepare_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		fn     string
		kwargs map[string]any
	}{
		{"unknown function", Options{NumDays: 1}, "NoSuchDataset", nil},
		{"unknown kwarg", Options{NumDays: 1}, function.NameRandomGenerator, map[string]any{"bogus": 1}},
		{"fraction out of range", Options{NumDays: 1}, function.NameHighFrequencyDataset, map[string]any{"perc_more_req_files": 1.2}},
		{"min above max", Options{NumDays: 1}, function.NameRandomGenerator, map[string]any{"min_file_size": 9, "max_file_size": 3}},
		{"zero days", Options{}, function.NameRandomGenerator, nil},
		{"negative requests", Options{NumDays: 1, NumReqXDay: -1}, function.NameRandomGenerator, nil},
		{"bad format", Options{NumDays: 1, Format: "parquet"}, function.NameRandomGenerator, nil},
		{"bad partition", Options{NumDays: 1, Partition: "hour"}, function.NameRandomGenerator, nil},
		{"bad policy", Options{NumDays: 1, OnDayError: "ignore"}, function.NameRandomGenerator, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "out")
			tt.opts.DestFolder = dest
			g := newTestGenerator(t, tt.opts)

			res, err := g.Prepare(context.Background(), tt.fn, tt.kwargs)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsConfigError(err), "got %v", err)

			// Rejected before any I/O.
			_, statErr := os.Stat(dest)
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestPrepare_UnknownFunctionWrapsSentinel(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 1})
	_, err := g.Prepare(context.Background(), "Nope", nil)
	assert.ErrorIs(t, err, function.ErrUnknownFunction)
}

func TestPrepare_AbortPolicy(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 5, NumReqXDay: 10}, WithRegistry(flakyRegistry(t, 2)))

	res, err := g.Prepare(context.Background(), "Flaky", nil)
	require.Error(t, err)
	assert.True(t, IsDayError(err))
	var de *DayError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.DayIdx)
	assert.ErrorIs(t, err, function.ErrFileUniverseExhausted)

	require.NotNil(t, res)
	assert.Equal(t, ledger.StatusFailed, res.Status)

	_, err = g.Save(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteRun)
}

func TestPrepare_SkipPolicy(t *testing.T) {
	for _, workers := range []int{1, 3} {
		g := newTestGenerator(t, Options{NumDays: 5, NumReqXDay: 10, OnDayError: "skip", Workers: workers},
			WithRegistry(flakyRegistry(t, 1, 3)))

		res := prepare(t, g, "Flaky", nil)
		assert.Equal(t, ledger.StatusPartial, res.Status)
		assert.Equal(t, []int{1, 3}, res.Skipped)
		assert.Equal(t, "skip", res.Policy)
		assert.Equal(t, 3, res.Generated)
		assert.Equal(t, 30, res.TotRequests)

		var idx []int
		for _, d := range g.Days() {
			idx = append(idx, d.Idx())
		}
		assert.Equal(t, []int{0, 2, 4}, idx)

		run, err := g.ledger.Run(context.Background(), res.RunID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, run.Skipped)
		assert.Equal(t, "skip", run.Policy)
	}
}

func TestPrepare_HighFrequencyExhaustedUniverse(t *testing.T) {
	kwargs := map[string]any{"perc_files_x_day": 0.0, "perc_more_req_files": 0.5}

	g := newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 20})
	_, err := g.Prepare(context.Background(), function.NameHighFrequencyDataset, kwargs)
	var de *DayError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.DayIdx)

	g = newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 20, OnDayError: "skip"})
	res := prepare(t, g, function.NameHighFrequencyDataset, kwargs)
	assert.Equal(t, []int{0, 1, 2}, res.Skipped)
	assert.Empty(t, g.Days())
}

func TestPrepare_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dest := t.TempDir()
	g := newTestGenerator(t, Options{DestFolder: dest, NumDays: 10, NumReqXDay: 20, MaxBufLen: 5},
		WithProgress(func(p Progress) {
			if p.Done == 2 {
				cancel()
			}
		}))

	res, err := g.Prepare(ctx, function.NameRandomGenerator, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, ledger.StatusCancelled, res.Status)
	assert.Equal(t, 2, res.Generated)

	// Spill parts of the generated days are recorded, and Clean removes them.
	files, err := g.ledger.Files(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 8)

	require.NoError(t, g.Clean(context.Background()))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrepare_Progress(t *testing.T) {
	var got []Progress
	g := newTestGenerator(t, Options{NumDays: 4, NumReqXDay: 1}, WithProgress(func(p Progress) {
		got = append(got, p)
	}))
	prepare(t, g, function.NameRandomGenerator, nil)

	require.Len(t, got, 4)
	for i, p := range got {
		assert.Equal(t, i+1, p.Done)
		assert.Equal(t, 4, p.Total)
	}
	assert.Equal(t, 100, got[3].Percent())
	assert.Equal(t, 25, got[0].Percent())
}

func TestPrepare_MixedOutput(t *testing.T) {
	ctx := context.Background()
	dest := t.TempDir()

	g := newTestGenerator(t, Options{DestFolder: dest, NumDays: 1, NumReqXDay: 5, Seed: testutil.Uint64(1)})
	prepare(t, g, function.NameRandomGenerator, nil)
	_, err := g.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	other := newTestGenerator(t, Options{DestFolder: dest, NumDays: 1, NumReqXDay: 5, Seed: testutil.Uint64(2)})
	_, err = other.Prepare(ctx, function.NameRandomGenerator, nil)
	assert.ErrorIs(t, err, ErrMixedOutput)
	assert.False(t, IsConfigError(err))

	require.NoError(t, other.Clean(ctx))
	prepare(t, other, function.NameRandomGenerator, nil)
}

func TestPrepare_SameConfigReplacesEarlierRun(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(t, Options{NumDays: 2, NumReqXDay: 5, MaxBufLen: 2},
		WithRunIDs(NewFixedGenerator("run-a", "run-b")))

	prepare(t, g, function.NameRandomGenerator, nil)
	first := df(t, g)
	_, err := g.Save(ctx)
	require.NoError(t, err)

	res := prepare(t, g, function.NameRandomGenerator, nil)
	assert.Equal(t, "run-b", res.RunID)
	assert.Equal(t, first, df(t, g))

	runs, err := g.ledger.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-b", runs[0].ID)
}

func TestSetSeed(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 1, NumReqXDay: 3})
	prepare(t, g, function.NameRandomGenerator, nil)
	require.Len(t, g.Days(), 1)

	g.SetSeed(7)
	assert.Equal(t, uint64(7), g.Seed())
	assert.Empty(t, g.Days())
	assert.Nil(t, g.Function())
}

func TestPrepare_Metrics(t *testing.T) {
	m := metrics.New()
	g := newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 10, MaxBufLen: 4}, WithMetrics(m))
	prepare(t, g, function.NameRandomGenerator, nil)

	n, err := promtestutil.GatherAndCount(m.Registry(), "datasetgen_days_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = promtestutil.GatherAndCount(m.Registry(), "datasetgen_flushes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFixedGenerator(t *testing.T) {
	ids := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", ids.Generate())
	assert.Equal(t, "b", ids.Generate())
	assert.Panics(t, func() { ids.Generate() })

	assert.Len(t, UUIDv7Generator{}.Generate(), 36)
}

func TestErrors(t *testing.T) {
	base := errors.New("boom")

	err := error(&DayError{DayIdx: 4, Err: &IOError{Op: "flush", Path: "/x", Err: base}})
	assert.True(t, IsDayError(err))
	assert.True(t, IsIOError(err))
	assert.False(t, IsConfigError(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "day 4: flush /x: boom", err.Error())

	err = &ConfigError{Err: base}
	assert.True(t, IsConfigError(err))
	assert.Equal(t, "invalid configuration: boom", err.Error())
	assert.Equal(t, "clean: boom", (&IOError{Op: "clean", Err: base}).Error())
}

func TestPrepare_RecordsRunTimes(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := testutil.NewStepClock(t0, time.Minute)
	g := newTestGenerator(t, Options{NumDays: 2, NumReqXDay: 3},
		WithClock(clock.Now), WithRunIDs(NewFixedGenerator("run-clock")))
	prepare(t, g, function.NameRandomGenerator, nil)

	run, err := g.ledger.Run(context.Background(), "run-clock")
	require.NoError(t, err)
	assert.True(t, t0.Equal(run.StartedAt))
	assert.True(t, t0.Add(time.Minute).Equal(run.FinishedAt))
	assert.Equal(t, 2, clock.Calls())
}
