package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/record"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 1, Min: 3, Max: 3, Mean: 3, P50: 3, P95: 3}, Summarize([]float64{3}))

	s := Summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.2909944487358056, s.Std, 1e-12)
	assert.Equal(t, 2.0, s.P50)
	assert.Equal(t, 4.0, s.P95)
}

func TestStatsBuilder(t *testing.T) {
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d1 := d0.AddDate(0, 0, 1)

	b := NewStatsBuilder()
	for _, r := range []record.Request{
		{Date: d0, Filename: 1, Size: 10, JobSuccess: true},
		{Date: d0, Filename: 1, Size: 20, JobSuccess: true},
		{Date: d0, Filename: 2, Size: 30, JobSuccess: false},
		{Date: d1, Filename: 2, Size: 40, JobSuccess: true},
	} {
		b.Add(r)
	}
	st := b.Stats()

	assert.Equal(t, 2, st.NumDays)
	assert.Equal(t, 4, st.TotRequests)
	assert.Equal(t, 2, st.UniqueFiles)
	assert.Equal(t, 0.75, st.SuccessRate)
	assert.Equal(t, 25.0, st.Size.Mean)
	assert.Equal(t, []DayStats{
		{DayIdx: 0, Date: d0, Requests: 3, UniqueFiles: 2, TotalSize: 60},
		{DayIdx: 1, Date: d1, Requests: 1, UniqueFiles: 1, TotalSize: 40},
	}, st.PerDay)
}

func TestStatsBuilder_Empty(t *testing.T) {
	st := NewStatsBuilder().Stats()
	assert.Zero(t, st.TotRequests)
	assert.Zero(t, st.SuccessRate)
	assert.NotNil(t, st.PerDay)
}

func TestStatsBuilder_ReservoirBounded(t *testing.T) {
	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newStatsBuilder(10)
	for i := 1; i <= 1000; i++ {
		b.Add(record.Request{Date: d0, Filename: int64(i % 7), Size: float64(i)})
	}
	assert.Len(t, b.size.sample, 10)

	st := b.Stats()
	assert.Equal(t, 1000, st.TotRequests)
	assert.Equal(t, 1000, st.Size.Count)
	assert.Equal(t, 1.0, st.Size.Min)
	assert.Equal(t, 1000.0, st.Size.Max)
	assert.InDelta(t, 500.5, st.Size.Mean, 1e-9)
	assert.InDelta(t, 288.8194361, st.Size.Std, 1e-6)
	assert.GreaterOrEqual(t, st.Size.P50, st.Size.Min)
	assert.LessOrEqual(t, st.Size.P95, st.Size.Max)
	assert.Equal(t, 7, st.UniqueFiles)
}

func TestDFStats_FlushedMatchesInMemory(t *testing.T) {
	stats := func(maxBufLen int) *Stats {
		g := newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 25, MaxBufLen: maxBufLen})
		prepare(t, g, function.NameRandomGenerator, nil)
		st, err := g.DFStats(context.Background())
		require.NoError(t, err)
		return st
	}
	assert.Equal(t, stats(1000), stats(4))
}

func TestDFStats_CountAccounting(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 4, NumReqXDay: 30, ReqXDayDist: function.DistPoisson, MaxBufLen: 8})
	prepare(t, g, function.NameRandomGenerator, nil)

	st, err := g.DFStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, st.NumDays)
	assert.Equal(t, g.TotNumRequests(), st.TotRequests)
	assert.Equal(t, len(df(t, g)), st.TotRequests)

	sum := 0
	require.Len(t, st.PerDay, 4)
	for i, ds := range st.PerDay {
		assert.Equal(t, i, ds.DayIdx)
		assert.Equal(t, g.Days()[i].Len(), ds.Requests)
		sum += ds.Requests
	}
	assert.Equal(t, st.TotRequests, sum)
	assert.Equal(t, 1.0, st.SuccessRate)
	assert.GreaterOrEqual(t, st.WrapWC.Min, float64(record.MinWallTime))
	assert.LessOrEqual(t, st.WrapWC.Max, float64(record.MaxWallTime))
}

func TestDFStats_SkippedAndEmptyDays(t *testing.T) {
	g := newTestGenerator(t, Options{NumDays: 3, NumReqXDay: 0, OnDayError: "skip"},
		WithRegistry(flakyRegistry(t, 1)))
	prepare(t, g, "Flaky", nil)

	st, err := g.DFStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.NumDays)
	assert.Equal(t, []int{1}, st.Skipped)
	require.Len(t, st.PerDay, 2)
	assert.Equal(t, 0, st.PerDay[0].DayIdx)
	assert.Equal(t, 2, st.PerDay[1].DayIdx)
	assert.Zero(t, st.PerDay[1].Requests)
}
