package record

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_FixedOrder(t *testing.T) {
	assert.Equal(t, []string{
		"Date", "Filename", "Size", "CPUTime", "IOTime", "JobSuccess", "WrapWC", "NumCPU",
	}, Header())
}

func TestFieldsParse_RoundTrip(t *testing.T) {
	r := Request{
		Date:       time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		Filename:   17,
		Size:       4096,
		CPUTime:    12.345678901234,
		IOTime:     100.5,
		JobSuccess: true,
		WrapWC:     112.845678901234,
		NumCPU:     1,
	}

	fields := r.Fields()
	require.Len(t, fields, len(Columns))
	assert.Equal(t, "2020-01-02", fields[0])
	assert.Equal(t, "4096", fields[2])

	got, err := Parse(fields)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]string{"2020-01-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8 fields")

	fields := Request{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}.Fields()
	fields[5] = "maybe"
	_, err = Parse(fields)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColJobSuccess)
}

func TestFakeCPUWork_Bounds(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		var r Request
		FakeCPUWork(&r, rnd)

		assert.Equal(t, int64(1), r.NumCPU)
		assert.True(t, r.JobSuccess)
		assert.GreaterOrEqual(t, r.WrapWC, float64(MinWallTime))
		assert.LessOrEqual(t, r.WrapWC, float64(MaxWallTime))
		assert.GreaterOrEqual(t, r.CPUTime, 0.0)
		assert.LessOrEqual(t, r.CPUTime, r.WrapWC)
		assert.InDelta(t, r.WrapWC, r.CPUTime+r.IOTime, 1e-9)
	}
}
