package function

import (
	"fmt"
	"math"

	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
)

// NameRecencyFocusedDataset is the registry name of RecencyFocusedDataset.
const NameRecencyFocusedDataset = "RecencyFocusedDataset"

// Recency parameter names.
const (
	ParamPercNoise    = "perc_noise"
	ParamRecencyDecay = "recency_decay"
)

func recencyParams() []ParamSpec {
	return append(commonParams(),
		ParamSpec{Name: ParamPercNoise, Type: TypeFloat, Default: 0.1, Min: bound(0), Max: bound(1), Help: "fraction of requests that ignore recency"},
		ParamSpec{Name: ParamPercFilesXDay, Type: TypeFloat, Default: 0.25, Min: bound(0), Max: bound(1), Help: "fraction of files created each day"},
		ParamSpec{Name: ParamRecencyDecay, Type: TypeFloat, Default: 0.5, Min: bound(0), Max: bound(100), Help: "exponential decay of popularity per day of age"},
	)
}

// RecencyFocusedDataset creates files day by day and favours young files:
// a file's weight decays exponentially with its age in days.
type RecencyFocusedDataset struct {
	base
	percNoise   float64
	filesPerDay int64
	decay       float64
}

// NewRecencyFocusedDataset builds a RecencyFocusedDataset from resolved parameters.
func NewRecencyFocusedDataset(p Params, count RequestCount) (*RecencyFocusedDataset, error) {
	b, err := newBase(NameRecencyFocusedDataset, "Recency Focused Dataset", p, count)
	if err != nil {
		return nil, err
	}
	return &RecencyFocusedDataset{
		base:        b,
		percNoise:   p.Float(ParamPercNoise),
		filesPerDay: max(1, roundFrac(b.numFiles, p.Float(ParamPercFilesXDay))),
		decay:       p.Float(ParamRecencyDecay),
	}, nil
}

// CreatedOn returns the day index on which file f appears.
func (g *RecencyFocusedDataset) CreatedOn(f int64) int {
	return int(f / g.filesPerDay)
}

// existing returns how many files exist on day dayIdx.
func (g *RecencyFocusedDataset) existing(dayIdx int) int64 {
	n := (int64(dayIdx) + 1) * g.filesPerDay
	return min(n, g.numFiles)
}

// GenDayElements implements GenFunction.
func (g *RecencyFocusedDataset) GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error) {
	if dayIdx < 0 {
		return nil, fmt.Errorf("day %d: negative day index", dayIdx)
	}
	n := g.count.Sample(s)
	if n == 0 {
		return []record.Request{}, nil
	}

	live := g.existing(dayIdx)
	weights := make([]float64, live)
	for f := range weights {
		age := dayIdx - g.CreatedOn(int64(f))
		weights[f] = math.Exp(-g.decay * float64(age))
	}
	pick := sampling.NewWeighted(weights)
	if pick.Empty() {
		return nil, fmt.Errorf("day %d: no files exist: %w", dayIdx, ErrFileUniverseExhausted)
	}
	sizes := newFileSizes(&g.base, s)

	out := make([]record.Request, 0, n)
	for i := 0; i < n; i++ {
		var f int64
		if s.Bernoulli(g.percNoise) {
			f = int64(s.IntN(int(live)))
		} else {
			f = int64(pick.Draw(s))
		}
		out = append(out, newRequest(f, sizes.get(f), s))
	}
	return out, nil
}
