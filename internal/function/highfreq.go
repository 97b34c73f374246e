package function

import (
	"fmt"

	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
)

// NameHighFrequencyDataset is the registry name of HighFrequencyDataset.
const NameHighFrequencyDataset = "HighFrequencyDataset"

// HighFrequencyDataset parameter names.
const (
	ParamLambdaLess    = "lambda_less_req_files"
	ParamLambdaMore    = "lambda_more_req_files"
	ParamPercMoreReq   = "perc_more_req_files"
	ParamPercFreqFiles = "perc_freq_files"
	ParamPercFilesXDay = "perc_files_x_day"
)

func highFrequencyParams() []ParamSpec {
	return append(commonParams(),
		ParamSpec{Name: ParamLambdaLess, Type: TypeFloat, Default: 1.0, Min: bound(0), Max: bound(1e6), Help: "popularity rate of the remainder files"},
		ParamSpec{Name: ParamLambdaMore, Type: TypeFloat, Default: 10.0, Min: bound(0), Max: bound(1e6), Help: "popularity rate of the frequent files"},
		ParamSpec{Name: ParamPercMoreReq, Type: TypeFloat, Default: 0.8, Min: bound(0), Max: bound(1), Help: "fraction of requests that target the frequent files"},
		ParamSpec{Name: ParamPercFreqFiles, Type: TypeFloat, Default: 0.1, Min: bound(0), Max: bound(1), Help: "fraction of files in the frequent subset"},
		ParamSpec{Name: ParamPercFilesXDay, Type: TypeFloat, Default: 0.25, Min: bound(0), Max: bound(1), Help: "fraction of remainder files active each day (at least one when positive)"},
	)
}

// HighFrequencyDataset splits the file universe into a frequent subset and
// a remainder. A fixed fraction of requests goes to the frequent subset;
// within each subset files are picked by a per-day Poisson popularity.
type HighFrequencyDataset struct {
	base
	lambdaLess    float64
	lambdaMore    float64
	percMoreReq   float64
	numFreq       int64
	percFilesXDay float64
}

// NewHighFrequencyDataset builds a HighFrequencyDataset from resolved parameters.
func NewHighFrequencyDataset(p Params, count RequestCount) (*HighFrequencyDataset, error) {
	b, err := newBase(NameHighFrequencyDataset, "High Frequency Dataset", p, count)
	if err != nil {
		return nil, err
	}
	g := &HighFrequencyDataset{
		base:          b,
		lambdaLess:    p.Float(ParamLambdaLess),
		lambdaMore:    p.Float(ParamLambdaMore),
		percMoreReq:   p.Float(ParamPercMoreReq),
		percFilesXDay: p.Float(ParamPercFilesXDay),
	}
	g.numFreq = max(1, roundFrac(b.numFiles, p.Float(ParamPercFreqFiles)))
	if g.numFreq > b.numFiles {
		g.numFreq = b.numFiles
	}
	return g, nil
}

// NumFrequent returns the size of the frequent subset. Files
// [0, NumFrequent()) are frequent.
func (g *HighFrequencyDataset) NumFrequent() int64 {
	return g.numFreq
}

// IsFrequent reports whether file f belongs to the frequent subset.
func (g *HighFrequencyDataset) IsFrequent(f int64) bool {
	return f >= 0 && f < g.numFreq
}

// GenDayElements implements GenFunction.
func (g *HighFrequencyDataset) GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error) {
	n := g.count.Sample(s)
	if n == 0 {
		return []record.Request{}, nil
	}

	freq := make([]int64, g.numFreq)
	for i := range freq {
		freq[i] = int64(i)
	}
	rest := g.activeRemainder(s)

	freqPick := popularity(freq, g.lambdaMore, s)
	restPick := popularity(rest, g.lambdaLess, s)
	sizes := newFileSizes(&g.base, s)

	out := make([]record.Request, 0, n)
	for i := 0; i < n; i++ {
		files, pick, subset := rest, restPick, "remainder"
		if s.Bernoulli(g.percMoreReq) {
			files, pick, subset = freq, freqPick, "frequent"
		}
		if pick.Empty() {
			return nil, fmt.Errorf("day %d: no %s files to request: %w",
				dayIdx, subset, ErrFileUniverseExhausted)
		}
		f := files[pick.Draw(s)]
		out = append(out, newRequest(f, sizes.get(f), s))
	}
	return out, nil
}

// activeRemainder samples the remainder files that may be requested today.
func (g *HighFrequencyDataset) activeRemainder(s *sampling.Sampler) []int64 {
	total := g.numFiles - g.numFreq
	if total <= 0 {
		return nil
	}
	// Any positive fraction keeps at least one remainder file active; zero
	// leaves the remainder closed.
	k := roundFrac(total, g.percFilesXDay)
	if g.percFilesXDay > 0 {
		k = max(1, k)
	}
	perm := s.Perm(int(total))
	out := make([]int64, k)
	for i := range out {
		out[i] = g.numFreq + int64(perm[i])
	}
	return out
}

// popularity weights each file with 1 + Poisson(lambda).
func popularity(files []int64, lambda float64, s *sampling.Sampler) *sampling.Weighted {
	w := make([]float64, len(files))
	for i := range files {
		w[i] = float64(1 + s.Poisson(lambda))
	}
	return sampling.NewWeighted(w)
}
