package function

import (
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
)

// NameRandomGenerator is the registry name of RandomGenerator.
const NameRandomGenerator = "RandomGenerator"

// randomParams are the common parameters with sizes drawn uniformly from
// the configured range.
func randomParams() []ParamSpec {
	params := commonParams()
	for i := range params {
		if params[i].Name == ParamSizeGenerator {
			params[i].Default = GenInRangeRandomSizes
		}
	}
	return params
}

// RandomGenerator picks files uniformly and draws a fresh size per request,
// independent of the day index.
type RandomGenerator struct {
	base
}

// NewRandomGenerator builds a RandomGenerator from resolved parameters.
func NewRandomGenerator(p Params, count RequestCount) (*RandomGenerator, error) {
	b, err := newBase(NameRandomGenerator, "Random Generator", p, count)
	if err != nil {
		return nil, err
	}
	return &RandomGenerator{base: b}, nil
}

// GenDayElements implements GenFunction.
func (g *RandomGenerator) GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error) {
	n := g.count.Sample(s)
	out := make([]record.Request, 0, n)
	for i := 0; i < n; i++ {
		f := int64(s.IntN(int(g.numFiles)))
		size := g.sizeFn(s, g.minSize, g.maxSize)
		out = append(out, newRequest(f, size, s))
	}
	return out, nil
}
