package function

import (
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
)

// NameSizeFocusedDataset is the registry name of SizeFocusedDataset.
const NameSizeFocusedDataset = "SizeFocusedDataset"

// Noise range parameter names.
const (
	ParamNoiseMinFileSize = "noise_min_file_size"
	ParamNoiseMaxFileSize = "noise_max_file_size"
)

func sizeFocusedParams() []ParamSpec {
	return append(commonParams(),
		ParamSpec{Name: ParamPercNoise, Type: TypeFloat, Default: 0.1, Min: bound(0), Max: bound(1), Help: "fraction of requests sized from the noise range"},
		ParamSpec{Name: ParamNoiseMinFileSize, Type: TypeInt, Default: 48000, Min: bound(0), Max: bound(1e12), Help: "minimum noise file size"},
		ParamSpec{Name: ParamNoiseMaxFileSize, Type: TypeInt, Default: 96000, Min: bound(0), Max: bound(1e12), Help: "maximum noise file size"},
	)
}

// SizeFocusedDataset draws sizes mostly from the primary range, with a
// fraction of outliers drawn uniformly from a secondary noise range.
type SizeFocusedDataset struct {
	base
	percNoise float64
	noiseMin  int64
	noiseMax  int64
}

// NewSizeFocusedDataset builds a SizeFocusedDataset from resolved parameters.
func NewSizeFocusedDataset(p Params, count RequestCount) (*SizeFocusedDataset, error) {
	b, err := newBase(NameSizeFocusedDataset, "Size Focused Dataset", p, count)
	if err != nil {
		return nil, err
	}
	g := &SizeFocusedDataset{
		base:      b,
		percNoise: p.Float(ParamPercNoise),
		noiseMin:  p.Int(ParamNoiseMinFileSize),
		noiseMax:  p.Int(ParamNoiseMaxFileSize),
	}
	if g.noiseMin > g.noiseMax {
		return nil, paramErrorf(g.name, ParamNoiseMinFileSize, "must be <= %s (%d > %d)",
			ParamNoiseMaxFileSize, g.noiseMin, g.noiseMax)
	}
	return g, nil
}

// InPrimaryRange reports whether size lies in [min_file_size, max_file_size].
func (g *SizeFocusedDataset) InPrimaryRange(size float64) bool {
	return size >= float64(g.minSize) && size <= float64(g.maxSize)
}

// InNoiseRange reports whether size lies in [noise_min_file_size, noise_max_file_size].
func (g *SizeFocusedDataset) InNoiseRange(size float64) bool {
	return size >= float64(g.noiseMin) && size <= float64(g.noiseMax)
}

// GenDayElements implements GenFunction.
func (g *SizeFocusedDataset) GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error) {
	n := g.count.Sample(s)
	out := make([]record.Request, 0, n)
	for i := 0; i < n; i++ {
		f := int64(s.IntN(int(g.numFiles)))
		var size float64
		if s.Bernoulli(g.percNoise) {
			size = float64(s.UniformInt(g.noiseMin, g.noiseMax))
		} else {
			size = g.sizeFn(s, g.minSize, g.maxSize)
		}
		out = append(out, newRequest(f, size, s))
	}
	return out, nil
}
