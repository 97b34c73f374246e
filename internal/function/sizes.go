package function

import (
	"github.com/roach88/datasetgen/internal/sampling"
)

// Size generator function names.
const (
	GenRandomSizes        = "gen_random_sizes"
	GenInRangeRandomSizes = "gen_in_range_random_sizes"
)

// SizeFuncNames lists the accepted size_generator_function values.
var SizeFuncNames = []string{GenRandomSizes, GenInRangeRandomSizes}

// SizeFunc draws one file size in [lo, hi].
type SizeFunc func(s *sampling.Sampler, lo, hi int64) float64

// randomSizeLambda and randomSizeUnit shape gen_random_sizes: a Poisson
// count of KiB, clamped into the configured range.
const (
	randomSizeLambda = 4
	randomSizeUnit   = 1024
)

// genRandomSize draws Poisson(4) KiB and clamps it to [lo, hi].
func genRandomSize(s *sampling.Sampler, lo, hi int64) float64 {
	size := float64(s.Poisson(randomSizeLambda) * randomSizeUnit)
	if size < float64(lo) {
		return float64(lo)
	}
	if size > float64(hi) {
		return float64(hi)
	}
	return size
}

// genInRangeRandomSize draws a uniform integer size in [lo, hi].
func genInRangeRandomSize(s *sampling.Sampler, lo, hi int64) float64 {
	return float64(s.UniformInt(lo, hi))
}

func lookupSizeFunc(name string) (SizeFunc, bool) {
	switch name {
	case GenRandomSizes:
		return genRandomSize, true
	case GenInRangeRandomSizes:
		return genInRangeRandomSize, true
	default:
		return nil, false
	}
}
