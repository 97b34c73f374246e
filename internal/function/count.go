package function

import (
	"fmt"

	"github.com/roach88/datasetgen/internal/sampling"
)

// Distribution selects how a day's request count is obtained.
type Distribution string

const (
	// DistFixed uses Mean requests every day.
	DistFixed Distribution = "fixed"
	// DistPoisson draws each day's count from Poisson(Mean).
	DistPoisson Distribution = "poisson"
)

// RequestCount is the number of requests per day: a fixed integer or a
// distribution to sample from.
type RequestCount struct {
	Mean int          `json:"mean" yaml:"mean"`
	Dist Distribution `json:"dist" yaml:"dist"`
}

// Fixed returns a constant request count.
func Fixed(n int) RequestCount {
	return RequestCount{Mean: n, Dist: DistFixed}
}

// Poisson returns a Poisson distributed request count with the given mean.
func Poisson(mean int) RequestCount {
	return RequestCount{Mean: mean, Dist: DistPoisson}
}

// Validate checks the count is usable.
func (c RequestCount) Validate() error {
	if c.Mean < 0 {
		return fmt.Errorf("num_req_x_day must be >= 0, got %d", c.Mean)
	}
	switch c.Dist {
	case DistFixed, DistPoisson, "":
		return nil
	default:
		return fmt.Errorf("unknown request count distribution %q", c.Dist)
	}
}

// Sample returns the request count of one day.
func (c RequestCount) Sample(s *sampling.Sampler) int {
	if c.Dist == DistPoisson {
		return int(s.Poisson(float64(c.Mean)))
	}
	return c.Mean
}

func (c RequestCount) String() string {
	if c.Dist == DistPoisson {
		return fmt.Sprintf("poisson(%d)", c.Mean)
	}
	return fmt.Sprintf("%d", c.Mean)
}
