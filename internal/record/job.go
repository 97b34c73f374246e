package record

// Wall-clock bounds, in seconds, of a synthetic job.
const (
	MinWallTime = 60
	MaxWallTime = 600
)

// Rand is the subset of *rand.Rand used to synthesize job metrics.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// FakeCPUWork fills the job-cost columns of r with a synthetic single-CPU
// job: wall time uniform in [MinWallTime, MaxWallTime], CPU time a uniform
// fraction of it and IO time the remainder.
func FakeCPUWork(r *Request, rnd Rand) {
	const numCPU = 1
	wall := float64(MinWallTime + rnd.IntN(MaxWallTime-MinWallTime+1))
	single := rnd.Float64() * wall

	r.NumCPU = numCPU
	r.WrapWC = wall
	r.CPUTime = single * numCPU
	r.IOTime = wall - r.CPUTime/numCPU
	r.JobSuccess = true
}
