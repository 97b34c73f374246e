// Package function implements the workload generation strategies.
//
// A strategy (GenFunction) is a pure function from a day index and a seeded
// sampler to the requests of that day. Strategies hold only immutable
// parameters; the day index is always passed explicitly and the sampler
// carries the seed derived for that day, so a day's output never depends on
// which days were generated before it or in which order.
//
// Strategies are selected by name through a Registry, which also declares
// every parameter (type, default, valid range) for configuration front ends.
package function

import (
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
)

// GenFunction samples one day's worth of requests.
type GenFunction interface {
	// Name returns the registry identifier of the strategy.
	Name() string

	// NumReqXDay returns how many requests a day holds.
	NumReqXDay() RequestCount

	// GenDayElements returns the requests of day dayIdx. Date is left zero;
	// the Day that receives the requests stamps it.
	GenDayElements(dayIdx int, s *sampling.Sampler) ([]record.Request, error)
}

// Common parameter names.
const (
	ParamNumFiles      = "num_files"
	ParamMinFileSize   = "min_file_size"
	ParamMaxFileSize   = "max_file_size"
	ParamSizeGenerator = "size_generator_function"
)

func commonParams() []ParamSpec {
	return []ParamSpec{
		{Name: ParamNumFiles, Type: TypeInt, Default: 100, Min: bound(1), Max: bound(10_000_000), Help: "number of distinct files"},
		{Name: ParamMinFileSize, Type: TypeInt, Default: 100, Min: bound(0), Max: bound(1e12), Help: "minimum file size"},
		{Name: ParamMaxFileSize, Type: TypeInt, Default: 24000, Min: bound(0), Max: bound(1e12), Help: "maximum file size"},
		{Name: ParamSizeGenerator, Type: TypeString, Default: GenRandomSizes, Choices: SizeFuncNames, Help: "file size generator"},
	}
}

// base carries the parameters shared by every strategy.
type base struct {
	name     string
	title    string
	count    RequestCount
	numFiles int64
	minSize  int64
	maxSize  int64
	sizeFn   SizeFunc
}

func newBase(name, title string, p Params, count RequestCount) (base, error) {
	b := base{
		name:     name,
		title:    title,
		count:    count,
		numFiles: p.Int(ParamNumFiles),
		minSize:  p.Int(ParamMinFileSize),
		maxSize:  p.Int(ParamMaxFileSize),
	}
	if b.minSize > b.maxSize {
		return b, paramErrorf(name, ParamMinFileSize, "must be <= %s (%d > %d)", ParamMaxFileSize, b.minSize, b.maxSize)
	}
	fn, ok := lookupSizeFunc(p.Str(ParamSizeGenerator))
	if !ok {
		return b, paramErrorf(name, ParamSizeGenerator, "unknown size generator %q", p.Str(ParamSizeGenerator))
	}
	b.sizeFn = fn
	if err := count.Validate(); err != nil {
		return b, paramErrorf(name, "", "%v", err)
	}
	return b, nil
}

func (b *base) Name() string {
	return b.name
}

func (b *base) NumReqXDay() RequestCount {
	return b.count
}

func (b *base) String() string {
	return b.title
}

// newRequest draws the job-cost columns of a request for file f.
func newRequest(f int64, size float64, s *sampling.Sampler) record.Request {
	r := record.Request{Filename: f, Size: size}
	record.FakeCPUWork(&r, s)
	return r
}

// fileSizes memoizes the stable size of each file within one day.
// A file's size depends only on the master seed and the file id.
type fileSizes struct {
	b     *base
	s     *sampling.Sampler
	sizes map[int64]float64
}

func newFileSizes(b *base, s *sampling.Sampler) *fileSizes {
	return &fileSizes{b: b, s: s, sizes: make(map[int64]float64)}
}

func (fs *fileSizes) get(f int64) float64 {
	if v, ok := fs.sizes[f]; ok {
		return v
	}
	v := fs.b.sizeFn(fs.s.ForFile(f), fs.b.minSize, fs.b.maxSize)
	fs.sizes[f] = v
	return v
}

func roundFrac(n int64, frac float64) int64 {
	return int64(float64(n)*frac + 0.5)
}
