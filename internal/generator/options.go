package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/datasetgen/internal/config"
	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/metrics"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/tracefile"
)

// Options is the run configuration of a Generator.
type Options struct {
	NumDays     int
	NumReqXDay  int
	ReqXDayDist function.Distribution
	StartDate   time.Time
	// Seed is the master seed. Nil selects config.DefaultSeed.
	Seed         *uint64
	DestFolder   string
	MaxBufLen    int
	Format       tracefile.Format
	Partition    string
	Workers      int
	OnDayError   string
	SaveAttempts int
}

// FromConfig maps a loaded configuration to generator options.
func FromConfig(c *config.Config) (Options, error) {
	start, err := c.Start()
	if err != nil {
		return Options{}, &ConfigError{Err: err}
	}
	seed := c.Seed
	return Options{
		NumDays:      c.NumDays,
		NumReqXDay:   c.NumReqXDay,
		ReqXDayDist:  function.Distribution(c.ReqXDayDist),
		StartDate:    start,
		Seed:         &seed,
		DestFolder:   c.DestFolder,
		MaxBufLen:    c.MaxBufLen,
		Format:       tracefile.Format(c.Format),
		Partition:    c.Partition,
		Workers:      c.Workers,
		OnDayError:   c.OnDayError,
		SaveAttempts: c.SaveAttempts,
	}, nil
}

func (o *Options) setDefaults() {
	if o.ReqXDayDist == "" {
		o.ReqXDayDist = function.DistFixed
	}
	if o.StartDate.IsZero() {
		o.StartDate, _ = time.Parse(record.DateLayout, config.DefaultStartDate)
	}
	if o.DestFolder == "" {
		o.DestFolder = config.DefaultDestFolder
	}
	if o.Format == "" {
		o.Format = tracefile.FormatCSV
	}
	if o.Partition == "" {
		o.Partition = config.PartitionDay
	}
	if o.Workers == 0 {
		o.Workers = config.DefaultWorkers
	}
	if o.OnDayError == "" {
		o.OnDayError = config.OnDayErrorAbort
	}
	if o.SaveAttempts == 0 {
		o.SaveAttempts = config.DefaultSaveAttempts
	}
}

func (o *Options) validate() error {
	if o.NumDays < 1 {
		return &ConfigError{Err: fmt.Errorf("num_days must be >= 1, got %d", o.NumDays)}
	}
	if err := (function.RequestCount{Mean: o.NumReqXDay, Dist: o.ReqXDayDist}).Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if _, err := tracefile.ParseFormat(string(o.Format)); err != nil {
		return &ConfigError{Err: err}
	}
	switch o.Partition {
	case config.PartitionDay, config.PartitionCombined:
	default:
		return &ConfigError{Err: fmt.Errorf("unknown partition %q (want day or combined)", o.Partition)}
	}
	switch o.OnDayError {
	case config.OnDayErrorAbort, config.OnDayErrorSkip:
	default:
		return &ConfigError{Err: fmt.Errorf("unknown on_day_error policy %q (want abort or skip)", o.OnDayError)}
	}
	if o.Workers < 1 {
		return &ConfigError{Err: fmt.Errorf("workers must be >= 1, got %d", o.Workers)}
	}
	if o.SaveAttempts < 1 {
		return &ConfigError{Err: fmt.Errorf("save_attempts must be >= 1, got %d", o.SaveAttempts)}
	}
	return nil
}

// Publisher copies saved files to remote storage.
// *remote.S3Publisher implements it.
type Publisher interface {
	// Publish uploads the file at localPath under name and returns its URI.
	Publish(ctx context.Context, localPath, name string) (string, error)
	// Remove deletes an object returned by Publish.
	Remove(ctx context.Context, uri string) error
}

// Progress reports the completion of one day.
type Progress struct {
	DayIdx int
	Done   int
	Total  int
}

// Percent returns the completed share of the run, 0 to 100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Done * 100 / p.Total
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithMetrics records generation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLedgerPath overrides the ledger location, <dest>/.datasetgen.db by
// default.
func WithLedgerPath(path string) Option {
	return func(g *Generator) { g.ledgerPath = path }
}

// WithPublisher publishes saved files through p.
func WithPublisher(p Publisher) Option {
	return func(g *Generator) { g.publisher = p }
}

// WithProgress calls fn after each day is generated. Calls are serialised.
func WithProgress(fn func(Progress)) Option {
	return func(g *Generator) { g.progress = fn }
}

// WithWorkers sets the number of days generated concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) { g.opts.Workers = n }
}

// WithRunIDs sets the run id generator. Defaults to UUIDv7Generator.
func WithRunIDs(ids RunIDGenerator) Option {
	return func(g *Generator) { g.ids = ids }
}

// WithClock sets the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRegistry selects the strategy registry. Defaults to function.Default.
func WithRegistry(r *function.Registry) Option {
	return func(g *Generator) { g.registry = r }
}
