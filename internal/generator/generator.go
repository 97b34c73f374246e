// Package generator orchestrates multi-day trace generation.
//
// A Generator binds one strategy from the registry, derives the seed of
// every day from a master seed, generates each day into its own Day and
// keeps the days ordered by index. Day generation has no cross-day
// dependency, so days may run on several workers; the result does not
// depend on the number of workers or on completion order.
//
// Every file a run writes under the destination folder is recorded in a
// SQLite ledger. Clean removes exactly those files, and Prepare refuses to
// mix outputs of different configurations in one destination.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/roach88/datasetgen/internal/config"
	"github.com/roach88/datasetgen/internal/day"
	"github.com/roach88/datasetgen/internal/fingerprint"
	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/ledger"
	"github.com/roach88/datasetgen/internal/metrics"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/sampling"
	"github.com/roach88/datasetgen/internal/tracefile"
)

// Generator produces a multi-day trace.
// A Generator is not safe for concurrent use.
type Generator struct {
	opts       Options
	seed       uint64
	registry   *function.Registry
	logger     *slog.Logger
	metrics    *metrics.Metrics
	publisher  Publisher
	progress   func(Progress)
	ids        RunIDGenerator
	now        func() time.Time
	sleep      func(time.Duration)
	ledgerPath string

	ledger *ledger.Ledger
	spool  *tracefile.Spool

	// Prepared run state.
	fn          function.GenFunction
	params      function.Params
	fingerprint string
	runID       string
	daySeeds    []sampling.Seed
	days        []*day.Day // by index; nil for days not generated
	skipped     []int
	status      ledger.Status
}

// Result summarises a Prepare call.
type Result struct {
	RunID       string
	Fingerprint string
	Strategy    string
	Generated   int
	Skipped     []int
	Policy      string
	Status      ledger.Status
	TotRequests int
}

// New creates a generator. Nothing is read or written until Prepare.
func New(cfg Options, opts ...Option) *Generator {
	cfg.setDefaults()
	g := &Generator{
		opts:     cfg,
		seed:     config.DefaultSeed,
		registry: function.Default,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		now:      time.Now,
		sleep:    time.Sleep,
	}
	if cfg.Seed != nil {
		g.seed = *cfg.Seed
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.ledgerPath == "" {
		g.ledgerPath = filepath.Join(g.opts.DestFolder, ledger.FileName)
	}
	g.spool = tracefile.NewSpool(g.opts.DestFolder)
	return g
}

// Seed returns the master seed.
func (g *Generator) Seed() uint64 { return g.seed }

// SetSeed replaces the master seed. Generated days are discarded; the new
// seed applies from the next Prepare.
func (g *Generator) SetSeed(seed uint64) {
	g.seed = seed
	g.reset()
}

// NumDays returns the number of days of a run.
func (g *Generator) NumDays() int { return g.opts.NumDays }

// DestFolder returns the destination folder.
func (g *Generator) DestFolder() string { return g.opts.DestFolder }

// Options returns the effective run configuration.
func (g *Generator) Options() Options { return g.opts }

// Function returns the bound strategy, nil before Prepare.
func (g *Generator) Function() function.GenFunction { return g.fn }

// Fingerprint returns the configuration fingerprint of the prepared run.
func (g *Generator) Fingerprint() string { return g.fingerprint }

// Prepare validates the configuration, binds the strategy name with kwargs
// and generates every day.
//
// Configuration problems are reported as *ConfigError before any I/O.
// With the abort policy a failing day stops the run and is returned as
// *DayError; with the skip policy failing days are left out and listed in
// the Result. I/O failures always abort. On cancellation the days already
// generated are kept and their spill parts stay recorded for Clean.
func (g *Generator) Prepare(ctx context.Context, name string, kwargs map[string]any) (*Result, error) {
	if err := g.opts.validate(); err != nil {
		return nil, err
	}
	count := function.RequestCount{Mean: g.opts.NumReqXDay, Dist: g.opts.ReqXDayDist}
	fn, err := g.registry.Build(name, kwargs, count)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	params, err := g.registry.Resolve(name, kwargs)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	fp, err := g.fingerprintOf(name, params, count)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	g.reset()
	g.fn, g.params, g.fingerprint = fn, params, fp
	g.updateSeeds()

	if err := g.openLedger(); err != nil {
		return nil, err
	}
	if err := g.claimDestination(ctx); err != nil {
		return nil, err
	}

	g.runID = g.ids.Generate()
	err = g.ledger.BeginRun(ctx, ledger.Run{
		ID:          g.runID,
		Fingerprint: g.fingerprint,
		Strategy:    name,
		Seed:        g.seed,
		NumDays:     g.opts.NumDays,
		Format:      string(g.opts.Format),
		Partition:   g.opts.Partition,
		Policy:      g.opts.OnDayError,
		StartedAt:   g.now(),
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating",
		"run", g.runID,
		"function", name,
		"days", g.opts.NumDays,
		"seed", g.seed,
		"workers", g.opts.Workers,
		"fingerprint", fingerprint.Short(g.fingerprint),
	)
	genErr := g.generate(ctx)

	switch {
	case genErr == nil && len(g.skipped) > 0:
		g.status = ledger.StatusPartial
	case genErr == nil:
		g.status = ledger.StatusComplete
	case ctx.Err() != nil:
		g.status = ledger.StatusCancelled
	default:
		g.status = ledger.StatusFailed
	}
	// Bookkeeping survives cancellation of the caller's context.
	if err := g.ledger.FinishRun(context.WithoutCancel(ctx), g.runID, g.status, g.skipped, g.now()); err != nil {
		return nil, errors.Join(genErr, err)
	}

	res := &Result{
		RunID:       g.runID,
		Fingerprint: g.fingerprint,
		Strategy:    name,
		Generated:   len(g.Days()),
		Skipped:     slices.Clone(g.skipped),
		Policy:      g.opts.OnDayError,
		Status:      g.status,
		TotRequests: g.TotNumRequests(),
	}
	if genErr != nil {
		return res, genErr
	}
	g.logger.Info("generated",
		"run", g.runID,
		"days", res.Generated,
		"skipped", len(res.Skipped),
		"requests", res.TotRequests,
	)
	return res, nil
}

// fingerprintOf identifies everything the row values depend on.
func (g *Generator) fingerprintOf(name string, params function.Params, count function.RequestCount) (string, error) {
	return fingerprint.Of(map[string]any{
		"function":       name,
		"kwargs":         map[string]any(params),
		"seed":           g.seed,
		"num_days":       g.opts.NumDays,
		"num_req_x_day":  count.Mean,
		"req_x_day_dist": string(count.Dist),
		"start_date":     g.opts.StartDate.UTC().Format(record.DateLayout),
	})
}

// updateSeeds derives the seed of every day from the master seed.
func (g *Generator) updateSeeds() {
	g.daySeeds = sampling.DaySeeds(g.seed, g.opts.NumDays)
}

func (g *Generator) openLedger() error {
	if g.ledger != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(g.ledgerPath), 0o755); err != nil {
		return &IOError{Op: "open ledger", Path: g.ledgerPath, Err: err}
	}
	l, err := ledger.Open(g.ledgerPath)
	if err != nil {
		return &IOError{Op: "open ledger", Path: g.ledgerPath, Err: err}
	}
	g.ledger = l
	return nil
}

// claimDestination rejects a destination holding output of another
// configuration and discards earlier output of this one, which is about to
// be regenerated identically.
func (g *Generator) claimDestination(ctx context.Context) error {
	fps, err := g.ledger.Fingerprints(ctx)
	if err != nil {
		return err
	}
	for _, fp := range fps {
		if fp != g.fingerprint {
			return fmt.Errorf("%s: %w (found %s, want %s)",
				g.opts.DestFolder, ErrMixedOutput, fingerprint.Short(fp), fingerprint.Short(g.fingerprint))
		}
	}

	runs, err := g.ledger.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if r.Fingerprint != g.fingerprint {
			continue
		}
		g.logger.Debug("discarding earlier output", "run", r.ID, "status", r.Status)
		if err := g.removeRunFiles(ctx, r.ID); err != nil {
			return err
		}
		if err := g.ledger.DeleteRun(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}

// generate runs the day loop on the configured number of workers.
func (g *Generator) generate(ctx context.Context) error {
	n := g.opts.NumDays
	g.days = make([]*day.Day, n)
	errs := make([]error, n)

	workers := min(g.opts.Workers, n)
	g.metrics.SetWorkers(workers)
	defer g.metrics.SetWorkers(0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		done   int
		jobs   = make(chan int)
		policy = g.opts.OnDayError
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				d, err := g.runDay(runCtx, i)
				g.days[i], errs[i] = d, err
				if err != nil && (policy == config.OnDayErrorAbort || IsIOError(err)) {
					cancel()
				}

				mu.Lock()
				done++
				if g.progress != nil {
					g.progress(Progress{DayIdx: i, Done: done, Total: n})
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		g.logger.Warn("generation cancelled", "generated", len(g.Days()), "days", n)
		return fmt.Errorf("generation cancelled: %w", err)
	}
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && runCtx.Err() != nil {
			// Interrupted because another day failed.
			continue
		}
		if policy == config.OnDayErrorSkip && !IsIOError(err) {
			g.logger.Warn("skipping day", "day", i, "error", err)
			g.skipped = append(g.skipped, i)
			continue
		}
		return err
	}
	return nil
}

// runDay generates day i into a new sealed Day.
func (g *Generator) runDay(ctx context.Context, i int) (*day.Day, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	strategy := g.fn.Name()

	s := sampling.New(g.seed, g.daySeeds[i])
	rows, err := g.fn.GenDayElements(i, s)
	if err != nil {
		g.metrics.ObserveDay(strategy, metrics.DayFailed, 0, time.Since(start))
		return nil, &DayError{DayIdx: i, Err: err}
	}

	d := day.New(i, g.opts.StartDate.AddDate(0, 0, i), g.opts.MaxBufLen, g.partSink())
	if err := d.BulkAppend(ctx, rows); err != nil {
		g.metrics.ObserveDay(strategy, metrics.DayFailed, 0, time.Since(start))
		g.metrics.ObserveSaveError("flush")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DayError{DayIdx: i, Err: &IOError{Op: "flush", Path: g.spool.Dir(), Err: err}}
	}
	d.ResetIndex()

	g.metrics.ObserveDay(strategy, metrics.DayOK, d.Len(), time.Since(start))
	g.logger.Debug("day generated", "day", i, "date", d.Date().Format(record.DateLayout),
		"rows", d.Len(), "flushed", d.Flushed(), "parts", len(d.Parts()))
	return d, nil
}

// Days returns the generated days in index order. Skipped days are absent.
func (g *Generator) Days() []*day.Day {
	out := make([]*day.Day, 0, len(g.days))
	for _, d := range g.days {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Skipped returns the indices of the days skipped by the last run.
func (g *Generator) Skipped() []int { return slices.Clone(g.skipped) }

// TotNumRequests returns the number of requests over all days.
func (g *Generator) TotNumRequests() int {
	total := 0
	for _, d := range g.Days() {
		total += d.Len()
	}
	return total
}

// DF returns the combined trace: every day's full content, flushed parts
// included, in day order.
func (g *Generator) DF(ctx context.Context) ([]record.Request, error) {
	out := make([]record.Request, 0, g.TotNumRequests())
	err := g.scan(ctx, func(r record.Request) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan streams the combined trace.
func (g *Generator) scan(ctx context.Context, fn func(record.Request) error) error {
	for _, d := range g.Days() {
		if err := d.Scan(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// reset drops the in-memory run state.
func (g *Generator) reset() {
	g.fn = nil
	g.params = nil
	g.fingerprint = ""
	g.runID = ""
	g.daySeeds = nil
	g.days = nil
	g.skipped = nil
	g.status = ""
}

// Close releases the ledger.
func (g *Generator) Close() error {
	if g.ledger == nil {
		return nil
	}
	err := g.ledger.Close()
	g.ledger = nil
	return err
}
