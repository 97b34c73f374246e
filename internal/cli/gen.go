package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/datasetgen/internal/config"
	"github.com/roach88/datasetgen/internal/fingerprint"
	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/generator"
	"github.com/roach88/datasetgen/internal/metrics"
	"github.com/roach88/datasetgen/internal/remote"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Function   string
	Kwargs     map[string]string
	Days       int
	Requests   int
	Dist       string
	Seed       uint64
	Dest       string
	Workers    int
	FileFormat string
	Partition  string
	OnDayError string
	Clean      bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs generator.RunIDGenerator

	// Publisher allows overriding the remote publisher (for testing).
	// If nil, an S3 publisher is built when the configuration names a bucket.
	Publisher generator.Publisher
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	return newGenCommand(&GenOptions{RootOptions: rootOpts})
}

func newGenCommand(opts *GenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a trace dataset",
		Long: `Generate a synthetic trace and save it to the destination folder.

Settings come from the --config file (or the defaults), then DATASETGEN_*
environment variables, then the flags below.

Example:
  datasetgen gen --function HighFrequencyDataset --kwarg num_files=500 --days 7
  datasetgen gen -c run.yaml --workers 4 --file-format sqlite --partition combined`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "generation strategy: "+functionNames())
	cmd.Flags().StringToStringVar(&opts.Kwargs, "kwarg", nil, "strategy parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "number of days")
	cmd.Flags().IntVar(&opts.Requests, "requests", 0, "requests per day (mean when --dist=poisson)")
	cmd.Flags().StringVar(&opts.Dist, "dist", "", "per-day request count distribution (fixed|poisson)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "master seed")
	cmd.Flags().StringVar(&opts.Dest, "dest", "", "destination folder")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "days generated concurrently")
	cmd.Flags().StringVar(&opts.FileFormat, "file-format", "", "trace file format (csv|sqlite)")
	cmd.Flags().StringVar(&opts.Partition, "partition", "", "output layout (day|combined)")
	cmd.Flags().StringVar(&opts.OnDayError, "on-day-error", "", "policy for a failing day (abort|skip)")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "remove every earlier output in the destination first")

	return cmd
}

// applyFlags overrides cfg with the flags set on the command line.
func (o *GenOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("function") {
		if o.Function != cfg.Function.Name {
			cfg.Function.Kwargs = nil
		}
		cfg.Function.Name = o.Function
	}
	if len(o.Kwargs) > 0 && cfg.Function.Kwargs == nil {
		cfg.Function.Kwargs = make(map[string]any, len(o.Kwargs))
	}
	// Values stay strings; the registry converts them to the declared types.
	for k, v := range o.Kwargs {
		cfg.Function.Kwargs[k] = v
	}
	if flags.Changed("days") {
		cfg.NumDays = o.Days
	}
	if flags.Changed("requests") {
		cfg.NumReqXDay = o.Requests
	}
	if flags.Changed("dist") {
		cfg.ReqXDayDist = o.Dist
	}
	if flags.Changed("seed") {
		cfg.Seed = o.Seed
	}
	if flags.Changed("dest") {
		cfg.DestFolder = o.Dest
	}
	if flags.Changed("workers") {
		cfg.Workers = o.Workers
	}
	if flags.Changed("file-format") {
		cfg.Format = o.FileFormat
	}
	if flags.Changed("partition") {
		cfg.Partition = o.Partition
	}
	if flags.Changed("on-day-error") {
		cfg.OnDayError = o.OnDayError
	}
}

func runGen(cmd *cobra.Command, opts *GenOptions) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := opts.loadConfig()
	if err != nil {
		return reportError(formatter, "failed to load config", &generator.ConfigError{Err: err})
	}
	opts.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return reportError(formatter, "invalid configuration", &generator.ConfigError{Err: err})
	}
	genOpts, err := generator.FromConfig(cfg)
	if err != nil {
		return reportError(formatter, "invalid configuration", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	genOptions := []generator.Option{
		generator.WithLogger(logger),
		generator.WithProgress(func(p generator.Progress) {
			formatter.VerboseLog("day %d done (%d/%d, %d%%)", p.DayIdx, p.Done, p.Total, p.Percent())
		}),
	}
	if opts.RunIDs != nil {
		genOptions = append(genOptions, generator.WithRunIDs(opts.RunIDs))
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		genOptions = append(genOptions, generator.WithMetrics(m))
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics endpoint stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	pub, err := opts.publisher(ctx, cfg)
	if err != nil {
		return reportError(formatter, "failed to configure remote storage", &generator.ConfigError{Err: err})
	}
	if pub != nil {
		genOptions = append(genOptions, generator.WithPublisher(pub))
	}

	g := generator.New(genOpts, genOptions...)
	defer func() {
		if closeErr := g.Close(); closeErr != nil {
			logger.Error("error closing ledger", "error", closeErr)
		}
	}()

	if opts.Clean {
		if err := g.Clean(ctx); err != nil {
			return reportError(formatter, "failed to clean destination", err)
		}
	}

	res, err := g.Prepare(ctx, cfg.Function.Name, cfg.Function.Kwargs)
	if err != nil {
		if errors.Is(err, generator.ErrMixedOutput) {
			formatter.VerboseLog("hint: rerun with --clean or pick another --dest")
		}
		return reportError(formatter, "generation failed", err)
	}

	files, err := g.Save(ctx)
	if err != nil {
		return reportError(formatter, "save failed", err)
	}

	return formatter.Success(genSummary{
		RunID:       res.RunID,
		Fingerprint: res.Fingerprint,
		Function:    res.Strategy,
		Status:      string(res.Status),
		Days:        res.Generated,
		Skipped:     nonNil(res.Skipped),
		Requests:    res.TotRequests,
		Files:       files,
	})
}

func (o *GenOptions) publisher(ctx context.Context, cfg *config.Config) (generator.Publisher, error) {
	if o.Publisher != nil {
		return o.Publisher, nil
	}
	return s3Publisher(ctx, cfg)
}

// s3Publisher returns nil when the configuration names no bucket.
func s3Publisher(ctx context.Context, cfg *config.Config) (generator.Publisher, error) {
	if !cfg.S3.Enabled() {
		return nil, nil
	}
	pub, err := remote.NewS3(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}

// genSummary is the result of a gen run.
type genSummary struct {
	RunID       string   `json:"run_id"`
	Fingerprint string   `json:"fingerprint"`
	Function    string   `json:"function"`
	Status      string   `json:"status"`
	Days        int      `json:"days"`
	Skipped     []int    `json:"skipped_days"`
	Requests    int      `json:"requests"`
	Files       []string `json:"files"`
}

func (s genSummary) String() string {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	p.Fprintf(&b, "Generated %d requests over %d days with %s\n", s.Requests, s.Days, s.Function)
	fmt.Fprintf(&b, "  run:         %s\n", s.RunID)
	fmt.Fprintf(&b, "  fingerprint: %s\n", fingerprint.Short(s.Fingerprint))
	fmt.Fprintf(&b, "  status:      %s\n", s.Status)
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "  skipped:     %v\n", s.Skipped)
	}
	fmt.Fprintf(&b, "  files:\n")
	for _, f := range s.Files {
		fmt.Fprintf(&b, "    %s\n", f)
	}
	return strings.TrimRight(b.String(), "\n")
}

// functionNames lists the registered strategies for help and errors.
func functionNames() string {
	return strings.Join(function.Default.Names(), ", ")
}
