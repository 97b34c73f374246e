package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/datasetgen/internal/generator"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	Dest string

	// Publisher allows overriding the remote publisher (for testing).
	Publisher generator.Publisher
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	return newCleanCommand(&CleanOptions{RootOptions: rootOpts})
}

func newCleanCommand(opts *CleanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove every file earlier runs wrote to the destination",
		Long: `Remove the trace files, spill parts, manifests and published objects
recorded in the destination's ledger, then the ledger itself.

Files the ledger does not know about are left alone. Cleaning a clean
destination does nothing.

Example:
  datasetgen clean --dest ./dataset
  datasetgen clean -c run.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dest, "dest", "", "destination folder (overrides the config)")

	return cmd
}

type cleanResult struct {
	Dest string `json:"dest"`
}

func (r cleanResult) String() string {
	return "Cleaned " + r.Dest
}

func runClean(cmd *cobra.Command, opts *CleanOptions) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := commandContext(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return reportError(formatter, "failed to load config", &generator.ConfigError{Err: err})
	}
	if cmd.Flags().Changed("dest") {
		cfg.DestFolder = opts.Dest
	}
	genOpts, err := generator.FromConfig(cfg)
	if err != nil {
		return reportError(formatter, "invalid configuration", err)
	}

	genOptions := []generator.Option{generator.WithLogger(logger)}
	pub := opts.Publisher
	if pub == nil {
		if pub, err = s3Publisher(ctx, cfg); err != nil {
			return reportError(formatter, "failed to configure remote storage", &generator.ConfigError{Err: err})
		}
	}
	if pub != nil {
		genOptions = append(genOptions, generator.WithPublisher(pub))
	}

	g := generator.New(genOpts, genOptions...)
	defer g.Close()

	formatter.VerboseLog("cleaning %s", cfg.DestFolder)
	if err := g.Clean(ctx); err != nil {
		return reportError(formatter, "clean failed", err)
	}
	return formatter.Success(cleanResult{Dest: cfg.DestFolder})
}
