package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/datasetgen/internal/config"
)

// DefaultConfigFile is the file init writes when no path is given.
const DefaultConfigFile = "datasetgen.yaml"

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file holding the defaults",
		Long: `Write a YAML run configuration holding every default value.

Example:
  datasetgen init
  datasetgen init runs/hf.yaml --force`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(cmd, opts, path)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")

	return cmd
}

type initResult struct {
	Path string `json:"path"`
}

func (r initResult) String() string {
	return "Wrote " + r.Path
}

func runInit(cmd *cobra.Command, opts *InitOptions, path string) error {
	formatter := opts.formatter(cmd)

	if !opts.Force {
		if _, err := os.Stat(path); err == nil {
			return reportError(formatter, "refusing to overwrite", fmt.Errorf("%s exists (use --force): %w", path, fs.ErrExist))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return reportError(formatter, "failed to check path", err)
		}
	}

	data, err := config.Default().YAML()
	if err != nil {
		return reportError(formatter, "failed to render config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return reportError(formatter, "failed to write config", err)
	}
	return formatter.Success(initResult{Path: path})
}
