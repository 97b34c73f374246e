package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/datasetgen/internal/function"
)

// FunctionsOptions holds flags for the functions command.
type FunctionsOptions struct {
	*RootOptions

	// Registry allows overriding the strategy registry (for testing).
	// If nil, defaults to function.Default.
	Registry *function.Registry
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand(rootOpts *RootOptions) *cobra.Command {
	return newFunctionsCommand(&FunctionsOptions{RootOptions: rootOpts})
}

func newFunctionsCommand(opts *FunctionsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions [name]",
		Short: "List generation strategies and their parameters",
		Long: `List the registered generation strategies.

With a name, only that strategy is shown. Parameters are passed to gen with
--kwarg key=value or under function.kwargs in a config file.

Example:
  datasetgen functions
  datasetgen functions SizeFocusedDataset --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunctions(cmd, opts, args)
		},
	}

	return cmd
}

func runFunctions(cmd *cobra.Command, opts *FunctionsOptions, args []string) error {
	formatter := opts.formatter(cmd)
	reg := opts.Registry
	if reg == nil {
		reg = function.Default
	}

	names := reg.Names()
	if len(args) == 1 {
		names = args[:1]
	}

	list := make(functionList, 0, len(names))
	for _, name := range names {
		e, err := reg.Lookup(name)
		if err != nil {
			if outErr := formatter.Error(ErrCodeNotFound, err.Error(), map[string]string{"available": strings.Join(reg.Names(), ", ")}); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "unknown function", err)
		}
		list = append(list, e)
	}
	return formatter.Success(list)
}

// functionList renders registry entries.
type functionList []function.Entry

func (l functionList) String() string {
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s - %s\n", e.Name, e.Title)
		fmt.Fprintf(&b, "  %s\n", e.Help)

		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, p := range e.Params {
			fmt.Fprintf(tw, "  %s\t%s\t%v\t%s\t%s\n", p.Name, p.Type, p.Default, paramRange(p), p.Help)
		}
		tw.Flush()
	}
	return strings.TrimRight(b.String(), "\n")
}

func paramRange(p function.ParamSpec) string {
	switch {
	case len(p.Choices) > 0:
		return "{" + strings.Join(p.Choices, ",") + "}"
	case p.Min != nil && p.Max != nil:
		return fmt.Sprintf("[%v,%v]", *p.Min, *p.Max)
	case p.Min != nil:
		return fmt.Sprintf(">=%v", *p.Min)
	case p.Max != nil:
		return fmt.Sprintf("<=%v", *p.Max)
	default:
		return "-"
	}
}
