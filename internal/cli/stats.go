package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/datasetgen/internal/generator"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/tracefile"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Dest   string
	PerDay bool
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats [trace-file...]",
		Short: "Summarize saved trace files",
		Long: `Summarize the requests held in saved trace files.

Without arguments the files listed in the destination's manifest are read.
Files are read in the order given and must hold days in ascending order.

Example:
  datasetgen stats --dest ./dataset
  datasetgen stats dataset/dataset_2020-01-01.csv.gz --per-day`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Dest, "dest", "", "destination folder holding manifest.yaml (overrides the config)")
	cmd.Flags().BoolVar(&opts.PerDay, "per-day", false, "include per-day totals in text output")

	return cmd
}

func runStats(cmd *cobra.Command, opts *StatsOptions, args []string) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	paths := args
	var skipped []int
	if len(paths) == 0 {
		cfg, err := opts.loadConfig()
		if err != nil {
			return reportError(formatter, "failed to load config", &generator.ConfigError{Err: err})
		}
		dest := cfg.DestFolder
		if cmd.Flags().Changed("dest") {
			dest = opts.Dest
		}
		m, err := generator.ReadManifest(filepath.Join(dest, generator.ManifestName))
		if err != nil {
			return reportError(formatter, "no saved dataset", err)
		}
		for _, f := range m.Files {
			paths = append(paths, filepath.Join(dest, f.Name))
		}
		skipped = m.Skipped
	}

	b := generator.NewStatsBuilder()
	for _, p := range paths {
		formatter.VerboseLog("reading %s", p)
		err := tracefile.Read(ctx, p, func(r record.Request) error {
			b.Add(r)
			return nil
		})
		if err != nil {
			return reportError(formatter, "failed to read trace", err)
		}
	}

	st := b.Stats()
	if len(skipped) > 0 {
		st.Skipped = skipped
	}
	return formatter.Success(statsReport{Stats: st, perDay: opts.PerDay})
}

// statsReport renders Stats; JSON output always carries the per-day totals.
type statsReport struct {
	*generator.Stats
	perDay bool
}

func (r statsReport) String() string {
	p := message.NewPrinter(language.English)
	st := r.Stats

	var b strings.Builder
	p.Fprintf(&b, "days:          %d\n", st.NumDays)
	p.Fprintf(&b, "requests:      %d\n", st.TotRequests)
	p.Fprintf(&b, "unique files:  %d\n", st.UniqueFiles)
	p.Fprintf(&b, "success rate:  %.2f%%\n", st.SuccessRate*100)
	if len(st.Skipped) > 0 {
		fmt.Fprintf(&b, "skipped days:  %v\n", st.Skipped)
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tmin\tp50\tmean\tp95\tmax\tstd")
	for _, c := range []struct {
		name string
		s    generator.Summary
	}{
		{"size", st.Size},
		{"cputime", st.CPUTime},
		{"iotime", st.IOTime},
		{"wrap_wc", st.WrapWC},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", c.name, c.s.Min, c.s.P50, c.s.Mean, c.s.P95, c.s.Max, c.s.Std)
	}
	tw.Flush()

	if r.perDay {
		b.WriteString("\n")
		tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "date\trequests\tunique files\ttotal size")
		for _, d := range st.PerDay {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\n", d.Date.Format(record.DateLayout), d.Requests, d.UniqueFiles, d.TotalSize)
		}
		tw.Flush()
	}
	return strings.TrimRight(b.String(), "\n")
}
