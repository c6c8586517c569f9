package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sanspareilsmyn/latencylens/internal/pipeline"
	"github.com/sanspareilsmyn/latencylens/internal/samples"
)

func (a *app) newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Print latency statistics for a file of nanosecond samples",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runAnalyzeCmd,
	}

	flags := cmd.Flags()
	flags.String("input", "data.txt", "sample file, used when no path argument is given")
	flags.Float64("unit-divisor", samples.NanosPerMilli, "raw units per millisecond")
	flags.Float64("threshold", 3000, "samples above this many milliseconds count as timeouts")
	flags.Float64("iqr-multiplier", 1.5, "Tukey fence width in IQRs")
	flags.Int("precision", 5, "decimal places in the report")
	flags.String("format", "text", "report format: text, json")
	flags.Bool("plot", false, "render charts")
	flags.String("plot-dir", ".", "directory for chart images")
	flags.Int("bins", 50, "histogram bins")
	flags.Int("plot-width", 1000, "chart width in pixels")
	flags.Int("plot-height", 600, "chart height in pixels")
	flags.Float64("box-ratio", 0.15, "box panel share of the combined chart height")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile")

	return cmd
}

func (a *app) runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	path := cfg.Input.Path
	if len(args) == 1 {
		path = args[0]
	}

	out := cmd.OutOrStdout()
	err = pipeline.New(cfg, a.fs, out, logger).Run(cmd.Context(), path)
	return reportAnalyzeError(out, path, err)
}

// reportAnalyzeError prints a one-line diagnostic for the failures a user can
// fix by changing the input, and passes everything else up.
func reportAnalyzeError(out io.Writer, path string, err error) error {
	var noInRange *pipeline.NoInRangeError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, samples.ErrFileNotFound):
		_, werr := fmt.Fprintf(out, "File '%s' not found.\n", path)
		return werr
	case errors.Is(err, samples.ErrMalformedSample):
		_, werr := fmt.Fprintf(out, "Error reading data: %v\n", err)
		return werr
	case errors.As(err, &noInRange):
		_, werr := fmt.Fprintln(out, noInRange.Error())
		return werr
	default:
		return err
	}
}
