// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
	"github.com/sanspareilsmyn/latencylens/internal/metrics"
	"github.com/sanspareilsmyn/latencylens/internal/plot"
	"github.com/sanspareilsmyn/latencylens/internal/report"
	"github.com/sanspareilsmyn/latencylens/internal/samples"
	"github.com/sanspareilsmyn/latencylens/internal/stats"
)

// NoDataMessage is printed instead of a report when the input holds no samples.
const NoDataMessage = "No data found."

// Analyzer runs the stages in order: load, aggregate, report, then the
// optional metrics export and charts.
type Analyzer struct {
	cfg    *config.Config
	fs     afero.Fs
	out    io.Writer
	logger *zap.Logger
}

// New creates an Analyzer reading samples and writing charts through fsys,
// and printing the report to out.
func New(cfg *config.Config, fsys afero.Fs, out io.Writer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		cfg:    cfg,
		fs:     fsys,
		out:    out,
		logger: logger.Named("analyzer"),
	}
}

// Params returns the aggregation parameters taken from the configuration.
func (a *Analyzer) Params() stats.Params {
	return stats.Params{
		ThresholdMs:   a.cfg.Analysis.ThresholdMs,
		IQRMultiplier: a.cfg.Analysis.IQRMultiplier,
		Precision:     a.cfg.Analysis.Precision,
	}
}

// Run analyzes the sample file at path. Loader errors are returned as is so
// the caller can tell a missing file from a malformed one. Nothing is printed
// unless the summary could be computed.
func (a *Analyzer) Run(ctx context.Context, path string) error {
	sugar := a.logger.Sugar()

	values, err := samples.Load(a.fs, path, a.cfg.Input.UnitDivisor)
	if err != nil {
		sugar.Debugw("Loading samples failed", "path", path, zap.Error(err))
		return err
	}
	sugar.Infow("Samples loaded", "path", path, "count", len(values))

	if len(values) == 0 {
		_, err := fmt.Fprintln(a.out, NoDataMessage)
		return err
	}

	params := a.Params()
	summary, err := stats.Aggregate(values, params)
	switch {
	case errors.Is(err, stats.ErrNoInRangeSamples):
		return &NoInRangeError{ThresholdMs: params.ThresholdMs, Timeouts: len(values)}
	case err != nil:
		return fmt.Errorf("%w: %w", ErrAggregateFailed, err)
	}
	sugar.Debugw("Summary computed",
		"inRange", summary.InRange(),
		"timeouts", summary.CountAboveThreshold,
		"outliers", len(summary.Outliers),
	)

	if err := report.Write(a.out, a.cfg.Report.Format, summary); err != nil {
		return fmt.Errorf("%w: %w", ErrReportFailed, err)
	}

	inRange, _ := stats.Partition(values, params.ThresholdMs)

	if a.cfg.Metrics.Textfile != "" {
		exporter := metrics.NewExporter(a.cfg.Metrics.Namespace, a.logger.Named("metrics"))
		exporter.Observe(summary, inRange)
		if err := exporter.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("%w: %w", ErrMetricsFailed, err)
		}
	}

	if !a.cfg.Plot.Enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	renderer := plot.NewRenderer(a.cfg.Plot, a.fs, a.logger.Named("plot"))
	if err := renderer.RenderAll(inRange); err != nil {
		return fmt.Errorf("%w: %w", ErrPlotFailed, err)
	}
	return nil
}
