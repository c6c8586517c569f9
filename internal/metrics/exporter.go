package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/stats"
)

var ErrWriteTextfile = errors.New("failed to write metrics textfile")

// latencyBuckets spans the in-range window up to the default 3000 ms threshold.
var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 750, 1000, 1500, 2000, 2500, 3000}

// Exporter publishes one run's summary as Prometheus metrics on a private
// registry, written out in the node_exporter textfile format.
type Exporter struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	samples  prometheus.Gauge
	timeouts prometheus.Gauge
	mean     prometheus.Gauge
	median   prometheus.Gauge
	stdev    prometheus.Gauge
	min      prometheus.Gauge
	max      prometheus.Gauge
	outliers prometheus.Gauge
	latency  prometheus.Histogram
}

// NewExporter registers the run metrics under namespace.
func NewExporter(namespace string, logger *zap.Logger) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Exporter{
		registry: reg,
		logger:   logger,
		samples:  gauge("samples_total", "Number of samples read, including timeouts."),
		timeouts: gauge("timeouts_total", "Number of samples above the threshold."),
		mean:     gauge("latency_mean_ms", "Mean of in-range samples in milliseconds."),
		median:   gauge("latency_median_ms", "Median of in-range samples in milliseconds."),
		stdev:    gauge("latency_stdev_ms", "Sample standard deviation of in-range samples in milliseconds."),
		min:      gauge("latency_min_ms", "Smallest in-range sample in milliseconds."),
		max:      gauge("latency_max_ms", "Largest in-range sample in milliseconds."),
		outliers: gauge("outliers", "Number of in-range samples outside the Tukey fences."),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_ms",
			Help:      "Distribution of in-range samples in milliseconds.",
			Buckets:   latencyBuckets,
		}),
	}
}

// Observe records s and the in-range values it was computed from.
func (e *Exporter) Observe(s stats.Summary, inRange []float64) {
	e.samples.Set(float64(s.Count))
	e.timeouts.Set(float64(s.CountAboveThreshold))
	e.mean.Set(s.Mean)
	e.median.Set(s.Median)
	e.stdev.Set(s.Stdev)
	e.min.Set(s.Min)
	e.max.Set(s.Max)
	e.outliers.Set(float64(len(s.Outliers)))
	for _, v := range inRange {
		e.latency.Observe(v)
	}

	e.logger.Debug("Run metrics updated",
		zap.Int("count", s.Count),
		zap.Int("timeouts", s.CountAboveThreshold),
		zap.Int("observed", len(inRange)),
	)
}

// WriteTextfile writes every registered metric to path.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	e.logger.Info("Metrics textfile written", zap.String("path", path))
	return nil
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
