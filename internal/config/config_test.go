package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "data.txt", cfg.Input.Path)
	assert.Equal(t, 1_000_000.0, cfg.Input.UnitDivisor)
	assert.Equal(t, 3000.0, cfg.Analysis.ThresholdMs)
	assert.Equal(t, 1.5, cfg.Analysis.IQRMultiplier)
	assert.Equal(t, 5, cfg.Analysis.Precision)
	assert.Equal(t, FormatText, cfg.Report.Format)
	assert.False(t, cfg.Plot.Enabled)
	assert.Equal(t, 50, cfg.Plot.Bins)
	assert.Equal(t, 0.15, cfg.Plot.BoxRatio)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Probe.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latencylens.yaml")
	content := `
input:
  path: samples.txt
analysis:
  thresholdMs: 1500
report:
  format: JSON
plot:
  enabled: true
  bins: 20
probe:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "samples.txt", cfg.Input.Path)
	assert.Equal(t, 1500.0, cfg.Analysis.ThresholdMs)
	assert.Equal(t, FormatJSON, cfg.Report.Format)
	assert.True(t, cfg.Plot.Enabled)
	assert.Equal(t, 20, cfg.Plot.Bins)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Probe.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
	// untouched keys keep their defaults
	assert.Equal(t, 1.5, cfg.Analysis.IQRMultiplier)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "latencylens.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "charts", cfg.Plot.OutputDir)
	assert.Equal(t, time.Second, cfg.Probe.Interval)
	assert.NoError(t, cfg.Probe.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.ErrorIs(t, err, ErrConfigFileMissing)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("LATENCYLENS_ANALYSIS_THRESHOLDMS", "2000")
	t.Setenv("LATENCYLENS_PLOT_BINS", "10")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("threshold", 3000, "")
	flags.Int("bins", 50, "")
	require.NoError(t, flags.Parse([]string{"--threshold=250"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 250.0, cfg.Analysis.ThresholdMs, "changed flag wins over env")
	assert.Equal(t, 10, cfg.Plot.Bins, "env wins over an unchanged flag")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{name: "zero divisor", env: map[string]string{"LATENCYLENS_INPUT_UNITDIVISOR": "0"}, want: ErrInvalidUnitDivisor},
		{name: "negative threshold", env: map[string]string{"LATENCYLENS_ANALYSIS_THRESHOLDMS": "-1"}, want: ErrInvalidThreshold},
		{name: "negative multiplier", env: map[string]string{"LATENCYLENS_ANALYSIS_IQRMULTIPLIER": "-0.5"}, want: ErrInvalidIQRMultiplier},
		{name: "precision too large", env: map[string]string{"LATENCYLENS_ANALYSIS_PRECISION": "20"}, want: ErrInvalidPrecision},
		{name: "unknown format", env: map[string]string{"LATENCYLENS_REPORT_FORMAT": "xml"}, want: ErrInvalidReportFormat},
		{name: "zero bins", env: map[string]string{"LATENCYLENS_PLOT_BINS": "0"}, want: ErrInvalidPlotBins},
		{name: "tiny chart", env: map[string]string{"LATENCYLENS_PLOT_WIDTH": "10"}, want: ErrInvalidPlotSize},
		{name: "box ratio of one", env: map[string]string{"LATENCYLENS_PLOT_BOXRATIO": "1"}, want: ErrInvalidBoxRatio},
		{name: "box panel too short", env: map[string]string{"LATENCYLENS_PLOT_HEIGHT": "300"}, want: ErrPlotPanelTooSmall},
		{name: "histogram panel too short", env: map[string]string{"LATENCYLENS_PLOT_BOXRATIO": "0.95"}, want: ErrPlotPanelTooSmall},
		{name: "single kde point", env: map[string]string{"LATENCYLENS_PLOT_KDEPOINTS": "1"}, want: ErrInvalidKDEPoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPanelHeights(t *testing.T) {
	tests := []struct {
		height    int
		ratio     float64
		box, hist int
	}{
		{height: 600, ratio: 0.15, box: 90, hist: 510},
		{height: 400, ratio: 0.15, box: 60, hist: 340},
		{height: 1000, ratio: 0.5, box: 500, hist: 500},
	}
	for _, tt := range tests {
		box, hist := PlotConfig{Height: tt.height, BoxRatio: tt.ratio}.PanelHeights()
		assert.Equal(t, tt.box, box)
		assert.Equal(t, tt.hist, hist)
	}

	cfg, err := Load("", nil)
	require.NoError(t, err)
	box, _ := cfg.Plot.PanelHeights()
	assert.GreaterOrEqual(t, box, MinPanelHeight, "defaults keep the configured ratio")
}

func TestProbeConfigValidate(t *testing.T) {
	valid := ProbeConfig{
		Brokers:           []string{"localhost:9092"},
		Topic:             "probe",
		Samples:           10,
		Interval:          time.Second,
		Timeout:           3 * time.Second,
		Output:            "data.txt",
		Partitions:        1,
		ReplicationFactor: 1,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ProbeConfig)
		want   error
	}{
		{name: "no brokers", mutate: func(p *ProbeConfig) { p.Brokers = nil }, want: ErrEmptyKafkaBrokers},
		{name: "no topic", mutate: func(p *ProbeConfig) { p.Topic = "" }, want: ErrEmptyKafkaTopic},
		{name: "negative samples", mutate: func(p *ProbeConfig) { p.Samples = -1 }, want: ErrInvalidProbeSamples},
		{name: "zero timeout", mutate: func(p *ProbeConfig) { p.Timeout = 0 }, want: ErrInvalidProbeTimeout},
		{name: "negative interval", mutate: func(p *ProbeConfig) { p.Interval = -time.Second }, want: ErrInvalidProbeInterval},
		{name: "no output", mutate: func(p *ProbeConfig) { p.Output = "" }, want: ErrEmptyProbeOutput},
		{name: "zero partitions", mutate: func(p *ProbeConfig) { p.Partitions = 0 }, want: ErrInvalidTopicLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.want)
		})
	}
}
