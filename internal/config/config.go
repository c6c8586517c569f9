package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultInputPath        = "data.txt"
	defaultUnitDivisor      = 1_000_000.0
	defaultThresholdMs      = 3000.0
	defaultIQRMultiplier    = 1.5
	defaultPrecision        = 5
	defaultReportFormat     = FormatText
	defaultPlotEnabled      = false
	defaultPlotOutputDir    = "."
	defaultPlotBins         = 50
	defaultPlotWidth        = 1000
	defaultPlotHeight       = 600
	defaultPlotBoxRatio     = 0.15
	defaultPlotKDEPoints    = 256
	defaultMetricsNamespace = "latencylens"
	defaultProbeTopic       = "latencylens-probe"
	defaultProbeSamples     = 100
	defaultProbeInterval    = 1 * time.Second
	defaultProbeTimeout     = 3 * time.Second
	defaultProbeOutput      = "data.txt"
	defaultProbePartitions  = 1
	defaultProbeReplication = 1
	defaultLogLevel         = "warn"
	defaultLogFormat        = "console"
	defaultLogFileEnabled   = false
	defaultLogDirectory     = "log"
	defaultLogFilename      = "latencylens.log"
	defaultLogMaxSizeMB     = 100
	defaultLogMaxBackups    = 3
	defaultLogMaxAgeDays    = 7
	defaultLogCompress      = false
	maxPrecision            = 15
	minPlotDimension        = 200

	// Environment variable prefix
	envPrefix = "LATENCYLENS"
)

// MinPanelHeight is the smallest panel, in pixels, of the combined
// boxplot and histogram chart.
const MinPanelHeight = 60

// Report formats understood by the reporter.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var defaultProbeBrokers = []string{"localhost:9092"}

type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Report   ReportConfig   `mapstructure:"report"`
	Plot     PlotConfig     `mapstructure:"plot"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Log      LogConfig      `mapstructure:"log"`
}

type InputConfig struct {
	Path        string  `mapstructure:"path"`
	UnitDivisor float64 `mapstructure:"unitDivisor"` // raw units per millisecond
}

type AnalysisConfig struct {
	ThresholdMs   float64 `mapstructure:"thresholdMs"`
	IQRMultiplier float64 `mapstructure:"iqrMultiplier"`
	Precision     int     `mapstructure:"precision"` // decimal places in the report
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
}

type PlotConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	OutputDir string  `mapstructure:"outputDir"`
	Bins      int     `mapstructure:"bins"`
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	BoxRatio  float64 `mapstructure:"boxRatio"` // box panel share of the combined chart
	KDEPoints int     `mapstructure:"kdePoints"`
}

type MetricsConfig struct {
	Textfile  string `mapstructure:"textfile"` // empty disables the export
	Namespace string `mapstructure:"namespace"`
}

type ProbeConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	Samples           int           `mapstructure:"samples"` // 0 runs until cancelled
	Interval          time.Duration `mapstructure:"interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Output            string        `mapstructure:"output"`
	CreateTopic       bool          `mapstructure:"createTopic"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replicationFactor"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// flagKeys maps command line flag names to configuration keys.
// Flags missing from a command's flag set are skipped.
var flagKeys = map[string]string{
	"input":          "input.path",
	"unit-divisor":   "input.unitDivisor",
	"threshold":      "analysis.thresholdMs",
	"iqr-multiplier": "analysis.iqrMultiplier",
	"precision":      "analysis.precision",
	"format":         "report.format",
	"plot":           "plot.enabled",
	"plot-dir":       "plot.outputDir",
	"bins":           "plot.bins",
	"plot-width":     "plot.width",
	"plot-height":    "plot.height",
	"box-ratio":      "plot.boxRatio",
	"metrics-file":   "metrics.textfile",
	"brokers":        "probe.brokers",
	"topic":          "probe.topic",
	"samples":        "probe.samples",
	"interval":       "probe.interval",
	"timeout":        "probe.timeout",
	"output":         "probe.output",
	"create-topic":   "probe.createTopic",
	"partitions":     "probe.partitions",
	"replication":    "probe.replicationFactor",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// Load initializes viper, reads config, applies defaults, binds flags, unmarshals, and validates.
// An empty configPath means defaults, environment and flags only.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	if configPath != "" {
		if err := readConfigFile(v); err != nil {
			return nil, err
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	// Unmarshal the configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", defaultInputPath)
	v.SetDefault("input.unitDivisor", defaultUnitDivisor)
	v.SetDefault("analysis.thresholdMs", defaultThresholdMs)
	v.SetDefault("analysis.iqrMultiplier", defaultIQRMultiplier)
	v.SetDefault("analysis.precision", defaultPrecision)
	v.SetDefault("report.format", defaultReportFormat)
	v.SetDefault("plot.enabled", defaultPlotEnabled)
	v.SetDefault("plot.outputDir", defaultPlotOutputDir)
	v.SetDefault("plot.bins", defaultPlotBins)
	v.SetDefault("plot.width", defaultPlotWidth)
	v.SetDefault("plot.height", defaultPlotHeight)
	v.SetDefault("plot.boxRatio", defaultPlotBoxRatio)
	v.SetDefault("plot.kdePoints", defaultPlotKDEPoints)
	v.SetDefault("metrics.namespace", defaultMetricsNamespace)
	v.SetDefault("probe.brokers", defaultProbeBrokers)
	v.SetDefault("probe.topic", defaultProbeTopic)
	v.SetDefault("probe.samples", defaultProbeSamples)
	v.SetDefault("probe.interval", defaultProbeInterval)
	v.SetDefault("probe.timeout", defaultProbeTimeout)
	v.SetDefault("probe.output", defaultProbeOutput)
	v.SetDefault("probe.partitions", defaultProbePartitions)
	v.SetDefault("probe.replicationFactor", defaultProbeReplication)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) || errors.Is(err, fs.ErrNotExist) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBindingFlags, name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Input.UnitDivisor <= 0 {
		return ErrInvalidUnitDivisor
	}
	if cfg.Analysis.ThresholdMs <= 0 {
		return ErrInvalidThreshold
	}
	if cfg.Analysis.IQRMultiplier < 0 {
		return ErrInvalidIQRMultiplier
	}
	if cfg.Analysis.Precision < 0 || cfg.Analysis.Precision > maxPrecision {
		return ErrInvalidPrecision
	}
	cfg.Report.Format = strings.ToLower(cfg.Report.Format)
	if cfg.Report.Format != FormatText && cfg.Report.Format != FormatJSON {
		return ErrInvalidReportFormat
	}
	if cfg.Plot.Bins <= 0 {
		return ErrInvalidPlotBins
	}
	if cfg.Plot.Width < minPlotDimension || cfg.Plot.Height < minPlotDimension {
		return ErrInvalidPlotSize
	}
	if cfg.Plot.BoxRatio <= 0 || cfg.Plot.BoxRatio >= 1 {
		return ErrInvalidBoxRatio
	}
	if box, hist := cfg.Plot.PanelHeights(); box < MinPanelHeight || hist < MinPanelHeight {
		return fmt.Errorf("%w: %d px box, %d px histogram", ErrPlotPanelTooSmall, box, hist)
	}
	if cfg.Plot.KDEPoints < 2 {
		return ErrInvalidKDEPoints
	}
	return nil
}

// PanelHeights splits Height between the box and histogram panels of the
// combined chart according to BoxRatio.
func (p PlotConfig) PanelHeights() (box, hist int) {
	box = int(math.Round(float64(p.Height) * p.BoxRatio))
	return box, p.Height - box
}

// Validate checks the settings only the probe needs, so analysis runs
// never fail on broker configuration.
func (p ProbeConfig) Validate() error {
	if len(p.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if p.Topic == "" {
		return ErrEmptyKafkaTopic
	}
	if p.Samples < 0 {
		return ErrInvalidProbeSamples
	}
	if p.Timeout <= 0 {
		return ErrInvalidProbeTimeout
	}
	if p.Interval < 0 {
		return ErrInvalidProbeInterval
	}
	if p.Output == "" {
		return ErrEmptyProbeOutput
	}
	if p.Partitions <= 0 || p.ReplicationFactor <= 0 {
		return ErrInvalidTopicLayout
	}
	return nil
}
