package config

import "errors"

var (
	ErrReadingConfigFile    = errors.New("failed to read config file")
	ErrUnmarshallingConfig  = errors.New("failed to unmarshal config")
	ErrConfigFileMissing    = errors.New("config file not found")
	ErrBindingFlags         = errors.New("failed to bind command flags")
	ErrInvalidUnitDivisor   = errors.New("input unitDivisor must be positive")
	ErrInvalidThreshold     = errors.New("analysis thresholdMs must be positive")
	ErrInvalidIQRMultiplier = errors.New("analysis iqrMultiplier cannot be negative")
	ErrInvalidPrecision     = errors.New("analysis precision must be between 0 and 15")
	ErrInvalidReportFormat  = errors.New("report format must be one of: text, json")
	ErrInvalidPlotBins      = errors.New("plot bins must be positive")
	ErrInvalidPlotSize      = errors.New("plot width and height must be at least 200 pixels")
	ErrInvalidBoxRatio      = errors.New("plot boxRatio must be within (0, 1)")
	ErrPlotPanelTooSmall    = errors.New("plot height and boxRatio must leave both combined chart panels at least 60 pixels high")
	ErrInvalidKDEPoints     = errors.New("plot kdePoints must be at least 2")
	ErrEmptyKafkaBrokers    = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic      = errors.New("kafka topic cannot be empty")
	ErrInvalidProbeSamples  = errors.New("probe samples cannot be negative")
	ErrInvalidProbeTimeout  = errors.New("probe timeout must be positive")
	ErrInvalidProbeInterval = errors.New("probe interval cannot be negative")
	ErrEmptyProbeOutput     = errors.New("probe output path cannot be empty")
	ErrInvalidTopicLayout   = errors.New("probe partitions and replicationFactor must be positive")
)
