package pipeline

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sanspareilsmyn/latencylens/internal/stats"
)

var (
	ErrAggregateFailed = errors.New("failed to aggregate samples")
	ErrReportFailed    = errors.New("failed to write report")
	ErrMetricsFailed   = errors.New("failed to export metrics")
	ErrPlotFailed      = errors.New("failed to render charts")
)

// NoInRangeError reports a dataset in which every sample is a timeout.
type NoInRangeError struct {
	ThresholdMs float64
	Timeouts    int
}

func (e *NoInRangeError) Error() string {
	return fmt.Sprintf("No samples at or below %s ms; statistics are undefined (%d timeouts).",
		strconv.FormatFloat(e.ThresholdMs, 'f', -1, 64), e.Timeouts)
}

func (e *NoInRangeError) Unwrap() error {
	return stats.ErrNoInRangeSamples
}
