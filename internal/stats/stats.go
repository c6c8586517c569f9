// Package stats computes the latency summary and Tukey outliers.
package stats

import (
	"errors"
	"math"
	"sort"
	"strconv"

	moremath "github.com/aclements/go-moremath/stats"
)

var (
	ErrEmptyDataset     = errors.New("dataset is empty")
	ErrNoInRangeSamples = errors.New("no samples at or below the threshold")
)

// Params controls how a Summary is derived.
type Params struct {
	ThresholdMs   float64 // samples above this count as timeouts
	IQRMultiplier float64 // Tukey fence width, in IQRs
	Precision     int     // decimal places kept in the summary
}

// DefaultParams returns a 3000 ms threshold, 1.5 IQR fences and 5 decimals.
func DefaultParams() Params {
	return Params{
		ThresholdMs:   3000,
		IQRMultiplier: 1.5,
		Precision:     5,
	}
}

// Summary is the statistics record for one run. Count covers every sample;
// all other figures cover only samples at or below the threshold.
type Summary struct {
	Count               int       `json:"count"`
	Mean                float64   `json:"mean"`
	Median              float64   `json:"median"`
	Stdev               float64   `json:"stdev"`
	Min                 float64   `json:"min"`
	Max                 float64   `json:"max"`
	CountAboveThreshold int       `json:"count_above_threshold"`
	Outliers            []float64 `json:"outliers"`
	ThresholdMs         float64   `json:"threshold_ms"`
}

// InRange returns the number of samples the figures were computed from.
func (s Summary) InRange() int {
	return s.Count - s.CountAboveThreshold
}

// Partition splits values into those at or below threshold and those above,
// preserving order within each.
func Partition(values []float64, threshold float64) (inRange, above []float64) {
	inRange = make([]float64, 0, len(values))
	for _, v := range values {
		if v <= threshold {
			inRange = append(inRange, v)
		} else {
			above = append(above, v)
		}
	}
	return inRange, above
}

// Aggregate derives the Summary for values.
func Aggregate(values []float64, p Params) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrEmptyDataset
	}

	inRange, above := Partition(values, p.ThresholdMs)
	if len(inRange) == 0 {
		return Summary{}, ErrNoInRangeSamples
	}

	sorted := make([]float64, len(inRange))
	copy(sorted, inRange)
	sort.Float64s(sorted)

	stdev := 0.0
	if len(inRange) > 1 {
		stdev = moremath.StdDev(inRange)
	}
	lo, hi := moremath.Bounds(inRange)

	outliers := Outliers(inRange, p.IQRMultiplier)
	for i, v := range outliers {
		outliers[i] = Round(v, p.Precision)
	}

	return Summary{
		Count:               len(values),
		Mean:                Round(moremath.Mean(inRange), p.Precision),
		Median:              Round(median(sorted), p.Precision),
		Stdev:               Round(stdev, p.Precision),
		Min:                 Round(lo, p.Precision),
		Max:                 Round(hi, p.Precision),
		CountAboveThreshold: len(above),
		Outliers:            outliers,
		ThresholdMs:         p.ThresholdMs,
	}, nil
}

// Percentile returns the p-th percentile (0-100) of sorted using linear
// interpolation between closest ranks. sorted must be non-empty and ascending.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := math.Floor(pos)
	upper := math.Ceil(pos)
	lv := sorted[int(lower)]
	uv := sorted[int(upper)]
	return lv + (uv-lv)*(pos-lower)
}

// TukeyFences returns [Q1 - k*IQR, Q3 + k*IQR] for values.
func TukeyFences(values []float64, k float64) (lower, upper float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// Outliers returns the values strictly outside the Tukey fences, in input order.
// The result is never nil.
func Outliers(values []float64, k float64) []float64 {
	out := []float64{}
	if len(values) == 0 {
		return out
	}
	lower, upper := TukeyFences(values, k)
	for _, v := range values {
		if v < lower || v > upper {
			out = append(out, v)
		}
	}
	return out
}

// Round rounds v to places decimal digits, ties resolved on the exact
// binary value the same way decimal formatting does.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
