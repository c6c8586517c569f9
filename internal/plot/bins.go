package plot

import (
	"math"
	"sort"

	moremath "github.com/aclements/go-moremath/stats"

	"github.com/sanspareilsmyn/latencylens/internal/stats"
)

// Bins is an equal-width histogram. Edges has len(Counts)+1 entries.
type Bins struct {
	Edges  []float64
	Counts []int
}

// MaxCount returns the tallest bar.
func (b Bins) MaxCount() int {
	m := 0
	for _, c := range b.Counts {
		if c > m {
			m = c
		}
	}
	return m
}

// LinearBins splits [min, max] of values into n equal bins; the last bin is closed.
// A zero-width range is widened to [v-0.5, v+0.5].
func LinearBins(values []float64, n int) Bins {
	lo, hi := moremath.Bounds(values)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(n)

	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[n] = hi

	counts := make([]int, n)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return Bins{Edges: edges, Counts: counts}
}

// LogBins bins log10 of the positive values; edges are in log10 units.
// skipped counts values that cannot sit on a log axis.
func LogBins(values []float64, n int) (bins Bins, skipped int) {
	logs := make([]float64, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			skipped++
			continue
		}
		logs = append(logs, math.Log10(v))
	}
	if len(logs) == 0 {
		return Bins{}, skipped
	}
	return LinearBins(logs, n), skipped
}

// Density evaluates a Gaussian KDE of values at evenly spaced xs,
// extending three bandwidths past the data on each side.
func Density(values []float64, points int) (xs, ys []float64) {
	bw := scottBandwidth(values)
	kde := &moremath.KDE{
		Sample:    moremath.Sample{Xs: values},
		Bandwidth: bw,
	}

	lo, hi := moremath.Bounds(values)
	lo -= 3 * bw
	hi += 3 * bw
	step := (hi - lo) / float64(points-1)

	xs = make([]float64, points)
	ys = make([]float64, points)
	for i := range xs {
		x := lo + float64(i)*step
		xs[i] = x
		ys[i] = kde.PDF(x)
	}
	return xs, ys
}

// scottBandwidth is Scott's rule, sd * n^(-1/5), with a 1 ms floor for
// samples that have no spread.
func scottBandwidth(values []float64) float64 {
	if len(values) < 2 {
		return 1
	}
	bw := moremath.StdDev(values) * math.Pow(float64(len(values)), -0.2)
	if bw <= 0 || math.IsNaN(bw) {
		return 1
	}
	return bw
}

// Box holds the five-number view drawn by the boxplot.
// Whiskers reach the most extreme values inside the Tukey fences.
type Box struct {
	Q1, Median, Q3          float64
	WhiskerLow, WhiskerHigh float64
	Fliers                  []float64
}

// BoxFor computes the boxplot geometry of values with fences k IQRs wide.
func BoxFor(values []float64, k float64) Box {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	b := Box{
		Q1:     stats.Percentile(sorted, 25),
		Median: stats.Percentile(sorted, 50),
		Q3:     stats.Percentile(sorted, 75),
	}
	lower, upper := stats.TukeyFences(sorted, k)
	b.WhiskerLow, b.WhiskerHigh = b.Q1, b.Q3
	for _, v := range sorted {
		if v >= lower {
			b.WhiskerLow = math.Min(v, b.Q1)
			break
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= upper {
			b.WhiskerHigh = math.Max(sorted[i], b.Q3)
			break
		}
	}
	b.Fliers = stats.Outliers(values, k)
	return b
}
