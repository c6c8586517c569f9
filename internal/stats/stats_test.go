package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateThresholdScenario(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4000.0}

	s, err := Aggregate(values, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1, s.CountAboveThreshold)
	assert.Equal(t, 3, s.InRange())
	assert.Equal(t, 2.0, s.Mean)
	assert.Equal(t, 2.0, s.Median)
	assert.Equal(t, 1.0, s.Stdev)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, []float64{}, s.Outliers)
	assert.Equal(t, 3000.0, s.ThresholdMs)
}

func TestAggregateSingleValue(t *testing.T) {
	s, err := Aggregate([]float64{812.123456789}, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 812.12346, s.Mean)
	assert.Equal(t, 812.12346, s.Median)
	assert.Equal(t, 812.12346, s.Min)
	assert.Equal(t, 812.12346, s.Max)
	assert.Equal(t, 0.0, s.Stdev)
	assert.Empty(t, s.Outliers)
}

func TestAggregateThresholdIsInclusive(t *testing.T) {
	s, err := Aggregate([]float64{3000.0, 3000.000001}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, s.CountAboveThreshold)
	assert.Equal(t, 3000.0, s.Max)
}

func TestAggregateErrors(t *testing.T) {
	_, err := Aggregate(nil, DefaultParams())
	require.ErrorIs(t, err, ErrEmptyDataset)

	_, err = Aggregate([]float64{3500, 4000, 9999.5}, DefaultParams())
	require.ErrorIs(t, err, ErrNoInRangeSamples)
}

func TestAggregateCustomThreshold(t *testing.T) {
	p := DefaultParams()
	p.ThresholdMs = 2.5

	s, err := Aggregate([]float64{1.0, 2.0, 3.0, 4000.0}, p)
	require.NoError(t, err)
	assert.Equal(t, 2, s.CountAboveThreshold)
	assert.Equal(t, 1.5, s.Mean)
	assert.Equal(t, 2.0, s.Max)
}

func TestAggregateCountInvariant(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{name: "all in range", values: []float64{5, 10, 15, 2999.99}},
		{name: "mixed", values: []float64{3001, 1, 5000, 2, 3000, 7000}},
		{name: "one in range", values: []float64{3500, 0.5, 4000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Aggregate(tt.values, DefaultParams())
			require.NoError(t, err)

			inRange, above := Partition(tt.values, 3000)
			assert.Equal(t, s.Count, s.CountAboveThreshold+len(inRange))
			assert.Len(t, above, s.CountAboveThreshold)
		})
	}
}

func TestPartitionAllInRange(t *testing.T) {
	values := []float64{4, 1, 3000, 2}
	inRange, above := Partition(values, 3000)
	assert.Equal(t, values, inRange)
	assert.Empty(t, above)

	s, err := Aggregate(values, DefaultParams())
	require.NoError(t, err)
	assert.Zero(t, s.CountAboveThreshold)
}

func TestAggregateRounding(t *testing.T) {
	s, err := Aggregate([]float64{0.1, 0.2, 0.4}, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 0.23333, s.Mean)
	assert.Equal(t, 0.2, s.Median)
	assert.Equal(t, 0.15275, s.Stdev)
}

func TestAggregateEvenMedian(t *testing.T) {
	s, err := Aggregate([]float64{4, 1, 3, 2}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Median)
}

func TestPercentileLinear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 25, want: 1.75},
		{p: 50, want: 2.5},
		{p: 75, want: 3.25},
		{p: 100, want: 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.Equal(t, 7.0, Percentile([]float64{7}, 25))
}

func TestOutliersTukey(t *testing.T) {
	// Q1=2, Q3=4, IQR=2, fences [-1, 7]
	values := []float64{100, 1, 2, 3, 4, 5, -50}

	lower, upper := TukeyFences([]float64{1, 2, 3, 4, 5}, 1.5)
	assert.Equal(t, -1.0, lower)
	assert.Equal(t, 7.0, upper)

	assert.Equal(t, []float64{100, -50}, Outliers(values, 1.5), "input order is kept")
}

func TestOutliersDegenerateFences(t *testing.T) {
	values := []float64{2, 2, 2, 2}
	assert.Empty(t, Outliers(values, 1.5))

	values = []float64{2, 2, 2, 2, 3}
	assert.Equal(t, []float64{3}, Outliers(values, 1.5), "degenerate fences flag anything different")
}

func TestOutliersIdempotent(t *testing.T) {
	values := []float64{12.5, 900, 13, 4500, 14.25, 15, 16, 2999, 11, 0.01, 14}

	first, err := Aggregate(values, DefaultParams())
	require.NoError(t, err)

	inRange, _ := Partition(values, 3000)
	second, err := Aggregate(inRange, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, first.Outliers, second.Outliers)
	assert.Equal(t, []float64{900, 2999, 0.01}, first.Outliers)
}

func TestAggregateIgnoresTimeoutsForOutliers(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 5000, 9000}
	s, err := Aggregate(values, DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, s.Outliers)
	assert.Equal(t, 14.0, s.Max)
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{in: 842.331024, places: 5, want: 842.33102},
		{in: 2.675, places: 2, want: 2.67}, // 2.675 is stored just below the tie
		{in: -0.000001, places: 5, want: 0},
		{in: 12, places: 0, want: 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, tt.places), "Round(%v, %d)", tt.in, tt.places)
	}
}
