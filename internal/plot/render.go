// Package plot renders latency distribution charts as PNG files.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/latencylens/internal/config"
)

// Output file names, relative to the configured directory.
const (
	HistogramFile    = "histogram.png"
	KDEFile          = "kde.png"
	BoxplotFile      = "boxplot.png"
	BoxHistogramFile = "box_histogram.png"
	LogHistogramFile = "histogram_logx.png"
)

// boxMultiplier is the whisker reach used by the boxplots.
const boxMultiplier = 1.5

var (
	ErrNoValues      = errors.New("no values to plot")
	ErrNoPositive    = errors.New("no positive values for a log axis")
	ErrRenderChart   = errors.New("failed to render chart")
	ErrWriteChart    = errors.New("failed to write chart")
	ErrComposeCharts = errors.New("failed to compose charts")
)

var (
	barFill    = drawing.ColorFromHex("4c72b0").WithAlpha(180)
	barStroke  = drawing.ColorFromHex("2a4a7f")
	curveColor = drawing.ColorFromHex("dd8452")
	boxFill    = drawing.ColorFromHex("8fb3de")
	inkColor   = drawing.ColorFromHex("333333")
	flierColor = drawing.ColorFromHex("c44e52")
)

// Renderer draws the five distribution charts for one set of in-range values.
type Renderer struct {
	cfg    config.PlotConfig
	fs     afero.Fs
	logger *zap.Logger
}

// NewRenderer creates a Renderer writing into cfg.OutputDir on fsys.
func NewRenderer(cfg config.PlotConfig, fsys afero.Fs, logger *zap.Logger) *Renderer {
	return &Renderer{cfg: cfg, fs: fsys, logger: logger}
}

// RenderAll writes every chart, overwriting existing files, and stops at the first failure.
func (r *Renderer) RenderAll(values []float64) error {
	if len(values) == 0 {
		return ErrNoValues
	}
	if err := r.fs.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteChart, err)
	}

	steps := []struct {
		name string
		fn   func([]float64) error
	}{
		{HistogramFile, r.Histogram},
		{KDEFile, r.KDE},
		{BoxplotFile, r.Boxplot},
		{BoxHistogramFile, r.BoxHistogram},
		{LogHistogramFile, r.LogHistogram},
	}
	for _, step := range steps {
		err := step.fn(values)
		if errors.Is(err, ErrNoPositive) {
			r.logger.Warn("Chart skipped", zap.String("file", step.name), zap.Error(err))
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		r.logger.Debug("Chart written", zap.String("file", r.path(step.name)))
	}
	r.logger.Info("Charts rendered",
		zap.String("dir", r.cfg.OutputDir),
		zap.Int("values", len(values)),
		zap.Int("bins", r.cfg.Bins),
	)
	return nil
}

// Histogram draws a linear-scale histogram.
func (r *Renderer) Histogram(values []float64) error {
	bins := LinearBins(values, r.cfg.Bins)
	yRange, yTicks := countAxis(bins.MaxCount())
	ch := r.histogramChart("Latency histogram", bins, valueRange(values), yRange, yTicks)
	ch.Height = r.cfg.Height
	return r.save(HistogramFile, ch)
}

// LogHistogram draws a histogram with log-spaced bins on a log10 x axis.
func (r *Renderer) LogHistogram(values []float64) error {
	bins, skipped := LogBins(values, r.cfg.Bins)
	if len(bins.Counts) == 0 {
		return ErrNoPositive
	}
	if skipped > 0 {
		r.logger.Warn("Non-positive values left out of log-scale histogram", zap.Int("skipped", skipped))
	}

	xRange := padRange(bins.Edges[0], bins.Edges[len(bins.Edges)-1])
	yRange, yTicks := countAxis(bins.MaxCount())
	ch := r.histogramChart("Latency histogram (log scale)", bins, xRange, yRange, yTicks)
	ch.Height = r.cfg.Height
	ch.XAxis.Name = "latency (ms, log10)"
	ch.XAxis.Ticks = logTicks(xRange.Min, xRange.Max)
	return r.save(LogHistogramFile, ch)
}

// KDE draws the kernel density estimate curve.
func (r *Renderer) KDE(values []float64) error {
	xs, ys := Density(values, r.cfg.KDEPoints)
	peak := 0.0
	for _, y := range ys {
		peak = math.Max(peak, y)
	}
	if peak <= 0 {
		peak = 1
	}

	ch := chart.Chart{
		Title:  "Latency density (KDE)",
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "latency (ms)",
			Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
		},
		YAxis: chart.YAxis{
			Name:  "density",
			Range: &chart.ContinuousRange{Min: 0, Max: peak * 1.05},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "density",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: curveColor,
					StrokeWidth: 2,
					FillColor:   curveColor.WithAlpha(60),
				},
			},
		},
	}
	return r.save(KDEFile, ch)
}

// Boxplot draws a horizontal boxplot.
func (r *Renderer) Boxplot(values []float64) error {
	ch := r.boxChart("Latency boxplot", values, valueRange(values))
	ch.Height = r.cfg.Height
	return r.save(BoxplotFile, ch)
}

// BoxHistogram stacks a boxplot above a histogram that share the x range;
// the box panel takes cfg.BoxRatio of the total height.
func (r *Renderer) BoxHistogram(values []float64) error {
	xRange := valueRange(values)
	boxHeight, histHeight := r.cfg.PanelHeights()
	if boxHeight < config.MinPanelHeight || histHeight < config.MinPanelHeight {
		return fmt.Errorf("%w: height %d too small for box ratio %v", ErrRenderChart, r.cfg.Height, r.cfg.BoxRatio)
	}

	bins := LinearBins(values, r.cfg.Bins)
	yRange, yTicks := countAxis(bins.MaxCount())

	box := r.boxChart("Latency boxplot and histogram", values, xRange)
	box.Height = boxHeight
	// Same y ticks as the histogram, drawn invisibly, keep both plot areas aligned.
	box.YAxis = chart.YAxis{
		Range: yRange,
		Ticks: yTicks,
		Style: chart.Style{FontColor: drawing.ColorWhite, StrokeColor: drawing.ColorWhite},
	}
	box.XAxis.Style = chart.Style{Hidden: true}
	box.Background.Padding = chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 4}
	scaleBox(box.Series, yRange.Max)

	hist := r.histogramChart("", bins, xRange, yRange, yTicks)
	hist.Height = histHeight
	hist.Background.Padding.Top = 4

	top, err := renderImage(box)
	if err != nil {
		return err
	}
	bottom, err := renderImage(hist)
	if err != nil {
		return err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.cfg.Width, top.Bounds().Dy()+bottom.Bounds().Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, top.Bounds(), top, top.Bounds().Min, draw.Src)
	lower := image.Rect(0, top.Bounds().Dy(), bottom.Bounds().Dx(), top.Bounds().Dy()+bottom.Bounds().Dy())
	draw.Draw(canvas, lower, bottom, bottom.Bounds().Min, draw.Src)

	return r.writeFile(BoxHistogramFile, func(buf *bytes.Buffer) error {
		if err := png.Encode(buf, canvas); err != nil {
			return fmt.Errorf("%w: %w", ErrComposeCharts, err)
		}
		return nil
	})
}

func (r *Renderer) histogramChart(title string, bins Bins, xRange, yRange *chart.ContinuousRange, yTicks []chart.Tick) chart.Chart {
	xs := make([]float64, 0, 2*len(bins.Counts)+2)
	ys := make([]float64, 0, 2*len(bins.Counts)+2)
	xs = append(xs, bins.Edges[0])
	ys = append(ys, 0)
	for i, c := range bins.Counts {
		xs = append(xs, bins.Edges[i], bins.Edges[i+1])
		ys = append(ys, float64(c), float64(c))
	}
	xs = append(xs, bins.Edges[len(bins.Edges)-1])
	ys = append(ys, 0)

	return chart.Chart{
		Title: title,
		Width: r.cfg.Width,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "latency (ms)",
			Range: xRange,
		},
		YAxis: chart.YAxis{
			Name:  "count",
			Range: yRange,
			Ticks: yTicks,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "count",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: barStroke,
					StrokeWidth: 1,
					FillColor:   barFill,
				},
			},
		},
	}
}

// boxChart lays the box out on a [0, 1] y range centred at 0.5.
func (r *Renderer) boxChart(title string, values []float64, xRange *chart.ContinuousRange) chart.Chart {
	b := BoxFor(values, boxMultiplier)
	const lo, mid, hi = 0.3, 0.5, 0.7
	line := chart.Style{StrokeColor: inkColor, StrokeWidth: 1.5}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "box",
			XValues: []float64{b.Q1, b.Q3, b.Q3, b.Q1, b.Q1},
			YValues: []float64{lo, lo, hi, hi, lo},
			Style:   chart.Style{StrokeColor: inkColor, StrokeWidth: 1.5, FillColor: boxFill},
		},
		chart.ContinuousSeries{Name: "median", XValues: []float64{b.Median, b.Median}, YValues: []float64{lo, hi}, Style: chart.Style{StrokeColor: inkColor, StrokeWidth: 2.5}},
		chart.ContinuousSeries{Name: "whisker-low", XValues: []float64{b.WhiskerLow, b.Q1}, YValues: []float64{mid, mid}, Style: line},
		chart.ContinuousSeries{Name: "whisker-high", XValues: []float64{b.Q3, b.WhiskerHigh}, YValues: []float64{mid, mid}, Style: line},
		chart.ContinuousSeries{Name: "cap-low", XValues: []float64{b.WhiskerLow, b.WhiskerLow}, YValues: []float64{0.4, 0.6}, Style: line},
		chart.ContinuousSeries{Name: "cap-high", XValues: []float64{b.WhiskerHigh, b.WhiskerHigh}, YValues: []float64{0.4, 0.6}, Style: line},
	}
	if len(b.Fliers) > 0 {
		ys := make([]float64, len(b.Fliers))
		for i := range ys {
			ys[i] = mid
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "outliers",
			XValues: b.Fliers,
			YValues: ys,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    flierColor,
			},
		})
	}

	return chart.Chart{
		Title: title,
		Width: r.cfg.Width,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "latency (ms)",
			Range: xRange,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
			Style: chart.Style{Hidden: true},
		},
		Series: series,
	}
}

// scaleBox moves box geometry from the [0, 1] layout onto [0, top].
func scaleBox(series []chart.Series, top float64) {
	for i, s := range series {
		cs, ok := s.(chart.ContinuousSeries)
		if !ok {
			continue
		}
		scaled := make([]float64, len(cs.YValues))
		for j, y := range cs.YValues {
			scaled[j] = y * top
		}
		cs.YValues = scaled
		series[i] = cs
	}
}

func (r *Renderer) save(name string, ch chart.Chart) error {
	return r.writeFile(name, func(buf *bytes.Buffer) error {
		if err := ch.Render(chart.PNG, buf); err != nil {
			return fmt.Errorf("%w: %w", ErrRenderChart, err)
		}
		return nil
	})
}

// writeFile renders into memory first so a failed render never truncates an existing chart.
func (r *Renderer) writeFile(name string, render func(*bytes.Buffer) error) (err error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}

	f, err := r.fs.Create(r.path(name))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteChart, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrWriteChart, cerr)
		}
	}()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteChart, err)
	}
	return nil
}

func (r *Renderer) path(name string) string {
	return filepath.Join(r.cfg.OutputDir, name)
}

func renderImage(ch chart.Chart) (image.Image, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderChart, err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComposeCharts, err)
	}
	return img, nil
}

func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return padRange(lo, hi)
}

// padRange adds 5% on each side, or half a unit when the range is a single point.
func padRange(lo, hi float64) *chart.ContinuousRange {
	span := hi - lo
	if span == 0 {
		return &chart.ContinuousRange{Min: lo - 0.5, Max: hi + 0.5}
	}
	return &chart.ContinuousRange{Min: lo - 0.05*span, Max: hi + 0.05*span}
}

// countAxis returns a y range and round-numbered ticks covering maxCount.
func countAxis(maxCount int) (*chart.ContinuousRange, []chart.Tick) {
	if maxCount < 1 {
		maxCount = 1
	}
	step := niceStep(float64(maxCount) / 5)
	top := math.Ceil(float64(maxCount)*1.05/step) * step

	var ticks []chart.Tick
	for v := 0.0; v <= top+step/2; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return &chart.ContinuousRange{Min: 0, Max: top}, ticks
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten, at least 1.
func niceStep(raw float64) float64 {
	if raw <= 1 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

// logTicks labels decades between lo and hi (log10 units) with their linear values.
func logTicks(lo, hi float64) []chart.Tick {
	var ticks []chart.Tick
	for k := math.Ceil(lo); k <= hi; k++ {
		ticks = append(ticks, chart.Tick{Value: k, Label: formatLinear(k)})
	}
	if len(ticks) >= 2 {
		return ticks
	}
	return []chart.Tick{
		{Value: lo, Label: formatLinear(lo)},
		{Value: hi, Label: formatLinear(hi)},
	}
}

func formatLinear(logValue float64) string {
	return strconv.FormatFloat(math.Pow(10, logValue), 'g', 3, 64)
}
