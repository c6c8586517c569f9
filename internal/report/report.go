// Package report renders a latency summary for humans or machines.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sanspareilsmyn/latencylens/internal/stats"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Write renders s in the named format ("text" or "json").
func Write(w io.Writer, format string, s stats.Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, s)
	case "json":
		return WriteJSON(w, s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteText prints the eight-line report.
func WriteText(w io.Writer, s stats.Summary) error {
	lines := []string{
		fmt.Sprintf("Count     : %d", s.Count),
		fmt.Sprintf("Mean      : %s ms", FormatFloat(s.Mean)),
		fmt.Sprintf("Median    : %s ms", FormatFloat(s.Median)),
		fmt.Sprintf("Stdev     : %s ms", FormatFloat(s.Stdev)),
		fmt.Sprintf("Min       : %s ms", FormatFloat(s.Min)),
		fmt.Sprintf("Max       : %s ms", FormatFloat(s.Max)),
		fmt.Sprintf("Outliers  : %s ms", formatList(s.Outliers)),
		fmt.Sprintf("Timeouts   : %d", s.CountAboveThreshold),
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// WriteJSON prints s as an indented JSON object.
func WriteJSON(w io.Writer, s stats.Summary) error {
	if s.Outliers == nil {
		s.Outliers = []float64{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// FormatFloat prints v in its shortest round-trip form, always as a float:
// 2950 becomes "2950.0", tiny or huge magnitudes use exponent notation.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func formatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
