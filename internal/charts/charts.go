// Package charts renders report aggregates as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"fintrack/internal/core"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("not enough data to render a chart")

// minSliceShare hides pie slices below this percentage of the total.
const minSliceShare = 1.0

var background = chart.Style{
	Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
	FillColor: chart.ColorWhite,
}

var axisStyle = chart.Style{FontSize: 12, FontColor: chart.ColorBlack}

// Trend plots daily totals with a 7-day moving average. At least two points
// are needed for a time axis.
func Trend(title string, points []core.TrendPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNoData
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	maxY := 0.0
	for i, p := range points {
		xValues[i] = p.Date.Time
		yValues[i] = p.Amount.Float64()
		if yValues[i] > maxY {
			maxY = yValues[i]
		}
	}

	graph := chart.Chart{
		Title:      title,
		Width:      1200,
		Height:     600,
		Background: background,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
			Style:          axisStyle,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: yMax(maxY)},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: axisStyle,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total",
				XValues: xValues,
				YValues: yValues,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "7-day average",
				XValues: xValues,
				YValues: movingAverage(yValues, 7),
				Style: chart.Style{
					StrokeColor:     chart.ColorRed.WithAlpha(100),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph, axisStyle)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Categories plots a category breakdown as a pie. Slices under 1% of the
// total are left out.
func Categories(title string, buckets []core.CategoryAmount) ([]byte, error) {
	var total float64
	for _, b := range buckets {
		if b.Amount.Cents > 0 {
			total += b.Amount.Float64()
		}
	}
	if total == 0 {
		return nil, ErrNoData
	}

	values := make([]chart.Value, 0, len(buckets))
	for _, b := range buckets {
		amount := b.Amount.Float64()
		share := amount / total * 100
		if amount <= 0 || share < minSliceShare {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", b.Label, b.Amount, share),
			Value: amount,
			Style: axisStyle,
		})
	}

	pie := chart.PieChart{
		Title:      title,
		Width:      800,
		Height:     800,
		Values:     values,
		Background: background,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buf.Bytes(), nil
}

func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		sum := 0.0
		start := max(0, i-window+1)
		for j := start; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

func yMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v * 1.1
}
