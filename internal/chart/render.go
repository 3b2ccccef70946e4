package chart

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 480

	maxDimension   = 4096
	axisTimeLayout = "2006-01-02 15:04"
	dotWidth       = 3
)

var namedColors = map[string]string{
	"green":  "#008000",
	"orange": "#FFA500",
	"yellow": "#FFFF00",
	"red":    "#FF0000",
}

func parseColor(s string) drawing.Color {
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		s = hex
	}
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

func clampDimension(v, def int) int {
	switch {
	case v <= 0:
		return def
	case v > maxDimension:
		return maxDimension
	default:
		return v
	}
}

// RenderPNG draws fig as a PNG image. Line and scatter traces become time
// series; a bar trace becomes a bar chart with its marker colors.
// Non-finite values are skipped.
func RenderPNG(w io.Writer, fig Figure, width, height int) error {
	width = clampDimension(width, DefaultWidth)
	height = clampDimension(height, DefaultHeight)

	for _, tr := range fig.Data {
		if tr.Type == traceBar {
			return renderBars(w, fig, tr, width, height)
		}
	}
	return renderSeries(w, fig, width, height)
}

func traceColor(fig Figure, i int) drawing.Color {
	if len(fig.Layout.Colorway) == 0 {
		return gochart.GetDefaultColor(i)
	}
	return parseColor(fig.Layout.Colorway[i%len(fig.Layout.Colorway)])
}

func renderSeries(w io.Writer, fig Figure, width, height int) error {
	series := make([]gochart.Series, 0, len(fig.Data))
	for i, tr := range fig.Data {
		xs, ys := finitePoints(tr.X, tr.Y)
		if len(xs) < 2 {
			continue
		}

		col := traceColor(fig, i)
		style := gochart.Style{StrokeColor: col, StrokeWidth: 2}
		if tr.Mode == modeMarkers {
			style = gochart.Style{
				StrokeColor: drawing.ColorTransparent,
				DotWidth:    dotWidth,
				DotColor:    col,
			}
		}
		series = append(series, gochart.TimeSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: style})
	}
	if len(series) == 0 {
		return ErrTooFewPoints
	}

	ch := gochart.Chart{
		Title:      fig.Layout.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:           fig.Layout.XAxis.Title,
			ValueFormatter: gochart.TimeValueFormatterWithFormat(axisTimeLayout),
		},
		YAxis:  gochart.YAxis{Name: fig.Layout.YAxis.Title},
		Series: series,
	}
	if len(series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func renderBars(w io.Writer, fig Figure, tr Trace, width, height int) error {
	bars := make([]gochart.Value, 0, len(tr.Y))
	for i, y := range tr.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}

		col := traceColor(fig, 0)
		if tr.Marker != nil && i < len(tr.Marker.Color) {
			col = parseColor(tr.Marker.Color[i])
		}
		bars = append(bars, gochart.Value{
			Value: y,
			Style: gochart.Style{FillColor: col, StrokeColor: col},
		})
	}
	if len(bars) < 2 {
		return ErrTooFewPoints
	}

	// Fit every bar inside the canvas.
	spacing := 1
	barWidth := (width-80)/len(bars) - spacing
	if barWidth < 1 {
		barWidth = 1
	}

	bc := gochart.BarChart{
		Title:      fig.Layout.Title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: spacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		YAxis: gochart.YAxis{
			Name:  fig.Layout.YAxis.Title,
			Range: barRange(bars),
		},
		Bars: bars,
	}

	if err := bc.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// barRange anchors bars at zero so the smallest bar keeps its height.
func barRange(bars []gochart.Value) *gochart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

func finitePoints(x []time.Time, y []float64) ([]time.Time, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]time.Time, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
