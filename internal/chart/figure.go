// Package chart builds plot figures for the dashboard and renders them to PNG.
// Figures use the data/layout shape understood by browser plotting libraries.
package chart

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/airdash/airdash/internal/colorband"
	"github.com/airdash/airdash/internal/pipeline"
)

var (
	// ErrUnknownType is returned for a chart type outside line, bar and scatter.
	ErrUnknownType = errors.New("unknown chart type")

	// ErrTooFewPoints is returned when a figure has too few finite points to render.
	ErrTooFewPoints = errors.New("not enough points to render")
)

// Type is the series chart type.
type Type string

const (
	Line    Type = "line"
	Bar     Type = "bar"
	Scatter Type = "scatter"
)

// Trace types and modes.
const (
	traceScatter = "scatter"
	traceBar     = "bar"
	modeLines    = "lines"
	modeMarkers  = "markers"
)

var (
	seriesColorway = []string{"#17B897"}
	dailyColorway  = []string{"#ECB365", "#064663", "#041C32"}
)

// traceBuilders shapes the single trace of a series figure per chart type.
var traceBuilders = map[Type]func(name string, x []time.Time, y []float64) Trace{
	Line: func(name string, x []time.Time, y []float64) Trace {
		return Trace{Type: traceScatter, Mode: modeLines, Name: name, X: x, Y: y}
	},
	Bar: func(name string, x []time.Time, y []float64) Trace {
		return Trace{Type: traceBar, Name: name, X: x, Y: y}
	},
	Scatter: func(name string, x []time.Time, y []float64) Trace {
		return Trace{Type: traceScatter, Mode: modeMarkers, Name: name, X: x, Y: y}
	},
}

// ParseType parses a chart type name. The empty string means Line.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Line, nil
	}
	t := Type(s)
	if _, ok := traceBuilders[t]; !ok {
		return "", ErrUnknownType
	}
	return t, nil
}

// Values is a numeric series that encodes NaN and infinities as null.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	buf := make([]byte, 0, len(v)*8+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// Marker carries per-point marker colors.
type Marker struct {
	Color []string `json:"color,omitempty"`
}

// Trace is one plotted series.
type Trace struct {
	Type   string      `json:"type"`
	Mode   string      `json:"mode,omitempty"`
	Name   string      `json:"name,omitempty"`
	X      []time.Time `json:"x"`
	Y      Values      `json:"y"`
	Marker *Marker     `json:"marker,omitempty"`
}

// Axis is an axis description.
type Axis struct {
	Title string `json:"title"`
}

// Layout holds figure-wide presentation settings.
type Layout struct {
	Title    string   `json:"title"`
	XAxis    Axis     `json:"xaxis"`
	YAxis    Axis     `json:"yaxis"`
	Colorway []string `json:"colorway,omitempty"`
}

// Figure is a complete plot description.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// MarshalJSON keeps Data as an array when empty.
func (f Figure) MarshalJSON() ([]byte, error) {
	type alias Figure
	out := alias(f)
	if out.Data == nil {
		out.Data = []Trace{}
	}
	return json.Marshal(out)
}

// SeriesFigure builds the time series chart of one parameter.
func SeriesFigure(t Type, parameter string, x []time.Time, y []float64) (Figure, error) {
	build, ok := traceBuilders[t]
	if !ok {
		return Figure{}, ErrUnknownType
	}
	return Figure{
		Data: []Trace{build(parameter, x, y)},
		Layout: Layout{
			Title:    "Air Quality Over Time - " + parameter,
			XAxis:    Axis{Title: "Datetime"},
			YAxis:    Axis{Title: parameter},
			Colorway: seriesColorway,
		},
	}, nil
}

// DailyFigure builds the daily Max, Min and Mean chart of one parameter.
func DailyFigure(parameter string, days []pipeline.DailyStat) Figure {
	dates := make([]time.Time, len(days))
	maxes := make([]float64, len(days))
	mins := make([]float64, len(days))
	means := make([]float64, len(days))
	for i, d := range days {
		dates[i] = d.Date
		maxes[i] = d.Max
		mins[i] = d.Min
		means[i] = d.Mean
	}

	return Figure{
		Data: []Trace{
			{Type: traceScatter, Mode: modeLines, Name: "Max", X: dates, Y: maxes},
			{Type: traceScatter, Mode: modeLines, Name: "Min", X: dates, Y: mins},
			{Type: traceScatter, Mode: modeLines, Name: "Mean", X: dates, Y: means},
		},
		Layout: Layout{
			Title:    "Daily Statistics - " + parameter,
			XAxis:    Axis{Title: "Date"},
			YAxis:    Axis{Title: parameter},
			Colorway: dailyColorway,
		},
	}
}

// PredictionFigure builds the prediction bar chart with one marker color per bar.
func PredictionFigure(parameter string, x []time.Time, y []float64, bands []colorband.Band) Figure {
	colors := make([]string, len(bands))
	for i, b := range bands {
		colors[i] = b.String()
	}

	return Figure{
		Data: []Trace{{
			Type:   traceBar,
			Name:   parameter,
			X:      x,
			Y:      y,
			Marker: &Marker{Color: colors},
		}},
		Layout: Layout{
			Title: "Predictions - " + parameter,
			XAxis: Axis{Title: "Datetime"},
			YAxis: Axis{Title: parameter},
		},
	}
}
