// Package colorband maps predicted pollutant values to display color bands.
package colorband

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidThresholds is returned when thresholds are not finite and strictly ascending.
	ErrInvalidThresholds = errors.New("thresholds must be finite and strictly ascending")

	// ErrNonFiniteValue is returned when colorizing NaN or an infinity.
	ErrNonFiniteValue = errors.New("value is not finite")
)

// Band is a display color band. Bands are ordered by severity.
type Band int

const (
	Green Band = iota
	Orange
	Yellow
	Red
)

var bandNames = map[Band]string{
	Green:  "green",
	Orange: "orange",
	Yellow: "yellow",
	Red:    "red",
}

func (b Band) String() string {
	if name, ok := bandNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// MarshalText encodes the band as its color name.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Thresholds are the inclusive upper limits of the green, orange and yellow bands.
type Thresholds struct {
	Low      float64
	High     float64
	VeryHigh float64
}

// DefaultThresholds returns the 25 / 50 / 100 limits.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 25, High: 50, VeryHigh: 100}
}

// Validate checks that the thresholds are finite and Low < High < VeryHigh.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Low, t.High, t.VeryHigh} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidThresholds
		}
	}
	if t.Low >= t.High || t.High >= t.VeryHigh {
		return fmt.Errorf("%w: %g, %g, %g", ErrInvalidThresholds, t.Low, t.High, t.VeryHigh)
	}
	return nil
}

// Colorize returns the band for v.
func (t Thresholds) Colorize(v float64) (Band, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, ErrNonFiniteValue
	case v <= t.Low:
		return Green, nil
	case v <= t.High:
		return Orange, nil
	case v <= t.VeryHigh:
		return Yellow, nil
	default:
		return Red, nil
	}
}

// SeriesError reports the first value of a series that could not be colorized.
type SeriesError struct {
	Index int
	Err   error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("colorize value %d: %v", e.Index, e.Err)
}

func (e *SeriesError) Unwrap() error {
	return e.Err
}

// ColorizeSeries colorizes values element-wise.
func (t Thresholds) ColorizeSeries(values []float64) ([]Band, error) {
	bands := make([]Band, len(values))
	for i, v := range values {
		b, err := t.Colorize(v)
		if err != nil {
			return nil, &SeriesError{Index: i, Err: err}
		}
		bands[i] = b
	}
	return bands, nil
}
