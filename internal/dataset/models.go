// Package dataset provides the time-indexed reading tables served by the dashboard
// and the loaders that build them from files, HTTP providers and SQL tables.
package dataset

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// TimestampLayout is the wire format of reading timestamps in files and provider payloads.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultTimestampColumn is the timestamp column name used by air4thai exports.
const DefaultTimestampColumn = "DATETIMEDATA"

// Reading is one timestamped row. Missing values are NaN.
type Reading struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Source loads a Dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Dataset is an immutable, timestamp-ordered table of readings.
// Accessors return copies; derivations return new Datasets.
type Dataset struct {
	timestamps []time.Time
	params     []string
	columns    map[string][]float64
}

// New builds a Dataset from a timestamp column and one value column per parameter.
// params fixes the column order and must name every key of columns.
// Rows are stable-sorted ascending by timestamp; duplicate timestamps are rejected.
func New(timestamps []time.Time, params []string, columns map[string][]float64) (*Dataset, error) {
	if len(params) != len(columns) {
		return nil, &SchemaError{Detail: fmt.Sprintf("%d parameters named for %d columns", len(params), len(columns))}
	}

	n := len(timestamps)
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if _, dup := seen[p]; dup {
			return nil, &SchemaError{Detail: "duplicate column " + p}
		}
		seen[p] = struct{}{}

		col, ok := columns[p]
		if !ok {
			return nil, &SchemaError{Detail: "missing column " + p}
		}
		if len(col) != n {
			return nil, &SchemaError{Detail: fmt.Sprintf("column %s has %d values for %d timestamps", p, len(col), n)}
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return timestamps[order[a]].Before(timestamps[order[b]])
	})

	ds := &Dataset{
		timestamps: make([]time.Time, n),
		params:     append([]string(nil), params...),
		columns:    make(map[string][]float64, len(params)),
	}
	for i, src := range order {
		ds.timestamps[i] = timestamps[src]
		if i > 0 && ds.timestamps[i].Equal(ds.timestamps[i-1]) {
			return nil, &SchemaError{Detail: "duplicate timestamp " + ds.timestamps[i].Format(TimestampLayout)}
		}
	}
	for _, p := range params {
		col := make([]float64, n)
		for i, src := range order {
			col[i] = columns[p][src]
		}
		ds.columns[p] = col
	}

	return ds, nil
}

// Empty returns a Dataset with no rows and the given parameter columns.
func Empty(params []string) *Dataset {
	columns := make(map[string][]float64, len(params))
	for _, p := range params {
		columns[p] = []float64{}
	}
	return &Dataset{
		timestamps: []time.Time{},
		params:     append([]string(nil), params...),
		columns:    columns,
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.timestamps)
}

// Parameters returns the parameter column names in order.
func (d *Dataset) Parameters() []string {
	return append([]string(nil), d.params...)
}

// Has reports whether the dataset carries the named parameter.
func (d *Dataset) Has(parameter string) bool {
	_, ok := d.columns[parameter]
	return ok
}

// Timestamp returns the timestamp of row i.
func (d *Dataset) Timestamp(i int) time.Time {
	return d.timestamps[i]
}

// Timestamps returns a copy of the timestamp column.
func (d *Dataset) Timestamps() []time.Time {
	return append([]time.Time(nil), d.timestamps...)
}

// Column returns a copy of the named parameter column.
func (d *Dataset) Column(parameter string) ([]float64, error) {
	col, ok := d.columns[parameter]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, parameter)
	}
	return append([]float64(nil), col...), nil
}

// Value returns the value of parameter at row i, NaN when the parameter is unknown.
func (d *Dataset) Value(parameter string, i int) float64 {
	col, ok := d.columns[parameter]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Reading returns row i as a Reading.
func (d *Dataset) Reading(i int) Reading {
	values := make(map[string]float64, len(d.params))
	for _, p := range d.params {
		values[p] = d.columns[p][i]
	}
	return Reading{Timestamp: d.timestamps[i], Values: values}
}

// Bounds returns the first and last timestamps. ok is false for an empty dataset.
func (d *Dataset) Bounds() (first, last time.Time, ok bool) {
	if len(d.timestamps) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.timestamps[0], d.timestamps[len(d.timestamps)-1], true
}

// Slice returns rows [from, to) as a new Dataset.
func (d *Dataset) Slice(from, to int) *Dataset {
	out := &Dataset{
		timestamps: append([]time.Time(nil), d.timestamps[from:to]...),
		params:     append([]string(nil), d.params...),
		columns:    make(map[string][]float64, len(d.params)),
	}
	for _, p := range d.params {
		out.columns[p] = append([]float64(nil), d.columns[p][from:to]...)
	}
	return out
}

// WithColumns returns a Dataset sharing d's timestamps with a new set of columns.
// params fixes the order and must name every key of columns.
func (d *Dataset) WithColumns(params []string, columns map[string][]float64) (*Dataset, error) {
	out := &Dataset{
		timestamps: append([]time.Time(nil), d.timestamps...),
		params:     append([]string(nil), params...),
		columns:    make(map[string][]float64, len(params)),
	}
	if len(params) != len(columns) {
		return nil, &SchemaError{Detail: fmt.Sprintf("%d parameters named for %d columns", len(params), len(columns))}
	}
	for _, p := range params {
		col, ok := columns[p]
		if !ok {
			return nil, &SchemaError{Detail: "missing column " + p}
		}
		if len(col) != len(d.timestamps) {
			return nil, &SchemaError{Detail: fmt.Sprintf("column %s has %d values for %d timestamps", p, len(col), len(d.timestamps))}
		}
		out.columns[p] = append([]float64(nil), col...)
	}
	return out, nil
}
