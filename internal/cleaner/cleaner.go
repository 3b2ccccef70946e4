// Package cleaner drops sparse parameter columns and imputes the remaining
// missing values with column means.
package cleaner

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/airdash/airdash/internal/dataset"
)

// ErrInvalidThreshold is returned for a threshold outside [0, 100].
var ErrInvalidThreshold = errors.New("threshold percent must be within [0, 100]")

// DroppedColumn describes a column removed for being too sparse.
type DroppedColumn struct {
	Name         string
	MissingRatio float64
}

// ImputedColumn describes a column whose gaps were filled.
type ImputedColumn struct {
	Name   string
	Mean   float64
	Filled int
}

// Report summarizes what Clean changed.
type Report struct {
	Dropped []DroppedColumn
	Imputed []ImputedColumn
}

// Clean drops every column with fewer than thresholdPercent% present values,
// then fills the missing cells of the remaining columns with the column mean
// over present values. The input is not modified.
func Clean(d *dataset.Dataset, thresholdPercent float64) (*dataset.Dataset, Report, error) {
	var report Report
	if math.IsNaN(thresholdPercent) || thresholdPercent < 0 || thresholdPercent > 100 {
		return nil, report, ErrInvalidThreshold
	}

	n := d.Len()
	if n == 0 {
		return dataset.Empty(d.Parameters()), report, nil
	}

	var kept []string
	columns := make(map[string][]float64)
	for _, name := range d.Parameters() {
		col, err := d.Column(name)
		if err != nil {
			return nil, report, err
		}

		present := make([]float64, 0, n)
		for _, v := range col {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		missing := n - len(present)

		// missing/n > (100-t)/100, kept in integer-friendly form.
		if len(present) == 0 || float64(missing)*100 > (100-thresholdPercent)*float64(n) {
			report.Dropped = append(report.Dropped, DroppedColumn{
				Name:         name,
				MissingRatio: float64(missing) / float64(n),
			})
			continue
		}

		if missing > 0 {
			mean := stat.Mean(present, nil)
			for i, v := range col {
				if math.IsNaN(v) {
					col[i] = mean
				}
			}
			report.Imputed = append(report.Imputed, ImputedColumn{Name: name, Mean: mean, Filled: missing})
		}

		kept = append(kept, name)
		columns[name] = col
	}

	out, err := d.WithColumns(kept, columns)
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}
