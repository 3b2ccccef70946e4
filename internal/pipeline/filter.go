// Package pipeline filters reading datasets by time range and computes the
// summary and daily statistics shown on the dashboard.
package pipeline

import (
	"sort"

	"github.com/airdash/airdash/internal/dataset"
)

// FilterRange returns the rows whose timestamps lie within r, in order.
// An empty result is valid.
func FilterRange(d *dataset.Dataset, r DateRange) (*dataset.Dataset, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	n := d.Len()
	from := sort.Search(n, func(i int) bool {
		return !d.Timestamp(i).Before(r.Start)
	})
	to := sort.Search(n, func(i int) bool {
		return d.Timestamp(i).After(r.End)
	})
	if to < from {
		to = from
	}
	return d.Slice(from, to), nil
}
