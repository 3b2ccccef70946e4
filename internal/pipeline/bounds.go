package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airdash/airdash/internal/dataset"
)

var (
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("start must not be after end")

	// ErrInvalidBound is returned for a timestamp filter in an unsupported format.
	ErrInvalidBound = errors.New("invalid timestamp bound")
)

var boundLayouts = []string{
	dataset.TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DateRange is an inclusive timestamp interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate checks that Start is not after End.
func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			r.Start.Format(dataset.TimestampLayout), r.End.Format(dataset.TimestampLayout))
	}
	return nil
}

// Contains reports whether ts lies within the range.
func (r DateRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// ParseBound parses a filter bound. Date-only values mean midnight of that date.
// RFC3339 values are converted to loc; the other formats are read in loc.
func ParseBound(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.In(loc), nil
	}
	for _, layout := range boundLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidBound, s)
}

// ResolveRange builds a DateRange from optional start and end strings.
// Omitted bounds default to the dataset's first and last timestamps. A range
// with a single explicit bound outside the data resolves to an empty range
// rather than an error; only two explicit bounds can be out of order.
func ResolveRange(d *dataset.Dataset, start, end string, loc *time.Location) (DateRange, error) {
	first, last, _ := d.Bounds()
	r := DateRange{Start: first, End: last}

	if start != "" {
		ts, err := ParseBound(start, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.Start = ts
	}
	if end != "" {
		ts, err := ParseBound(end, loc)
		if err != nil {
			return DateRange{}, err
		}
		r.End = ts
	}

	switch {
	case start != "" && end != "":
		if err := r.Validate(); err != nil {
			return DateRange{}, err
		}
	case r.Start.After(r.End) && start != "":
		r.End = r.Start
	case r.Start.After(r.End):
		r.Start = r.End
	}
	return r, nil
}
