package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/airdash/airdash/internal/dataset"
)

// DailyStat aggregates one calendar date. Max, Min and Mean are NaN when the
// day has no present values; Count is the number of rows in the day.
type DailyStat struct {
	Date  time.Time
	Max   float64
	Min   float64
	Mean  float64
	Count int
}

// DailyAggregate groups a parameter by calendar date in the timestamps' own
// location and returns one DailyStat per date, ascending.
func DailyAggregate(d *dataset.Dataset, parameter string) ([]DailyStat, error) {
	col, err := d.Column(parameter)
	if err != nil {
		return nil, err
	}

	days := []DailyStat{}
	var present []float64
	flush := func(day *DailyStat) {
		if len(present) == 0 {
			day.Max, day.Min, day.Mean = math.NaN(), math.NaN(), math.NaN()
		} else {
			day.Max = floats.Max(present)
			day.Min = floats.Min(present)
			day.Mean = stat.Mean(present, nil)
		}
		days = append(days, *day)
		present = present[:0]
	}

	var current *DailyStat
	for i, v := range col {
		date := truncateToDate(d.Timestamp(i))
		if current == nil || !current.Date.Equal(date) {
			if current != nil {
				flush(current)
			}
			current = &DailyStat{Date: date}
		}
		current.Count++
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if current != nil {
		flush(current)
	}

	return days, nil
}

func truncateToDate(ts time.Time) time.Time {
	y, m, day := ts.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, ts.Location())
}
