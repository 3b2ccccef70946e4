// Package worker provides background station history retrieval for the dashboard.
package worker

import (
	"time"

	"github.com/airdash/airdash/internal/air4thai"
)

// Artifact formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// RefreshConfig holds configuration for the station refresh job.
type RefreshConfig struct {
	// Stations are the air4thai station IDs to fetch.
	Stations []string

	// Query is the request template. StationID is set per station; zero
	// StartDate and EndDate are derived from LookbackDays.
	Query air4thai.Query

	// LookbackDays is the window length ending today.
	// Default: 7
	LookbackDays int

	// Location decides what "today" is.
	// Default: UTC
	Location *time.Location

	// OutputDir receives the artifacts.
	// Default: "data"
	OutputDir string

	// Format is FormatCSV or FormatXLSX.
	// Default: FormatCSV
	Format string

	// Concurrency is the number of concurrent station fetches.
	// Default: 2
	Concurrency int

	// Timeout bounds each station fetch and write.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Stations:     []string{"44t"},
		Query:        air4thai.Query{Params: []string{"PM25", "TEMP", "WS", "RH", "WD"}},
		LookbackDays: 7,
		Location:     time.UTC,
		OutputDir:    "data",
		Format:       FormatCSV,
		Concurrency:  2,
		Timeout:      30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if len(c.Stations) == 0 {
		c.Stations = def.Stations
	}
	if len(c.Query.Params) == 0 {
		c.Query.Params = def.Query.Params
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.Concurrency < 1 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Window returns the date window fetched at now.
func (c RefreshConfig) Window(now time.Time) (start, end time.Time) {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	end = c.Query.EndDate
	if end.IsZero() {
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	}
	start = c.Query.StartDate
	if start.IsZero() {
		start = end.AddDate(0, 0, -c.LookbackDays)
	}
	return start, end
}

// TotalStations returns the number of stations to refresh.
func (c RefreshConfig) TotalStations() int {
	return len(c.Stations)
}
