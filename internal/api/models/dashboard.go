package models

import "github.com/airdash/airdash/internal/chart"

// ParameterList feeds the parameter dropdown and the date picker bounds.
type ParameterList struct {
	Parameters []string   `json:"parameters"`
	Rows       int        `json:"rows"`
	Start      *Timestamp `json:"start,omitempty"`
	End        *Timestamp `json:"end,omitempty"`
}

// StatRow is one row of the statistics table.
type StatRow struct {
	Name    string     `json:"name"`
	Value   Number     `json:"value"`
	Display string     `json:"display"`
	At      *Timestamp `json:"at,omitempty"`
}

// StatsResponse is the statistics table of one parameter over a date range.
type StatsResponse struct {
	Parameter string    `json:"parameter"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
	Rows      int       `json:"rows"`
	Stats     []StatRow `json:"stats"`
}

// DailyRow is the aggregate of one calendar day.
type DailyRow struct {
	Date  string `json:"date"`
	Max   Number `json:"max"`
	Min   Number `json:"min"`
	Mean  Number `json:"mean"`
	Count int    `json:"count"`
}

// DailyResponse holds the daily aggregate table and its chart.
type DailyResponse struct {
	Parameter string       `json:"parameter"`
	Days      []DailyRow   `json:"days"`
	Figure    chart.Figure `json:"figure"`
}

// PredictionPoint is one colorized prediction value.
type PredictionPoint struct {
	Time  Timestamp `json:"time"`
	Value Number    `json:"value"`
	Band  string    `json:"band"`
}

// PredictionSeriesResponse holds the colorized prediction chart.
type PredictionSeriesResponse struct {
	Parameter string            `json:"parameter"`
	Points    []PredictionPoint `json:"points"`
	Figure    chart.Figure      `json:"figure"`
}
