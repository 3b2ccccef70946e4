package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/api/models"
	"github.com/airdash/airdash/internal/api/response"
	"github.com/airdash/airdash/internal/chart"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/export"
	"github.com/airdash/airdash/internal/pipeline"
)

const (
	contentTypePNG  = "image/png"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReadingsConfig configures a ReadingsHandler.
type ReadingsConfig struct {
	Store *dataset.Store
	// Location interprets date filters (default: UTC).
	Location *time.Location
	// TimestampColumn names the timestamp column of exports.
	TimestampColumn string
	// StationID names export files.
	StationID string
	Logger    zerolog.Logger
}

// ReadingsHandler serves the sensor readings views.
type ReadingsHandler struct {
	store     *dataset.Store
	location  *time.Location
	tsColumn  string
	stationID string
	log       zerolog.Logger
}

// NewReadingsHandler creates a new ReadingsHandler.
func NewReadingsHandler(cfg ReadingsConfig) *ReadingsHandler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ReadingsHandler{
		store:     cfg.Store,
		location:  loc,
		tsColumn:  cfg.TimestampColumn,
		stationID: cfg.StationID,
		log:       cfg.Logger,
	}
}

// Parameters handles GET /v1/readings/parameters.
func (h *ReadingsHandler) Parameters(w http.ResponseWriter, r *http.Request) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, parameterList(ds))
}

// Series handles GET /v1/readings/series - the time series figure.
func (h *ReadingsHandler) Series(w http.ResponseWriter, r *http.Request) {
	fig, ok := h.seriesFigure(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, fig)
}

// SeriesPNG handles GET /v1/readings/series.png - the rendered time series.
func (h *ReadingsHandler) SeriesPNG(w http.ResponseWriter, r *http.Request) {
	width, err := dimension(r, paramWidth)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	height, err := dimension(r, paramHeight)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	fig, ok := h.seriesFigure(w, r)
	if !ok {
		return
	}
	writePNG(w, r, h.log, fig, width, height)
}

func (h *ReadingsHandler) seriesFigure(w http.ResponseWriter, r *http.Request) (chart.Figure, bool) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return chart.Figure{}, false
	}

	chartType, err := chart.ParseType(r.URL.Query().Get(paramChartType))
	if err != nil {
		writeError(w, r, h.log, onField(paramChartType, err))
		return chart.Figure{}, false
	}
	param, err := parameter(r, ds)
	if err != nil {
		writeError(w, r, h.log, err)
		return chart.Figure{}, false
	}
	filtered, _, err := selection(r, ds, h.location)
	if err != nil {
		writeError(w, r, h.log, err)
		return chart.Figure{}, false
	}

	values, err := filtered.Column(param)
	if err != nil {
		writeError(w, r, h.log, err)
		return chart.Figure{}, false
	}
	fig, err := chart.SeriesFigure(chartType, param, filtered.Timestamps(), values)
	if err != nil {
		writeError(w, r, h.log, onField(paramChartType, err))
		return chart.Figure{}, false
	}
	return fig, true
}

// Stats handles GET /v1/readings/stats - the statistics table.
func (h *ReadingsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	param, err := parameter(r, ds)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	filtered, rng, err := selection(r, ds, h.location)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	summary, err := pipeline.Summarize(filtered, param)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, statsResponse(summary, rng, filtered.Len()))
}

// Daily handles GET /v1/readings/daily - daily max, min and mean.
func (h *ReadingsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	param, err := parameter(r, ds)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	filtered, _, err := selection(r, ds, h.location)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	days, err := pipeline.DailyAggregate(filtered, param)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	rows := make([]models.DailyRow, len(days))
	for i, d := range days {
		rows[i] = models.DailyRow{
			Date:  d.Date.Format("2006-01-02"),
			Max:   models.Number(d.Max),
			Min:   models.Number(d.Min),
			Mean:  models.Number(d.Mean),
			Count: d.Count,
		}
	}
	response.JSON(w, r, http.StatusOK, models.DailyResponse{
		Parameter: param,
		Days:      rows,
		Figure:    chart.DailyFigure(param, days),
	})
}

// ExportCSV handles GET /v1/readings/export.csv.
func (h *ReadingsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", contentTypeCSV, export.WriteCSV)
}

// ExportXLSX handles GET /v1/readings/export.xlsx.
func (h *ReadingsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", contentTypeXLSX, export.WriteXLSX)
}

type writeFunc func(w io.Writer, d *dataset.Dataset, opts export.Options) error

func (h *ReadingsHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write writeFunc) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	filtered, rng, err := selection(r, ds, h.location)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, filtered, export.Options{TimestampColumn: h.tsColumn}); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	station := h.stationID
	if station == "" {
		station = h.store.Name()
	}
	response.Bytes(w, r, contentType, export.FileName(station, rng.Start, rng.End, ext), buf.Bytes())
}

func writePNG(w http.ResponseWriter, r *http.Request, log zerolog.Logger, fig chart.Figure, width, height int) {
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, fig, width, height); err != nil {
		writeError(w, r, log, err)
		return
	}
	response.Bytes(w, r, contentTypePNG, "", buf.Bytes())
}

func parameterList(ds *dataset.Dataset) models.ParameterList {
	list := models.ParameterList{
		Parameters: ds.Parameters(),
		Rows:       ds.Len(),
	}
	if list.Parameters == nil {
		list.Parameters = []string{}
	}
	if first, last, ok := ds.Bounds(); ok {
		list.Start = models.NewTimestamp(first)
		list.End = models.NewTimestamp(last)
	}
	return list
}

func statsResponse(s pipeline.SummaryStats, rng pipeline.DateRange, rows int) models.StatsResponse {
	stats := make([]models.StatRow, len(s.Stats))
	for i, st := range s.Stats {
		row := models.StatRow{
			Name:    st.Name,
			Value:   models.Number(st.Value),
			Display: st.Display,
		}
		if st.At != nil {
			row.At = models.NewTimestamp(*st.At)
		}
		stats[i] = row
	}
	return models.StatsResponse{
		Parameter: s.Parameter,
		Start:     models.Timestamp(rng.Start),
		End:       models.Timestamp(rng.End),
		Rows:      rows,
		Stats:     stats,
	}
}
