package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/api/models"
	"github.com/airdash/airdash/internal/api/response"
	"github.com/airdash/airdash/internal/chart"
	"github.com/airdash/airdash/internal/colorband"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/pipeline"
)

// PredictionsConfig configures a PredictionsHandler.
type PredictionsConfig struct {
	Store      *dataset.Store
	Thresholds colorband.Thresholds
	Logger     zerolog.Logger
}

// PredictionsHandler serves the model prediction views. Predictions are
// always summarized over their full range.
type PredictionsHandler struct {
	store      *dataset.Store
	thresholds colorband.Thresholds
	log        zerolog.Logger
}

// NewPredictionsHandler creates a new PredictionsHandler.
func NewPredictionsHandler(cfg PredictionsConfig) *PredictionsHandler {
	return &PredictionsHandler{
		store:      cfg.Store,
		thresholds: cfg.Thresholds,
		log:        cfg.Logger,
	}
}

// Parameters handles GET /v1/predictions/parameters.
func (h *PredictionsHandler) Parameters(w http.ResponseWriter, r *http.Request) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, parameterList(ds))
}

// Stats handles GET /v1/predictions/stats.
func (h *PredictionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return
	}
	param, err := parameter(r, ds)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	summary, err := pipeline.Summarize(ds, param)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	first, last, _ := ds.Bounds()
	response.JSON(w, r, http.StatusOK, statsResponse(summary, pipeline.DateRange{Start: first, End: last}, ds.Len()))
}

// Series handles GET /v1/predictions/series - colorized prediction bars.
func (h *PredictionsHandler) Series(w http.ResponseWriter, r *http.Request) {
	ds, param, values, bands, ok := h.colorized(w, r)
	if !ok {
		return
	}

	timestamps := ds.Timestamps()
	points := make([]models.PredictionPoint, len(values))
	for i, v := range values {
		points[i] = models.PredictionPoint{
			Time:  models.Timestamp(timestamps[i]),
			Value: models.Number(v),
			Band:  bands[i].String(),
		}
	}

	response.JSON(w, r, http.StatusOK, models.PredictionSeriesResponse{
		Parameter: param,
		Points:    points,
		Figure:    chart.PredictionFigure(param, timestamps, values, bands),
	})
}

// SeriesPNG handles GET /v1/predictions/series.png.
func (h *PredictionsHandler) SeriesPNG(w http.ResponseWriter, r *http.Request) {
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

	ds, param, values, bands, ok := h.colorized(w, r)
	if !ok {
		return
	}
	writePNG(w, r, h.log, chart.PredictionFigure(param, ds.Timestamps(), values, bands), width, height)
}

func (h *PredictionsHandler) colorized(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, string, []float64, []colorband.Band, bool) {
	ds, ok := snapshot(w, r, h.store)
	if !ok {
		return nil, "", nil, nil, false
	}
	param, err := parameter(r, ds)
	if err != nil {
		writeError(w, r, h.log, err)
		return nil, "", nil, nil, false
	}
	values, err := ds.Column(param)
	if err != nil {
		writeError(w, r, h.log, err)
		return nil, "", nil, nil, false
	}

	bands, err := h.thresholds.ColorizeSeries(values)
	if err != nil {
		var seriesErr *colorband.SeriesError
		if errors.As(err, &seriesErr) {
			h.log.Warn().
				Str("parameter", param).
				Time("at", ds.Timestamp(seriesErr.Index)).
				Msg("prediction value cannot be colorized")
		}
		writeError(w, r, h.log, err)
		return nil, "", nil, nil, false
	}
	return ds, param, values, bands, true
}
