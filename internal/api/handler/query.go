package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/api/models"
	"github.com/airdash/airdash/internal/api/response"
	"github.com/airdash/airdash/internal/chart"
	"github.com/airdash/airdash/internal/colorband"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/pipeline"
)

// Query parameter names.
const (
	paramParameter = "parameter"
	paramStart     = "start"
	paramEnd       = "end"
	paramChartType = "chartType"
	paramWidth     = "width"
	paramHeight    = "height"
)

// fieldError ties a request error to the query parameter that caused it.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.err.Error()
}

func (e *fieldError) Unwrap() error {
	return e.err
}

func onField(field string, err error) error {
	if err == nil {
		return nil
	}
	return &fieldError{field: field, err: err}
}

// snapshot returns the current dataset of store, or writes 503 when nothing
// has been loaded.
func snapshot(w http.ResponseWriter, r *http.Request, store *dataset.Store) (*dataset.Dataset, bool) {
	ds := store.Current()
	if ds == nil {
		response.ServiceUnavailable(w, r, fmt.Sprintf("dataset %q is not loaded", store.Name()))
		return nil, false
	}
	return ds, true
}

// parameter returns the requested parameter. An omitted parameter selects
// the first column of the dataset.
func parameter(r *http.Request, ds *dataset.Dataset) (string, error) {
	p := r.URL.Query().Get(paramParameter)
	if p == "" {
		params := ds.Parameters()
		if len(params) == 0 {
			return "", onField(paramParameter, pipeline.ErrEmptySelection)
		}
		return params[0], nil
	}
	if !ds.Has(p) {
		_, err := ds.Column(p)
		return "", onField(paramParameter, err)
	}
	return p, nil
}

// selection filters ds to the start and end query parameters.
func selection(r *http.Request, ds *dataset.Dataset, loc *time.Location) (*dataset.Dataset, pipeline.DateRange, error) {
	q := r.URL.Query()
	for _, name := range []string{paramStart, paramEnd} {
		if v := q.Get(name); v != "" {
			if _, err := pipeline.ParseBound(v, loc); err != nil {
				return nil, pipeline.DateRange{}, onField(name, err)
			}
		}
	}

	rng, err := pipeline.ResolveRange(ds, q.Get(paramStart), q.Get(paramEnd), loc)
	if err != nil {
		return nil, pipeline.DateRange{}, onField(paramStart, err)
	}
	filtered, err := pipeline.FilterRange(ds, rng)
	if err != nil {
		return nil, pipeline.DateRange{}, onField(paramStart, err)
	}
	return filtered, rng, nil
}

// dimension parses an optional positive image dimension.
func dimension(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, onField(name, fmt.Errorf("must be a positive integer, got %q", raw))
	}
	return v, nil
}

// writeError maps pipeline errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var fe *fieldError
	field := ""
	if errors.As(err, &fe) {
		field = fe.field
	}

	switch {
	case errors.Is(err, pipeline.ErrEmptySelection),
		errors.Is(err, chart.ErrTooFewPoints),
		errors.Is(err, colorband.ErrNonFiniteValue):
		response.Unprocessable(w, r, err.Error())

	case errors.Is(err, pipeline.ErrInvalidRange),
		errors.Is(err, pipeline.ErrInvalidBound),
		errors.Is(err, chart.ErrUnknownType),
		errors.Is(err, dataset.ErrUnknownParameter),
		fe != nil:
		var fields []models.FieldError
		if field != "" {
			fields = []models.FieldError{{Field: field, Message: fe.err.Error(), Code: errorCode(err)}}
		}
		response.BadRequest(w, r, err.Error(), fields)

	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRange):
		return "INVALID_RANGE"
	case errors.Is(err, pipeline.ErrInvalidBound):
		return "INVALID_TIMESTAMP"
	case errors.Is(err, chart.ErrUnknownType):
		return "UNKNOWN_CHART_TYPE"
	case errors.Is(err, dataset.ErrUnknownParameter):
		return "UNKNOWN_PARAMETER"
	default:
		return "INVALID"
	}
}
