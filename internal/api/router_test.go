package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/airdash/airdash/internal/api"
	"github.com/airdash/airdash/internal/api/models"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/provider/resilience"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// hourlyReadings covers 2024-01-01 and 2024-01-02 with PM25 = hour index and
// a single missing TEMP value.
func hourlyReadings(t *testing.T) *dataset.Dataset {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, 48)
	pm25 := make([]float64, 48)
	temp := make([]float64, 48)
	for i := range timestamps {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
		pm25[i] = float64(i)
		temp[i] = 25 + float64(i%5)
	}
	temp[3] = math.NaN()

	ds, err := dataset.New(timestamps, []string{"PM25", "TEMP"}, map[string][]float64{"PM25": pm25, "TEMP": temp})
	require.NoError(t, err)
	return ds
}

func predictions(t *testing.T, values ...float64) *dataset.Dataset {
	t.Helper()
	start := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
	}
	ds, err := dataset.New(timestamps, []string{"PM25"}, map[string][]float64{"PM25": values})
	require.NoError(t, err)
	return ds
}

type routerOption func(*api.RouterConfig)

func newTestRouter(t *testing.T, opts ...routerOption) http.Handler {
	t.Helper()
	readings := dataset.NewStore("readings")
	readings.Replace(hourlyReadings(t))
	preds := dataset.NewStore("predictions")
	preds.Replace(predictions(t, 10, 30, 60, 120))

	cfg := api.RouterConfig{
		Version:     "test",
		BuildTime:   "2024-01-01T00:00:00Z",
		Logger:      zerolog.New(io.Discard),
		Readings:    readings,
		Predictions: preds,
		StationID:   "44t",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return api.NewRouter(cfg)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRouter_HealthCheck(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("ready when every dataset is loaded", func(t *testing.T) {
		w := get(t, newTestRouter(t), "/v1/ops/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready before the predictions are loaded", func(t *testing.T) {
		router := newTestRouter(t, func(c *api.RouterConfig) {
			c.Predictions = dataset.NewStore("predictions")
		})
		w := get(t, router, "/v1/ops/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var health models.Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, []interface{}{"predictions"}, health.Details["notLoaded"])
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "air4thai", Registry: registry})
	registry.RecordSuccess("air4thai")

	router := newTestRouter(t, func(c *api.RouterConfig) { c.Registry = registry })
	w := get(t, router, "/v1/ops/status")
	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Datasets, 2)
	assert.Equal(t, "readings", status.Datasets[0].Name)
	assert.Equal(t, 48, status.Datasets[0].Rows)
	assert.Equal(t, []string{"PM25", "TEMP"}, status.Datasets[0].Parameters)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "air4thai", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)
}

func TestRouter_SystemStatus_OpenCircuit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	registry := resilience.NewRegistry()
	cb := resilience.CircuitBreakerConfig{
		Name:        "air4thai",
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	client := resilience.NewClient(resilience.ClientConfig{Name: "air4thai", CircuitBreaker: &cb, Registry: registry})
	req, err := http.NewRequest(http.MethodGet, upstream.URL, http.NoBody)
	require.NoError(t, err)
	if resp, _ := client.Do(req); resp != nil {
		resp.Body.Close()
	}
	registry.RecordFailure("air4thai", assert.AnError)

	router := newTestRouter(t, func(c *api.RouterConfig) { c.Registry = registry })
	w := get(t, router, "/v1/ops/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, models.HealthStatusFail, status.Providers[0].Status)
	assert.Equal(t, "open", status.Providers[0].CircuitState)
	require.NotNil(t, status.Providers[0].Message)
	assert.Equal(t, assert.AnError.Error(), *status.Providers[0].Message)
}

func TestRouter_ReadingsParameters(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/readings/parameters")
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ParameterList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []string{"PM25", "TEMP"}, list.Parameters)
	assert.Equal(t, 48, list.Rows)
	require.NotNil(t, list.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), list.Start.Time().UTC())
	assert.Equal(t, time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC), list.End.Time().UTC())
}

func TestRouter_ReadingsStats(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/readings/stats?parameter=PM25&start=2024-01-01&end=2024-01-01%2023:00:00")
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, "PM25", stats.Parameter)
	assert.Equal(t, 24, stats.Rows)
	require.Len(t, stats.Stats, 5)

	names := make([]string, len(stats.Stats))
	for i, s := range stats.Stats {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"count", "mean", "std", "min", "max"}, names)

	assert.Equal(t, "24.0", stats.Stats[0].Display)
	assert.Equal(t, "11.5", stats.Stats[1].Display)
	assert.Equal(t, "0.0 (2024-01-01 00:00:00)", stats.Stats[3].Display)
	assert.Equal(t, "23.0 (2024-01-01 23:00:00)", stats.Stats[4].Display)
	require.NotNil(t, stats.Stats[4].At)
}

func TestRouter_ReadingsStats_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantField  string
	}{
		{
			name:       "empty selection",
			target:     "/v1/readings/stats?parameter=PM25&start=2030-01-01&end=2030-01-02",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "start after data without end",
			target:     "/v1/readings/stats?parameter=PM25&start=2030-01-01",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "start after end",
			target:     "/v1/readings/stats?parameter=PM25&start=2024-01-02&end=2024-01-01",
			wantStatus: http.StatusBadRequest,
			wantField:  "start",
		},
		{
			name:       "malformed end",
			target:     "/v1/readings/stats?parameter=PM25&end=02/01/2024",
			wantStatus: http.StatusBadRequest,
			wantField:  "end",
		},
		{
			name:       "unknown parameter",
			target:     "/v1/readings/stats?parameter=CO2",
			wantStatus: http.StatusBadRequest,
			wantField:  "parameter",
		},
	}

	router := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.target)
			assert.Equal(t, tt.wantStatus, w.Code)

			problem := decodeProblem(t, w)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, "/v1/readings/stats", problem.Instance)
			if tt.wantField != "" {
				require.Len(t, problem.Errors, 1)
				assert.Equal(t, tt.wantField, problem.Errors[0].Field)
			}
		})
	}
}

func TestRouter_ReadingsSeries(t *testing.T) {
	router := newTestRouter(t)

	t.Run("bar chart", func(t *testing.T) {
		w := get(t, router, "/v1/readings/series?parameter=TEMP&chartType=bar&end=2024-01-01%2004:00:00")
		require.Equal(t, http.StatusOK, w.Code)

		var fig struct {
			Data []struct {
				Type string     `json:"type"`
				Y    []*float64 `json:"y"`
			} `json:"data"`
			Layout struct {
				Title string `json:"title"`
			} `json:"layout"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fig))
		require.Len(t, fig.Data, 1)
		assert.Equal(t, "bar", fig.Data[0].Type)
		assert.Equal(t, "Air Quality Over Time - TEMP", fig.Layout.Title)
		require.Len(t, fig.Data[0].Y, 5)
		assert.Nil(t, fig.Data[0].Y[3])
	})

	t.Run("unknown chart type", func(t *testing.T) {
		w := get(t, router, "/v1/readings/series?parameter=PM25&chartType=pie")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		problem := decodeProblem(t, w)
		require.Len(t, problem.Errors, 1)
		assert.Equal(t, "chartType", problem.Errors[0].Field)
		assert.Equal(t, "UNKNOWN_CHART_TYPE", problem.Errors[0].Code)
	})
}

func TestRouter_ReadingsSeriesPNG(t *testing.T) {
	router := newTestRouter(t)

	w := get(t, router, "/v1/readings/series.png?parameter=PM25&width=640&height=320")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngSignature))

	w = get(t, router, "/v1/readings/series.png?parameter=PM25&start=2024-01-01&end=2024-01-01")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = get(t, router, "/v1/readings/series.png?parameter=PM25&width=wide")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ReadingsDaily(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/readings/daily?parameter=PM25")
	require.Equal(t, http.StatusOK, w.Code)

	var daily struct {
		Parameter string            `json:"parameter"`
		Days      []models.DailyRow `json:"days"`
		Figure    struct {
			Data []struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"figure"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &daily))

	require.Len(t, daily.Days, 2)
	assert.Equal(t, "2024-01-01", daily.Days[0].Date)
	assert.Equal(t, models.Number(23), daily.Days[0].Max)
	assert.Equal(t, models.Number(0), daily.Days[0].Min)
	assert.Equal(t, models.Number(11.5), daily.Days[0].Mean)
	assert.Equal(t, 24, daily.Days[0].Count)
	assert.Equal(t, models.Number(47), daily.Days[1].Max)

	require.Len(t, daily.Figure.Data, 3)
	assert.Equal(t, "Max", daily.Figure.Data[0].Name)
	assert.Equal(t, "Min", daily.Figure.Data[1].Name)
	assert.Equal(t, "Mean", daily.Figure.Data[2].Name)
}

func TestRouter_ReadingsExportCSV(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/readings/export.csv?start=2024-01-01&end=2024-01-01%2001:00:00")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=air4thai_44t_2024-01-01_2024-01-01.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"DATETIMEDATA,PM25,TEMP\n2024-01-01 00:00:00,0,25\n2024-01-01 01:00:00,1,26\n",
		w.Body.String())
}

func TestRouter_ReadingsExportXLSX(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/readings/export.xlsx?start=2024-01-02")
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("readings")
	require.NoError(t, err)
	assert.Len(t, rows, 25)
	assert.Equal(t, "2024-01-02 00:00:00", rows[1][0])
}

func TestRouter_PredictionsSeries(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/predictions/series?parameter=PM25")
	require.Equal(t, http.StatusOK, w.Code)

	var series struct {
		Points []struct {
			Band string `json:"band"`
		} `json:"points"`
		Figure struct {
			Data []struct {
				Type   string `json:"type"`
				Marker struct {
					Color []string `json:"color"`
				} `json:"marker"`
			} `json:"data"`
		} `json:"figure"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))

	bands := make([]string, len(series.Points))
	for i, p := range series.Points {
		bands[i] = p.Band
	}
	assert.Equal(t, []string{"green", "orange", "yellow", "red"}, bands)
	require.Len(t, series.Figure.Data, 1)
	assert.Equal(t, "bar", series.Figure.Data[0].Type)
	assert.Equal(t, bands, series.Figure.Data[0].Marker.Color)
}

func TestRouter_PredictionsSeries_NonFinite(t *testing.T) {
	router := newTestRouter(t, func(c *api.RouterConfig) {
		c.Predictions = dataset.NewStore("predictions")
		c.Predictions.Replace(predictions(t, 10, math.NaN()))
	})

	w := get(t, router, "/v1/predictions/series?parameter=PM25")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decodeProblem(t, w)
}

func TestRouter_PredictionsStatsAndPNG(t *testing.T) {
	router := newTestRouter(t)

	w := get(t, router, "/v1/predictions/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "PM25", stats.Parameter)
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, "55.0", stats.Stats[1].Display)

	w = get(t, router, "/v1/predictions/series.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngSignature))
}

func TestRouter_DatasetNotLoaded(t *testing.T) {
	router := newTestRouter(t, func(c *api.RouterConfig) {
		c.Readings = dataset.NewStore("readings")
	})

	w := get(t, router, "/v1/readings/stats?parameter=PM25")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, "readings")
}

func TestRouter_NotFound(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/ops/health")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
