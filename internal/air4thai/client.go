// Package air4thai provides a client for the air4thai station history API.
package air4thai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the history endpoint of the air4thai web API.
	DefaultBaseURL = "http://air4thai.com/forweb/getHistoryData.php"

	// ProviderName identifies this provider.
	ProviderName = "air4thai"

	// DateLayout is the date format of query bounds.
	DateLayout = "2006-01-02"

	operationHistory = "history"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestRecorder records provider request metrics.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the air4thai client.
type ClientConfig struct {
	// BaseURL is the history endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client is created and registered with Registry.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration

	// MaxRetries is the number of retries on transient failures (default: 0).
	MaxRetries uint64

	// Location interprets payload timestamps (default: UTC).
	Location *time.Location

	// Registry tracks provider health. Optional.
	Registry *resilience.Registry

	// Metrics records request durations. Optional.
	Metrics RequestRecorder

	// Logger receives circuit breaker transitions of the default HTTP client.
	Logger zerolog.Logger
}

// Client is an air4thai API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	location   *time.Location
	registry   *resilience.Registry
	metrics    RequestRecorder
}

// NewClient creates a new air4thai client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		breaker := resilience.DefaultCircuitBreakerConfig(ProviderName)
		breaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			CircuitBreaker:  &breaker,
			Timeout:         timeout,
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		location:   loc,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
	}
}

// Query selects a station history window.
type Query struct {
	StationID string
	Params    []string
	// DataType is the granularity (default "hr").
	DataType  string
	StartDate time.Time
	EndDate   time.Time
	// StartHour and EndHour bound the hours of each day (default "00" and "23").
	StartHour string
	EndHour   string
}

func (q Query) withDefaults() Query {
	if q.DataType == "" {
		q.DataType = "hr"
	}
	if q.StartHour == "" {
		q.StartHour = "00"
	}
	if q.EndHour == "" {
		q.EndHour = "23"
	}
	return q
}

// URL returns the request URL for q.
func (c *Client) URL(q Query) string {
	q = q.withDefaults()
	v := url.Values{}
	v.Set("stationID", q.StationID)
	v.Set("param", strings.Join(q.Params, ","))
	v.Set("type", q.DataType)
	v.Set("sdate", q.StartDate.Format(DateLayout))
	v.Set("edate", q.EndDate.Format(DateLayout))
	v.Set("stime", q.StartHour)
	v.Set("etime", q.EndHour)

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + v.Encode()
}

type historyResponse struct {
	Stations []stationHistory `json:"stations"`
}

type stationHistory struct {
	Data []json.RawMessage `json:"data"`
}

// Fetch retrieves the station history and returns it as a Dataset.
func (c *Client) Fetch(ctx context.Context, q Query) (ds *dataset.Dataset, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordRequest(ProviderName, operationHistory, time.Since(start), err)
		}
		if c.registry != nil {
			if err != nil {
				c.registry.RecordFailure(ProviderName, err)
			} else {
				c.registry.RecordSuccess(ProviderName)
			}
		}
	}()

	reqURL := c.URL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &dataset.FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &dataset.FetchError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &dataset.FetchError{URL: reqURL, Err: err}
	}

	return c.decode(body, q.Params)
}

func (c *Client) decode(body []byte, requested []string) (*dataset.Dataset, error) {
	var result historyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &dataset.SchemaError{Detail: "decode history response: " + err.Error()}
	}
	if len(result.Stations) == 0 {
		return nil, &dataset.SchemaError{Detail: "response has no stations"}
	}
	station := result.Stations[0]
	if station.Data == nil {
		return nil, &dataset.SchemaError{Detail: "station has no data"}
	}

	rows := make([]map[string]any, len(station.Data))
	for i, raw := range station.Data {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil || row == nil {
			return nil, &dataset.SchemaError{Detail: fmt.Sprintf("data record %d is not an object", i)}
		}
		rows[i] = row
	}

	params := columnOrder(requested, rows)
	timestamps := make([]time.Time, len(rows))
	columns := make(map[string][]float64, len(params))
	for _, p := range params {
		columns[p] = make([]float64, len(rows))
	}

	for i, row := range rows {
		raw, ok := row[dataset.DefaultTimestampColumn].(string)
		if !ok {
			return nil, &dataset.SchemaError{Detail: fmt.Sprintf("data record %d has no %s", i, dataset.DefaultTimestampColumn)}
		}
		ts, err := time.ParseInLocation(dataset.TimestampLayout, raw, c.location)
		if err != nil {
			return nil, &dataset.ParseError{Line: i + 1, Column: dataset.DefaultTimestampColumn, Value: raw, Err: err}
		}
		timestamps[i] = ts

		for _, p := range params {
			columns[p][i] = toFloat(row[p])
		}
	}

	return dataset.New(timestamps, params, columns)
}

// columnOrder returns the requested parameters followed by any other keys
// present in the rows, sorted.
func columnOrder(requested []string, rows []map[string]any) []string {
	seen := map[string]bool{dataset.DefaultTimestampColumn: true}
	params := make([]string, 0, len(requested))
	for _, p := range requested {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		params = append(params, p)
	}

	var extra []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(params, extra...)
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// Source loads one station history through a Client.
type Source struct {
	Client *Client
	Query  Query
}

// Load implements dataset.Source.
func (s Source) Load(ctx context.Context) (*dataset.Dataset, error) {
	return s.Client.Fetch(ctx, s.Query)
}
