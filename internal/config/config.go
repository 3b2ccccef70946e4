// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/airdash/airdash/internal/air4thai"
	"github.com/airdash/airdash/internal/colorband"
	"github.com/airdash/airdash/internal/database"
)

// Readings sources.
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Artifact formats written by the worker.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const dateLayout = "2006-01-02"

// Config is the complete process configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogPretty   bool
	RequireTLS  bool

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	Dataset    DatasetConfig
	Thresholds colorband.Thresholds
	Air4Thai   Air4ThaiConfig
	Database   database.Config
	Worker     WorkerConfig
}

// DatasetConfig selects and prepares the served datasets.
type DatasetConfig struct {
	// Source is one of SourceFile, SourceHTTP or SourcePostgres.
	Source          string
	ReadingsFile    string
	PredictionsFile string
	TimestampColumn string
	Location        *time.Location

	// CleanThresholdPercent is the minimum share of present values a column needs to be kept.
	CleanThresholdPercent float64
	CleanPredictions      bool
	WatchFiles            bool

	ReadingsTable string
	StationColumn string
}

// Air4ThaiConfig configures the station history provider.
type Air4ThaiConfig struct {
	BaseURL    string
	StationID  string
	Params     []string
	DataType   string
	StartDate  string
	EndDate    string
	StartHour  string
	EndHour    string
	Timeout    time.Duration
	MaxRetries uint64
}

// Window returns the configured date window. An omitted end means today and
// an omitted start means lookbackDays before the end.
func (c Air4ThaiConfig) Window(now time.Time, lookbackDays int) (start, end time.Time, err error) {
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if c.EndDate != "" {
		end, err = time.ParseInLocation(dateLayout, c.EndDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("AIR4THAI_END_DATE: %w", err)
		}
	}

	start = end.AddDate(0, 0, -lookbackDays)
	if c.StartDate != "" {
		start, err = time.ParseInLocation(dateLayout, c.StartDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("AIR4THAI_START_DATE: %w", err)
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("air4thai window starts after it ends: %s > %s",
			start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

// Query returns the history query for the configured station and window.
func (c Air4ThaiConfig) Query(now time.Time, lookbackDays int) (air4thai.Query, error) {
	start, end, err := c.Window(now, lookbackDays)
	if err != nil {
		return air4thai.Query{}, err
	}
	return air4thai.Query{
		StationID: c.StationID,
		Params:    c.Params,
		DataType:  c.DataType,
		StartDate: start,
		EndDate:   end,
		StartHour: c.StartHour,
		EndHour:   c.EndHour,
	}, nil
}

// WorkerConfig configures the refresh worker.
type WorkerConfig struct {
	Schedule           string
	Stations           []string
	OutputDir          string
	Format             string
	LookbackDays       int
	Concurrency        int
	PubSubProjectID    string
	PubSubSubscription string
}

// FromEnv reads the configuration from the environment and validates it.
func FromEnv() (Config, error) {
	p := &parser{}

	loc, err := time.LoadLocation(getEnvOrDefault("DATASET_TIMEZONE", "UTC"))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("DATASET_TIMEZONE: %w", err))
		loc = time.UTC
	}

	defaults := colorband.DefaultThresholds()

	cfg := Config{
		Port:            getEnvOrDefault("APP_PORT", "8080"),
		Environment:     getEnvOrDefault("APP_ENV", "development"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:       p.bool("LOG_PRETTY", false),
		RequireTLS:      p.bool("REQUIRE_TLS", false),
		OTelEnabled:     p.bool("OTEL_ENABLED", false),
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: p.float("OTEL_SAMPLE_RATIO", 1),
		Dataset: DatasetConfig{
			Source:                strings.ToLower(getEnvOrDefault("READINGS_SOURCE", SourceFile)),
			ReadingsFile:          getEnvOrDefault("READINGS_FILE", "data/air4thai_44t_2024-01-01_2024-03-12.csv"),
			PredictionsFile:       getEnvOrDefault("PREDICTIONS_FILE", "data/predictions.csv"),
			TimestampColumn:       getEnvOrDefault("TIMESTAMP_COLUMN", "DATETIMEDATA"),
			Location:              loc,
			CleanThresholdPercent: p.float("CLEAN_THRESHOLD_PERCENT", 50),
			CleanPredictions:      p.bool("CLEAN_PREDICTIONS", false),
			WatchFiles:            p.bool("WATCH_FILES", false),
			ReadingsTable:         getEnvOrDefault("READINGS_TABLE", "readings"),
			StationColumn:         os.Getenv("READINGS_STATION_COLUMN"),
		},
		Thresholds: colorband.Thresholds{
			Low:      p.float("PREDICTION_LOW_THRESHOLD", defaults.Low),
			High:     p.float("PREDICTION_HIGH_THRESHOLD", defaults.High),
			VeryHigh: p.float("PREDICTION_VERY_HIGH_THRESHOLD", defaults.VeryHigh),
		},
		Air4Thai: Air4ThaiConfig{
			BaseURL:    os.Getenv("AIR4THAI_BASE_URL"),
			StationID:  getEnvOrDefault("AIR4THAI_STATION_ID", "44t"),
			Params:     splitList(getEnvOrDefault("AIR4THAI_PARAMS", "PM25,TEMP,WS,RH,WD")),
			DataType:   getEnvOrDefault("AIR4THAI_DATA_TYPE", "hr"),
			StartDate:  os.Getenv("AIR4THAI_START_DATE"),
			EndDate:    os.Getenv("AIR4THAI_END_DATE"),
			StartHour:  getEnvOrDefault("AIR4THAI_START_HOUR", "00"),
			EndHour:    getEnvOrDefault("AIR4THAI_END_HOUR", "23"),
			Timeout:    p.duration("AIR4THAI_TIMEOUT", 30*time.Second),
			MaxRetries: uint64(p.int("AIR4THAI_MAX_RETRIES", 0)), //nolint:gosec // parser.int rejects negatives
		},
		Database: database.ConfigFromEnv(),
		Worker: WorkerConfig{
			Schedule:           getEnvOrDefault("WORKER_SCHEDULE", "@every 1h"),
			Stations:           splitList(os.Getenv("WORKER_STATIONS")),
			OutputDir:          getEnvOrDefault("WORKER_OUTPUT_DIR", "data"),
			Format:             strings.ToLower(getEnvOrDefault("WORKER_FORMAT", FormatCSV)),
			LookbackDays:       p.int("WORKER_LOOKBACK_DAYS", 7),
			Concurrency:        p.int("WORKER_CONCURRENCY", 2),
			PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
	}

	if len(cfg.Worker.Stations) == 0 {
		cfg.Worker.Stations = []string{cfg.Air4Thai.StationID}
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and combinations.
func (c Config) Validate() error {
	var errs []error

	switch c.Dataset.Source {
	case SourceFile, SourceHTTP, SourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("READINGS_SOURCE: unknown source %q", c.Dataset.Source))
	}

	if r := c.OTelSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO: %g is outside [0, 1]", r))
	}

	if t := c.Dataset.CleanThresholdPercent; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("CLEAN_THRESHOLD_PERCENT: %g is outside [0, 100]", t))
	}

	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("PREDICTION_*_THRESHOLD: %w", err))
	}

	if c.Dataset.Source == SourceHTTP && c.Air4Thai.StationID == "" {
		errs = append(errs, errors.New("AIR4THAI_STATION_ID is required for the http source"))
	}
	if len(c.Air4Thai.Params) == 0 {
		errs = append(errs, errors.New("AIR4THAI_PARAMS must name at least one parameter"))
	}

	switch c.Worker.Format {
	case FormatCSV, FormatXLSX:
	default:
		errs = append(errs, fmt.Errorf("WORKER_FORMAT: unknown format %q", c.Worker.Format))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY: must be at least 1, got %d", c.Worker.Concurrency))
	}
	if c.Worker.LookbackDays < 0 {
		errs = append(errs, fmt.Errorf("WORKER_LOOKBACK_DAYS: must not be negative, got %d", c.Worker.LookbackDays))
	}

	return errors.Join(errs...)
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	if v < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must not be negative, got %d", key, v))
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
