package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/air4thai"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/export"
)

// Fetcher retrieves one station history. *air4thai.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q air4thai.Query) (*dataset.Dataset, error)
}

// LoadRecorder records dataset loads.
type LoadRecorder interface {
	RecordLoad(name string, rows int, err error)
}

// RefreshJob fetches station histories and writes them as artifacts.
type RefreshJob struct {
	config  RefreshConfig
	fetcher Fetcher
	logger  zerolog.Logger
	loads   LoadRecorder
	now     func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	RowsWritten       int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Fetcher Fetcher
	Logger  zerolog.Logger

	// Loads records every station fetch. Optional.
	Loads LoadRecorder

	// Now overrides the clock (default time.Now).
	Now func() time.Time
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
		loads:   cfg.Loads,
		now:     now,
		metrics: &RefreshMetrics{},
	}
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TotalStations int
	Successful    int
	Failed        int
	Rows          int
	Files         []string
	Errors        []RefreshError
}

// RefreshError represents a failed station refresh.
type RefreshError struct {
	Station string
	Error   string
}

// Run refreshes every configured station.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunStations(ctx, j.config.Stations)
}

// RunStations refreshes the given stations with the configured worker pool.
func (j *RefreshJob) RunStations(ctx context.Context, stations []string) *RefreshResult {
	startTime := j.now()
	result := &RefreshResult{
		StartTime:     startTime,
		TotalStations: len(stations),
	}

	windowStart, windowEnd := j.config.Window(startTime)

	j.logger.Info().
		Int("total_stations", result.TotalStations).
		Int("concurrency", j.config.Concurrency).
		Str("start", windowStart.Format(air4thai.DateLayout)).
		Str("end", windowEnd.Format(air4thai.DateLayout)).
		Msg("starting station refresh job")

	stationsChan := make(chan string, len(stations))
	resultsChan := make(chan stationResult, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, windowStart, windowEnd, stationsChan, resultsChan)
		}()
	}

	for _, s := range stations {
		stationsChan <- s
	}
	close(stationsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{Station: sr.station, Error: sr.err.Error()})
			continue
		}
		result.Successful++
		result.Rows += sr.rows
		result.Files = append(result.Files, sr.path)
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("rows", result.Rows).
		Msg("station refresh job completed")

	return result
}

type stationResult struct {
	station string
	path    string
	rows    int
	err     error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, start, end time.Time, stations <-chan string, results chan<- stationResult) {
	for station := range stations {
		// Stations left after cancellation are reported, not dropped.
		if err := ctx.Err(); err != nil {
			results <- stationResult{station: station, err: err}
			continue
		}
		results <- j.refreshStation(ctx, station, start, end)
	}
}

func (j *RefreshJob) refreshStation(ctx context.Context, station string, start, end time.Time) stationResult {
	result := stationResult{station: station}

	stationCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	q := j.config.Query
	q.StationID = station
	q.StartDate = start
	q.EndDate = end

	ds, err := j.fetcher.Fetch(stationCtx, q)
	if j.loads != nil {
		rows := 0
		if ds != nil {
			rows = ds.Len()
		}
		j.loads.RecordLoad(air4thai.ProviderName+":"+station, rows, err)
	}
	if err != nil {
		j.logger.Warn().Err(err).Str("station", station).Msg("station fetch failed")
		result.err = fmt.Errorf("fetch station %s: %w", station, err)
		return result
	}

	path := filepath.Join(j.config.OutputDir, export.FileName(station, start, end, j.config.Format))
	if err := writeArtifact(path, ds, j.config.Format); err != nil {
		j.logger.Error().Err(err).Str("station", station).Str("path", path).Msg("artifact write failed")
		result.err = err
		return result
	}

	j.logger.Debug().
		Str("station", station).
		Str("path", path).
		Int("rows", ds.Len()).
		Msg("station artifact written")

	result.path = path
	result.rows = ds.Len()
	return result
}

// writeArtifact writes ds to a temporary file next to path and renames it
// into place so readers never see a partial file.
func writeArtifact(path string, ds *dataset.Dataset, format string) (err error) {
	var write func(io.Writer, *dataset.Dataset, export.Options) error
	switch format {
	case FormatCSV:
		write = export.WriteCSV
	case FormatXLSX:
		write = export.WriteXLSX
	default:
		return fmt.Errorf("unknown artifact format %q", format)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".airdash-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp, ds, export.Options{}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Check fetches the first configured station for today without writing
// anything, to verify provider connectivity.
func (j *RefreshJob) Check(ctx context.Context) error {
	if len(j.config.Stations) == 0 {
		return nil
	}

	_, today := j.config.Window(j.now())
	q := j.config.Query
	q.StationID = j.config.Stations[0]
	q.StartDate = today
	q.EndDate = today

	checkCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if _, err := j.fetcher.Fetch(checkCtx, q); err != nil {
		return fmt.Errorf("health check station %s: %w", q.StationID, err)
	}
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.RowsWritten += int64(result.Rows)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		RowsWritten:         j.metrics.RowsWritten,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"rows_written":          m.RowsWritten,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
