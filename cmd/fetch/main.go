// Package main provides a one-shot station history download.
//
// Usage:
//
//	fetch -station 44t -params PM25,TEMP -start 2024-01-01 -end 2024-03-12 -format csv
//
// Flags default to the AIR4THAI_* and WORKER_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/air4thai"
	"github.com/airdash/airdash/internal/config"
	"github.com/airdash/airdash/internal/telemetry"
	"github.com/airdash/airdash/internal/worker"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a := cfg.Air4Thai

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	station := fs.String("station", a.StationID, "air4thai station ID")
	params := fs.String("params", strings.Join(a.Params, ","), "comma-separated parameters")
	dataType := fs.String("type", a.DataType, "data granularity")
	fs.StringVar(&a.StartDate, "start", a.StartDate, "first day, YYYY-MM-DD (default: end minus -lookback days)")
	fs.StringVar(&a.EndDate, "end", a.EndDate, "last day, YYYY-MM-DD (default: today)")
	fs.StringVar(&a.StartHour, "stime", a.StartHour, "first hour of each day")
	fs.StringVar(&a.EndHour, "etime", a.EndHour, "last hour of each day")
	fs.StringVar(&a.BaseURL, "url", a.BaseURL, "history endpoint (default: "+air4thai.DefaultBaseURL+")")
	lookback := fs.Int("lookback", cfg.Worker.LookbackDays, "days before -end when -start is omitted")
	outDir := fs.String("out", cfg.Worker.OutputDir, "output directory")
	format := fs.String("format", cfg.Worker.Format, "artifact format: csv or xlsx")
	verbose := fs.Bool("v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	a.StationID = *station
	a.DataType = *dataType
	a.Params = nil
	for _, p := range strings.Split(*params, ",") {
		if p = strings.TrimSpace(p); p != "" {
			a.Params = append(a.Params, p)
		}
	}
	if a.StationID == "" || len(a.Params) == 0 {
		return errors.New("-station and -params are required")
	}
	if *format != worker.FormatCSV && *format != worker.FormatXLSX {
		return fmt.Errorf("unknown format %q", *format)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := telemetry.NewLogger(telemetry.LoggerConfig{
		ServiceName: "airdash-fetch",
		Version:     Version,
		Level:       level,
		Pretty:      true,
		Output:      os.Stderr,
	})
	if err != nil {
		return err
	}

	query, err := a.Query(time.Now().In(cfg.Dataset.Location), *lookback)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fetch(ctx, a, query, *outDir, *format, cfg, log)
}

func fetch(ctx context.Context, a config.Air4ThaiConfig, q air4thai.Query, outDir, format string, cfg config.Config, log zerolog.Logger) error {
	client := air4thai.NewClient(air4thai.ClientConfig{
		BaseURL:    a.BaseURL,
		Timeout:    a.Timeout,
		MaxRetries: a.MaxRetries,
		Location:   cfg.Dataset.Location,
		Logger:     log,
	})
	log.Debug().Str("url", client.URL(q)).Msg("requesting station history")

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Stations:    []string{q.StationID},
			Query:       q,
			Location:    cfg.Dataset.Location,
			OutputDir:   outDir,
			Format:      format,
			Concurrency: 1,
			Timeout:     a.Timeout,
		},
		Fetcher: client,
		Logger:  log,
	})

	result := job.Run(ctx)
	if len(result.Errors) > 0 {
		return errors.New(result.Errors[0].Error)
	}
	if len(result.Files) == 0 {
		return ctx.Err()
	}

	fmt.Printf("wrote %d rows to %s\n", result.Rows, result.Files[0])
	return nil
}
