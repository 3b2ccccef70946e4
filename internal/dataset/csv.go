package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Options controls how tabular sources are parsed.
type Options struct {
	// TimestampColumn names the timestamp column (default DATETIMEDATA).
	TimestampColumn string

	// Location interprets naive timestamps (default UTC).
	Location *time.Location

	// IgnoreColumns are dropped before parsing. Index columns written by
	// pandas ("" and "Unnamed: 0") are always ignored.
	IgnoreColumns []string

	// Delimiter is the field separator (default ',').
	Delimiter rune
}

func (o Options) withDefaults() Options {
	if o.TimestampColumn == "" {
		o.TimestampColumn = DefaultTimestampColumn
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	return o
}

func (o Options) ignored(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == "Unnamed: 0" {
		return true
	}
	for _, c := range o.IgnoreColumns {
		if c == name {
			return true
		}
	}
	return false
}

// FileSource loads a Dataset from a CSV file.
type FileSource struct {
	Path    string
	Options Options
}

// Load reads and parses the file.
func (s FileSource) Load(_ context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, s.Options)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ds, nil
}

// ReadCSV parses a CSV table with a header row, a timestamp column and numeric
// parameter columns. Empty or non-numeric cells become NaN.
func ReadCSV(r io.Reader, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, &SchemaError{Detail: "missing header row"}
	}

	header := records[0]
	keep := make([]int, 0, len(header))
	tsFound := false
	for i, name := range header {
		if opts.ignored(name) {
			continue
		}
		if name == opts.TimestampColumn {
			tsFound = true
		}
		keep = append(keep, i)
	}
	if !tsFound {
		return nil, &SchemaError{Detail: "missing timestamp column " + opts.TimestampColumn}
	}

	trimmed := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(keep))
		for j, idx := range keep {
			if idx < len(rec) {
				row[j] = strings.TrimSpace(rec[idx])
			}
		}
		trimmed[i] = row
	}

	if len(trimmed) == 1 {
		params := make([]string, 0, len(keep))
		for _, name := range trimmed[0] {
			if name != opts.TimestampColumn {
				params = append(params, name)
			}
		}
		return Empty(params), nil
	}

	df := dataframe.LoadRecords(trimmed,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("load records: %w", df.Err)
	}

	return FromFrame(df, opts)
}

// FromFrame converts a dataframe with a string timestamp column into a Dataset.
func FromFrame(df dataframe.DataFrame, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	names := df.Names()
	tsCol := df.Col(opts.TimestampColumn)
	if tsCol.Err != nil {
		return nil, &SchemaError{Detail: "missing timestamp column " + opts.TimestampColumn}
	}

	raw := tsCol.Records()
	timestamps := make([]time.Time, len(raw))
	for i, v := range raw {
		ts, err := time.ParseInLocation(TimestampLayout, v, opts.Location)
		if err != nil {
			return nil, &ParseError{Line: i + 2, Column: opts.TimestampColumn, Value: v, Err: err}
		}
		timestamps[i] = ts
	}

	params := make([]string, 0, len(names)-1)
	columns := make(map[string][]float64, len(names)-1)
	for _, name := range names {
		if name == opts.TimestampColumn || opts.ignored(name) {
			continue
		}
		params = append(params, name)
		columns[name] = df.Col(name).Float()
	}

	ds, err := New(timestamps, params, columns)
	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			return nil, err
		}
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}

// Frame converts the dataset to a dataframe whose first column holds timestamps
// formatted with TimestampLayout.
func (d *Dataset) Frame(timestampColumn string) dataframe.DataFrame {
	if timestampColumn == "" {
		timestampColumn = DefaultTimestampColumn
	}

	stamps := make([]string, len(d.timestamps))
	for i, ts := range d.timestamps {
		stamps[i] = ts.Format(TimestampLayout)
	}

	cols := make([]series.Series, 0, len(d.params)+1)
	cols = append(cols, series.New(stamps, series.String, timestampColumn))
	for _, p := range d.params {
		cols = append(cols, series.New(append([]float64(nil), d.columns[p]...), series.Float, p))
	}
	return dataframe.New(cols...)
}
