// Package export writes reading datasets as CSV or XLSX artifacts.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/airdash/airdash/internal/dataset"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "readings"

// fileDateLayout is the date format used in artifact names.
const fileDateLayout = "2006-01-02"

// Options controls the written layout.
type Options struct {
	// TimestampColumn names the first column (default DATETIMEDATA).
	TimestampColumn string
}

func (o Options) timestampColumn() string {
	if o.TimestampColumn == "" {
		return dataset.DefaultTimestampColumn
	}
	return o.TimestampColumn
}

// FileName returns the artifact name air4thai_<station>_<start>_<end>.<ext>.
func FileName(stationID string, start, end time.Time, ext string) string {
	return fmt.Sprintf("air4thai_%s_%s_%s.%s", stationID, start.Format(fileDateLayout), end.Format(fileDateLayout), ext)
}

// frame renders d as string columns in the input file format:
// timestamps as YYYY-MM-DD HH:MM:SS, numbers in shortest form, missing values empty.
func frame(d *dataset.Dataset, opts Options) dataframe.DataFrame {
	n := d.Len()
	stamps := make([]string, n)
	for i := 0; i < n; i++ {
		stamps[i] = d.Timestamp(i).Format(dataset.TimestampLayout)
	}

	params := d.Parameters()
	cols := make([]series.Series, 0, len(params)+1)
	cols = append(cols, series.New(stamps, series.String, opts.timestampColumn()))
	for _, p := range params {
		values := make([]string, n)
		for i := 0; i < n; i++ {
			values[i] = formatValue(d.Value(p, i))
		}
		cols = append(cols, series.New(values, series.String, p))
	}
	return dataframe.New(cols...)
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes d with a header row, the timestamp column first.
func WriteCSV(w io.Writer, d *dataset.Dataset, opts Options) error {
	if err := frame(d, opts).WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes d to a single worksheet with a header row. Timestamps are
// written as text in the CSV layout; missing values are left blank.
func WriteXLSX(w io.Writer, d *dataset.Dataset, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	params := d.Parameters()
	header := make([]any, 0, len(params)+1)
	header = append(header, opts.timestampColumn())
	for _, p := range params {
		header = append(header, p)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < d.Len(); i++ {
		row := make([]any, 0, len(params)+1)
		row = append(row, d.Timestamp(i).Format(dataset.TimestampLayout))
		for _, p := range params {
			v := d.Value(p, i)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
