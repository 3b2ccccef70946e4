package dataset

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the subset of pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads a Dataset from a table with one row per timestamp.
// It only reads.
type PostgresSource struct {
	Pool            Querier
	Table           string
	TimestampColumn string
	Parameters      []string

	// StationColumn and StationID optionally restrict rows to one station.
	StationColumn string
	StationID     string

	// Location re-interprets timestamp wall clocks (default UTC).
	Location *time.Location
}

// Query returns the SQL statement and arguments the source will run.
func (s PostgresSource) Query() (string, []any) {
	tsCol := s.TimestampColumn
	if tsCol == "" {
		tsCol = DefaultTimestampColumn
	}

	cols := make([]string, 0, len(s.Parameters)+1)
	cols = append(cols, pgx.Identifier{tsCol}.Sanitize())
	for _, p := range s.Parameters {
		cols = append(cols, pgx.Identifier{p}.Sanitize())
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier(strings.Split(s.Table, ".")).Sanitize())

	var args []any
	if s.StationColumn != "" && s.StationID != "" {
		b.WriteString(" WHERE ")
		b.WriteString(pgx.Identifier{s.StationColumn}.Sanitize())
		b.WriteString(" = $1")
		args = append(args, s.StationID)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(cols[0])

	return b.String(), args
}

// Load runs the query and converts the rows.
func (s PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	if len(s.Parameters) == 0 {
		return nil, &SchemaError{Detail: "no parameters configured for table " + s.Table}
	}

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	sql, args := s.Query()
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	var timestamps []time.Time
	columns := make(map[string][]float64, len(s.Parameters))
	for _, p := range s.Parameters {
		columns[p] = nil
	}

	line := 0
	for rows.Next() {
		line++
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row %d: %w", line, err)
		}

		ts, ok := values[0].(time.Time)
		if !ok {
			return nil, &ParseError{Line: line, Column: s.TimestampColumn, Value: fmt.Sprint(values[0])}
		}
		// Stored wall clocks are naive; keep the clock, swap the zone.
		timestamps = append(timestamps, time.Date(ts.Year(), ts.Month(), ts.Day(),
			ts.Hour(), ts.Minute(), ts.Second(), 0, loc))

		for i, p := range s.Parameters {
			columns[p] = append(columns[p], toFloat(values[i+1]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	if len(timestamps) == 0 {
		return Empty(s.Parameters), nil
	}
	return New(timestamps, s.Parameters, columns)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int16:
		return float64(n)
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return math.NaN()
		}
		return f.Float64
	default:
		return math.NaN()
	}
}
