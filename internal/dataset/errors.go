package dataset

import (
	"errors"
	"fmt"
)

// ErrUnknownParameter is returned when a parameter column does not exist.
var ErrUnknownParameter = errors.New("unknown parameter")

// ParseError reports a timestamp that does not match TimestampLayout.
type ParseError struct {
	// Line is the 1-based source line (CSV) or record index (provider payload).
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s at line %d: invalid timestamp %q", e.Column, e.Line, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FetchError reports an unreachable endpoint or a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SchemaError reports a table or payload that does not have the expected shape.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return "unexpected schema: " + e.Detail
}
