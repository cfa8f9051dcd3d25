package bluebikes

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyFeed     = errors.New("feed contains no records")
)

// MalformedRecordError reports a record that failed validation at ingestion.
// Line is the CSV line for the trip feed and the array index for stations.
type MalformedRecordError struct {
	Feed  string
	Line  int
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s feed: malformed record %d: field %q (%q): %v", e.Feed, e.Line, e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
