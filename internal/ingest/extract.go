package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/pcd-harvester/internal/schema"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

// TimestampLayout is the date-time pattern of the export's timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	// ErrMalformedTimestamp rejects a row whose timestamp cell does not parse.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrMalformedTimeOfDay rejects a row whose time-of-day cell does not parse.
	ErrMalformedTimeOfDay = errors.New("malformed time of day")
	// ErrNotNumeric rejects a row holding non-numeric text in a decimal field.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrNotBoolean rejects a row holding an unrecognized flag value.
	ErrNotBoolean = errors.New("value is not boolean")
)

// RowError reports why one data row was rejected.
type RowError struct {
	// Row is the 1-based data row number, header excluded.
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d column %s value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RawReading is one data row after the time fields have been parsed. Every
// other resolved measurement keeps its source text, keyed by storage column;
// absent or null cells have no entry.
type RawReading struct {
	Row       int
	Timestamp *time.Time
	TimeOfDay *station.TimeOfDay
	Values    map[string]string
}

// Extract parses the time fields of every row and gathers the raw text of the
// remaining resolved fields. Rows with an unparsable time field are returned
// as errors instead of readings.
func Extract(t Table, m schema.Mapping, loc *time.Location) ([]RawReading, []*RowError) {
	if loc == nil {
		loc = time.UTC
	}
	tsMatch, _ := m.Lookup(station.ColTimestamp)
	todMatch, _ := m.Lookup(station.ColTimeOfDay)

	var measures []schema.Match
	for _, match := range m.Matches() {
		if !match.Matched() {
			continue
		}
		if match.Field.Kind == schema.KindDecimal || match.Field.Kind == schema.KindBoolean {
			measures = append(measures, match)
		}
	}

	readings := make([]RawReading, 0, len(t.Rows))
	var rejected []*RowError
	for i := range t.Rows {
		raw := RawReading{Row: i + 1, Values: make(map[string]string, len(measures))}

		if tsMatch.Matched() {
			if cell := t.Cell(i, tsMatch.Index); cell != nil {
				ts, err := time.ParseInLocation(TimestampLayout, *cell, loc)
				if err != nil {
					rejected = append(rejected, &RowError{Row: raw.Row, Column: station.ColTimestamp, Value: *cell, Err: ErrMalformedTimestamp})
					continue
				}
				raw.Timestamp = &ts
			}
		}

		if todMatch.Matched() {
			if cell := t.Cell(i, todMatch.Index); cell != nil {
				tod, err := parseTrailingTimeOfDay(*cell)
				if err != nil {
					rejected = append(rejected, &RowError{Row: raw.Row, Column: station.ColTimeOfDay, Value: *cell, Err: ErrMalformedTimeOfDay})
					continue
				}
				raw.TimeOfDay = &tod
			}
		}

		for _, match := range measures {
			if cell := t.Cell(i, match.Index); cell != nil {
				raw.Values[match.Field.Column] = *cell
			}
		}
		readings = append(readings, raw)
	}
	return readings, rejected
}

// parseTrailingTimeOfDay reads the last whitespace separated token, since the
// source sometimes prefixes the time with a duplicate date.
func parseTrailingTimeOfDay(s string) (station.TimeOfDay, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return station.TimeOfDay{}, ErrMalformedTimeOfDay
	}
	return station.ParseTimeOfDay(parts[len(parts)-1])
}
