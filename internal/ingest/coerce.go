package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/pcd-harvester/internal/schema"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

var kinds = func() map[string]schema.Kind {
	out := make(map[string]schema.Kind)
	for _, f := range schema.Fields() {
		out[f.Column] = f.Kind
	}
	return out
}()

// Coerce converts a raw row into its stored types. It is called at the
// persistence boundary; the first value that does not convert rejects the
// whole row with a *RowError.
func Coerce(stationID int, raw RawReading) (station.Reading, error) {
	r := station.Reading{
		StationID: stationID,
		Timestamp: raw.Timestamp,
		TimeOfDay: raw.TimeOfDay,
	}
	// Walk columns in insert order so the reported failure is deterministic.
	for _, column := range station.ReadingColumns {
		value, ok := raw.Values[column]
		if !ok {
			continue
		}
		switch kinds[column] {
		case schema.KindBoolean:
			b, err := ParseBool(value)
			if err != nil {
				return station.Reading{}, &RowError{Row: raw.Row, Column: column, Value: value, Err: err}
			}
			r.SolarCurrent = &b
		case schema.KindDecimal:
			f, err := ParseDecimal(value)
			if err != nil {
				return station.Reading{}, &RowError{Row: raw.Row, Column: column, Value: value, Err: err}
			}
			if err := r.SetDecimal(column, &f); err != nil {
				return station.Reading{}, &RowError{Row: raw.Row, Column: column, Value: value, Err: err}
			}
		}
	}
	return r, nil
}

// ParseDecimal parses a number, accepting a decimal comma.
func ParseDecimal(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotNumeric
	}
	return f, nil
}

// ParseBool parses a flag value.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "1.0", "yes", "y", "sim", "s":
		return true, nil
	case "false", "f", "0", "0.0", "no", "n", "não", "nao":
		return false, nil
	default:
		return false, ErrNotBoolean
	}
}
