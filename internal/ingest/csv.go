// Package ingest turns a station's CSV export into canonical readings and
// replaces the station's stored reading set.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed export: the header row plus every data row, each cell
// normalized to text-or-null.
type Table struct {
	Headers []string
	Rows    [][]*string
}

// Degenerate reports whether the export carries nothing importable: no
// header, a single column, or no data rows.
func (t Table) Degenerate() bool {
	return len(t.Headers) <= 1 || len(t.Rows) == 0
}

// Cell returns the normalized value at row/col, or nil when the row is short.
func (t Table) Cell(row, col int) *string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return nil
	}
	cells := t.Rows[row]
	if col >= len(cells) {
		return nil
	}
	return cells[col]
}

// ParseExport reads a comma separated export. Ragged rows are accepted; short
// rows read as null in their missing trailing columns. Blank lines are skipped.
func ParseExport(body []byte) (Table, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read export header: %w", err)
	}

	t := Table{Headers: make([]string, len(header))}
	for i, h := range header {
		t.Headers[i] = strings.TrimSpace(h)
	}
	if len(t.Headers) == 1 && t.Headers[0] == "" {
		t.Headers = nil
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read export row: %w", err)
		}
		row := make([]*string, len(record))
		for i, cell := range record {
			row[i] = NormalizeCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
