package htmltable

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Profile is the ownership and geolocation block of a station profile page.
// A nil field means the page left it blank.
type Profile struct {
	Owner     *string
	State     *string
	Latitude  *string
	Longitude *string
}

type profileColumn struct {
	labels   []string
	position int
}

// Positions follow the profile layout: owner, station, city, state,
// latitude, longitude, altitude.
var (
	colOwner     = profileColumn{labels: []string{"proprietário", "proprietario"}, position: 0}
	colState     = profileColumn{labels: []string{"uf"}, position: 3}
	colLatitude  = profileColumn{labels: []string{"latitude"}, position: 4}
	colLongitude = profileColumn{labels: []string{"longitude"}, position: 5}

	profileColumns = []profileColumn{colOwner, colState, colLatitude, colLongitude}
)

// positionalRow is the row holding the values when the table has no header labels.
const positionalRow = 1

// ParseProfile extracts the profile block from the first center-aligned table.
// It returns false when the table is absent or has no data rows.
//
// Fields are located by the header row's labels; only when no row carries
// the labels does it fall back to the fixed positional layout.
func ParseProfile(markup []byte) (Profile, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return Profile{}, false, fmt.Errorf("parse html: %w", err)
	}
	table := doc.Find(ProfileTableSelector).First()
	if table.Length() == 0 {
		return Profile{}, false, nil
	}
	rows := rowsOf(table, 0)
	if !hasContent(rows) {
		return Profile{}, false, nil
	}

	if header, idx := findHeader(rows); idx >= 0 {
		if idx+1 >= len(rows) {
			return Profile{}, false, nil
		}
		values := rows[idx+1]
		return Profile{
			Owner:     cellAt(values, header[colOwner.position]),
			State:     cellAt(values, header[colState.position]),
			Latitude:  cellAt(values, header[colLatitude.position]),
			Longitude: cellAt(values, header[colLongitude.position]),
		}, true, nil
	}

	if len(rows) <= positionalRow {
		return Profile{}, false, nil
	}
	values := rows[positionalRow]
	return Profile{
		Owner:     cellAt(values, colOwner.position),
		State:     cellAt(values, colState.position),
		Latitude:  cellAt(values, colLatitude.position),
		Longitude: cellAt(values, colLongitude.position),
	}, true, nil
}

// findHeader returns, keyed by each column's positional index, the index of the
// cell carrying its label, plus the header row index. The row must name every
// profile column, otherwise -1 is returned.
func findHeader(rows [][]string) (map[int]int, int) {
	for r, row := range rows {
		header := make(map[int]int, len(profileColumns))
		for _, col := range profileColumns {
			if i := labelIndex(row, col.labels); i >= 0 {
				header[col.position] = i
			}
		}
		if len(header) == len(profileColumns) {
			return header, r
		}
	}
	return nil, -1
}

func labelIndex(row []string, labels []string) int {
	for i, cell := range row {
		text := strings.ToLower(cell)
		for _, label := range labels {
			if text == label || strings.HasPrefix(text, label+" ") || strings.HasPrefix(text, label+"(") {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []string, i int) *string {
	if i < 0 || i >= len(row) {
		return nil
	}
	v := row[i]
	if v == "" {
		return nil
	}
	return &v
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				return true
			}
		}
	}
	return false
}
