// Package htmltable extracts tabular rows from the source site's HTML pages.
package htmltable

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

const (
	// ListingSkipRows is the number of header rows on the station listing page.
	ListingSkipRows = 2
	// ProfileTableSelector locates the metadata table on a station profile page.
	ProfileTableSelector = "table[align=center]"
)

// Rows returns the trimmed cell texts of every tr inside the elements matched
// by selector, skipping the first skip rows. Use "html" to scan the whole document.
func Rows(markup []byte, selector string, skip int) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return rowsOf(doc.Find(selector).First(), skip), nil
}

func rowsOf(sel *goquery.Selection, skip int) [][]string {
	var rows [][]string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i < skip {
			return
		}
		cells := tr.Find("th, td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		rows = append(rows, cells)
	})
	return rows
}

// Listing parses the station listing page into a registry. Rows that do not
// carry exactly (id, name, city) or whose id is not a positive integer are dropped.
func Listing(markup []byte) (station.Registry, error) {
	rows, err := Rows(markup, "html", ListingSkipRows)
	if err != nil {
		return nil, err
	}
	registry := make(station.Registry, len(rows))
	for _, row := range rows {
		if len(row) != 3 {
			continue
		}
		id, err := strconv.Atoi(row[0])
		if err != nil || id <= 0 {
			continue
		}
		registry[id] = station.RegistryEntry{Name: row[1], City: row[2]}
	}
	return registry, nil
}
