package htmltable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

const listingPage = `<html><body>
<table>
  <tr><td colspan="3">Estações do RN</td></tr>
  <tr><th>ID</th><th>Estação</th><th>Município</th></tr>
  <tr><td> 1 </td><td>Station A</td><td>CityX</td></tr>
  <tr><td>2</td><td>Station B</td><td> CityY </td></tr>
</table>
</body></html>`

func TestRowsSkipsHeaderRows(t *testing.T) {
	t.Parallel()

	rows, err := Rows([]byte(listingPage), "html", ListingSkipRows)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"1", "Station A", "CityX"},
		{"2", "Station B", "CityY"},
	}, rows)
}

func TestRowsNoMatch(t *testing.T) {
	t.Parallel()

	rows, err := Rows([]byte(listingPage), "table.missing", 0)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestListing(t *testing.T) {
	t.Parallel()

	registry, err := Listing([]byte(listingPage))
	require.NoError(t, err)
	require.Equal(t, station.Registry{
		1: {Name: "Station A", City: "CityX"},
		2: {Name: "Station B", City: "CityY"},
	}, registry)
}

func TestListingDropsMalformedRows(t *testing.T) {
	t.Parallel()

	page := `<table>
<tr><td>h</td></tr><tr><td>h</td></tr>
<tr><td>abc</td><td>Bad</td><td>Row</td></tr>
<tr><td>7</td><td>Only two</td></tr>
<tr><td>-3</td><td>Negative</td><td>Id</td></tr>
<tr><td>9</td><td>Good</td><td>Town</td></tr>
</table>`
	registry, err := Listing([]byte(page))
	require.NoError(t, err)
	require.Equal(t, station.Registry{9: {Name: "Good", City: "Town"}}, registry)
}

func TestListingEmptyPage(t *testing.T) {
	t.Parallel()

	registry, err := Listing([]byte(`<html><body>Nenhuma estação</body></html>`))
	require.NoError(t, err)
	require.Empty(t, registry)
}
