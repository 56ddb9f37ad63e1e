package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pcd-harvester/internal/station"
)

const testListing = `<table>
<tr><td colspan="3">PCDs</td></tr>
<tr><th>ID</th><th>Nome</th><th>Cidade</th></tr>
<tr><td>32451</td><td>Natal</td><td>Natal</td></tr>
<tr><td>31950</td><td>Caico</td><td>Caicó</td></tr>
</table>`

const testProfile = `<table align="center">
<tr><td>Proprietário</td><td>Estação</td><td>Município</td><td>UF</td><td>Latitude</td><td>Longitude</td></tr>
<tr><td>INPE</td><td>Natal</td><td>Natal</td><td>RN</td><td>-5.84</td><td>-35.21</td></tr>
</table>`

type fakeFetcher struct {
	responses map[string]FetchResponse
	errs      map[string]error
	requests  []FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.URL]; ok {
		return FetchResponse{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	resp.URL = req.URL
	return resp, nil
}

func newTestClient(t *testing.T, f *fakeFetcher) *Client {
	t.Helper()
	c, err := NewClient(f, Config{BaseURL: "http://pcd.test/site/", Region: "RN"}, nil)
	require.NoError(t, err)
	return c
}

func ok(body string) FetchResponse {
	return FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(nil, Config{Region: "RN"}, nil)
	require.Error(t, err)

	_, err = NewClient(&fakeFetcher{}, Config{Region: " "}, nil)
	require.Error(t, err)

	c, err := NewClient(&fakeFetcher{}, Config{Region: "PB"}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL+"/cidades.php?uf=PB", c.ListingURL())
}

func TestURLs(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeFetcher{})
	require.Equal(t, "RN", c.Region())
	require.Equal(t, "http://pcd.test/site/cidades.php?uf=RN", c.ListingURL())
	require.Equal(t, "http://pcd.test/site/tabela.php?id=32451", c.ProfileURL(32451))
	require.Equal(t, "http://pcd.test/site/dadosCSV.php?id=32451", c.ExportURL(32451))
}

func TestFetchRegistry(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{responses: map[string]FetchResponse{
		"http://pcd.test/site/cidades.php?uf=RN": ok(testListing),
	}}
	c := newTestClient(t, f)

	registry, err := c.FetchRegistry(context.Background())
	require.NoError(t, err)
	require.Equal(t, station.Registry{
		32451: {Name: "Natal", City: "Natal"},
		31950: {Name: "Caico", City: "Caicó"},
	}, registry)
	require.Len(t, f.requests, 1)
	require.Equal(t, KindListing, f.requests[0].Kind)
}

func TestFetchRegistryFailures(t *testing.T) {
	t.Parallel()

	listingURL := "http://pcd.test/site/cidades.php?uf=RN"
	tests := []struct {
		name    string
		fetcher *fakeFetcher
	}{
		{name: "not found", fetcher: &fakeFetcher{}},
		{name: "server error", fetcher: &fakeFetcher{responses: map[string]FetchResponse{
			listingURL: {StatusCode: http.StatusInternalServerError},
		}}},
		{name: "transport error", fetcher: &fakeFetcher{errs: map[string]error{
			listingURL: errors.New("connection refused"),
		}}},
		{name: "no rows", fetcher: &fakeFetcher{responses: map[string]FetchResponse{
			listingURL: ok("<html><body><p>manutenção</p></body></html>"),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, tt.fetcher)
			registry, err := c.FetchRegistry(context.Background())
			require.ErrorIs(t, err, ErrEmptyRegistry)
			require.Nil(t, registry)
		})
	}
}

func TestFetchProfile(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{responses: map[string]FetchResponse{
		"http://pcd.test/site/tabela.php?id=32451": ok(testProfile),
		"http://pcd.test/site/tabela.php?id=2":     ok(`<table align="center"></table>`),
	}}
	c := newTestClient(t, f)

	profile, err := c.FetchProfile(context.Background(), 32451)
	require.NoError(t, err)
	require.Equal(t, "INPE", *profile.Owner)
	require.Equal(t, "RN", *profile.State)
	require.Equal(t, "-5.84", *profile.Latitude)
	require.Equal(t, "-35.21", *profile.Longitude)

	_, err = c.FetchProfile(context.Background(), 2)
	require.ErrorIs(t, err, ErrNoProfile)

	_, err = c.FetchProfile(context.Background(), 3)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchExportDecodesLatin1(t *testing.T) {
	t.Parallel()

	latin1 := []byte("DataHora;Precipita\xe7\xe3o\n")
	f := &fakeFetcher{responses: map[string]FetchResponse{
		"http://pcd.test/site/dadosCSV.php?id=7": {StatusCode: http.StatusOK, Body: latin1},
		"http://pcd.test/site/dadosCSV.php?id=8": ok("\xEF\xBB\xBFDataHora;TempAr\n"),
	}}
	c := newTestClient(t, f)

	export, err := c.FetchExport(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "DataHora;Precipitação\n", string(export.Body))
	require.Equal(t, "http://pcd.test/site/dadosCSV.php?id=7", export.URL)

	export, err = c.FetchExport(context.Background(), 8)
	require.NoError(t, err)
	require.Equal(t, "DataHora;TempAr\n", string(export.Body))

	_, err = c.FetchExport(context.Background(), 9)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchPagesDecodeLatin1(t *testing.T) {
	t.Parallel()

	listing := []byte("<table>\n<tr><td colspan=\"3\">PCDs</td></tr>\n" +
		"<tr><th>ID</th><th>Nome</th><th>Cidade</th></tr>\n" +
		"<tr><td>32460</td><td>Esta\xe7\xe3o</td><td>S\xe3o Gon\xe7alo</td></tr>\n</table>")
	profile := []byte("<table align=\"center\">\n" +
		"<tr><td>Propriet\xe1rio</td><td>Esta\xe7\xe3o</td><td>Munic\xedpio</td><td>UF</td><td>Latitude</td><td>Longitude</td></tr>\n" +
		"<tr><td>Funda\xe7\xe3o</td><td>Natal</td><td>Natal</td><td>RN</td><td>-5.84</td><td>-35.21</td></tr>\n</table>")
	f := &fakeFetcher{responses: map[string]FetchResponse{
		"http://pcd.test/site/cidades.php?uf=RN":   {StatusCode: http.StatusOK, Body: listing},
		"http://pcd.test/site/tabela.php?id=32460": {StatusCode: http.StatusOK, Body: profile},
	}}
	c := newTestClient(t, f)

	registry, err := c.FetchRegistry(context.Background())
	require.NoError(t, err)
	require.Equal(t, station.Registry{32460: {Name: "Estação", City: "São Gonçalo"}}, registry)

	p, err := c.FetchProfile(context.Background(), 32460)
	require.NoError(t, err)
	require.Equal(t, "Fundação", *p.Owner)
	require.Equal(t, "RN", *p.State)
	require.True(t, utf8.ValidString(*p.Owner))
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{errs: map[string]error{
		"http://pcd.test/site/dadosCSV.php?id=1": context.Canceled,
	}}
	c := newTestClient(t, f)

	_, err := c.FetchExport(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrUnavailable)
}
