package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/htmltable"
	"github.com/JakeFAU/pcd-harvester/internal/metrics"
	"github.com/JakeFAU/pcd-harvester/internal/station"
)

var (
	// ErrEmptyRegistry means the listing page produced no stations.
	ErrEmptyRegistry = errors.New("station registry is empty")
	// ErrUnavailable means the source answered with a non-200 status or the
	// request failed in transport.
	ErrUnavailable = errors.New("source unavailable")
	// ErrNoProfile means the profile page has no metadata table.
	ErrNoProfile = errors.New("station has no profile")
)

// DefaultBaseURL is the PCD site root the page paths are resolved against.
const DefaultBaseURL = "http://sinda.crn.inpe.br/PCD/SITE/novo/site"

// Config controls the source client.
type Config struct {
	BaseURL string
	Region  string
}

// Export is a station's raw CSV export.
type Export struct {
	URL  string
	Body []byte
}

// Client retrieves listing, profile and export documents.
type Client struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewClient constructs a Client.
func NewClient(fetcher Fetcher, cfg Config, logger *zap.Logger) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("region is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{fetcher: fetcher, cfg: cfg, logger: logger}, nil
}

// Region returns the configured region code.
func (c *Client) Region() string {
	return c.cfg.Region
}

// ListingURL is the station listing page for the configured region.
func (c *Client) ListingURL() string {
	return fmt.Sprintf("%s/cidades.php?uf=%s", c.cfg.BaseURL, url.QueryEscape(c.cfg.Region))
}

// ProfileURL is the profile page of one station.
func (c *Client) ProfileURL(id int) string {
	return fmt.Sprintf("%s/tabela.php?id=%s", c.cfg.BaseURL, strconv.Itoa(id))
}

// ExportURL is the CSV export of one station.
func (c *Client) ExportURL(id int) string {
	return fmt.Sprintf("%s/dadosCSV.php?id=%s", c.cfg.BaseURL, strconv.Itoa(id))
}

// FetchRegistry fetches and parses the listing page. Any failure, including an
// empty listing, is reported as ErrEmptyRegistry.
func (c *Client) FetchRegistry(ctx context.Context) (station.Registry, error) {
	body, err := c.page(ctx, c.ListingURL(), KindListing)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmptyRegistry, err)
	}
	registry, err := htmltable.Listing(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmptyRegistry, err)
	}
	if len(registry) == 0 {
		return nil, ErrEmptyRegistry
	}
	return registry, nil
}

// FetchProfile fetches and parses a station's profile page. It returns
// ErrUnavailable or ErrNoProfile when the station should be skipped.
func (c *Client) FetchProfile(ctx context.Context, id int) (htmltable.Profile, error) {
	body, err := c.page(ctx, c.ProfileURL(id), KindProfile)
	if err != nil {
		return htmltable.Profile{}, err
	}
	profile, ok, err := htmltable.ParseProfile(body)
	if err != nil {
		return htmltable.Profile{}, fmt.Errorf("%w: %w", ErrNoProfile, err)
	}
	if !ok {
		return htmltable.Profile{}, ErrNoProfile
	}
	return profile, nil
}

// FetchExport downloads a station's CSV export, normalized to UTF-8.
func (c *Client) FetchExport(ctx context.Context, id int) (Export, error) {
	resp, err := c.get(ctx, c.ExportURL(id), KindExport)
	if err != nil {
		return Export{}, err
	}
	body, err := toUTF8(resp.Body)
	if err != nil {
		return Export{}, fmt.Errorf("normalize export encoding: %w", err)
	}
	return Export{URL: resp.URL, Body: body}, nil
}

// page fetches an HTML page and normalizes it to UTF-8. The site serves
// Latin-1 pages as plain text/html, which goquery would read as UTF-8.
func (c *Client) page(ctx context.Context, rawURL string, kind Kind) ([]byte, error) {
	resp, err := c.get(ctx, rawURL, kind)
	if err != nil {
		return nil, err
	}
	body, err := toUTF8(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("normalize %s encoding: %w", kind, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string, kind Kind) (FetchResponse, error) {
	resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: rawURL, Kind: kind})
	if err != nil {
		if ctx.Err() != nil {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", kind, ctx.Err())
		}
		metrics.ObserveFetch(string(kind), 0, resp.Duration)
		c.logger.Debug("fetch failed", zap.String("kind", string(kind)), zap.String("url", rawURL), zap.Error(err))
		return FetchResponse{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	metrics.ObserveFetch(string(kind), resp.StatusCode, resp.Duration)
	if resp.StatusCode != http.StatusOK {
		return FetchResponse{}, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, kind, resp.StatusCode)
	}
	return resp, nil
}
