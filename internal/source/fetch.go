// Package source talks to the PCD public site: the station listing, the
// per-station profile page and the per-station CSV export.
package source

import (
	"context"
	"net/http"
	"time"
)

// Kind labels what a fetch retrieves.
type Kind string

// Fetch kinds.
const (
	KindListing Kind = "listing"
	KindProfile Kind = "profile"
	KindExport  Kind = "export"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Kind    Kind
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. Non-2xx
// responses are returned with their status code rather than as errors.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}
