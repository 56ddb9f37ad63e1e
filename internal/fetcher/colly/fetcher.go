// Package collyfetcher implements source.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/pcd-harvester/internal/source"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodyBytes caps the response size; zero leaves it unlimited.
	MaxBodyBytes int
}

// Fetcher implements source.Fetcher. Every fetch runs on a clone of one
// configured collector, so clones share the transport and timeout.
type Fetcher struct {
	base *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.MaxBodySize = cfg.MaxBodyBytes

	c.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	})
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.SetRequestTimeout(timeout)

	return &Fetcher{base: c}
}

// Fetch executes a single GET. Non-2xx responses are returned with their
// status code; only transport failures and cancellation are errors.
func (f *Fetcher) Fetch(ctx context.Context, request source.FetchRequest) (source.FetchResponse, error) {
	v := &visit{request: request, start: time.Now()}
	c := f.base.Clone()
	c.Context = ctx
	v.attach(c)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return source.FetchResponse{Duration: time.Since(v.start)}, fmt.Errorf("fetch %s: %w", request.URL, ctx.Err())
	case err := <-done:
		if err == nil {
			err = v.err
		}
		if err != nil {
			return source.FetchResponse{Duration: time.Since(v.start)}, fmt.Errorf("fetch %s: %w", request.URL, err)
		}
		return v.response, nil
	}
}

// visit holds the state of one fetch while colly drives its callbacks.
type visit struct {
	request  source.FetchRequest
	start    time.Time
	response source.FetchResponse
	err      error
}

func (v *visit) attach(h collectorHooks) {
	h.OnRequest(v.onRequest)
	h.OnResponse(v.onResponse)
	h.OnError(v.onError)
}

func (v *visit) onRequest(r *colly.Request) {
	for key, values := range v.request.Headers {
		for _, val := range values {
			r.Headers.Add(key, val)
		}
	}
}

func (v *visit) onResponse(r *colly.Response) {
	v.response = source.FetchResponse{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Headers:    r.Headers.Clone(),
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(v.start),
	}
}

func (v *visit) onError(_ *colly.Response, err error) {
	v.err = err
}
