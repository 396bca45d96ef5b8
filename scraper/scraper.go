// Package scraper fetches listing and detail pages and drives the two crawl
// stages over them.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-tor-books/config"
)

// Stage labels used for request metrics.
const (
	StageListing = "listing"
	StageDetail  = "detail"
)

const (
	ctxKeyStart  = "start"
	ctxKeyStatus = "status"
	ctxKeyBody   = "body"
)

// Page is a fetched response body.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// PageFetcher issues a single GET for a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Fetcher wraps a synchronous colly collector. Every call to Fetch is exactly
// one request: no retries, no cache.
type Fetcher struct {
	cfg       *config.Config
	stage     string
	collector *colly.Collector
	Metrics   *Metrics

	requestCount int
	errorCount   int
	errorsByType map[string]int
}

// NewFetcher builds a fetcher for one pipeline stage.
func NewFetcher(cfg *config.Config, stage string, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	// redirects may leave the base host; bodies are never truncated
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	// status codes are classified in Fetch, so colly hands every response over
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		cfg:          cfg,
		stage:        stage,
		collector:    collector,
		Metrics:      metrics,
		errorsByType: make(map[string]int),
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch performs one GET. Transport failures and non-2xx responses come back
// as typed errors wrapping the underlying cause.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	f.requestCount++
	f.Metrics.IncRequest(f.stage)

	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)
	status, _ := reqCtx.GetAny(ctxKeyStatus).(int)
	if err == nil && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		err = fmt.Errorf("unexpected status %d %s", status, http.StatusText(status))
	}
	if err != nil {
		return nil, f.fail(rawURL, classifyError(err, status))
	}

	body, _ := reqCtx.GetAny(ctxKeyBody).([]byte)
	return &Page{URL: rawURL, StatusCode: status, Body: body}, nil
}

// RequestCount is the number of Fetch calls made so far.
func (f *Fetcher) RequestCount() int {
	return f.requestCount
}

// ErrorCount is the number of failed Fetch calls.
func (f *Fetcher) ErrorCount() int {
	return f.errorCount
}

// ErrorsByType returns a copy of the failure counts by category.
func (f *Fetcher) ErrorsByType() map[string]int {
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxKeyStart, time.Now())
		slog.Debug("request", slog.String("stage", f.stage), slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyBody, r.Body)
		if start, ok := r.Ctx.GetAny(ctxKeyStart).(time.Time); ok {
			f.Metrics.ObserveDuration(time.Since(start))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		}
	})
}

func (f *Fetcher) fail(rawURL string, err error) error {
	category := errorTypeLabel(err)
	f.errorCount++
	f.errorsByType[category]++
	f.Metrics.IncError(category)

	slog.Error("request error",
		slog.String("stage", f.stage),
		slog.String("url", rawURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return fmt.Errorf("fetch %s: %w", rawURL, err)
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && (statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices) {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			return ErrHTTPStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	return err
}
