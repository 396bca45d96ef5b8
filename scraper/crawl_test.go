package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/go-scrape-tor-books/models"
	"github.com/aluiziolira/go-scrape-tor-books/parser"
)

// eventLog records sleeps and fetches in the order they happen.
type eventLog struct {
	events []string
}

func (l *eventLog) sleeper(ctx context.Context, d time.Duration) error {
	l.events = append(l.events, "sleep")
	return ctx.Err()
}

func (l *eventLog) responder(body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		l.events = append(l.events, "fetch "+req.URL.RequestURI())
		return htmlResponder(body)(req)
	}
}

func buildListingPage(hrefs ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><div class=\"books-wrapper\">")
	for _, href := range hrefs {
		fmt.Fprintf(&builder, "<article><a href=%q>book</a></article>", href)
	}
	builder.WriteString("</div></body></html>")
	return builder.String()
}

const emptyListingPage = `<html><body><div class="books-wrapper"><p>No books found...</p></div></body></html>`

func newTestListingCrawler(t *testing.T, maxPages int, transport http.RoundTripper, log *eventLog) (*ListingCrawler, *Metrics) {
	t.Helper()
	cfg := testConfig()
	cfg.MaxPages = maxPages
	metrics := NewMetrics()
	f, err := NewFetcher(cfg, StageListing, metrics)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.WithTransport(transport)
	c, err := NewListingCrawler(cfg, f, metrics)
	if err != nil {
		t.Fatalf("new listing crawler: %v", err)
	}
	c.sleep = log.sleeper
	return c, metrics
}

func TestListingURL(t *testing.T) {
	if got := ListingURL("https://publishing.tor.com/", 3); got != "https://publishing.tor.com/books/?page_number=3" {
		t.Fatalf("ListingURL() = %q", got)
	}
}

func TestListingCrawlerStopsAtSentinel(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 1), log.responder(buildListingPage("/book/a/", "/book/b/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 2), log.responder(buildListingPage("/book/c/", "/book/d/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 3), log.responder(emptyListingPage))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 4), log.responder(buildListingPage("/book/never/")))

	c, _ := newTestListingCrawler(t, 10, transport, log)
	links, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	want := []models.BookLink{"/book/a/", "/book/b/", "/book/c/", "/book/d/"}
	if !reflect.DeepEqual(links, want) {
		t.Fatalf("links=%v, want %v", links, want)
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("fetches=%d, want 3", got)
	}
	if c.PageCount() != 3 {
		t.Fatalf("page count=%d, want 3", c.PageCount())
	}

	wantEvents := []string{
		"sleep", "fetch /books/?page_number=1",
		"sleep", "fetch /books/?page_number=2",
		"sleep", "fetch /books/?page_number=3",
	}
	if !reflect.DeepEqual(log.events, wantEvents) {
		t.Fatalf("events=%v, want %v", log.events, wantEvents)
	}
}

func TestListingCrawlerStopsAtMaxPages(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	for page := 1; page <= 3; page++ {
		transport.RegisterResponder("GET", ListingURL(testBaseURL, page), log.responder(buildListingPage(fmt.Sprintf("/book/%d/", page))))
	}

	c, _ := newTestListingCrawler(t, 2, transport, log)
	links, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if want := []models.BookLink{"/book/1/", "/book/2/"}; !reflect.DeepEqual(links, want) {
		t.Fatalf("links=%v, want %v", links, want)
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("fetches=%d, want 2", got)
	}
}

func TestListingCrawlerKeepsAndCountsDuplicates(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 1), log.responder(buildListingPage("/book/a/", "/book/b/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 2), log.responder(buildListingPage("/book/b/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 3), log.responder(emptyListingPage))

	c, metrics := newTestListingCrawler(t, 5, transport, log)
	links, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("links=%v, want 3 entries", links)
	}
	if got := testutil.ToFloat64(metrics.DuplicateLinksTotal); got != 1 {
		t.Fatalf("duplicates=%v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ItemsScrapedTotal.WithLabelValues("link")); got != 3 {
		t.Fatalf("links metric=%v, want 3", got)
	}
}

func TestListingCrawlerMalformedPage(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 1), log.responder(buildListingPage("/book/a/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 2), log.responder("<html><body>maintenance</body></html>"))

	c, _ := newTestListingCrawler(t, 5, transport, log)
	links, err := c.Crawl(context.Background())
	var malformed *parser.MalformedPageError
	if !errors.As(err, &malformed) {
		t.Fatalf("err=%v, want *parser.MalformedPageError", err)
	}
	if links != nil {
		t.Fatalf("links=%v, want nil on failure", links)
	}
}

func TestListingCrawlerNetworkFailureAborts(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 1), log.responder(buildListingPage("/book/a/")))
	transport.RegisterResponder("GET", ListingURL(testBaseURL, 2), httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	c, _ := newTestListingCrawler(t, 5, transport, log)
	_, err := c.Crawl(context.Background())
	if !IsNetworkFailure(err) {
		t.Fatalf("err=%v, want network failure", err)
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("fetches=%d, want 2", got)
	}
}

func TestListingCrawlerSleepCancelled(t *testing.T) {
	transport := httpmock.NewMockTransport()
	c, _ := newTestListingCrawler(t, 5, transport, &eventLog{})
	c.sleep = Sleep
	c.cfg.ScrapeDelay = 60

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Crawl(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatalf("no request should be sent after cancellation")
	}
}

const detailPageWithSeries = `<html><body>
<h1 class="book--title">Network Effect</h1>
<h3 class="book--series">The Murderbot Diaries #5</h3>
<section class="book--description"><section><img src="c.jpg"></section><p>Murderbot returns.</p></section>
<p class="product-description">352 Pages | 05/05/2020</p>
<h3 class="product-format">Hardcover</h3>
<h2 class="book--contributor"><a href="/a">Martha Wells</a></h2>
</body></html>`

const detailPageWithoutSeries = `<html><body>
<h1 class="book--title">The Spear Cuts Through Water</h1>
<section class="book--description"><p>An epic.</p></section>
</body></html>`

func newTestDetailCrawler(t *testing.T, transport http.RoundTripper, log *eventLog) *DetailCrawler {
	t.Helper()
	cfg := testConfig()
	metrics := NewMetrics()
	f, err := NewFetcher(cfg, StageDetail, metrics)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.WithTransport(transport)
	c := NewDetailCrawler(cfg, f, metrics)
	c.sleep = log.sleeper
	return c
}

func TestDetailURL(t *testing.T) {
	if got := DetailURL("https://publishing.tor.com/", "/book/a/\n"); got != "https://publishing.tor.com/book/a/" {
		t.Fatalf("DetailURL() = %q", got)
	}
}

func TestDetailCrawlerCrawl(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	first := DetailURL(testBaseURL, "/book/network-effect/")
	second := DetailURL(testBaseURL, "/book/spear/")
	transport.RegisterResponder("GET", first, log.responder(detailPageWithSeries))
	transport.RegisterResponder("GET", second, log.responder(detailPageWithoutSeries))

	c := newTestDetailCrawler(t, transport, log)
	books, err := c.Crawl(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("books=%d, want 2", len(books))
	}

	if books[0].Link != first || books[1].Link != second {
		t.Fatalf("links out of order: %q %q", books[0].Link, books[1].Link)
	}
	if models.Value(books[0].Series) != "The Murderbot Diaries #5" || models.Value(books[0].Pages) != "352" {
		t.Fatalf("unexpected first record: %+v", books[0])
	}
	if books[1].Series != nil {
		t.Fatalf("series=%q, want nil", *books[1].Series)
	}
	if models.Value(books[1].Title) != "The Spear Cuts Through Water" {
		t.Fatalf("title=%q", models.Value(books[1].Title))
	}

	wantEvents := []string{
		"fetch /book/network-effect/", "sleep",
		"fetch /book/spear/", "sleep",
	}
	if !reflect.DeepEqual(log.events, wantEvents) {
		t.Fatalf("events=%v, want %v", log.events, wantEvents)
	}
}

func TestDetailCrawlerAbortsOnFirstFailure(t *testing.T) {
	log := &eventLog{}
	transport := httpmock.NewMockTransport()
	links := []string{
		DetailURL(testBaseURL, "/book/one/"),
		DetailURL(testBaseURL, "/book/missing/"),
		DetailURL(testBaseURL, "/book/three/"),
	}
	transport.RegisterResponder("GET", links[0], log.responder(detailPageWithSeries))
	transport.RegisterResponder("GET", links[1], httpmock.NewStringResponder(http.StatusNotFound, "gone"))
	transport.RegisterResponder("GET", links[2], log.responder(detailPageWithoutSeries))

	c := newTestDetailCrawler(t, transport, log)
	books, err := c.Crawl(context.Background(), links)
	if err == nil {
		t.Fatalf("expected error, got %d books", len(books))
	}
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "2/3") {
		t.Fatalf("error should name the failing position, got %v", err)
	}
	if books != nil {
		t.Fatalf("no partial result expected, got %d books", len(books))
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("fetches=%d, want 2", got)
	}
}
