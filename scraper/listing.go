package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-tor-books/config"
	"github.com/aluiziolira/go-scrape-tor-books/models"
	"github.com/aluiziolira/go-scrape-tor-books/parser"
)

// ListingURL builds the address of listing page n.
func ListingURL(baseURL string, page int) string {
	return fmt.Sprintf("%s/books/?page_number=%d", strings.TrimRight(baseURL, "/"), page)
}

// ListingCrawler walks the paginated book listing and collects detail links.
type ListingCrawler struct {
	cfg     *config.Config
	fetcher PageFetcher
	sleep   Sleeper
	metrics *Metrics
	seen    *lru.Cache[string, struct{}]

	pageCount int
}

// NewListingCrawler wires a crawler around fetcher.
func NewListingCrawler(cfg *config.Config, fetcher PageFetcher, metrics *Metrics) (*ListingCrawler, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create link window: %w", err)
	}
	return &ListingCrawler{
		cfg:     cfg,
		fetcher: fetcher,
		sleep:   Sleep,
		metrics: metrics,
		seen:    seen,
	}, nil
}

// Crawl fetches listing pages 1..MaxPages, pausing before every request, and
// stops early at the first page reporting no books. Links keep discovery
// order. Any fetch or parse failure aborts the crawl.
func (c *ListingCrawler) Crawl(ctx context.Context) ([]models.BookLink, error) {
	page := 1
	links := []models.BookLink{}

	for page <= c.cfg.MaxPages {
		if err := c.sleep(ctx, c.cfg.Delay()); err != nil {
			return nil, err
		}
		slog.Info("scraping listing page", slog.Int("page", page))

		res, err := c.fetcher.Fetch(ctx, ListingURL(c.cfg.BaseURL, page))
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		c.pageCount++

		if parser.IsPastLastPage(res.Body) {
			slog.Debug("listing exhausted", slog.Int("page", page))
			break
		}

		pageLinks, err := parser.ParseListing(res.Body)
		if err != nil {
			c.metrics.IncError(errorTypeLabel(err))
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		c.trackDuplicates(pageLinks)
		c.metrics.AddItems("link", len(pageLinks))
		links = append(links, pageLinks...)
		page++
	}

	slog.Info("listing scrape complete",
		slog.Int("pages", page-1),
		slog.Int("links", len(links)),
	)
	return links, nil
}

// PageCount is the number of listing pages fetched by the last Crawl,
// including the terminating empty page.
func (c *ListingCrawler) PageCount() int {
	return c.pageCount
}

func (c *ListingCrawler) trackDuplicates(links []models.BookLink) {
	for _, link := range links {
		if found, _ := c.seen.ContainsOrAdd(link, struct{}{}); found {
			c.metrics.IncDuplicate()
			slog.Debug("link listed more than once", slog.String("link", link))
		}
	}
}
