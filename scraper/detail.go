package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-scrape-tor-books/config"
	"github.com/aluiziolira/go-scrape-tor-books/models"
	"github.com/aluiziolira/go-scrape-tor-books/parser"
)

// DetailURL resolves a relative book link against the site root.
func DetailURL(baseURL string, link models.BookLink) string {
	return strings.TrimRight(baseURL, "/") + strings.TrimSpace(link)
}

// DetailCrawler fetches detail pages and extracts one record per link.
type DetailCrawler struct {
	cfg     *config.Config
	fetcher PageFetcher
	sleep   Sleeper
	metrics *Metrics
}

// NewDetailCrawler wires a crawler around fetcher.
func NewDetailCrawler(cfg *config.Config, fetcher PageFetcher, metrics *Metrics) *DetailCrawler {
	return &DetailCrawler{
		cfg:     cfg,
		fetcher: fetcher,
		sleep:   Sleep,
		metrics: metrics,
	}
}

// Extract fetches a single detail page and parses it.
func (c *DetailCrawler) Extract(ctx context.Context, link string) (*models.BookRecord, error) {
	res, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	book, err := parser.ExtractDetail(res.Body, link)
	if err != nil {
		c.metrics.IncError(errorTypeLabel(err))
		return nil, err
	}
	return book, nil
}

// Crawl extracts every link in order, pausing after each request. The first
// failure aborts the whole batch.
func (c *DetailCrawler) Crawl(ctx context.Context, links []string) ([]*models.BookRecord, error) {
	books := make([]*models.BookRecord, 0, len(links))

	for i, link := range links {
		book, err := c.Extract(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("scrape link %d/%d: %w", i+1, len(links), err)
		}
		books = append(books, book)
		c.metrics.AddItems("book", 1)
		slog.Info("scraped book",
			slog.Int("done", i+1),
			slog.Int("total", len(links)),
			slog.String("link", link),
		)

		if err := c.sleep(ctx, c.cfg.Delay()); err != nil {
			return nil, err
		}
	}

	slog.Info("detail scrape complete", slog.Int("books", len(books)))
	return books, nil
}
