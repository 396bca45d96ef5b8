// Package pipeline runs the links, details and clean stages and moves their
// results between flat files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-tor-books/config"
	"github.com/aluiziolira/go-scrape-tor-books/models"
	"github.com/aluiziolira/go-scrape-tor-books/parser"
	"github.com/aluiziolira/go-scrape-tor-books/scraper"
)

// Stage names.
const (
	StageLinks   = "links"
	StageDetails = "details"
	StageClean   = "clean"
)

// Pipeline coordinates the three stages. Stages hand data to each other only
// through the files named in the configuration.
type Pipeline struct {
	cfg       *config.Config
	Metrics   *scraper.Metrics
	transport http.RoundTripper
}

// NewPipeline builds a pipeline for cfg.
func NewPipeline(cfg *config.Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		Metrics: scraper.NewMetrics(),
	}
}

// WithTransport makes every fetcher use rt instead of the network.
func (p *Pipeline) WithTransport(rt http.RoundTripper) {
	p.transport = rt
}

// CollectLinks crawls the listing pages and writes the link file.
func (p *Pipeline) CollectLinks(ctx context.Context) (*models.StageResult, error) {
	result := p.newResult(StageLinks, p.cfg.LinkFilePath)

	fetcher, err := p.newFetcher(scraper.StageListing)
	if err != nil {
		return result, err
	}
	crawler, err := scraper.NewListingCrawler(p.cfg, fetcher, p.Metrics)
	if err != nil {
		return result, err
	}

	links, err := crawler.Crawl(ctx)
	p.finish(result, fetcher)
	result.PageCount = crawler.PageCount()
	if err != nil {
		return result, fmt.Errorf("crawl listings: %w", err)
	}

	if err := WriteLinks(p.cfg.LinkFilePath, links); err != nil {
		return result, err
	}
	result.ItemCount = len(links)
	return result, nil
}

// CollectDetails reads the link file, scrapes every detail page and writes the
// raw book table.
func (p *Pipeline) CollectDetails(ctx context.Context) (*models.StageResult, error) {
	result := p.newResult(StageDetails, p.cfg.BookFilePath)

	links, err := ReadLinks(p.cfg.LinkFilePath)
	if err != nil {
		return result, err
	}
	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, scraper.DetailURL(p.cfg.BaseURL, link))
	}

	fetcher, err := p.newFetcher(scraper.StageDetail)
	if err != nil {
		return result, err
	}
	crawler := scraper.NewDetailCrawler(p.cfg, fetcher, p.Metrics)

	books, err := crawler.Crawl(ctx, urls)
	p.finish(result, fetcher)
	if err != nil {
		return result, fmt.Errorf("crawl details: %w", err)
	}

	writer, err := NewCSVWriter[*models.BookRecord](p.cfg.BookFilePath, models.BookRecordHeader)
	if err != nil {
		return result, err
	}
	if err := writeAll(writer, books); err != nil {
		return result, err
	}
	result.ItemCount = len(books)
	return result, nil
}

// Clean reads the raw book table, cleans every record and writes the final
// table in the configured format.
func (p *Pipeline) Clean() (*models.StageResult, error) {
	result := p.newResult(StageClean, p.cfg.FinalBookFilePath)
	defer func() { result.EndTime = time.Now() }()

	records, err := ReadBookRecords(p.cfg.BookFilePath)
	if err != nil {
		return result, err
	}
	cleaned := parser.Clean(records)

	writer, err := NewOutputWriter(p.cfg.OutputFormat, p.cfg.FinalBookFilePath)
	if err != nil {
		return result, err
	}
	if err := writeAll(writer, cleaned); err != nil {
		return result, err
	}

	slog.Info("clean complete",
		slog.Int("books", len(cleaned)),
		slog.String("output", p.cfg.FinalBookFilePath),
	)
	result.ItemCount = len(cleaned)
	return result, nil
}

// Run executes every stage in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context) ([]*models.StageResult, error) {
	var results []*models.StageResult

	result, err := p.CollectLinks(ctx)
	results = append(results, result)
	if err != nil {
		return results, err
	}

	result, err = p.CollectDetails(ctx)
	results = append(results, result)
	if err != nil {
		return results, err
	}

	result, err = p.Clean()
	results = append(results, result)
	return results, err
}

type tableWriter[T any] interface {
	Write(records []T) error
	Close() error
	Validate() error
}

func writeAll[T any](writer tableWriter[T], records []T) error {
	if err := writer.Write(records); err != nil {
		return errors.Join(err, writer.Close())
	}
	if err := writer.Validate(); err != nil {
		return errors.Join(fmt.Errorf("output validation failed: %w", err), writer.Close())
	}
	return writer.Close()
}

func (p *Pipeline) newFetcher(stage string) (*scraper.Fetcher, error) {
	fetcher, err := scraper.NewFetcher(p.cfg, stage, p.Metrics)
	if err != nil {
		return nil, err
	}
	if p.transport != nil {
		fetcher.WithTransport(p.transport)
	}
	return fetcher, nil
}

func (p *Pipeline) newResult(stage, output string) *models.StageResult {
	return &models.StageResult{
		Stage:      stage,
		StartTime:  time.Now(),
		OutputFile: output,
	}
}

func (p *Pipeline) finish(result *models.StageResult, fetcher *scraper.Fetcher) {
	result.EndTime = time.Now()
	result.RequestCount = fetcher.RequestCount()
	result.ErrorCount = fetcher.ErrorCount()
	result.ErrorsByType = fetcher.ErrorsByType()
}
