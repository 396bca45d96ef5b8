// Package models defines data structures for the scraper.
package models

import (
	"encoding/json"
	"time"
)

// BookLink is a relative URL pointing at one book's detail page.
type BookLink = string

// BookRecord is the raw set of fields extracted from a detail page.
// A nil pointer or nil slice means the page did not carry that field.
type BookRecord struct {
	Title           *string  `json:"title"`
	Series          *string  `json:"series"`
	Description     *string  `json:"description"`
	Pages           *string  `json:"pages"`
	PublicationDate *string  `json:"publication_date"`
	Formats         []string `json:"formats"`
	Contributors    []string `json:"contributors"`
	Link            string   `json:"link"`
}

// BookRecordHeader is the column order of the raw book table.
var BookRecordHeader = []string{"title", "series", "description", "pages", "publication_date", "formats", "contributors", "link"}

// CSVRecord renders the record in BookRecordHeader order.
func (b *BookRecord) CSVRecord() []string {
	return []string{
		cell(b.Title),
		cell(b.Series),
		cell(b.Description),
		cell(b.Pages),
		cell(b.PublicationDate),
		listCell(b.Formats),
		listCell(b.Contributors),
		b.Link,
	}
}

// CleanedBookRecord is the final projected shape written by the clean stage.
type CleanedBookRecord struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	Series          *string  `json:"series"`
	SeriesNumber    *string  `json:"series_number"`
	Pages           *string  `json:"pages"`
	PublicationDate *string  `json:"publication_date"`
	Formats         []string `json:"formats"`
	Contributors    []string `json:"contributors"`
}

// CleanedBookRecordHeader is the column order of the final book table.
var CleanedBookRecordHeader = []string{"title", "description", "series", "series_number", "pages", "publication_date", "formats", "contributors"}

// CSVRecord renders the record in CleanedBookRecordHeader order.
func (b *CleanedBookRecord) CSVRecord() []string {
	return []string{
		cell(b.Title),
		cell(b.Description),
		cell(b.Series),
		cell(b.SeriesNumber),
		cell(b.Pages),
		cell(b.PublicationDate),
		listCell(b.Formats),
		listCell(b.Contributors),
	}
}

// String returns a pointer to s, for building optional fields.
func String(s string) *string {
	return &s
}

// Value dereferences an optional field, returning "" when it is absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cell(s *string) string {
	return Value(s)
}

// Lists are stored as a JSON array inside a single cell; absent lists are empty.
func listCell(values []string) string {
	if values == nil {
		return ""
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// StageResult summarises one pipeline stage run.
type StageResult struct {
	Stage        string
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
	PageCount    int
	ItemCount    int
	OutputFile   string
}

// Duration is the wall-clock time the stage took.
func (r *StageResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
