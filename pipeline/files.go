package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aluiziolira/go-scrape-tor-books/models"
)

// WriteLinks stores links one per line.
func WriteLinks(filename string, links []models.BookLink) error {
	if err := ensureDir(filename); err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(strings.Join(links, "\n")), 0o644); err != nil {
		return fmt.Errorf("write links file: %w", err)
	}
	return nil
}

// ReadLinks loads a file written by WriteLinks, skipping blank lines.
func ReadLinks(filename string) ([]models.BookLink, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read links file: %w", err)
	}

	links := []models.BookLink{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		links = append(links, line)
	}
	return links, nil
}

// ReadBookRecords loads the raw book table. Columns are matched by header
// name; empty cells read back as absent values.
func ReadBookRecords(filename string) ([]*models.BookRecord, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open book table: %w", err)
	}
	defer f.Close()

	return readBookRecords(f)
}

func readBookRecords(r io.Reader) ([]*models.BookRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("book table has no header")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range models.BookRecordHeader {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("book table missing column %q", name)
		}
	}

	var books []*models.BookRecord
	for row := 2; ; row++ {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		get := func(name string) string {
			return cells[columns[name]]
		}
		book := &models.BookRecord{
			Title:           optional(get("title")),
			Series:          optional(get("series")),
			Description:     optional(get("description")),
			Pages:           optional(get("pages")),
			PublicationDate: optional(get("publication_date")),
			Link:            get("link"),
		}
		if book.Link == "" {
			return nil, fmt.Errorf("row %d: missing link", row)
		}
		if book.Formats, err = optionalList(get("formats")); err != nil {
			return nil, fmt.Errorf("row %d formats: %w", row, err)
		}
		if book.Contributors, err = optionalList(get("contributors")); err != nil {
			return nil, fmt.Errorf("row %d contributors: %w", row, err)
		}
		books = append(books, book)
	}
	return books, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return models.String(value)
}

func optionalList(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return nil, fmt.Errorf("decode list cell: %w", err)
	}
	return out, nil
}
