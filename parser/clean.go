package parser

import (
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-tor-books/models"
)

const emDash = "—"

var (
	tagPattern          = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern   = regexp.MustCompile(`[\s\v\p{Z}]+`)
	seriesNumberPattern = regexp.MustCompile(`#(\d+)\s*$`)
)

// CleanDescription turns a description HTML fragment into one line of plain
// text. Tags become spaces before whitespace is collapsed so the gaps they
// leave merge with their neighbours.
func CleanDescription(description string) string {
	description = tagPattern.ReplaceAllString(description, " ")
	description = strings.ReplaceAll(description, emDash, " "+emDash+" ")
	description = whitespacePattern.ReplaceAllString(description, " ")
	return strings.TrimSpace(description)
}

// SplitSeries removes a trailing "#<n>" token from a series name and returns
// the remaining name and n. The name is otherwise left untouched, including
// the space before the token.
func SplitSeries(series string) (string, *string) {
	loc := seriesNumberPattern.FindStringSubmatchIndex(series)
	if loc == nil {
		return series, nil
	}
	return series[:loc[0]], models.String(series[loc[2]:loc[3]])
}

// CleanRecord derives the final record from a raw one.
func CleanRecord(b *models.BookRecord) *models.CleanedBookRecord {
	cleaned := &models.CleanedBookRecord{
		Title:           b.Title,
		Pages:           b.Pages,
		PublicationDate: b.PublicationDate,
		Formats:         b.Formats,
		Contributors:    b.Contributors,
	}
	if b.Description != nil {
		cleaned.Description = models.String(CleanDescription(*b.Description))
	}
	if b.Series != nil {
		series, number := SplitSeries(*b.Series)
		cleaned.Series = models.String(series)
		cleaned.SeriesNumber = number
	}
	return cleaned
}

// Clean applies CleanRecord to every record, keeping order.
func Clean(records []*models.BookRecord) []*models.CleanedBookRecord {
	out := make([]*models.CleanedBookRecord, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, CleanRecord(record))
	}
	return out
}
