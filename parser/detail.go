package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-tor-books/models"
)

// Detail page selectors.
const (
	TitleSelector       = "h1.book--title"
	SeriesSelector      = "h3.book--series"
	DescriptionSelector = "section.book--description"
	FactSheetSelector   = "p.product-description"
	FormatSelector      = "h3.product-format"
	ContributorSelector = "h2.book--contributor"
)

var (
	pagesPattern     = regexp.MustCompile(`(\d+) Pages`)
	publishedPattern = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
)

// ExtractDetail pulls a BookRecord out of a detail page. Sections the page does
// not have are left nil; only an unreadable document is an error.
func ExtractDetail(body []byte, link string) (*models.BookRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	description := doc.Find(DescriptionSelector).First()
	if description.Length() > 0 {
		// the cover image lives in a nested section
		description.Find("section").First().Remove()
	}

	book := &models.BookRecord{
		Title:       innerHTML(doc.Find(TitleSelector).First()),
		Series:      innerHTML(doc.Find(SeriesSelector).First()),
		Description: innerHTML(description),
		Link:        link,
	}

	if factSheet := doc.Find(FactSheetSelector).First(); factSheet.Length() > 0 {
		text := factSheet.Text()
		if match := pagesPattern.FindStringSubmatch(text); match != nil {
			book.Pages = models.String(match[1])
		}
		if match := publishedPattern.FindString(text); match != "" {
			book.PublicationDate = models.String(match)
		}
	}

	if formats := doc.Find(FormatSelector); formats.Length() > 0 {
		book.Formats = trimmedTexts(formats)
	}

	if contributors := doc.Find(ContributorSelector).First(); contributors.Length() > 0 {
		book.Contributors = trimmedTexts(contributors.Find("a"))
	}

	return book, nil
}

func innerHTML(sel *goquery.Selection) *string {
	if sel.Length() == 0 {
		return nil
	}
	content, err := sel.Html()
	if err != nil {
		return nil
	}
	return models.String(strings.TrimSpace(content))
}

func trimmedTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
