// Package parser turns listing and detail pages into book data and cleans the
// extracted records.
package parser

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-tor-books/models"
)

const (
	// ListingContainerSelector marks the books section of a listing page.
	ListingContainerSelector = "div.books-wrapper"

	// NoBooksSentinel is the text a listing page shows past the last page.
	NoBooksSentinel = "No books found..."
)

// IsPastLastPage reports whether a listing body is the empty page served after
// the final page of results.
func IsPastLastPage(body []byte) bool {
	return bytes.Contains(body, []byte(NoBooksSentinel))
}

// ParseListing returns the detail links of every article on a listing page, in
// document order.
func ParseListing(body []byte) ([]models.BookLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	wrapper := doc.Find(ListingContainerSelector).First()
	if wrapper.Length() == 0 {
		return nil, &MalformedPageError{Selector: ListingContainerSelector, Reason: "books container not found"}
	}

	articles := wrapper.Find("article")
	links := make([]models.BookLink, 0, articles.Length())
	var parseErr error
	articles.EachWithBreak(func(i int, article *goquery.Selection) bool {
		href, ok := article.Find("a").First().Attr("href")
		if !ok {
			parseErr = &MalformedPageError{Selector: "article a[href]", Reason: fmt.Sprintf("article %d has no link", i+1)}
			return false
		}
		links = append(links, href)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return links, nil
}
