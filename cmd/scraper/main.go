// Package main provides the tor-books scraper CLI.
//
// Usage:
//
//	scraper links     crawl listing pages into LINK_FILEPATH
//	scraper details   scrape every linked book into BOOK_FILEPATH
//	scraper clean     clean BOOK_FILEPATH into FINAL_BOOK_FILEPATH
//	scraper run       all three stages in order
package main

func main() {
	Execute()
}
