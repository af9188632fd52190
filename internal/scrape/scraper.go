// Package scrape fetches web pages through a chain of scrapers, from a
// plain HTTP fetch through hosted reader APIs.
package scrape

import (
	"context"
)

// Page is the extracted content of one fetched URL.
type Page struct {
	URL        string // URL that was requested
	FinalURL   string // URL after redirects, when known
	Title      string
	Content    string
	StatusCode int
	Source     string // scraper that produced the page
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}
