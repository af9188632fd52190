package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/pkg/firecrawl"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
	fcClient    firecrawl.Client // optional: enables batch scrape fallback
	pollOpts    []firecrawl.PollOption
}

// NewChain creates a Chain with the given path matcher and scrapers.
// Scrapers are tried in order; the first successful result is returned.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
		pollOpts: []firecrawl.PollOption{
			firecrawl.WithPollInterval(2 * time.Second),
			firecrawl.WithPollCap(10 * time.Second),
		},
	}
}

// WithFirecrawlClient enables batch scrape fallback for ScrapeAll.
func (c *Chain) WithFirecrawlClient(fc firecrawl.Client, opts ...firecrawl.PollOption) *Chain {
	c.fcClient = fc
	if len(opts) > 0 {
		c.pollOpts = opts
	}
	return c
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}
	page, err := c.try(ctx, c.scrapers, targetURL)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Chain) try(ctx context.Context, scrapers []Scraper, targetURL string) (*Page, error) {
	var lastErr error
	for _, s := range scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		page, err := s.Scrape(ctx, targetURL)
		if err == nil && page != nil && strings.TrimSpace(page.Content) != "" {
			return page, nil
		}
		if err == nil {
			err = eris.Errorf("scrape: %s returned no content", s.Name())
		}
		zap.L().Debug("scrape: scraper failed, trying next",
			zap.String("scraper", s.Name()),
			zap.String("url", targetURL),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// ScrapeAll fetches multiple URLs in parallel using the chain.
// maxConcurrent controls the concurrency limit. Failed URLs are skipped.
//
// When a Firecrawl client is set and the last scraper is Firecrawl, URLs
// that fail on every other scraper are sent to Firecrawl in one batch
// scrape call instead of one request each.
func (c *Chain) ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []Page {
	var (
		mu         sync.Mutex
		pages      []Page
		failedURLs []string
	)

	useBatch := c.fcClient != nil && len(c.scrapers) > 1 &&
		c.scrapers[len(c.scrapers)-1].Name() == "firecrawl"
	primary := c.scrapers
	if useBatch {
		primary = c.scrapers[:len(c.scrapers)-1]
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, u := range urls {
		g.Go(func() error {
			if c.PathMatcher.IsExcluded(u) {
				zap.L().Debug("scrape: url excluded", zap.String("url", u))
				return nil
			}

			page, err := c.try(gCtx, primary, u)
			if err == nil {
				mu.Lock()
				pages = append(pages, *page)
				mu.Unlock()
				return nil
			}

			if useBatch {
				mu.Lock()
				failedURLs = append(failedURLs, u)
				mu.Unlock()
				return nil
			}
			zap.L().Debug("scrape: chain failed for url",
				zap.String("url", u),
				zap.Error(err),
			)
			return nil
		})
	}

	_ = g.Wait()

	if useBatch && len(failedURLs) > 0 {
		pages = append(pages, c.batchScrapeFirecrawl(ctx, failedURLs)...)
	}

	return pages
}

// Load implements the acquisition loader contract: every URL that yields
// content becomes a Document keyed by the URL that was asked for. Failures
// are logged and dropped.
func (c *Chain) Load(ctx context.Context, urls []string) []model.Document {
	pages := c.ScrapeAll(ctx, urls, len(urls))
	docs := make([]model.Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, model.Document{
			Text:      p.Content,
			SourceURL: p.URL,
			Title:     p.Title,
		})
	}
	return docs
}

// batchScrapeFirecrawl sends all URLs to Firecrawl's BatchScrape API and
// polls for results.
func (c *Chain) batchScrapeFirecrawl(ctx context.Context, urls []string) []Page {
	zap.L().Info("scrape: batch-scraping via firecrawl",
		zap.Int("urls", len(urls)),
	)

	resp, err := c.fcClient.BatchScrape(ctx, firecrawl.BatchScrapeRequest{
		URLs:            urls,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		zap.L().Warn("scrape: firecrawl batch scrape failed", zap.Error(err))
		return nil
	}

	status, err := firecrawl.PollBatchScrape(ctx, c.fcClient, resp.ID, c.pollOpts...)
	if err != nil {
		zap.L().Warn("scrape: firecrawl batch scrape poll failed", zap.Error(err))
		return nil
	}

	requested := make(map[string]string, len(urls))
	for _, u := range urls {
		requested[normalizeURL(u)] = u
	}

	var pages []Page
	for _, d := range status.Data {
		if strings.TrimSpace(d.Markdown) == "" {
			continue
		}
		// Firecrawl reports the final URL; map it back to the one we asked
		// for when it matches, so provenance stays on the candidate URL.
		orig, ok := requested[normalizeURL(d.URL)]
		if !ok {
			orig = d.URL
		}
		pages = append(pages, Page{
			URL:        orig,
			FinalURL:   d.URL,
			Title:      d.Title,
			Content:    d.Markdown,
			StatusCode: d.StatusCode,
			Source:     "firecrawl",
		})
	}

	zap.L().Info("scrape: firecrawl batch scrape complete",
		zap.Int("requested", len(urls)),
		zap.Int("received", len(pages)),
	)

	return pages
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.ToLower(u), "/")
}
