// Package search finds candidate sources for a query.
package search

import (
	"context"
	"net/url"
	"strings"
)

// DefaultMinScore is the search relevance a hit must exceed to be kept.
const DefaultMinScore = 0.5

// Hit is one search result. Score is on the search engine's own scale.
type Hit struct {
	URL   string  `json:"url"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score"`
}

// Response is the result of one search.
type Response struct {
	Results []Hit `json:"results"`
}

// Searcher runs a web search. An error means the search itself failed,
// not that it found nothing.
type Searcher interface {
	Search(ctx context.Context, query string) (*Response, error)
}

// Candidates keeps hits scoring strictly above minScore whose URL is an
// absolute http(s) URL, in result order, without duplicates.
func Candidates(resp *Response, minScore float64) []string {
	if resp == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(resp.Results))
	out := make([]string, 0, len(resp.Results))
	for _, h := range resp.Results {
		if h.Score <= minScore {
			continue
		}
		u := strings.TrimSpace(h.URL)
		if !IsAbsoluteURL(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// IsAbsoluteURL reports whether raw is a well-formed http or https URL
// with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && u.Hostname() != ""
}
