package search

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/resilience"
	"github.com/sells-group/research-writer/pkg/tavily"
)

// Tavily adapts the Tavily API to Searcher.
type Tavily struct {
	client     tavily.Client
	depth      string
	maxResults int
	exclude    []string
	policy     resilience.Policy
}

// TavilyOption configures the Tavily searcher.
type TavilyOption func(*Tavily)

// WithDepth sets the search depth (basic or advanced).
func WithDepth(depth string) TavilyOption {
	return func(t *Tavily) {
		t.depth = depth
	}
}

// WithMaxResults caps the number of hits requested.
func WithMaxResults(n int) TavilyOption {
	return func(t *Tavily) {
		if n > 0 {
			t.maxResults = n
		}
	}
}

// WithExcludeDomains drops results from the given domains.
func WithExcludeDomains(domains ...string) TavilyOption {
	return func(t *Tavily) {
		t.exclude = domains
	}
}

// WithRetryPolicy sets the retry policy for search calls.
func WithRetryPolicy(p resilience.Policy) TavilyOption {
	return func(t *Tavily) {
		t.policy = p
	}
}

// NewTavily creates a Tavily searcher.
func NewTavily(client tavily.Client, opts ...TavilyOption) *Tavily {
	t := &Tavily{
		client:     client,
		depth:      "advanced",
		maxResults: 10,
		policy:     resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(t)
	}
	t.policy = t.policy.Named("tavily", "search")
	return t
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, query string) (*Response, error) {
	resp, err := resilience.DoVal(ctx, t.policy, func(ctx context.Context) (*tavily.SearchResponse, error) {
		return t.client.Search(ctx, tavily.SearchRequest{
			Query:          query,
			SearchDepth:    t.depth,
			MaxResults:     t.maxResults,
			ExcludeDomains: t.exclude,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: tavily")
	}

	out := &Response{Results: make([]Hit, 0, len(resp.Results))}
	for _, r := range resp.Results {
		out.Results = append(out.Results, Hit{URL: r.URL, Title: r.Title, Score: r.Score})
	}

	zap.L().Debug("search: tavily complete",
		zap.Int("results", len(out.Results)),
		zap.Float64("response_time", resp.ResponseTime),
	)
	return out, nil
}
