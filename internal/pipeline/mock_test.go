package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/research-writer/internal/generate"
	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/search"
)

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string) (*search.Response, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Response), args.Error(1)
}

// --- Writer Mock ---

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(ctx context.Context, brief string) (generate.Output, model.TokenUsage, error) {
	args := m.Called(ctx, brief)
	out, _ := args.Get(0).(generate.Output)
	return out, args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- Loader fake ---

// pageLoader serves pages by URL; URLs without a page are unreachable.
type pageLoader struct {
	pages map[string]string
}

func (l pageLoader) Load(_ context.Context, urls []string) []model.Document {
	var out []model.Document
	for _, u := range urls {
		if text, ok := l.pages[u]; ok {
			out = append(out, model.Document{Text: text, SourceURL: u})
		}
	}
	return out
}

// --- Scorer fake ---

// markerScorer scores a document by the "Dn" marker in its text.
type markerScorer map[string]float64

func (s markerScorer) Score(_ context.Context, _, text string) (float64, error) {
	for marker, score := range s {
		if strings.Contains(text, marker+" ") {
			return score, nil
		}
	}
	return 0, nil
}

type errScorer struct{ err error }

func (s errScorer) Score(context.Context, string, string) (float64, error) { return 0, s.err }

// --- Summarizer fake ---

type summarizeFunc func(ctx context.Context, query, text string) (generate.Summary, error)

func (f summarizeFunc) Summarize(ctx context.Context, query, text string) (generate.Summary, error) {
	return f(ctx, query, text)
}

// countingSummarizer echoes the document marker and counts calls.
type countingSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSummarizer) Summarize(_ context.Context, _, text string) (generate.Summary, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	marker := strings.Fields(text)[1]
	return generate.Summary{
		Text:  "Summary of " + marker + ".",
		Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 20, Requests: 1},
	}, nil
}

// --- Fixtures ---

func docURL(i int) string { return fmt.Sprintf("https://news.example/article-%d", i) }

func docText(i int) string {
	return fmt.Sprintf("Document D%d covers heat pump efficiency in cold climates and how installers size them.", i)
}

// corpus builds n search hits and pages, leaving the listed indexes
// unreachable.
func corpus(n int, unreachable ...int) (*search.Response, map[string]string) {
	skip := map[int]bool{}
	for _, i := range unreachable {
		skip[i] = true
	}
	resp := &search.Response{}
	pages := map[string]string{}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, search.Hit{URL: docURL(i), Title: fmt.Sprintf("D%d", i), Score: 0.9})
		if !skip[i] {
			pages[docURL(i)] = docText(i)
		}
	}
	return resp, pages
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []model.Stage
	recs   []*model.Record
}

func (o *recordingObserver) StageDone(stage model.Stage, rec *model.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
	o.recs = append(o.recs, rec)
}
