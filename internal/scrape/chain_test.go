package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/pkg/firecrawl"
)

type mockScraper struct {
	name     string
	supports bool
	pages    map[string]*Page
	err      error
}

func (m *mockScraper) Name() string           { return m.name }
func (m *mockScraper) Supports(_ string) bool { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, u string) (*Page, error) {
	if p, ok := m.pages[u]; ok {
		return p, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return nil, errors.New("not found")
}

type mockFirecrawl struct {
	mock.Mock
}

func (m *mockFirecrawl) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*firecrawl.ScrapeResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFirecrawl) BatchScrape(ctx context.Context, req firecrawl.BatchScrapeRequest) (*firecrawl.BatchScrapeResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*firecrawl.BatchScrapeResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFirecrawl) GetBatchScrapeStatus(ctx context.Context, id string) (*firecrawl.BatchScrapeStatusResponse, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*firecrawl.BatchScrapeStatusResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func page(u, content string) *Page {
	return &Page{URL: u, Content: content, Source: "test"}
}

func TestChain_Scrape_FirstSuccess(t *testing.T) {
	t.Parallel()

	first := &mockScraper{name: "a", supports: true, err: errors.New("boom")}
	second := &mockScraper{name: "b", supports: true, pages: map[string]*Page{
		"https://x.example/post": page("https://x.example/post", "body"),
	}}

	c := NewChain(NewPathMatcher(nil), first, second)
	got, err := c.Scrape(context.Background(), "https://x.example/post")
	require.NoError(t, err)
	assert.Equal(t, "body", got.Content)
}

func TestChain_Scrape_SkipsUnsupportedAndEmpty(t *testing.T) {
	t.Parallel()

	unsupported := &mockScraper{name: "u", supports: false, pages: map[string]*Page{
		"https://x.example": page("https://x.example", "never"),
	}}
	empty := &mockScraper{name: "e", supports: true, pages: map[string]*Page{
		"https://x.example": page("https://x.example", "   "),
	}}
	good := &mockScraper{name: "g", supports: true, pages: map[string]*Page{
		"https://x.example": page("https://x.example", "real"),
	}}

	got, err := NewChain(nil, unsupported, empty, good).Scrape(context.Background(), "https://x.example")
	require.NoError(t, err)
	assert.Equal(t, "real", got.Content)
}

func TestChain_Scrape_Excluded(t *testing.T) {
	t.Parallel()

	s := &mockScraper{name: "a", supports: true}
	_, err := NewChain(NewPathMatcher(nil), s).Scrape(context.Background(), "https://x.example/report.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")
}

func TestChain_Scrape_AllFail(t *testing.T) {
	t.Parallel()

	s := &mockScraper{name: "a", supports: true, err: errors.New("down")}
	_, err := NewChain(nil, s).Scrape(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all scrapers failed")
}

func TestChain_Scrape_NoScraper(t *testing.T) {
	t.Parallel()

	_, err := NewChain(nil).Scrape(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}

func TestChain_Load_DropsFailures(t *testing.T) {
	t.Parallel()

	s := &mockScraper{name: "a", supports: true, pages: map[string]*Page{
		"https://a.example/1": {URL: "https://a.example/1", Title: "One", Content: "first"},
		"https://a.example/3": {URL: "https://a.example/3", Content: "third"},
	}}

	docs := NewChain(nil, s).Load(context.Background(), []string{
		"https://a.example/1",
		"https://a.example/2",
		"https://a.example/3",
	})
	require.Len(t, docs, 2)

	byURL := map[string]string{}
	for _, d := range docs {
		byURL[d.SourceURL] = d.Text
	}
	assert.Equal(t, "first", byURL["https://a.example/1"])
	assert.Equal(t, "third", byURL["https://a.example/3"])
}

func TestChain_ScrapeAll_FirecrawlBatchFallback(t *testing.T) {
	t.Parallel()

	primary := &mockScraper{name: "local_http", supports: true, pages: map[string]*Page{
		"https://ok.example": page("https://ok.example", "local"),
	}}
	fc := &mockFirecrawl{}
	fc.On("BatchScrape", mock.Anything, mock.MatchedBy(func(req firecrawl.BatchScrapeRequest) bool {
		return len(req.URLs) == 1 && req.URLs[0] == "https://blocked.example/Page"
	})).Return(&firecrawl.BatchScrapeResponse{Success: true, ID: "b-1"}, nil)
	fc.On("GetBatchScrapeStatus", mock.Anything, "b-1").Return(&firecrawl.BatchScrapeStatusResponse{
		Status: "completed",
		Data: []firecrawl.PageData{
			{URL: "https://blocked.example/Page/", Markdown: "from firecrawl", Title: "Blocked"},
		},
	}, nil)

	c := NewChain(nil, primary, NewFirecrawlAdapter(fc)).WithFirecrawlClient(fc)
	pages := c.ScrapeAll(context.Background(), []string{"https://ok.example", "https://blocked.example/Page"}, 2)
	require.Len(t, pages, 2)

	bySource := map[string]Page{}
	for _, p := range pages {
		bySource[p.Source] = p
	}
	assert.Equal(t, "local", bySource["test"].Content)
	assert.Equal(t, "https://blocked.example/Page", bySource["firecrawl"].URL)
	assert.Equal(t, "from firecrawl", bySource["firecrawl"].Content)
	fc.AssertExpectations(t)
}

func TestChain_ScrapeAll_BatchFailureDropsURLs(t *testing.T) {
	t.Parallel()

	primary := &mockScraper{name: "local_http", supports: true, err: errors.New("blocked")}
	fc := &mockFirecrawl{}
	fc.On("BatchScrape", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	c := NewChain(nil, primary, NewFirecrawlAdapter(fc)).WithFirecrawlClient(fc)
	pages := c.ScrapeAll(context.Background(), []string{"https://a.example"}, 1)
	assert.Empty(t, pages)
}
