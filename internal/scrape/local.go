package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; ResearchWriter/1.0)"
	maxBodyBytes     = 2 << 20
)

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) LocalOption {
	return func(l *LocalScraper) {
		l.client.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalScraper) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithHostRate limits requests per host to rps; zero disables pacing.
func WithHostRate(rps float64) LocalOption {
	return func(l *LocalScraper) {
		l.limiter = newHostLimiter(rps, 2)
	}
}

// WithLocalHTTPClient replaces the HTTP client (for testing).
func WithLocalHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalScraper) {
		l.client = hc
	}
}

// LocalScraper fetches HTML via net/http, detects blocks, and extracts
// the readable text. Free, no API calls. Blocked pages fall through to
// the hosted readers.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	limiter   *hostLimiter
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LocalScraper) Name() string { return "local_http" }

// Supports reports whether the URL is plain http(s).
func (l *LocalScraper) Supports(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// Scrape fetches a URL, detects blocks, and extracts the article text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if err := l.limiter.Wait(ctx, targetURL); err != nil {
		return nil, eris.Wrap(err, "local_http: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		l.limiter.OnRateLimit(targetURL)
		return nil, eris.New("local_http: status 429")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, eris.Errorf("local_http: unsupported content type %q", ct)
	}

	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}
	l.limiter.OnSuccess(targetURL)

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	var title, text string
	if strings.Contains(ct, "html") || ct == "" {
		title, text = extractArticle(body, finalURL)
	} else {
		text = strings.TrimSpace(string(body))
	}

	return &Page{
		URL:        targetURL,
		FinalURL:   finalURL,
		Title:      title,
		Content:    text,
		StatusCode: resp.StatusCode,
		Source:     l.Name(),
	}, nil
}
