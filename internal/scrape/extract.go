package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

// extractArticle pulls the main readable text out of an HTML page. Pages
// readability cannot parse fall back to tag stripping.
func extractArticle(body []byte, pageURL string) (title, text string) {
	u, err := url.Parse(pageURL)
	if err == nil {
		article, rerr := readability.FromReader(bytes.NewReader(body), u)
		if rerr == nil && strings.TrimSpace(article.TextContent) != "" {
			title = strings.TrimSpace(article.Title)
			if title == "" {
				title = extractTitle(body)
			}
			return title, strings.TrimSpace(article.TextContent)
		}
	}
	return extractTitle(body), stripHTML(string(body))
}

var (
	titleRe  = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	nlRe     = regexp.MustCompile(`\n{3,}`)
	blockRes = func() []*regexp.Regexp {
		var out []*regexp.Regexp
		for _, tag := range []string{"script", "style", "nav", "footer", "header", "aside"} {
			out = append(out, regexp.MustCompile(`(?is)<`+tag+`[^>]*>.*?</`+tag+`>`))
		}
		return out
	}()
	entities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(entities.Replace(string(m[1])))
	}
	return ""
}

// stripHTML drops script, style and page chrome blocks, strips tags,
// decodes common entities, and collapses whitespace.
func stripHTML(html string) string {
	for _, re := range blockRes {
		html = re.ReplaceAllString(html, "")
	}
	html = tagRe.ReplaceAllString(html, " ")
	html = entities.Replace(html)
	html = spaceRe.ReplaceAllString(html, " ")
	html = nlRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
