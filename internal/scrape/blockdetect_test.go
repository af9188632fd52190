package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	ok := &http.Response{StatusCode: 200, Header: http.Header{}}
	cf := &http.Response{StatusCode: 403, Header: http.Header{"Server": []string{"cloudflare"}}}

	tests := []struct {
		name string
		resp *http.Response
		body string
		want BlockType
	}{
		{"nil response", nil, "", BlockNone},
		{"cloudflare header", cf, "", BlockCloudflare},
		{"browser check", ok, "<p>Checking your browser before accessing</p>", BlockCloudflare},
		{"recaptcha", ok, `<div class="g-recaptcha"></div>`, BlockCaptcha},
		{"js shell", ok, `<noscript>You need to enable JavaScript</noscript>`, BlockJSShell},
		{"paywall", ok, `<p>Subscribe to continue reading</p>`, BlockPaywall},
		{"clean", ok, strings.Repeat("<p>content</p>", 400), BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocked, kind := DetectBlock(tt.resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}
}
