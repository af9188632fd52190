package rank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 20)
	tests := []struct {
		name string
		in   string
		min  int
		want string
	}{
		{"collapses whitespace", "  a\t\tb\n\nc  ", 0, "a b c"},
		{"too short", "short text", MinContentChars, ""},
		{"blank", "   \n\t ", MinContentChars, ""},
		{"long enough", long, MinContentChars, strings.TrimSpace(long)},
		{"keeps ligatures", "\ufb01le\u00a0name", 0, "\ufb01le name"},
		{"keeps full-width", "\uff21\uff22  def", 0, "\uff21\uff22 def"},
		{"composes accents", "cafe\u0301", 0, "caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.in, tt.min))
		})
	}
}

func TestClean_CountsRunes(t *testing.T) {
	t.Parallel()

	// 50 two-byte runes pass; 49 do not.
	assert.NotEmpty(t, Clean(strings.Repeat("é", 50), 50))
	assert.Empty(t, Clean(strings.Repeat("é", 49), 50))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "héé", Truncate("héééé", 3))
}
