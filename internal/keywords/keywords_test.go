package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExtract verifies stopword and short-token filtering
func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "plain query",
			text:     "slash command pdf layout",
			expected: []string{"command", "layout", "pdf", "slash"},
		},
		{
			name:     "stopwords and punctuation",
			text:     "How do I fix the PDF layout, when it breaks?",
			expected: []string{"breaks", "fix", "layout", "pdf"},
		},
		{
			name:     "short tokens dropped",
			text:     "a b c go x1",
			expected: []string{"go", "x1"},
		},
		{
			name:     "underscores and digits are word runes",
			text:     "max_results=5 sqlite3",
			expected: []string{"max_results", "sqlite3"},
		},
		{
			name:     "only stopwords",
			text:     "what is the",
			expected: []string{},
		},
		{
			name:     "empty",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sorted(Extract(tt.text)))
		})
	}
}

// TestExtractOrderIndependent verifies the keyword set ignores word order
func TestExtractOrderIndependent(t *testing.T) {
	a := Extract("grafana alerting gotchas")
	b := Extract("gotchas GRAFANA alerting")
	assert.Equal(t, a, b)
}

// TestTokenizeUnicode verifies non-ASCII letters stay inside tokens
func TestTokenizeUnicode(t *testing.T) {
	assert.Equal(t, []string{"café", "naïve", "über"}, Tokenize("Café naïve-Über"))
}

// TestUnion verifies keyword sets of several texts are merged
func TestUnion(t *testing.T) {
	set := Union("prompt caching", "cache TTL", "the")
	assert.Equal(t, []string{"cache", "caching", "prompt", "ttl"}, Sorted(set))
}

// TestParseFilters verifies tag and category prefixes are stripped
func TestParseFilters(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		cleaned  string
		tags     []string
		category string
	}{
		{"no filters", "sqlite wal mode", "sqlite wal mode", nil, ""},
		{"single tag", "tag:SQLite wal mode", "wal mode", []string{"sqlite"}, ""},
		{"tags and category", "wal tag:db tag:perf category:Gotcha mode", "wal mode", []string{"db", "perf"}, "gotcha"},
		{"only filters", "tag:go", "", []string{"go"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, filters := ParseFilters(tt.query)
			assert.Equal(t, tt.cleaned, cleaned)
			assert.Equal(t, tt.tags, filters.Tags)
			assert.Equal(t, tt.category, filters.Category)
		})
	}
}
