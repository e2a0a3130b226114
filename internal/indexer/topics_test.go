package indexer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/learnings-mcp/pkg/types"
)

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		tags     []string
		content  string
		want     string
	}{
		{"explicit wins", "custom", []string{"jwt"}, "docker", "custom"},
		{"first mapped tag", "", []string{"misc", "JWT", "docker"}, "", "authentication"},
		{"content pattern", "", []string{"misc"}, "Use a Docker image for builds", "deployment"},
		{"earlier topics take precedence", "", nil, "retry the docker pull", "error-handling"},
		{"default", "", nil, "nothing to see here", types.DefaultTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTopic(tt.explicit, tt.tags, tt.content))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	content := "Retry the query. Retry again after a timeout. The query failed."
	got := ExtractKeywords([]string{"Go", "sqlite"}, content)
	assert.Equal(t, []string{"go", "sqlite", "query", "retry", "timeout"}, got)
}

func TestExtractKeywordsIgnoresCodeAndURLs(t *testing.T) {
	content := "```\ndocker docker docker\n```\nSee https://redis.io/docs for redis."
	assert.Equal(t, []string{"redis"}, ExtractKeywords(nil, content))
}

func TestExtractKeywordsPlural(t *testing.T) {
	assert.Equal(t, []string{"mock"}, ExtractKeywords(nil, "mocks and more mocks"))
}

func TestExtractKeywordsCap(t *testing.T) {
	var tags []string
	for i := 0; i < 12; i++ {
		tags = append(tags, fmt.Sprintf("tag%d", i))
	}
	got := ExtractKeywords(tags, "jwt cache docker")
	assert.Len(t, got, types.MaxKeywords)
	assert.Equal(t, "tag0", got[0])
	assert.NotContains(t, got, "jwt")
}
