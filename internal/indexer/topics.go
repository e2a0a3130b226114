package indexer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/learnings-mcp/pkg/types"
)

// tagTopics maps well-known tags onto topics
var tagTopics = map[string]string{
	"auth": "authentication", "authentication": "authentication", "jwt": "authentication",
	"oauth": "authentication", "session": "authentication", "login": "authentication",
	"security": "security", "xss": "security", "csrf": "security", "cors": "security",
	"error-handling": "error-handling", "errors": "error-handling", "retry": "error-handling",
	"testing": "testing", "test": "testing", "tests": "testing", "mock": "testing", "e2e": "testing",
	"performance": "performance", "cache": "performance", "caching": "performance", "profiling": "performance",
	"deployment": "deployment", "docker": "deployment", "kubernetes": "deployment", "k8s": "deployment", "ci": "deployment",
	"config": "configuration", "configuration": "configuration", "env": "configuration",
	"database": "database", "sql": "database", "sqlite": "database", "postgres": "database",
	"mysql": "database", "migration": "database", "migrations": "database",
	"api": "api-integration", "rest": "api-integration", "graphql": "api-integration", "webhook": "api-integration",
	"architecture": "architecture", "design": "architecture", "refactor": "architecture",
	"frontend": "frontend", "react": "frontend", "vue": "frontend", "css": "frontend",
	"embedding": "memory-system", "embeddings": "memory-system", "vector": "memory-system",
}

// topicPatterns are tried in order; more specific topics come first
var topicPatterns = []struct {
	topic    string
	patterns []string
}{
	{"authentication", []string{"jwt", "oauth", "login", "session", "refresh token", "auth flow"}},
	{"security", []string{"xss", "cors", "csrf", "injection", "sanitiz", "vulnerability", "credential"}},
	{"error-handling", []string{"retry", "timeout", "graceful", "fallback", "exception", "error handling"}},
	{"testing", []string{"mock", "fixture", "test case", "integration test", "unit test", "e2e", "assertion"}},
	{"performance", []string{"caching", "n+1", "lazy load", "optimize", "bottleneck", "profil"}},
	{"deployment", []string{"docker", "kubernetes", "k8s", "ci/cd", "pipeline", "deploy"}},
	{"configuration", []string{"env var", "environment", "config", ".env", "settings"}},
	{"database", []string{"migration", "index", "transaction", "query", "sql", "orm"}},
	{"api-integration", []string{"rest", "graphql", "endpoint", "webhook", "api call"}},
	{"architecture", []string{"pattern", "design", "structure", "refactor", "abstraction"}},
	{"frontend", []string{"component", "render", "state", "css", "style", "layout"}},
	{"memory-system", []string{"vector", "embedding", "storage"}},
}

// significantKeywords are the technical terms worth recording as keywords
var significantKeywords = []string{
	"jwt", "oauth", "token", "session", "cookie", "refresh", "authentication", "authorization",
	"cors", "xss", "csrf", "injection", "sanitize", "validate", "credential", "secret",
	"retry", "timeout", "fallback", "graceful", "degradation", "exception", "error",
	"mock", "fixture", "stub", "spy", "assertion", "integration", "unit", "e2e", "coverage",
	"cache", "caching", "lazy", "eager", "optimization", "bottleneck", "profiling", "n+1",
	"migration", "index", "transaction", "query", "sql", "orm", "schema", "foreign key",
	"rest", "graphql", "endpoint", "webhook", "request", "response", "payload",
	"docker", "kubernetes", "container", "ci/cd", "pipeline", "deploy", "environment",
	"component", "render", "state", "hook", "effect", "props", "context",
	"pattern", "singleton", "factory", "middleware", "decorator", "abstraction",
	"react", "vue", "angular", "express", "fastapi", "django", "flask",
	"postgres", "mysql", "mongodb", "redis", "elasticsearch", "sqlite",
	"aws", "gcp", "azure", "terraform", "ansible",
	"gotcha", "workaround", "pitfall", "caveat", "edge case",
}

var (
	codeFencePattern = regexp.MustCompile("(?s)```.*?```")
	urlPattern       = regexp.MustCompile(`https?://\S+`)
	markupPattern    = regexp.MustCompile("[#*`\\[\\]()]")

	keywordPatterns = compileKeywordPatterns()
)

func compileKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(significantKeywords))
	for _, kw := range significantKeywords {
		patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `s?\b`)
	}
	return patterns
}

// TopicFromTags returns the topic of the first tag with a known mapping
func TopicFromTags(tags []string) string {
	for _, tag := range tags {
		if topic, ok := tagTopics[strings.ToLower(tag)]; ok {
			return topic
		}
	}
	return ""
}

// DetectTopic picks a topic: an explicit one wins, then the tag mapping,
// then content patterns, then DefaultTopic
func DetectTopic(explicit string, tags []string, content string) string {
	if explicit != "" {
		return explicit
	}
	if topic := TopicFromTags(tags); topic != "" {
		return topic
	}

	lower := strings.ToLower(content)
	for _, tp := range topicPatterns {
		for _, p := range tp.patterns {
			if strings.Contains(lower, p) {
				return tp.topic
			}
		}
	}
	return types.DefaultTopic
}

// ExtractKeywords returns at most types.MaxKeywords lowercase keywords: the
// given tags first, then significant terms ordered by frequency
func ExtractKeywords(tags []string, content string) []string {
	out := make([]string, 0, types.MaxKeywords)
	seen := make(map[string]struct{})
	push := func(kw string) {
		if len(out) >= types.MaxKeywords {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}

	for _, tag := range tags {
		push(strings.ToLower(tag))
	}

	clean := strings.ToLower(content)
	clean = codeFencePattern.ReplaceAllString(clean, " ")
	clean = urlPattern.ReplaceAllString(clean, " ")
	clean = markupPattern.ReplaceAllString(clean, " ")

	type counted struct {
		keyword string
		count   int
	}
	var found []counted
	for _, kw := range significantKeywords {
		if n := len(keywordPatterns[kw].FindAllStringIndex(clean, -1)); n > 0 {
			found = append(found, counted{kw, n})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].count != found[j].count {
			return found[i].count > found[j].count
		}
		return found[i].keyword < found[j].keyword
	})
	for _, f := range found {
		push(f.keyword)
	}

	return out
}
