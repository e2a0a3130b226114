// Package keywords turns free text into the lexical keyword sets used for
// reranking and full-text matching.
package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the shortest token kept as a keyword
const MinLength = 2

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {}, "need": {}, "dare": {},
	"ought": {}, "used": {}, "to": {}, "of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {},
	"from": {}, "as": {}, "into": {}, "through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "between": {}, "under": {}, "again": {}, "further": {}, "then": {}, "once": {},
	"here": {}, "there": {}, "when": {}, "where": {}, "why": {}, "how": {}, "all": {}, "each": {}, "few": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "such": {}, "no": {}, "nor": {}, "not": {}, "only": {},
	"own": {}, "same": {}, "so": {}, "than": {}, "too": {}, "very": {}, "just": {}, "and": {}, "but": {},
	"if": {}, "or": {}, "because": {}, "until": {}, "while": {}, "about": {}, "against": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "its": {}, "it": {},
}

// IsStopword reports whether the lowercase token is a common function word
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize splits text into lowercase word tokens. A word is a maximal run of
// letters, digits and underscores.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// TokenSet returns the distinct tokens of text
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Extract returns the meaningful keywords of text: lowercase tokens that are
// not stopwords and at least MinLength runes long.
func Extract(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		if utf8.RuneCountInString(t) < MinLength || IsStopword(t) {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Union merges the keyword sets of several texts
func Union(texts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, text := range texts {
		for k := range Extract(text) {
			set[k] = struct{}{}
		}
	}
	return set
}

// Sorted returns the members of a keyword set in ascending order
func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filters holds tag and category filters embedded in a query
type Filters struct {
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Empty reports whether no filter was found
func (f Filters) Empty() bool {
	return len(f.Tags) == 0 && f.Category == ""
}

var (
	tagPattern      = regexp.MustCompile(`(?i)\btag:(\w+)\s*`)
	categoryPattern = regexp.MustCompile(`(?i)\bcategory:(\w+)\s*`)
)

// ParseFilters strips "tag:x" and "category:x" tokens from query and returns
// the cleaned query with the parsed filters. Only the first category counts.
func ParseFilters(query string) (string, Filters) {
	var filters Filters

	for _, m := range tagPattern.FindAllStringSubmatch(query, -1) {
		filters.Tags = append(filters.Tags, strings.ToLower(m[1]))
	}
	cleaned := tagPattern.ReplaceAllString(query, "")

	if m := categoryPattern.FindStringSubmatch(cleaned); m != nil {
		filters.Category = strings.ToLower(m[1])
	}
	cleaned = categoryPattern.ReplaceAllString(cleaned, "")

	return strings.TrimSpace(cleaned), filters
}
