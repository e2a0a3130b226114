package indexer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const (
	maxSummaryRunes = 200
	minSummaryRunes = 10
	defaultSummary  = "Learning document"
)

var (
	inlineTopicPattern = regexp.MustCompile(`\*\*[Tt]opic:\*\*\s*(.+?)(?:\n|$)`)
	inlineTagsPattern  = regexp.MustCompile(`\*\*[Tt]ags:\*\*\s*(.+?)(?:\n|$)`)

	markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()
)

// stringList decodes either a YAML sequence or a comma-separated scalar
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
	case yaml.ScalarNode:
		*l = splitList(node.Value)
	default:
		return fmt.Errorf("line %d: expected a list or string", node.Line)
	}
	return nil
}

// frontMatter is the optional YAML header of a learning file
type frontMatter struct {
	Topic    string     `yaml:"topic"`
	Tags     stringList `yaml:"tags"`
	Keywords stringList `yaml:"keywords"`
	Created  string     `yaml:"created"`
}

// Document is a parsed learning file
type Document struct {
	Title     string
	Summary   string
	Topic     string // explicit topic, empty when none was given
	Tags      []string
	CreatedAt time.Time
	Body      string // content without front matter
}

// ParseMarkdown extracts front matter, inline fields, the title and a
// summary from a learning file. A malformed front matter block is an error.
func ParseMarkdown(content []byte) (*Document, error) {
	header, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}

	doc := &Document{Body: string(body)}

	if header != nil {
		var fm frontMatter
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
		doc.Topic = fm.Topic
		doc.Tags = append(doc.Tags, fm.Tags...)
		doc.Tags = append(doc.Tags, fm.Keywords...)
		doc.CreatedAt = parseDate(fm.Created)
	}

	if doc.Topic == "" {
		if m := inlineTopicPattern.FindStringSubmatch(doc.Body); m != nil {
			doc.Topic = m[1]
		}
	}
	if m := inlineTagsPattern.FindStringSubmatch(doc.Body); m != nil {
		doc.Tags = append(doc.Tags, splitList(m[1])...)
	}
	doc.Topic = normalizeTopic(doc.Topic)
	doc.Tags = normalizeTags(doc.Tags)

	doc.Title, doc.Summary = outline(body)
	return doc, nil
}

// splitFrontMatter separates a leading "---" delimited block from the body
func splitFrontMatter(content []byte) (header, body []byte, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized, nil
	}

	rest := normalized[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end == -1 {
		if bytes.HasPrefix(rest, []byte("---")) {
			return []byte{}, trimDelimiterLine(rest[3:]), nil
		}
		return nil, nil, fmt.Errorf("unterminated front matter")
	}
	return rest[:end], trimDelimiterLine(rest[end+4:]), nil
}

// trimDelimiterLine drops the remainder of the closing delimiter line
func trimDelimiterLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i != -1 && len(bytes.TrimSpace(b[:i])) == 0 {
		return b[i+1:]
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	return b
}

// outline returns the first heading and the first paragraph long enough to
// serve as a summary
func outline(body []byte) (title, summary string) {
	root := markdownParser.Parse(text.NewReader(body))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" {
				title = strings.TrimSpace(nodeText(node, body))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if summary == "" {
				line := strings.TrimSpace(nodeText(node, body))
				if utf8.RuneCountInString(line) > minSummaryRunes && !isFieldLine(line) {
					summary = truncateRunes(line, maxSummaryRunes)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if summary == "" {
		summary = defaultSummary
	}
	return title, summary
}

// nodeText concatenates the text segments beneath n
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// isFieldLine reports whether a paragraph is an inline "Topic:" or "Tags:" field
func isFieldLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "topic:") || strings.HasPrefix(lower, "tags:")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeTopic lowercases and hyphenates an explicit topic
func normalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	return strings.Join(strings.Fields(topic), "-")
}

// normalizeTags lowercases tags, strips a leading '#' and removes duplicates
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" || strings.Contains(tag, ",") {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
