package types

import (
	"strings"
	"time"
)

// Scope is the visibility boundary of a learning
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeRepo   Scope = "repo"
)

// MaxKeywords bounds the keyword tags stored per learning
const MaxKeywords = 8

// DefaultTopic is used when no topic can be inferred
const DefaultTopic = "other"

// Valid reports whether s is a known scope
func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeRepo
}

// Metadata holds the indexed attributes of a learning
type Metadata struct {
	FilePath  string    `json:"file_path,omitempty"`
	Scope     Scope     `json:"scope"`
	Repo      string    `json:"repo,omitempty"`
	Topic     string    `json:"topic"`
	Keywords  []string  `json:"keywords,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Learning is a stored document. Content is empty when the learning was
// loaded without content.
type Learning struct {
	ID       string   `json:"id"`
	Content  string   `json:"content,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Validate checks if the learning can be persisted
func (l *Learning) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(l.Content) == "" {
		return ErrEmptyContent
	}
	if !l.Metadata.Scope.Valid() {
		return ErrInvalidScope
	}
	if l.Metadata.Scope == ScopeRepo && l.Metadata.Repo == "" {
		return ErrMissingRepo
	}
	if len(l.Metadata.Keywords) > MaxKeywords {
		return ErrTooManyKeywords
	}
	return nil
}

// JoinKeywords renders keywords in their stored comma-joined form
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

// SplitKeywords parses the stored comma-joined form
func SplitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keywords = append(keywords, p)
		}
	}
	return keywords
}
