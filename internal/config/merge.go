package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Overrides is one configuration layer. Nil fields leave the lower layer
// untouched; non-nil slices replace the lower layer's slice.
type Overrides struct {
	SQLite struct {
		DBPath *string `json:"dbPath"`
	} `json:"sqlite"`

	Learnings struct {
		GlobalDir                 *string   `json:"globalDir"`
		RepoSearchPath            *string   `json:"repoSearchPath"`
		ArchiveDir                *string   `json:"archiveDir"`
		HighConfidenceThreshold   *float64  `json:"highConfidenceThreshold"`
		PossiblyRelevantThreshold *float64  `json:"possiblyRelevantThreshold"`
		KeywordBoostWeight        *float64  `json:"keywordBoostWeight"`
		SubQueryTimeout           *Duration `json:"subQueryTimeout"`
	} `json:"learnings"`

	Consolidation struct {
		DuplicateThreshold *float64  `json:"duplicateThreshold"`
		ScopeKeywords      *[]string `json:"scopeKeywords"`
		OutdatedKeywords   *[]string `json:"outdatedKeywords"`
	} `json:"consolidation"`

	Embedding struct {
		Provider  *string `json:"provider"`
		Model     *string `json:"model"`
		BaseURL   *string `json:"baseURL"`
		APIKey    *string `json:"-"`
		CacheSize *int    `json:"cacheSize"`
	} `json:"embedding"`

	LogLevel *string `json:"logLevel"`
}

// Merge returns base with every non-nil field of override applied. Neither
// argument is modified.
func Merge(base Config, override Overrides) Config {
	out := base
	out.Consolidation.ScopeKeywords = cloneStrings(base.Consolidation.ScopeKeywords)
	out.Consolidation.OutdatedKeywords = cloneStrings(base.Consolidation.OutdatedKeywords)

	set(&out.SQLite.DBPath, override.SQLite.DBPath)

	l := override.Learnings
	set(&out.Learnings.GlobalDir, l.GlobalDir)
	set(&out.Learnings.RepoSearchPath, l.RepoSearchPath)
	set(&out.Learnings.ArchiveDir, l.ArchiveDir)
	set(&out.Learnings.HighConfidenceThreshold, l.HighConfidenceThreshold)
	set(&out.Learnings.PossiblyRelevantThreshold, l.PossiblyRelevantThreshold)
	set(&out.Learnings.KeywordBoostWeight, l.KeywordBoostWeight)
	if l.SubQueryTimeout != nil {
		out.Learnings.SubQueryTimeout = time.Duration(*l.SubQueryTimeout)
	}

	c := override.Consolidation
	set(&out.Consolidation.DuplicateThreshold, c.DuplicateThreshold)
	if c.ScopeKeywords != nil {
		out.Consolidation.ScopeKeywords = cloneStrings(*c.ScopeKeywords)
	}
	if c.OutdatedKeywords != nil {
		out.Consolidation.OutdatedKeywords = cloneStrings(*c.OutdatedKeywords)
	}

	e := override.Embedding
	set(&out.Embedding.Provider, e.Provider)
	set(&out.Embedding.Model, e.Model)
	set(&out.Embedding.BaseURL, e.BaseURL)
	set(&out.Embedding.APIKey, e.APIKey)
	set(&out.Embedding.CacheSize, e.CacheSize)

	set(&out.LogLevel, override.LogLevel)
	return out
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// expand applies home expansion to every string of the layer
func (o Overrides) expand(home string) Overrides {
	exp := func(s *string) *string {
		if s == nil {
			return nil
		}
		return ptr(ExpandHome(*s, home))
	}
	expList := func(list *[]string) *[]string {
		if list == nil {
			return nil
		}
		out := make([]string, len(*list))
		for i, s := range *list {
			out[i] = ExpandHome(s, home)
		}
		return &out
	}

	o.SQLite.DBPath = exp(o.SQLite.DBPath)
	o.Learnings.GlobalDir = exp(o.Learnings.GlobalDir)
	o.Learnings.RepoSearchPath = exp(o.Learnings.RepoSearchPath)
	o.Learnings.ArchiveDir = exp(o.Learnings.ArchiveDir)
	o.Consolidation.ScopeKeywords = expList(o.Consolidation.ScopeKeywords)
	o.Consolidation.OutdatedKeywords = expList(o.Consolidation.OutdatedKeywords)
	o.Embedding.Model = exp(o.Embedding.Model)
	o.Embedding.BaseURL = exp(o.Embedding.BaseURL)
	return o
}

// Duration decodes either a Go duration string ("30s") or a number of seconds
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case string:
		parsed, err := DurationSeconds(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("%w: duration must be a string or number", ErrInvalidConfig)
	}
	return nil
}
