// Package config loads the process-wide configuration.
//
// Configuration is layered, in ascending priority: built-in defaults, a JSON
// config file, then environment variables. Every layer above the defaults is an
// Overrides value whose nil fields mean "keep the lower layer"; Merge folds one
// layer onto another without side effects.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment variables read by Load
const (
	EnvPluginRoot        = "CLAUDE_PLUGIN_ROOT"
	EnvDBPath            = "SQLITE_DB_PATH"
	EnvGlobalDir         = "LEARNINGS_GLOBAL_DIR"
	EnvRepoSearchPath    = "LEARNINGS_REPO_SEARCH_PATH"
	EnvArchiveDir        = "LEARNINGS_ARCHIVE_DIR"
	EnvEmbeddingProvider = "LEARNINGS_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "LEARNINGS_EMBEDDING_MODEL"
	EnvEmbeddingURL      = "LEARNINGS_EMBEDDING_URL"
	EnvEmbeddingAPIKey   = "LEARNINGS_EMBEDDING_API_KEY"
	EnvLogLevel          = "LEARNINGS_LOG_LEVEL"
)

// ErrInvalidConfig is returned when a layer cannot be read or the merged
// configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the merged, read-only configuration
type Config struct {
	SQLite        SQLiteConfig        `json:"sqlite"`
	Learnings     LearningsConfig     `json:"learnings"`
	Consolidation ConsolidationConfig `json:"consolidation"`
	Embedding     EmbeddingConfig     `json:"embedding"`
	LogLevel      string              `json:"logLevel" validate:"oneof=trace debug info warn error"`
}

// SQLiteConfig locates the database file
type SQLiteConfig struct {
	DBPath string `json:"dbPath" validate:"required"`
}

// LearningsConfig holds discovery paths and ranking thresholds
type LearningsConfig struct {
	GlobalDir                 string        `json:"globalDir" validate:"required"`
	RepoSearchPath            string        `json:"repoSearchPath" validate:"required"`
	ArchiveDir                string        `json:"archiveDir"`
	HighConfidenceThreshold   float64       `json:"highConfidenceThreshold" validate:"gt=0,lte=1"`
	PossiblyRelevantThreshold float64       `json:"possiblyRelevantThreshold" validate:"gt=0,lte=1,gtfield=HighConfidenceThreshold"`
	KeywordBoostWeight        float64       `json:"keywordBoostWeight" validate:"gte=0,lte=1"`
	SubQueryTimeout           time.Duration `json:"subQueryTimeout" validate:"gt=0"`
}

// ConsolidationConfig tunes duplicate and outdated-learning discovery
type ConsolidationConfig struct {
	DuplicateThreshold float64  `json:"duplicateThreshold" validate:"gt=0,lte=1"`
	ScopeKeywords      []string `json:"scopeKeywords"`
	OutdatedKeywords   []string `json:"outdatedKeywords"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string `json:"provider" validate:"oneof=ollama openai local"`
	Model     string `json:"model"`
	BaseURL   string `json:"baseURL"`
	APIKey    string `json:"-"`
	CacheSize int    `json:"cacheSize" validate:"gte=0"`
}

// Defaults returns the built-in configuration rooted at home
func Defaults(home string) Config {
	return Config{
		SQLite: SQLiteConfig{
			DBPath: filepath.Join(home, ".claude", "compound-learning.db"),
		},
		Learnings: LearningsConfig{
			GlobalDir:                 filepath.Join(home, ".projects", "learnings"),
			RepoSearchPath:            home,
			ArchiveDir:                filepath.Join(home, ".projects", "archive", "learnings"),
			HighConfidenceThreshold:   0.55,
			PossiblyRelevantThreshold: 0.70,
			KeywordBoostWeight:        0.4,
			SubQueryTimeout:           30 * time.Second,
		},
		Consolidation: ConsolidationConfig{
			DuplicateThreshold: 0.25,
			ScopeKeywords: []string{"security", "authentication", "jwt", "oauth", "encryption",
				"password", "token", "api-key", "secret", "xss", "sql-injection"},
			OutdatedKeywords: []string{"temporary", "workaround", "deprecated", "todo", "fixme",
				"hack", "remove later", "obsolete"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			BaseURL:   "http://localhost:11434",
			CacheSize: 10000,
		},
		LogLevel: "info",
	}
}

// Validate checks field ranges and the threshold ordering
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadOptions controls where Load looks for its layers
type LoadOptions struct {
	// Home is used for defaults and ${HOME} expansion. Defaults to os.UserHomeDir.
	Home string

	// File is an explicit config file. When empty, the file is looked up
	// under $CLAUDE_PLUGIN_ROOT/.claude-plugin/config.json.
	File string

	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// Load builds the configuration for this invocation
func Load(opts LoadOptions) (*Config, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		opts.Home = home
	}

	cfg := Defaults(opts.Home)

	path, explicit := opts.File, opts.File != ""
	if !explicit {
		if root, ok := opts.LookupEnv(EnvPluginRoot); ok && root != "" {
			path = filepath.Join(root, ".claude-plugin", "config.json")
		}
	}
	if path != "" {
		fileLayer, err := ReadFile(path, opts.Home)
		switch {
		case err == nil:
			cfg = Merge(cfg, fileLayer)
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, err
		}
	}

	cfg = Merge(cfg, FromEnv(opts.LookupEnv, opts.Home))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadFile decodes a JSON config file into an override layer, expanding
// ${HOME}, $HOME and a leading ~ in every string value
func ReadFile(path, home string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var o Overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return Overrides{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return o.expand(home), nil
}

// FromEnv builds the environment override layer
func FromEnv(lookup func(string) (string, bool), home string) Overrides {
	var o Overrides
	get := func(key string) *string {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}

	if v := get(EnvDBPath); v != nil {
		o.SQLite.DBPath = ptr(ExpandHome(*v, home))
	}
	if v := get(EnvGlobalDir); v != nil {
		o.Learnings.GlobalDir = ptr(ExpandHome(*v, home))
	}
	if v := get(EnvRepoSearchPath); v != nil {
		o.Learnings.RepoSearchPath = ptr(ExpandHome(*v, home))
	}
	if v := get(EnvArchiveDir); v != nil {
		o.Learnings.ArchiveDir = ptr(ExpandHome(*v, home))
	}
	o.Embedding.Provider = lower(get(EnvEmbeddingProvider))
	o.Embedding.Model = get(EnvEmbeddingModel)
	o.Embedding.BaseURL = get(EnvEmbeddingURL)
	o.Embedding.APIKey = get(EnvEmbeddingAPIKey)
	o.LogLevel = lower(get(EnvLogLevel))

	return o
}

// ExpandHome replaces ${HOME}, $HOME and a leading ~ with home
func ExpandHome(s, home string) string {
	s = strings.ReplaceAll(s, "${HOME}", home)
	s = strings.ReplaceAll(s, "$HOME", home)
	if s == "~" {
		return home
	}
	if strings.HasPrefix(s, "~/") {
		return filepath.Join(home, s[2:])
	}
	return s
}

// DurationSeconds parses a duration given either as Go syntax ("30s") or as
// a number of seconds
func DurationSeconds(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func ptr[T any](v T) *T { return &v }

func lower(s *string) *string {
	if s == nil {
		return nil
	}
	return ptr(strings.ToLower(strings.TrimSpace(*s)))
}
