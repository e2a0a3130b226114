package embedder

import (
	"context"
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	CacheSize int
}

// New returns a lazy handle for the configured provider. Nothing is contacted
// until the first embedding is requested.
func New(cfg Config) *Lazy {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOllama
	}
	cache := NewCache(cfg.CacheSize)

	model := cfg.Model
	switch {
	case model != "":
	case provider == ProviderOpenAI:
		model = DefaultOpenAIModel
	case provider == ProviderLocal:
		model = DefaultLocalModel
	default:
		model = DefaultOllamaModel
	}

	return NewLazy(provider, model, func(ctx context.Context) (Embedder, error) {
		switch provider {
		case ProviderLocal:
			return NewHashingProvider(cache), nil
		case ProviderOllama:
			p, err := NewOllamaProvider(cfg.BaseURL, model, cache)
			if err != nil {
				return nil, err
			}
			return p, p.Check(ctx)
		case ProviderOpenAI:
			p, err := NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, model, cache)
			if err != nil {
				return nil, err
			}
			return p, p.Check(ctx)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	})
}
