package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/learnings-mcp/internal/keywords"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOllamaModel = "all-minilm"
	DefaultOpenAIModel = "all-MiniLM-L6-v2"
	DefaultLocalModel  = "feature-hash-v1"

	DefaultOllamaURL = "http://localhost:11434"

	// Batch limits
	DefaultBatchSize = 32

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// LangChainProvider embeds text through a langchaingo embeddings client
type LangChainProvider struct {
	provider string
	model    string
	client   embeddings.Embedder
	cache    *Cache
	retry    RetryConfig
}

// NewOllamaProvider creates an embedder backed by an Ollama server
func NewOllamaProvider(baseURL, model string, cache *Cache) (*LangChainProvider, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama client: %v", ErrModelUnavailable, err)
	}
	return newLangChainProvider(ProviderOllama, model, llm, cache)
}

// NewOpenAIProvider creates an embedder backed by an OpenAI-compatible API
func NewOpenAIProvider(baseURL, apiKey, model string, cache *Cache) (*LangChainProvider, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if apiKey == "" {
		// Self-hosted compatible servers ignore the token but the client requires one
		apiKey = "none"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: openai client: %v", ErrModelUnavailable, err)
	}
	return newLangChainProvider(ProviderOpenAI, model, llm, cache)
}

func newLangChainProvider(provider, model string, client embeddings.EmbedderClient, cache *Cache) (*LangChainProvider, error) {
	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(DefaultBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	return &LangChainProvider{
		provider: provider,
		model:    model,
		client:   emb,
		cache:    cache,
		retry:    DefaultRetryConfig(),
	}, nil
}

// Check embeds a fixed string and checks the vector size. It is used to
// materialize the model before the first real request.
func (p *LangChainProvider) Check(ctx context.Context) error {
	vec, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
		return p.client.EmbedQuery(ctx, "dimension check")
	})
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrModelUnavailable, p.provider, p.model, err)
	}
	if len(vec) != Dimension {
		return fmt.Errorf("%w: %s/%s returned %d dimensions, want %d",
			ErrModelUnavailable, p.provider, p.model, len(vec), Dimension)
	}
	return nil
}

func (p *LangChainProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if emb, ok := p.cache.Get(hash); ok {
		return emb, nil
	}

	vec, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
		return p.client.EmbedQuery(ctx, req.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	emb, err := finalize(vec, p.provider, p.model, hash)
	if err != nil {
		return nil, err
	}
	p.cache.Set(hash, emb)
	return emb, nil
}

func (p *LangChainProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	result := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if emb, ok := p.cache.Get(ComputeHash(text)); ok {
			result[i] = emb
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		vecs, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.client.EmbedDocuments(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vecs), len(texts))
		}

		for j, i := range missing {
			hash := ComputeHash(req.Texts[i])
			emb, err := finalize(vecs[j], p.provider, p.model, hash)
			if err != nil {
				return nil, fmt.Errorf("embedding text %d: %w", i, err)
			}
			p.cache.Set(hash, emb)
			result[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   p.provider,
		Model:      p.model,
	}, nil
}

func (p *LangChainProvider) Dimension() int {
	return Dimension
}

func (p *LangChainProvider) Provider() string {
	return p.provider
}

func (p *LangChainProvider) Model() string {
	return p.model
}

func (p *LangChainProvider) Close() error {
	return nil
}

// HashingProvider is an offline embedder that hashes word and character
// trigram features into a fixed number of signed buckets. Texts sharing words
// or word stems land close together; it has no notion of synonyms.
type HashingProvider struct {
	cache *Cache
}

// NewHashingProvider creates the offline embedder
func NewHashingProvider(cache *Cache) *HashingProvider {
	return &HashingProvider{cache: cache}
}

const trigramWeight = 0.5

func (h *HashingProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if emb, ok := h.cache.Get(hash); ok {
		return emb, nil
	}

	vec := make([]float32, Dimension)
	tokens := keywords.Tokenize(req.Text)
	if len(tokens) == 0 {
		tokens = []string{strings.TrimSpace(req.Text)}
	}
	for _, tok := range tokens {
		if keywords.IsStopword(tok) {
			continue
		}
		addFeature(vec, "w:"+tok, 1)
		padded := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(padded); i++ {
			addFeature(vec, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	if isZero(vec) {
		// Text made only of stopwords still needs a direction
		addFeature(vec, "raw:"+strings.ToLower(req.Text), 1)
	}

	emb, err := finalize(vec, ProviderLocal, DefaultLocalModel, hash)
	if err != nil {
		return nil, err
	}
	h.cache.Set(hash, emb)
	return emb, nil
}

func addFeature(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := sum % uint64(len(vec))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (h *HashingProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	result := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := h.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		result[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   ProviderLocal,
		Model:      DefaultLocalModel,
	}, nil
}

func (h *HashingProvider) Dimension() int {
	return Dimension
}

func (h *HashingProvider) Provider() string {
	return ProviderLocal
}

func (h *HashingProvider) Model() string {
	return DefaultLocalModel
}

func (h *HashingProvider) Close() error {
	return nil
}

// finalize checks the dimension and normalizes a raw provider vector
func finalize(vec []float32, provider, model, hash string) (*Embedding, error) {
	if len(vec) != Dimension {
		return nil, fmt.Errorf("%w: %s/%s returned %d dimensions, want %d",
			ErrModelUnavailable, provider, model, len(vec), Dimension)
	}
	if isZero(vec) {
		return nil, fmt.Errorf("%w: %s/%s returned a zero vector", ErrProviderFailed, provider, model)
	}

	return &Embedding{
		Vector:    NormalizeVector(vec),
		Dimension: Dimension,
		Provider:  provider,
		Model:     model,
		Hash:      hash,
	}, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
