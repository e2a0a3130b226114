package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// fakeClient is a langchaingo embeddings client returning canned vectors
type fakeClient struct {
	dim   int
	err   error
	calls atomic.Int32
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32(len(text)+j%7) + 1
		}
		out[i] = v
	}
	return out, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// TestHashingProvider verifies the offline embedder contract
func TestHashingProvider(t *testing.T) {
	ctx := context.Background()
	p := NewHashingProvider(NewCache(10))

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "slash command pdf layout"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, Dimension)
	assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)
	assert.Equal(t, ProviderLocal, a.Provider)

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "slash command pdf layout"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, again.Vector, "identical input gives identical output")

	near, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "pdf layout for slash commands"})
	require.NoError(t, err)
	far, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "grafana alerting gotchas"})
	require.NoError(t, err)
	assert.Greater(t, dot(a.Vector, near.Vector), dot(a.Vector, far.Vector))

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)
}

// TestHashingProviderDegenerateText verifies texts without keywords still embed
func TestHashingProviderDegenerateText(t *testing.T) {
	p := NewHashingProvider(nil)
	for _, text := range []string{"the and of", "!!!", "   "} {
		emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: text})
		require.NoError(t, err, text)
		assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5, text)
	}
}

// TestHashingProviderBatch verifies batch output keeps input order
func TestHashingProviderBatch(t *testing.T) {
	ctx := context.Background()
	p := NewHashingProvider(nil)

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"first text", "second text"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)

	second, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "second text"})
	require.NoError(t, err)
	assert.Equal(t, second.Vector, resp.Embeddings[1].Vector)
}

// TestLangChainProvider verifies normalization and caching over a langchaingo client
func TestLangChainProvider(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{dim: Dimension}
	p, err := newLangChainProvider(ProviderOllama, "all-minilm", client, NewCache(10))
	require.NoError(t, err)
	p.retry = fastRetry()

	require.NoError(t, p.Check(ctx))

	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "wal mode"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5)

	calls := client.calls.Load()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "wal mode"})
	require.NoError(t, err)
	assert.Equal(t, calls, client.calls.Load(), "second call is served from cache")

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"wal mode", "busy timeout"}})
	require.NoError(t, err)
	assert.Equal(t, emb.Vector, resp.Embeddings[0].Vector)
	assert.Len(t, resp.Embeddings[1].Vector, Dimension)
}

// TestLangChainProviderWrongDimension verifies a mismatched model is unavailable
func TestLangChainProviderWrongDimension(t *testing.T) {
	ctx := context.Background()
	p, err := newLangChainProvider(ProviderOpenAI, "text-embedding-3-small", &fakeClient{dim: 1536}, nil)
	require.NoError(t, err)
	p.retry = fastRetry()

	assert.ErrorIs(t, p.Check(ctx), ErrModelUnavailable)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

// TestLangChainProviderFailure verifies client errors surface after retries
func TestLangChainProviderFailure(t *testing.T) {
	client := &fakeClient{dim: Dimension, err: errors.New("connection refused")}
	p, err := newLangChainProvider(ProviderOllama, "all-minilm", client, nil)
	require.NoError(t, err)
	p.retry = fastRetry()

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(2), client.calls.Load())
}

// TestRetryWithBackoff verifies success after transient failures and ctx handling
func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	got, err := retryWithBackoff(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
		func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = retryWithBackoff(ctx, DefaultRetryConfig(), func() (int, error) {
		return 0, errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoffPermanentError(t *testing.T) {
	attempts := 0
	_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, fmt.Errorf("%w: bad payload", ErrInvalidInput)
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 1, attempts, "invalid input is not retried")
}

func TestRetryConfigNext(t *testing.T) {
	c := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 200*time.Millisecond, c.next(c.BaseDelay))
	assert.Equal(t, 300*time.Millisecond, c.next(200*time.Millisecond))
}
