package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// materializeTimeout bounds the one-time model materialization
const materializeTimeout = 2 * time.Minute

// Loader materializes a provider. It runs at most once per Lazy handle.
type Loader func(ctx context.Context) (Embedder, error)

// Lazy is the process-wide embedding handle. The wrapped provider is built on
// the first call that needs it; later calls reuse it. Lazy is safe for
// concurrent use.
type Lazy struct {
	provider string
	model    string
	load     Loader

	once  sync.Once
	inner Embedder
	err   error
}

// NewLazy wraps a loader in an initialize-once handle
func NewLazy(provider, model string, load Loader) *Lazy {
	return &Lazy{provider: provider, model: model, load: load}
}

// Materialize builds the provider if it has not been built yet and returns
// the outcome of that single attempt
func (l *Lazy) Materialize(ctx context.Context) (Embedder, error) {
	l.once.Do(func() {
		// The first caller's cancellation must not poison every later caller
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), materializeTimeout)
		defer cancel()

		start := time.Now()
		inner, err := l.load(ctx)
		if err != nil {
			if !errors.Is(err, ErrModelUnavailable) {
				err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
			}
			l.err = err
			log.Error().Str("provider", l.provider).Str("model", l.model).Err(err).Msg("embedding model unavailable")
			return
		}
		l.inner = inner
		log.Info().Str("provider", l.provider).Str("model", l.model).Dur("took", time.Since(start)).Msg("embedding model ready")
	})
	return l.inner, l.err
}

func (l *Lazy) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	inner, err := l.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	return inner.GenerateEmbedding(ctx, req)
}

func (l *Lazy) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	inner, err := l.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	return inner.GenerateBatch(ctx, req)
}

func (l *Lazy) Dimension() int {
	return Dimension
}

func (l *Lazy) Provider() string {
	return l.provider
}

func (l *Lazy) Model() string {
	return l.model
}

// Close releases the provider if it was materialized
func (l *Lazy) Close() error {
	l.once.Do(func() {
		l.err = fmt.Errorf("%w: handle closed", ErrModelUnavailable)
	})
	if l.inner == nil {
		return nil
	}
	return l.inner.Close()
}
