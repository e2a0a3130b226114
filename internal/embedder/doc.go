// Package embedder turns learning text into fixed-size, unit-length vectors.
//
// Every provider produces 384-dimensional vectors so that all of them can share
// the vec_learnings index. Three providers are available:
//
//   - ollama: a local Ollama server running all-minilm (all-MiniLM-L6-v2)
//   - openai: any OpenAI-compatible embeddings endpoint serving a 384-d model
//   - local: an offline feature-hashing embedder, deterministic and dependency free
//
// # Lazy Materialization
//
// Models are expensive to reach, so the process holds one Lazy handle that
// materializes its provider on first use:
//
//	emb := embedder.New(embedder.Config{Provider: "ollama", Model: "all-minilm"})
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "wal mode"})
//	if errors.Is(err, embedder.ErrModelUnavailable) {
//	    // the model could not be reached or produced the wrong dimension
//	}
//
// Concurrent first calls block on the same initialization. A failed
// initialization is remembered for the life of the handle; no caller ever
// receives a zero vector in place of a real embedding.
//
// # Caching
//
// Providers share an LRU cache keyed by the SHA-256 of the input text. Cached
// embeddings are deep-copied on read.
package embedder
