// Package embedder turns text into fixed-dimension vectors.
//
// # Providers
//
//   - gemini: Gemini embedding API (text-embedding-004, 768 dimensions)
//   - openai: any OpenAI-compatible /embeddings endpoint (1536 dimensions by default)
//   - local: offline feature hashing (384 dimensions)
//
// Remote providers share the process ratelimit.Gate: one call in flight and a
// minimum spacing between call starts. A rate-limited call sleeps a fixed
// backoff and is retried exactly once. Auth failures are never retried.
//
// Blank input yields a zero vector of the provider dimension without calling
// out. Results are cached in an LRU keyed by the SHA-256 of the text.
//
// # Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{
//	    Provider:  embedder.ProviderGemini,
//	    APIKey:    key,
//	    CacheSize: 10000,
//	    Gate:      gate,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "quarterly report"})
package embedder
