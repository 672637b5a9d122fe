package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/ratelimit"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string // Optional: provider default when empty
	BaseURL   string // OpenAI-compatible endpoint
	Dimension int    // Optional: provider default when <= 0
	CacheSize int

	Gate    *ratelimit.Gate // Shared process gate for remote providers
	Backoff time.Duration   // Pause before retrying a rate-limited call
	Logger  *zap.Logger
}

// New creates an embedder with explicit configuration
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider to use when none is configured explicitly.
// Priority: explicit name, then Gemini if its key is set, then OpenAI, then local.
func DetectProvider(explicit, geminiKey, openaiKey string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if geminiKey != "" {
		return ProviderGemini
	}
	if openaiKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
