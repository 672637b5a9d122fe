package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Providers accepted in FILEWISE_EMBEDDING_PROVIDER
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// DefaultDBPath is used when FILEWISE_DB_PATH is unset
const DefaultDBPath = "~/.filewise/filewise.db"

type Config struct {
	DBPath    string
	LogLevel  string
	LogFormat string

	// Indexing
	ChunkSize    int
	PDFWorkers   int
	Workers      int
	PDFTaskDelay time.Duration
	MaxDepth     int

	// Rate gate
	MinCallSpacing   time.Duration
	RateLimitBackoff time.Duration

	// Providers
	EmbeddingProvider string
	GeminiAPIKey      string
	EmbeddingModel    string
	GenerationModel   string
	OpenAIAPIKey      string
	OpenAIBaseURL     string

	// Extraction
	OCRLanguages     []string
	OCRDPI           int
	MinTextLength    int
	InlineLimitBytes int64
	DecryptHelper    string

	CacheSize int
	Schedule  string // Cron spec for watch, empty disables
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	var env envReader
	cfg := &Config{
		DBPath:    env.getEnv("FILEWISE_DB_PATH", DefaultDBPath),
		LogLevel:  env.getEnv("FILEWISE_LOG_LEVEL", "info"),
		LogFormat: env.getEnv("FILEWISE_LOG_FORMAT", "console"),

		ChunkSize:    env.getEnvInt("FILEWISE_CHUNK_SIZE", 1000),
		PDFWorkers:   env.getEnvInt("FILEWISE_PDF_WORKERS", 2),
		Workers:      env.getEnvInt("FILEWISE_WORKERS", 50),
		PDFTaskDelay: env.getEnvDuration("FILEWISE_PDF_TASK_DELAY", 500*time.Millisecond),
		MaxDepth:     env.getEnvInt("FILEWISE_MAX_DEPTH", 32),

		MinCallSpacing:   env.getEnvDuration("FILEWISE_MIN_CALL_SPACING", 4*time.Second),
		RateLimitBackoff: env.getEnvDuration("FILEWISE_RATE_LIMIT_BACKOFF", 15*time.Second),

		EmbeddingProvider: strings.ToLower(env.getEnv("FILEWISE_EMBEDDING_PROVIDER", "")),
		GeminiAPIKey:      env.getEnv("GEMINI_API_KEY", ""),
		EmbeddingModel:    env.getEnv("FILEWISE_EMBEDDING_MODEL", ""),
		GenerationModel:   env.getEnv("FILEWISE_GENERATION_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:      env.getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     env.getEnv("OPENAI_BASE_URL", ""),

		OCRLanguages:     splitList(env.getEnv("FILEWISE_OCR_LANGUAGES", "eng")),
		OCRDPI:           env.getEnvInt("FILEWISE_OCR_DPI", 300),
		MinTextLength:    env.getEnvInt("FILEWISE_MIN_TEXT_LENGTH", 50),
		InlineLimitBytes: env.getEnvInt64("FILEWISE_INLINE_LIMIT_BYTES", 20<<20),
		DecryptHelper:    env.getEnv("FILEWISE_DECRYPT_HELPER", ""),

		CacheSize: env.getEnvInt("FILEWISE_CACHE_SIZE", 10000),
		Schedule:  env.getEnv("FILEWISE_SCHEDULE", ""),
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = detectProvider(cfg.GeminiAPIKey, cfg.OpenAIAPIKey)
	}
	return cfg, nil
}

// Validate reports values that would fail at startup, including missing keys
// for the selected providers.
func (c *Config) Validate() error {
	var errs []error

	switch c.EmbeddingProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("FILEWISE_EMBEDDING_PROVIDER: unknown provider %q", c.EmbeddingProvider))
	}

	positive := []struct {
		key   string
		value int
	}{
		{"FILEWISE_CHUNK_SIZE", c.ChunkSize},
		{"FILEWISE_PDF_WORKERS", c.PDFWorkers},
		{"FILEWISE_WORKERS", c.Workers},
		{"FILEWISE_MAX_DEPTH", c.MaxDepth},
		{"FILEWISE_OCR_DPI", c.OCRDPI},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.key, p.value))
		}
	}

	if c.MinTextLength <= 0 {
		errs = append(errs, fmt.Errorf("FILEWISE_MIN_TEXT_LENGTH must be positive, got %d", c.MinTextLength))
	}
	if c.InlineLimitBytes <= 0 {
		errs = append(errs, fmt.Errorf("FILEWISE_INLINE_LIMIT_BYTES must be positive, got %d", c.InlineLimitBytes))
	}
	if c.PDFTaskDelay < 0 || c.MinCallSpacing < 0 || c.RateLimitBackoff < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("FILEWISE_LOG_FORMAT: unknown format %q", c.LogFormat))
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("FILEWISE_SCHEDULE: %w", err))
		}
	}

	return errors.Join(errs...)
}

// GenerationEnabled reports whether a generation provider can be created
func (c *Config) GenerationEnabled() bool {
	return c.GeminiAPIKey != ""
}

// ResolveDBPath expands a leading ~ and returns an absolute path
func (c *Config) ResolveDBPath() (string, error) {
	return expandHome(c.DBPath)
}

func detectProvider(geminiKey, openaiKey string) string {
	if geminiKey != "" {
		return ProviderGemini
	}
	if openaiKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func expandHome(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envReader collects parse errors so every bad value is reported at once
type envReader struct {
	errs []error
}

func (r *envReader) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getEnvInt(key string, defaultValue int) int {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return intValue
}

func (r *envReader) getEnvInt64(key string, defaultValue int64) int64 {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("500ms", "4s") or bare milliseconds
func (r *envReader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}
