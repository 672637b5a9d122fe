// Package app assembles the FileWise components from configuration.
//
// Every surface (CLI commands, MCP server, scheduled watch) builds one App and
// shares its store, rate gate and providers. There is exactly one rate gate
// per process; embedding and generation calls both pass through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/chunker"
	"github.com/Jj0520/FileWise-sub000/internal/config"
	"github.com/Jj0520/FileWise-sub000/internal/embedder"
	"github.com/Jj0520/FileWise-sub000/internal/extractor"
	"github.com/Jj0520/FileWise-sub000/internal/indexer"
	"github.com/Jj0520/FileWise-sub000/internal/llm"
	"github.com/Jj0520/FileWise-sub000/internal/ratelimit"
	"github.com/Jj0520/FileWise-sub000/internal/searcher"
	"github.com/Jj0520/FileWise-sub000/internal/storage"
)

// ErrGenerationDisabled is returned by Ask when no generation provider is configured
var ErrGenerationDisabled = errors.New("question answering requires GEMINI_API_KEY")

// App holds the wired components
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Storage   storage.Storage
	Gate      *ratelimit.Gate
	Embedder  embedder.Embedder
	Generator llm.Generator // nil without a Gemini key
	Registry  *extractor.Registry
	Indexer   *indexer.Indexer
	Searcher  *searcher.Searcher
	Answerer  *searcher.Answerer // nil when Generator is nil
}

// New validates cfg and builds every component. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = store

	a.Gate = ratelimit.New(cfg.MinCallSpacing)

	a.Embedder, err = embedder.New(ctx, embedder.Config{
		Provider:  cfg.EmbeddingProvider,
		APIKey:    providerKey(cfg),
		Model:     cfg.EmbeddingModel,
		BaseURL:   cfg.OpenAIBaseURL,
		CacheSize: cfg.CacheSize,
		Gate:      a.Gate,
		Backoff:   cfg.RateLimitBackoff,
		Logger:    logger.Named("embedder"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if cfg.GenerationEnabled() {
		gen, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GenerationModel,
			Gate:   a.Gate,
			Logger: logger.Named("llm"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		a.Generator = gen
	}

	a.Registry = extractor.NewDefaultRegistry(a.extractorOptions())

	a.Searcher = searcher.NewSearcher(store, a.Embedder,
		searcher.WithLogger(logger.Named("searcher")))
	if a.Generator != nil {
		a.Answerer = searcher.NewAnswerer(a.Searcher, a.Generator, searcher.DefaultAnswerContext, logger.Named("answer"))
	}

	a.Indexer = indexer.New(store, a.Embedder, a.Registry, chunker.New(cfg.ChunkSize),
		indexer.WithLogger(logger.Named("indexer")),
		indexer.WithRunHook(func(*indexer.Statistics) { a.Searcher.Invalidate() }),
	)

	logger.Debug("components ready",
		zap.String("driver", storage.DriverName),
		zap.String("embedding_provider", a.Embedder.Provider()),
		zap.String("embedding_model", a.Embedder.Model()),
		zap.Bool("generation", a.Generator != nil),
		zap.Strings("extensions", a.Registry.Extensions()))

	ok = true
	return a, nil
}

// IndexConfig returns the indexer settings from configuration
func (a *App) IndexConfig(force bool, progress indexer.ProgressFunc) *indexer.Config {
	return &indexer.Config{
		PDFWorkers:   a.Config.PDFWorkers,
		Workers:      a.Config.Workers,
		PDFTaskDelay: a.Config.PDFTaskDelay,
		MaxDepth:     a.Config.MaxDepth,
		Force:        force,
		Progress:     progress,
	}
}

// Index runs a folder index with the configured settings
func (a *App) Index(ctx context.Context, root string, force bool, progress indexer.ProgressFunc) (*indexer.Statistics, error) {
	return a.Indexer.IndexFolder(ctx, root, a.IndexConfig(force, progress))
}

// Ask answers question from the index
func (a *App) Ask(ctx context.Context, question string) (*searcher.Answer, error) {
	if a.Answerer == nil {
		return nil, ErrGenerationDisabled
	}
	return a.Answerer.Ask(ctx, question)
}

// Close releases providers and the store
func (a *App) Close() error {
	var errs []error
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.Generator != nil {
		errs = append(errs, a.Generator.Close())
	}
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	return errors.Join(errs...)
}

func (a *App) extractorOptions() extractor.Options {
	cfg := a.Config
	opts := extractor.Options{
		MinTextLength: cfg.MinTextLength,
		OCRLanguages:  cfg.OCRLanguages,
		OCRDPI:        cfg.OCRDPI,
		InlineLimit:   cfg.InlineLimitBytes,
		Logger:        a.Logger.Named("extractor"),
	}
	if a.Generator != nil {
		opts.Generator = a.Generator
	}

	// Local OCR needs both binaries
	renderer, rerr := extractor.NewPdftoppmRenderer()
	engine, oerr := extractor.NewTesseractEngine()
	if rerr == nil && oerr == nil {
		opts.Renderer = renderer
		opts.OCR = engine
	} else {
		a.Logger.Info("local OCR disabled", zap.NamedError("renderer", rerr), zap.NamedError("ocr", oerr))
	}

	if cfg.DecryptHelper != "" {
		dec, err := extractor.NewCommandDecrypter(cfg.DecryptHelper)
		if err != nil {
			a.Logger.Warn("decrypt helper unavailable", zap.String("command", cfg.DecryptHelper), zap.Error(err))
		} else {
			opts.Decrypter = dec
		}
	}
	return opts
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	path, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func providerKey(cfg *config.Config) string {
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		return cfg.GeminiAPIKey
	case config.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	}
	return ""
}
