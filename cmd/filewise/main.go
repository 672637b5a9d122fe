package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/app"
	"github.com/Jj0520/FileWise-sub000/internal/config"
	"github.com/Jj0520/FileWise-sub000/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// globalOptions are persistent flags that override environment configuration
type globalOptions struct {
	dbPath    string
	logLevel  string
	logFormat string
	provider  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "filewise",
		Short:         "Semantic search over your local documents",
		Long:          "FileWise indexes PDF, Office, text, CSV, Markdown and HTML files into a local SQLite store and answers natural-language queries against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "database path (env FILEWISE_DB_PATH, default "+config.DefaultDBPath+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (env FILEWISE_LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console or json (env FILEWISE_LOG_FORMAT)")
	flags.StringVar(&opts.provider, "provider", "", "embedding provider: gemini, openai or local (env FILEWISE_EMBEDDING_PROVIDER)")

	rootCmd.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newAskCmd(opts),
		newFilesCmd(opts),
		newStatusCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the environment and applies flag overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.provider != "" {
		cfg.EmbeddingProvider = o.provider
	}
	return cfg, nil
}

// openApp loads configuration, builds the logger and wires the application.
// mutate, when set, adjusts the configuration before validation.
func (o *globalOptions) openApp(ctx context.Context, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("filewise starting",
		zap.String("version", version),
		zap.String("db_path", cfg.DBPath),
		zap.String("provider", cfg.EmbeddingProvider))
	return a, nil
}

// closeApp releases a and flushes its logger
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("close failed", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
