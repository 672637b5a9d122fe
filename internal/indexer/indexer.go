package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Jj0520/FileWise-sub000/internal/chunker"
	"github.com/Jj0520/FileWise-sub000/internal/embedder"
	"github.com/Jj0520/FileWise-sub000/internal/extractor"
	"github.com/Jj0520/FileWise-sub000/internal/storage"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// Pool defaults
const (
	DefaultPDFWorkers   = 2
	DefaultWorkers      = 50
	DefaultPDFTaskDelay = 500 * time.Millisecond
)

// FileState is the position of one file in the pipeline
type FileState string

const (
	StateNotIndexed FileState = "not_indexed"
	StateHashing    FileState = "hashing"
	StateUnchanged  FileState = "unchanged"
	StateExtracting FileState = "extracting"
	StateChunking   FileState = "chunking"
	StateEmbedding  FileState = "embedding"
	StatePersisted  FileState = "persisted"
	StateFailed     FileState = "failed"
)

// ProgressFunc receives the fraction of files processed and a short status
// line. Calls are serialized and fractions never decrease.
type ProgressFunc func(fraction float64, status string)

// Indexer coordinates the indexing pipeline: hash -> extract -> chunk -> embed -> persist
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	registry *extractor.Registry
	chunker  *chunker.Chunker
	logger   *zap.Logger

	lock  IndexLock
	hooks []func(*Statistics)
}

// Config contains configuration for a folder run
type Config struct {
	PDFWorkers   int           // Concurrent PDF files (default: 2)
	Workers      int           // Concurrent non-PDF files (default: 50)
	PDFTaskDelay time.Duration // Pause after each PDF task, 0 disables
	MaxDepth     int           // Directory recursion cap (default: 32)
	Force        bool          // Reindex even when the hash matches
	Progress     ProgressFunc  // Optional
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesScanned   int
	FilesIndexed   int
	FilesUnchanged int
	FilesFailed    int
	FilesPartial   int
	FilesEmpty     int
	FilesEncrypted int
	FilesPruned    int
	ChunksCreated  int
	ChunksFailed   int
	Duration       time.Duration
	ErrorMessages  []string
}

// FileOutcome describes what happened to one file
type FileOutcome struct {
	Path         string
	State        FileState
	Status       types.ExtractionStatus
	Chunks       int
	ChunksFailed int
	Err          error // Set when State is StateFailed
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// WithRunHook registers fn to run after every folder run that changed the store
func WithRunHook(fn func(*Statistics)) Option {
	return func(idx *Indexer) {
		if fn != nil {
			idx.hooks = append(idx.hooks, fn)
		}
	}
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, registry *extractor.Registry, ch *chunker.Chunker, opts ...Option) *Indexer {
	if ch == nil {
		ch = chunker.New(chunker.DefaultChunkSize)
	}
	idx := &Indexer{
		storage:  store,
		embedder: emb,
		registry: registry,
		chunker:  ch,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Running reports whether a folder run is active
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.PDFWorkers <= 0 {
		out.PDFWorkers = DefaultPDFWorkers
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.PDFTaskDelay < 0 {
		out.PDFTaskDelay = 0
	}
	if out.MaxDepth <= 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	return out
}

// IndexFolder indexes every supported file under root. Per-file failures are
// counted and the run continues. An authentication failure from the
// embedding provider cancels the run and is returned with the partial
// statistics, as is context cancellation. Records under root whose files
// have disappeared are pruned after a completed run.
func (idx *Indexer) IndexFolder(ctx context.Context, root string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	cfg := config.withDefaults()
	startTime := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	scan, err := Scan(ctx, absRoot, cfg.MaxDepth, idx.registry.Supports, idx.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	idx.logger.Info("indexing folder",
		zap.String("root", absRoot),
		zap.Int("pdfs", len(scan.PDFs)),
		zap.Int("others", len(scan.Others)),
		zap.Bool("force", cfg.Force))

	agg := newAggregator(scan.Total(), cfg.Progress)
	runErr := idx.runPools(ctx, scan, cfg, agg)

	stats := agg.statistics()
	stats.FilesScanned = scan.Total()

	if runErr == nil {
		pruned, err := idx.prune(ctx, absRoot)
		if err != nil {
			idx.logger.Warn("prune failed", zap.Error(err))
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("prune: %v", err))
		}
		stats.FilesPruned = pruned
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing finished",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("unchanged", stats.FilesUnchanged),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("pruned", stats.FilesPruned),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration),
		zap.Error(runErr))

	if stats.FilesIndexed > 0 || stats.FilesFailed > 0 || stats.FilesPruned > 0 {
		for _, hook := range idx.hooks {
			hook(stats)
		}
	}

	return stats, runErr
}

// runPools drives the PDF pool and the general pool side by side
func (idx *Indexer) runPools(ctx context.Context, scan *ScanResult, cfg Config, agg *aggregator) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return idx.runPool(gctx, scan.PDFs, cfg.PDFWorkers, cfg.PDFTaskDelay, cfg.Force, agg)
	})
	g.Go(func() error {
		return idx.runPool(gctx, scan.Others, cfg.Workers, 0, cfg.Force, agg)
	})

	err := g.Wait()
	if err == nil {
		// Cancellation can land between the last file and Wait
		err = ctx.Err()
	}
	return err
}

// runPool processes files with at most workers in flight. delay is held
// after each task before its slot is released.
func (idx *Indexer) runPool(ctx context.Context, files []string, workers int, delay time.Duration, force bool, agg *aggregator) error {
	if len(files) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range files {
		if err := sem.Acquire(gctx, 1); err != nil {
			break // cancelled, stop dispatch
		}

		g.Go(func() error {
			defer sem.Release(1)

			outcome, err := idx.processFile(gctx, path, force)
			if err != nil {
				return err
			}
			agg.record(outcome)

			if delay > 0 {
				select {
				case <-gctx.Done():
				case <-time.After(delay):
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// IndexFile runs the pipeline for a single file
func (idx *Indexer) IndexFile(ctx context.Context, path string, force bool) (*FileOutcome, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if !idx.registry.Supports(absPath) {
		return nil, fmt.Errorf("%w: %s", extractor.ErrUnsupported, filepath.Ext(absPath))
	}

	outcome, err := idx.processFile(ctx, absPath, force)
	if err != nil {
		return outcome, err
	}
	if outcome.State == StatePersisted || outcome.State == StateFailed {
		for _, hook := range idx.hooks {
			hook(&Statistics{FilesScanned: 1, FilesIndexed: boolToInt(outcome.State == StatePersisted)})
		}
	}
	return outcome, nil
}

// processFile moves one file through the state machine. The returned error
// is non-nil only for run-fatal conditions: provider authentication failure
// or cancellation. Everything else ends in StateFailed on the outcome.
func (idx *Indexer) processFile(ctx context.Context, path string, force bool) (*FileOutcome, error) {
	out := &FileOutcome{Path: path, State: StateNotIndexed}
	logger := idx.logger.With(zap.String("path", path))

	fail := func(err error) (*FileOutcome, error) {
		out.State = StateFailed
		out.Status = types.StatusFailed
		out.Err = err
		logger.Warn("file failed", zap.Error(err))
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	out.State = StateHashing
	digest, size, modTime, err := HashFile(path)
	if err != nil {
		return fail(fmt.Errorf("hash: %w", err))
	}

	stored, err := idx.storage.GetFileByPath(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return fail(fmt.Errorf("lookup: %w", err))
	}
	if Decide(stored, digest, force) == Unchanged {
		out.State = StateUnchanged
		out.Status = stored.ExtractionStatus
		return out, nil
	}

	record := storage.NewFileRecord(path)
	record.FileSize = size
	record.ModifiedDate = modTime
	record.Hash = digest

	out.State = StateExtracting
	res, err := idx.registry.Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		// The record keeps the new hash so a broken file is not retried until it changes
		record.ExtractionStatus = types.StatusFailed
		record.Diagnostic = err.Error()
		if perr := idx.persist(ctx, record, nil); perr != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return fail(fmt.Errorf("persist: %w", perr))
		}
		return fail(err)
	}
	record.ExtractedText = res.Text
	record.ExtractionStatus = res.Status
	record.Diagnostic = res.Diagnostic

	out.State = StateChunking
	var chunks []types.Chunk
	if res.Status.HasContent() {
		chunks = idx.chunker.Chunk(res.Text)
	}

	out.State = StateEmbedding
	embedded := make([]*storage.ChunkEmbedding, 0, len(chunks))
	for _, ch := range chunks {
		emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: ch.Text})
		if err != nil {
			if errors.Is(err, types.ErrAuth) {
				return out, fmt.Errorf("embedding %s: %w", filepath.Base(path), err)
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			// Skip the chunk; its index stays reserved
			logger.Warn("chunk embedding failed", zap.Int("chunk", ch.Index), zap.Error(err))
			out.ChunksFailed++
			continue
		}
		embedded = append(embedded, &storage.ChunkEmbedding{
			ChunkIndex: ch.Index,
			ChunkText:  ch.Text,
			Embedding:  emb.Vector,
		})
	}

	if out.ChunksFailed > 0 && record.ExtractionStatus == types.StatusOK {
		record.ExtractionStatus = types.StatusPartial
		record.Diagnostic = fmt.Sprintf("%v: embedding failed for %d of %d chunks",
			types.ErrPartialExtraction, out.ChunksFailed, len(chunks))
	}

	if err := idx.persist(ctx, record, embedded); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return fail(fmt.Errorf("persist: %w", err))
	}

	out.State = StatePersisted
	out.Status = record.ExtractionStatus
	out.Chunks = len(embedded)
	logger.Debug("file indexed",
		zap.String("status", string(record.ExtractionStatus)),
		zap.String("method", res.Method),
		zap.Int("chunks", len(embedded)))
	return out, nil
}

// persist writes the record and replaces its chunks in one transaction
func (idx *Indexer) persist(ctx context.Context, record *storage.FileRecord, chunks []*storage.ChunkEmbedding) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpsertFile(ctx, record); err != nil {
		return err
	}
	if _, err := tx.DeleteChunksByFile(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	for _, ch := range chunks {
		ch.FileMetadataID = record.ID
		if err := tx.InsertChunk(ctx, ch); err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", ch.ChunkIndex, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// prune deletes records under root whose files no longer exist
func (idx *Indexer) prune(ctx context.Context, root string) (int, error) {
	records, err := idx.storage.ListFilesUnder(ctx, root)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, rec := range records {
		if _, err := os.Stat(rec.FilePath); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := idx.storage.DeleteFile(ctx, rec.ID); err != nil {
			return pruned, fmt.Errorf("failed to delete %s: %w", rec.FilePath, err)
		}
		idx.logger.Debug("pruned missing file", zap.String("path", rec.FilePath))
		pruned++
	}
	return pruned, nil
}

// aggregator collects outcomes from both pools and feeds the progress sink
type aggregator struct {
	total     int
	processed atomic.Int64

	indexed, unchanged, failed  atomic.Int64
	partial, empty, encrypted   atomic.Int64
	chunksCreated, chunksFailed atomic.Int64

	mu       sync.Mutex // serializes progress and errors
	progress ProgressFunc
	errors   []string
}

func newAggregator(total int, progress ProgressFunc) *aggregator {
	a := &aggregator{total: total, progress: progress}
	if total == 0 && progress != nil {
		progress(1, "no files to index")
	}
	return a
}

func (a *aggregator) record(o *FileOutcome) {
	switch o.State {
	case StateUnchanged:
		a.unchanged.Add(1)
	case StateFailed:
		a.failed.Add(1)
	case StatePersisted:
		a.indexed.Add(1)
		switch o.Status {
		case types.StatusPartial:
			a.partial.Add(1)
		case types.StatusEmpty:
			a.empty.Add(1)
		case types.StatusEncrypted:
			a.encrypted.Add(1)
		}
	}
	a.chunksCreated.Add(int64(o.Chunks))
	a.chunksFailed.Add(int64(o.ChunksFailed))

	a.mu.Lock()
	defer a.mu.Unlock()

	if o.Err != nil {
		a.errors = append(a.errors, fmt.Sprintf("%s: %v", o.Path, o.Err))
	}
	n := a.processed.Add(1)
	if a.progress != nil && a.total > 0 {
		a.progress(float64(n)/float64(a.total), fmt.Sprintf("%s %s", o.State, filepath.Base(o.Path)))
	}
}

func (a *aggregator) statistics() *Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &Statistics{
		FilesIndexed:   int(a.indexed.Load()),
		FilesUnchanged: int(a.unchanged.Load()),
		FilesFailed:    int(a.failed.Load()),
		FilesPartial:   int(a.partial.Load()),
		FilesEmpty:     int(a.empty.Load()),
		FilesEncrypted: int(a.encrypted.Load()),
		ChunksCreated:  int(a.chunksCreated.Load()),
		ChunksFailed:   int(a.chunksFailed.Load()),
		ErrorMessages:  append([]string(nil), a.errors...),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
