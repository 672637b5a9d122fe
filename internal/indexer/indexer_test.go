package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jj0520/FileWise-sub000/internal/chunker"
	"github.com/Jj0520/FileWise-sub000/internal/embedder"
	"github.com/Jj0520/FileWise-sub000/internal/extractor"
	"github.com/Jj0520/FileWise-sub000/internal/storage"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension int
	errFor    func(text string) error
	callCount int
	mu        sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.callCount++
	if m.errFor != nil {
		if err := m.errFor(req.Text); err != nil {
			return nil, err
		}
	}

	return &embedder.Embedding{
		Vector:    embedder.HashVector(req.Text, m.dimension),
		Dimension: m.dimension,
		Provider:  "mock",
		Model:     "test-v1",
	}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// countingExtractor wraps an extractor and counts Extract calls
type countingExtractor struct {
	extractor.Extractor
	calls atomic.Int32
	delay time.Duration
}

func (c *countingExtractor) Extract(ctx context.Context, path string) (*extractor.Result, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return c.Extractor.Extract(ctx, path)
}

// failingExtractor always reports malformed input
type failingExtractor struct{}

func (failingExtractor) Kind() string { return "broken" }
func (failingExtractor) Extract(context.Context, string) (*extractor.Result, error) {
	return nil, fmt.Errorf("%w: corrupt header", types.ErrMalformedInput)
}

type testEnv struct {
	store storage.Storage
	emb   *mockEmbedder
	text  *countingExtractor
	pdf   *countingExtractor
	idx   *Indexer
}

func newTestEnv(t *testing.T, chunkSize int, opts ...Option) *testEnv {
	t.Helper()

	store := setupTestStorage(t)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store: store,
		emb:   newMockEmbedder(),
		text:  &countingExtractor{Extractor: extractor.PlainText{}},
		pdf:   &countingExtractor{Extractor: extractor.NewPDF(extractor.Options{})},
	}

	reg := extractor.NewRegistry()
	reg.Register(env.text, ".txt")
	reg.Register(env.pdf, ".pdf")
	reg.Register(failingExtractor{}, ".bad")

	env.idx = New(store, env.emb, reg, chunker.New(chunkSize), opts...)
	return env
}

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")

	return store
}

// createTestFile creates a file under dir, making parent directories
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	return filePath
}

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", word, i)
	}
	return strings.Join(parts, " ")
}

func countAllChunks(t *testing.T, store storage.Storage) int {
	t.Helper()
	n, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	return n
}

// Scenario A: one 50-word text file gives one chunk, and a rerun is a no-op
func TestIndexFolder_SingleTextFile(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "notes.txt", words(50, "word"))

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.ChunksCreated)

	rec, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	digest, _, _, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, digest, rec.Hash)
	assert.Equal(t, types.StatusOK, rec.ExtractionStatus)

	chunks, err := env.store.ListChunksByFile(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Len(t, chunks[0].Embedding, env.emb.dimension)

	// Rerun without changes
	embedCalls := env.emb.getCallCount()
	stats, err = env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesUnchanged)
	assert.Equal(t, 1, countAllChunks(t, env.store))
	assert.Equal(t, embedCalls, env.emb.getCallCount())
	assert.Equal(t, int32(1), env.text.calls.Load(), "unchanged files are not extracted again")

	after, err := env.store.ListChunksByFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[0].ID, after[0].ID)
}

// Scenario B: a content change replaces the chunks and the hash
func TestIndexFolder_ModifiedFile(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "notes.txt", words(50, "old"))

	_, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	before, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	oldChunks, err := env.store.ListChunksByFile(ctx, before.ID)
	require.NoError(t, err)
	require.Len(t, oldChunks, 1)

	createTestFile(t, dir, "notes.txt", words(50, "new"))
	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	after, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID, "record is updated in place")
	assert.NotEqual(t, before.Hash, after.Hash)

	newChunks, err := env.store.ListChunksByFile(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, newChunks, 1)
	assert.NotEqual(t, oldChunks[0].ID, newChunks[0].ID)
	assert.Contains(t, newChunks[0].ChunkText, "new0")
	assert.Equal(t, 1, countAllChunks(t, env.store))
}

// Scenario C: a PDF without text or encryption markers is kept with no chunks
func TestIndexFolder_EmptyPDF(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "scan.pdf", "%PDF-1.4\n%%EOF\n")

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesEmpty)

	rec, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, rec.ExtractedText)
	assert.Equal(t, types.StatusEmpty, rec.ExtractionStatus)
	assert.Equal(t, 0, countAllChunks(t, env.store))

	all, err := env.store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, path, all[0].FilePath)
}

func TestIndexFolder_EncryptedPDF(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "locked.pdf", "SCDSA00\x01\x02\x03 opaque payload")

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesEncrypted)

	rec, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusEncrypted, rec.ExtractionStatus)
	assert.Equal(t, "SoftCamp Document Security", rec.Diagnostic)
}

func TestIndexFolder_ExtractionFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	createTestFile(t, dir, "good.txt", "some useful content")
	bad := createTestFile(t, dir, "file.bad", "garbage")

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "file.bad")

	rec, err := env.store.GetFileByPath(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.ExtractionStatus)
	assert.Empty(t, rec.ExtractedText)
	assert.Contains(t, rec.Diagnostic, "corrupt header")
}

func TestIndexFolder_Force(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	createTestFile(t, dir, "a.txt", "alpha beta")

	_, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)

	stats, err := env.idx.IndexFolder(ctx, dir, &Config{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, int32(2), env.text.calls.Load())
	assert.Equal(t, 1, countAllChunks(t, env.store), "prior chunks are replaced")
}

func TestIndexFolder_Prune(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	keep := createTestFile(t, dir, "keep.txt", "stays around")
	gone := createTestFile(t, dir, "sub/gone.txt", "will be deleted")

	// A record outside the root must survive
	outside := storage.NewFileRecord(filepath.Join(t.TempDir(), "elsewhere.txt"))
	outside.Hash = "x"
	require.NoError(t, env.store.UpsertFile(ctx, outside))

	_, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesPruned)

	_, err = env.store.GetFileByPath(ctx, gone)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = env.store.GetFileByPath(ctx, keep)
	assert.NoError(t, err)
	_, err = env.store.GetFileByPath(ctx, outside.FilePath)
	assert.NoError(t, err)
	assert.Equal(t, 1, countAllChunks(t, env.store))
}

func TestIndexFolder_ChunkEmbeddingFailureLeavesGap(t *testing.T) {
	env := newTestEnv(t, 20)
	env.emb.errFor = func(text string) error {
		if strings.Contains(text, "bbbb") {
			return fmt.Errorf("%w: 500", types.ErrTransientProvider)
		}
		return nil
	}
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "doc.txt", "aaaa aaaa aaaa aaaa bbbb bbbb bbbb bbbb cccc cccc cccc cccc")

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunksCreated)
	assert.Equal(t, 1, stats.ChunksFailed)
	assert.Equal(t, 1, stats.FilesPartial)

	rec, err := env.store.GetFileByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPartial, rec.ExtractionStatus)

	chunks, err := env.store.ListChunksByFile(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[1].ChunkIndex)
}

func TestIndexFolder_AuthErrorIsFatal(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.emb.errFor = func(string) error {
		return fmt.Errorf("%w: 401 invalid key", types.ErrAuth)
	}
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		createTestFile(t, dir, fmt.Sprintf("f%d.txt", i), "content to embed")
	}

	stats, err := env.idx.IndexFolder(ctx, dir, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuth)
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 0, countAllChunks(t, env.store))

	files, err := env.store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files, "nothing is persisted for files whose embedding failed auth")
}

func TestIndexFolder_ContextCancellation(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.text.delay = 50 * time.Millisecond
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		createTestFile(t, dir, fmt.Sprintf("f%02d.txt", i), words(10, "w"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := env.idx.IndexFolder(ctx, dir, &Config{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)

	// Every persisted file has its full chunk set
	files, err := env.store.ListFiles(context.Background())
	require.NoError(t, err)
	for _, f := range files {
		chunks, err := env.store.ListChunksByFile(context.Background(), f.ID)
		require.NoError(t, err)
		assert.Len(t, chunks, 1, f.FilePath)
	}
}

func TestIndexFolder_Progress(t *testing.T) {
	env := newTestEnv(t, 1000)
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		createTestFile(t, dir, fmt.Sprintf("f%d.txt", i), "text")
	}
	createTestFile(t, dir, "doc.pdf", "%PDF-1.4\n")

	var (
		mu        sync.Mutex
		fractions []float64
		inFlight  atomic.Int32
		overlap   atomic.Bool
	)
	progress := func(fraction float64, status string) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)
		mu.Lock()
		fractions = append(fractions, fraction)
		mu.Unlock()
		assert.NotEmpty(t, status)
	}

	_, err := env.idx.IndexFolder(context.Background(), dir, &Config{Progress: progress})
	require.NoError(t, err)

	assert.False(t, overlap.Load(), "progress calls must be serialized")
	require.Len(t, fractions, 7)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.InDelta(t, 1.0, fractions[len(fractions)-1], 1e-9)
}

func TestIndexFolder_EmptyFolder(t *testing.T) {
	env := newTestEnv(t, 1000)
	var got []float64

	stats, err := env.idx.IndexFolder(context.Background(), t.TempDir(), &Config{
		Progress: func(f float64, _ string) { got = append(got, f) },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesScanned)
	assert.Equal(t, []float64{1}, got)
}

func TestIndexFolder_MissingRoot(t *testing.T) {
	env := newTestEnv(t, 1000)
	_, err := env.idx.IndexFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestIndexFolder_ConcurrentRunsRejected(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.text.delay = 100 * time.Millisecond
	dir := t.TempDir()
	createTestFile(t, dir, "a.txt", "slow file")

	done := make(chan error, 1)
	go func() {
		_, err := env.idx.IndexFolder(context.Background(), dir, nil)
		done <- err
	}()

	require.Eventually(t, env.idx.Running, time.Second, 5*time.Millisecond)
	_, err := env.idx.IndexFolder(context.Background(), dir, nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	require.NoError(t, <-done)
	assert.False(t, env.idx.Running())
}

func TestIndexFolder_RunHook(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, 1000, WithRunHook(func(*Statistics) { calls.Add(1) }))
	dir := t.TempDir()
	createTestFile(t, dir, "a.txt", "hook me")

	_, err := env.idx.IndexFolder(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Nothing changed, nothing to invalidate
	_, err = env.idx.IndexFolder(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIndexFolder_PDFPoolDelay(t *testing.T) {
	env := newTestEnv(t, 1000)
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		createTestFile(t, dir, fmt.Sprintf("p%d.pdf", i), "%PDF-1.4\n")
	}

	start := time.Now()
	_, err := env.idx.IndexFolder(context.Background(), dir, &Config{PDFWorkers: 1, PDFTaskDelay: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 4*30*time.Millisecond)
	assert.Equal(t, int32(4), env.pdf.calls.Load())
}

func TestIndexFile(t *testing.T) {
	env := newTestEnv(t, 1000)
	ctx := context.Background()
	dir := t.TempDir()
	path := createTestFile(t, dir, "single.txt", "one file only")

	out, err := env.idx.IndexFile(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, out.State)
	assert.Equal(t, 1, out.Chunks)

	out, err = env.idx.IndexFile(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, StateUnchanged, out.State)

	out, err = env.idx.IndexFile(ctx, path, true)
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, out.State)

	_, err = env.idx.IndexFile(ctx, filepath.Join(dir, "image.png"), false)
	assert.ErrorIs(t, err, extractor.ErrUnsupported)

	out, err = env.idx.IndexFile(ctx, filepath.Join(dir, "missing.txt"), false)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, os.ErrNotExist)
}

func TestIndexFile_AuthError(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.emb.errFor = func(string) error { return types.ErrAuth }
	path := createTestFile(t, t.TempDir(), "a.txt", "text")

	_, err := env.idx.IndexFile(context.Background(), path, false)
	assert.True(t, errors.Is(err, types.ErrAuth))
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.True(t, lock.Held())
	assert.False(t, lock.TryAcquire(), "second acquisition fails while held")
	lock.Release()
	assert.False(t, lock.Held())

	const numGoroutines = 100
	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load(), "exactly one goroutine acquires the lock")
}
