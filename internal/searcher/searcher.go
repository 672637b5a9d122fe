package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/embedder"
	"github.com/Jj0520/FileWise-sub000/internal/storage"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query cannot be empty")

// Search defaults
const (
	DefaultLimit     = 10
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
)

var tracer = otel.Tracer("filewise/searcher")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query     string
	Limit     int  // Top K, default 10
	SkipCache bool // Bypass the result cache
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// Searcher ranks stored chunks against a query by cosine similarity
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *expirable.LRU[string, *SearchResponse]
	logger   *zap.Logger
}

// Option configures a Searcher
type Option func(*options)

type options struct {
	cacheSize int
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// WithCache sets the result cache capacity and entry lifetime
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = size
		}
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, opts ...Option) *Searcher {
	o := options{
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Searcher{
		storage:  store,
		embedder: emb,
		cache:    expirable.NewLRU[string, *SearchResponse](o.cacheSize, nil, o.cacheTTL),
		logger:   o.logger,
	}
}

// Search embeds the query and returns the top K chunks by cosine similarity.
// Ties keep the chunks' insertion order.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "searcher.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("search.limit", req.Limit))

	key := cacheKey(req)
	if !req.SkipCache {
		if cached, ok := s.cache.Get(key); ok {
			resp := copySearchResponse(cached)
			resp.CacheHit = true
			resp.Duration = time.Since(startTime)
			span.SetAttributes(attribute.Bool("search.cache_hit", true))
			return resp, nil
		}
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	matches, err := s.storage.SearchVector(ctx, embedding.Vector, req.Limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results, err := s.fetchResults(ctx, matches)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))

	if !req.SkipCache && len(results) > 0 {
		s.cache.Add(key, copySearchResponse(resp))
	}

	s.logger.Debug("search completed",
		zap.Int("results", len(results)),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

// fetchResults joins each match with its file record
func (s *Searcher) fetchResults(ctx context.Context, matches []storage.VectorResult) ([]types.SearchResult, error) {
	files := make(map[int64]*storage.FileRecord)
	results := make([]types.SearchResult, 0, len(matches))

	for _, m := range matches {
		file, ok := files[m.FileID]
		if !ok {
			var err error
			file, err = s.storage.GetFileByID(ctx, m.FileID)
			if errors.Is(err, storage.ErrNotFound) {
				continue // pruned between scan and join
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load file %d: %w", m.FileID, err)
			}
			files[m.FileID] = file
		}

		results = append(results, types.SearchResult{
			ChunkID:    m.ChunkID,
			ChunkIndex: m.ChunkIndex,
			Rank:       len(results) + 1,
			Score:      m.SimilarityScore,
			File:       file.ToFileInfo(),
			Content:    m.ChunkText,
		})
	}

	return results, nil
}

// Invalidate drops every cached result. Called after each index run.
func (s *Searcher) Invalidate() {
	s.cache.Purge()
}

// CacheLen returns the number of cached queries
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	return nil
}

// cacheKey hashes the normalized query and limit
func cacheKey(req SearchRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", req.Query, req.Limit)))
	return hex.EncodeToString(sum[:])
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		TotalResults: src.TotalResults,
		Duration:     src.Duration,
		CacheHit:     src.CacheHit,
		Results:      make([]types.SearchResult, len(src.Results)),
	}

	for i, result := range src.Results {
		dst.Results[i] = result
		// FileInfo holds only values, a shallow copy suffices
		if result.File != nil {
			fileCopy := *result.File
			dst.Results[i].File = &fileCopy
		}
	}

	return dst
}
