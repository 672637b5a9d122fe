package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// Storage defines the interface for persisting file records and chunk embeddings
type Storage interface {
	// File operations
	UpsertFile(ctx context.Context, file *FileRecord) error
	GetFileByPath(ctx context.Context, filePath string) (*FileRecord, error)
	GetFileByID(ctx context.Context, fileID int64) (*FileRecord, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context) ([]*FileRecord, error)
	ListFilesUnder(ctx context.Context, root string) ([]*FileRecord, error)

	// Chunk embedding operations
	InsertChunk(ctx context.Context, chunk *ChunkEmbedding) error
	ListChunksByFile(ctx context.Context, fileID int64) ([]*ChunkEmbedding, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) (deletedCount int, err error)
	CountChunks(ctx context.Context) (int, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// FileRecord is one indexed file. Path is unique; Hash decides whether the
// file needs re-extraction.
type FileRecord struct {
	ID               int64
	FileName         string
	FilePath         string // Absolute, cleaned
	FileType         string // Lower-case extension without the dot
	FileSize         int64
	ModifiedDate     time.Time
	ExtractedText    string // May be empty
	IndexedDate      time.Time
	Hash             string // Hex SHA-256 of the full file bytes
	ExtractionStatus types.ExtractionStatus
	Diagnostic       string // Extraction error or encryption label
}

// ChunkEmbedding is one chunk of a file's text with its embedding vector
type ChunkEmbedding struct {
	ID             int64
	FileMetadataID int64
	ChunkIndex     int
	ChunkText      string
	Embedding      []float32 // Stored as a JSON array
	CreatedDate    time.Time
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	FileID          int64
	ChunkIndex      int
	ChunkText       string
	SimilarityScore float64
}

// Status contains statistics about the index
type Status struct {
	FilesCount     int
	ChunksCount    int
	FilesByStatus  map[types.ExtractionStatus]int
	IndexSizeMB    float64
	LastIndexedAt  time.Time
	SchemaVersion  string
	DriverName     string
	EmbeddingsDims []int // Distinct vector dimensions present
}

// NewFileRecord builds a record for path with name and type derived from it
func NewFileRecord(path string) *FileRecord {
	clean := filepath.Clean(path)
	return &FileRecord{
		FileName: filepath.Base(clean),
		FilePath: clean,
		FileType: FileTypeOf(clean),
	}
}

// FileTypeOf returns the lower-case extension of path without the dot
func FileTypeOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ToFileInfo converts a record into the search result file reference
func (f *FileRecord) ToFileInfo() *types.FileInfo {
	return &types.FileInfo{
		ID:           f.ID,
		Path:         f.FilePath,
		Name:         f.FileName,
		Type:         f.FileType,
		Size:         f.FileSize,
		ModifiedDate: f.ModifiedDate,
	}
}
