package types

import "time"

// SearchResult represents a single ranked chunk match. It is never persisted.
type SearchResult struct {
	// Identification
	ChunkID    int64
	ChunkIndex int
	Rank       int // Position in result set (1-based)

	// Scoring
	Score float64 // Cosine similarity in [-1, 1]

	// Metadata
	File    *FileInfo
	Content string // Matched chunk text
}

// FileInfo is the file reference attached to a search result
type FileInfo struct {
	ID           int64
	Path         string
	Name         string
	Type         string
	Size         int64
	ModifiedDate time.Time
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < -1 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.File == nil {
		return ErrMissingFileInfo
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
