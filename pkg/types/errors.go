package types

import "errors"

// Error taxonomy shared by extraction, providers and the scheduler.
// Callers test with errors.Is; every package wraps these with %w.
var (
	// ErrTransientProvider marks rate-limited or temporarily unavailable providers.
	// It is retried with a bounded backoff.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrAuth marks invalid or missing credentials. Never retried.
	ErrAuth = errors.New("provider authentication failed")

	// ErrMalformedInput marks unreadable or corrupt files and undecodable provider responses.
	ErrMalformedInput = errors.New("malformed input")

	// ErrPartialExtraction marks a best-effort result where some pages or chunks failed.
	ErrPartialExtraction = errors.New("partial extraction failure")
)

// Search result errors
var (
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between -1 and 1")
	ErrMissingFileInfo       = errors.New("file info is required")
	ErrEmptyContent          = errors.New("content cannot be empty")
)
